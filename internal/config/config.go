package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tgdrive/paperlink/internal/duration"
	"github.com/tgdrive/paperlink/internal/utils"
)

const envPrefix = "PAPERLINK_"

type ServerConfig struct {
	Port             int           `koanf:"port" default:"3000" description:"HTTP listen port"`
	BaseURL          string        `koanf:"base-url" description:"Public base URL used in share links (derived from request headers when empty)"`
	GracefulShutdown time.Duration `koanf:"graceful-shutdown" default:"10s" description:"Graceful shutdown timeout"`
	ReadTimeout      time.Duration `koanf:"read-timeout" default:"1h" description:"HTTP read timeout"`
	WriteTimeout     time.Duration `koanf:"write-timeout" default:"1h" description:"HTTP write timeout"`
}

type LoggingConfig struct {
	Level string `koanf:"level" default:"info" description:"Logging level"`
	File  string `koanf:"file" description:"Logging file path"`
}

type TGConfig struct {
	Token         string `koanf:"token" validate:"required" description:"Telegram bot token"`
	StorageChatID string `koanf:"storage-chat-id" validate:"required" description:"Chat id of the storage channel"`
	APIURL        string `koanf:"api-url" default:"https://api.telegram.org" description:"Bot API base URL"`
	Proxy         string `koanf:"proxy" description:"HTTP or SOCKS5 proxy URL"`
	RateLimit     bool   `koanf:"rate-limit" default:"true" description:"Enable rate limiting for bot API calls"`
	Rate          int    `koanf:"rate" default:"30" description:"Bot API calls per second"`
	RateBurst     int    `koanf:"rate-burst" default:"5" description:"Bot API rate limiter burst"`
}

type PoolConfig struct {
	MaxOpenConnections int           `koanf:"max-open-connections" default:"25" description:"Database max open connections"`
	MaxLifetime        time.Duration `koanf:"max-lifetime" default:"10m" description:"Database max connection lifetime"`
}

type StoreConfig struct {
	Driver     string     `koanf:"driver" default:"bolt" validate:"oneof=bolt postgres memory" description:"Link store backend: bolt, postgres or memory"`
	BoltPath   string     `koanf:"bolt-path" default:"paperlink.db" description:"Bolt database file"`
	DataSource string     `koanf:"data-source" validate:"required_if=Driver postgres" description:"Postgres connection string"`
	Pool       PoolConfig `koanf:"pool"`
}

type CacheConfig struct {
	MaxSize     int           `koanf:"max-size" default:"10485760" description:"In-memory cache size in bytes"`
	RedisAddr   string        `koanf:"redis-addr" description:"Redis address, in-memory cache is used when empty"`
	RedisPass   string        `koanf:"redis-pass" description:"Redis password"`
	FilePathTTL time.Duration `koanf:"file-path-ttl" default:"30m" description:"How long resolved Telegram file paths are reused"`
}

type LinksConfig struct {
	DefaultMaxDownloads int64         `koanf:"default-max-downloads" default:"20" description:"Download limit for new links, 0 for unlimited"`
	DefaultTTL          time.Duration `koanf:"default-ttl" default:"48h" description:"Lifetime of new links, 0 for no expiry"`
	ListLimit           int           `koanf:"list-limit" default:"10" description:"Links shown by /list"`
	StrictQuota         bool          `koanf:"strict-quota" description:"Reserve downloads atomically instead of check-then-increment"`
}

type UploadConfig struct {
	MaxSize int64 `koanf:"max-size" default:"26214400" description:"Maximum web upload size in bytes"`
}

type ServerCmdConfig struct {
	Server ServerConfig  `koanf:"server"`
	Log    LoggingConfig `koanf:"log"`
	TG     TGConfig      `koanf:"tg"`
	Store  StoreConfig   `koanf:"store"`
	Cache  CacheConfig   `koanf:"cache"`
	Links  LinksConfig   `koanf:"links"`
	Upload UploadConfig  `koanf:"upload"`
}

type MigrateCmdConfig struct {
	Log   LoggingConfig `koanf:"log"`
	Store StoreConfig   `koanf:"store"`
}

type WebhookCmdConfig struct {
	Log    LoggingConfig `koanf:"log"`
	Server ServerConfig  `koanf:"server"`
	TG     TGConfig      `koanf:"tg"`
}

type ConfigLoader struct {
	k    *koanf.Koanf
	keys map[string]string
	cfg  interface{}
}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		k:    koanf.New("."),
		keys: make(map[string]string),
	}
}

// RegisterFlags adds one flag per leaf field of cfg, named by joining koanf
// tags with "-". The config file flag is skipped for nested registrations.
func (cl *ConfigLoader) RegisterFlags(flags *pflag.FlagSet, prefix string, cfg interface{}, nested bool) error {
	if !nested && flags.Lookup("config") == nil {
		flags.StringP("config", "c", "", "Config file path (default $HOME/.paperlink/config.toml)")
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return errors.Errorf("config must be a struct, got %s", t.Kind())
	}
	return cl.registerStruct(flags, t, prefix, "")
}

func (cl *ConfigLoader) registerStruct(flags *pflag.FlagSet, t reflect.Type, flagPrefix, keyPrefix string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("koanf")
		if tag == "" || tag == "-" {
			continue
		}
		name := flagPrefix + tag
		key := keyPrefix + tag

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			if err := cl.registerStruct(flags, field.Type, name+"-", key+"."); err != nil {
				return err
			}
			continue
		}

		if flags.Lookup(name) != nil {
			cl.keys[name] = key
			continue
		}
		if err := addFlag(flags, field, name); err != nil {
			return err
		}
		cl.keys[name] = key
	}
	return nil
}

func addFlag(flags *pflag.FlagSet, field reflect.StructField, name string) error {
	def := field.Tag.Get("default")
	usage := field.Tag.Get("description")

	switch {
	case field.Type == reflect.TypeOf(time.Duration(0)):
		d, err := duration.Parse(def)
		if err != nil {
			return errors.Wrapf(err, "default for %s", name)
		}
		p := new(time.Duration)
		duration.DurationVar(flags, p, name, d, usage)
	case field.Type.Kind() == reflect.String:
		flags.String(name, def, usage)
	case field.Type.Kind() == reflect.Bool:
		v := false
		if def != "" {
			b, err := strconv.ParseBool(def)
			if err != nil {
				return errors.Wrapf(err, "default for %s", name)
			}
			v = b
		}
		flags.Bool(name, v, usage)
	case field.Type.Kind() == reflect.Int:
		v, err := parseIntDefault(def)
		if err != nil {
			return errors.Wrapf(err, "default for %s", name)
		}
		flags.Int(name, int(v), usage)
	case field.Type.Kind() == reflect.Int64:
		v, err := parseIntDefault(def)
		if err != nil {
			return errors.Wrapf(err, "default for %s", name)
		}
		flags.Int64(name, v, usage)
	case field.Type.Kind() == reflect.Slice && field.Type.Elem().Kind() == reflect.String:
		var v []string
		if def != "" {
			v = strings.Split(def, ",")
		}
		flags.StringSlice(name, v, usage)
	default:
		return errors.Errorf("unsupported config field type %s for %s", field.Type, name)
	}
	return nil
}

func parseIntDefault(def string) (int64, error) {
	if def == "" {
		return 0, nil
	}
	return strconv.ParseInt(def, 10, 64)
}

// Load merges flag defaults, the config file, PAPERLINK_* environment
// variables and explicitly set flags, in that order, and decodes into cfg.
func (cl *ConfigLoader) Load(cmd *cobra.Command, cfg interface{}) error {
	flags := cmd.Flags()

	defaults := make(map[string]interface{})
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := cl.keys[f.Name]; ok {
			defaults[key] = flagValue(f)
		}
	})
	if err := cl.k.Load(mapProvider(defaults), nil); err != nil {
		return errors.Wrap(err, "load defaults")
	}

	cfgFile := ""
	if f := flags.Lookup("config"); f != nil {
		cfgFile = f.Value.String()
	}
	if cfgFile == "" {
		cfgFile = findConfigFile()
	}
	if cfgFile != "" {
		if err := cl.k.Load(file.Provider(cfgFile), parserFor(cfgFile)); err != nil {
			return errors.Wrapf(err, "read config file %s", cfgFile)
		}
	}

	if err := cl.k.Load(env.Provider(envPrefix, ".", cl.envKey), nil); err != nil {
		return errors.Wrap(err, "load environment")
	}

	changed := make(map[string]interface{})
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := cl.keys[f.Name]; ok {
			changed[key] = flagValue(f)
		}
	})
	if err := cl.k.Load(mapProvider(changed), nil); err != nil {
		return errors.Wrap(err, "load flags")
	}

	decoderConfig := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			StringToDurationHook(),
			StringToSizeHook(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		TagName:          "koanf",
		Result:           cfg,
	}
	if err := cl.k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag:           "koanf",
		DecoderConfig: decoderConfig,
	}); err != nil {
		return errors.Wrap(err, "decode config")
	}
	cl.cfg = cfg
	return nil
}

func (cl *ConfigLoader) envKey(s string) string {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", "-")
	return cl.keys[name]
}

// Validate checks the struct decoded by the last Load call.
func (cl *ConfigLoader) Validate() error {
	if cl.cfg == nil {
		return errors.New("config not loaded")
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("koanf")
	})

	err := validate.Struct(cl.cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var missing, invalid []string
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		name := strings.ReplaceAll(ns, ".", "-")
		if strings.HasPrefix(fe.Tag(), "required") {
			missing = append(missing, name)
		} else {
			invalid = append(invalid, fmt.Sprintf("%s=%v", name, fe.Value()))
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("required configuration values not set: %s", strings.Join(missing, ", "))
	}
	return errors.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
}

type mapProvider map[string]interface{}

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]interface{}, error) {
	return maps.Unflatten(m, "."), nil
}

func flagValue(f *pflag.Flag) interface{} {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		return sv.GetSlice()
	}
	return f.Value.String()
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

func findConfigFile() string {
	candidates := []string{"config.toml", "config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".paperlink", "config.toml"),
			filepath.Join(home, ".paperlink", "config.yaml"))
	}
	for _, c := range candidates {
		if ok, _ := utils.PathExists(c); ok {
			return c
		}
	}
	return ""
}

func StringToDurationHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return duration.Parse(data.(string))
	}
}

// StringToSizeHook lets integer fields take human sizes such as "25MB".
func StringToSizeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Int && t.Kind() != reflect.Int64 {
			return data, nil
		}
		if t == reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return data, nil
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return data, nil
		}
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return data, nil
		}
		return int64(n), nil
	}
}
