package tgc

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/tgdrive/paperlink/internal/config"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

// Client talks to the Telegram Bot API over HTTP. Calls fail straight to the
// caller, nothing is retried.
type Client struct {
	token   string
	apiURL  string
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg *config.TGConfig) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		if err := applyProxy(transport, cfg.Proxy); err != nil {
			return nil, err
		}
	}

	c := &Client{
		token:  cfg.Token,
		apiURL: strings.TrimSuffix(cfg.APIURL, "/"),
		http:   &http.Client{Transport: transport},
	}
	if c.apiURL == "" {
		c.apiURL = "https://api.telegram.org"
	}
	if cfg.RateLimit && cfg.Rate > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Second/time.Duration(cfg.Rate)), max(cfg.RateBurst, 1))
	}
	return c, nil
}

func applyProxy(t *http.Transport, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "parse proxy url")
	}
	switch u.Scheme {
	case "http", "https":
		t.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return errors.Wrap(err, "socks5 dialer")
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return errors.New("socks5 dialer does not support context")
		}
		t.Proxy = nil
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return cd.DialContext(ctx, network, addr)
		}
	default:
		return errors.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// transportError unwraps *url.Error, its message holds the request URL and
// with it the bot token.
func transportError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func (c *Client) methodURL(method string) string {
	return c.apiURL + "/bot" + c.token + "/" + method
}

// call posts a JSON body built by enc and hands the "result" value to dec.
// dec may be nil when the result is not needed.
func (c *Client) call(ctx context.Context, method string, enc func(e *jx.Encoder), dec func(d *jx.Decoder) error) error {
	var e jx.Encoder
	e.ObjStart()
	enc(&e)
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, dec)
}

func (c *Client) do(req *http.Request, method string, dec func(d *jx.Decoder) error) error {
	if err := c.wait(req.Context()); err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(transportError(err), "telegram %s", method)
	}
	defer res.Body.Close()
	return decodeResponse(res.Body, method, res.StatusCode, dec)
}

func decodeResponse(r io.Reader, method string, status int, dec func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "read %s response", method)
	}
	var (
		ok     bool
		apiErr = &Error{Method: method, Code: status}
		result jx.Raw
	)
	err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "ok":
			ok, err = d.Bool()
		case "error_code":
			apiErr.Code, err = d.Int()
		case "description":
			apiErr.Description, err = d.Str()
		case "result":
			result, err = d.Raw()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "decode %s response", method)
	}
	if !ok {
		return apiErr
	}
	if dec == nil || result == nil {
		return nil
	}
	if err := dec(jx.DecodeBytes(result)); err != nil {
		return errors.Wrapf(err, "decode %s result", method)
	}
	return nil
}
