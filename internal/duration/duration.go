// Package duration parses durations with day, week, month and year suffixes
// and exposes them as pflag values.
package duration

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/pflag"
)

var suffixes = []struct {
	suffix     string
	multiplier time.Duration
}{
	{suffix: "d", multiplier: 24 * time.Hour},
	{suffix: "w", multiplier: 7 * 24 * time.Hour},
	{suffix: "M", multiplier: 30 * 24 * time.Hour},
	{suffix: "y", multiplier: 365 * 24 * time.Hour},
}

// Parse accepts anything time.ParseDuration does plus "2d", "1w", "1M", "1y".
// A bare number is read as seconds.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	for _, sf := range suffixes {
		if !strings.HasSuffix(s, sf.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(s, sf.suffix), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse duration %q", s)
		}
		return time.Duration(n * float64(sf.multiplier)), nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Errorf("invalid duration %q", s)
	}
	return time.Duration(n * float64(time.Second)), nil
}

type Value time.Duration

func (d *Value) String() string {
	return time.Duration(*d).String()
}

func (d *Value) Set(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*d = Value(v)
	return nil
}

func (d *Value) Type() string {
	return "duration"
}

func (d *Value) UnmarshalText(text []byte) error {
	return d.Set(string(text))
}

func DurationVar(f *pflag.FlagSet, p *time.Duration, name string, value time.Duration, usage string) {
	*p = value
	f.Var((*Value)(p), name, usage)
}
