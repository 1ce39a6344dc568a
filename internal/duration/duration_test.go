package duration

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"48h", 48 * time.Hour},
		{"1m30s", 90 * time.Second},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"0.5d", 12 * time.Hour},
		{"30", 30 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("soon")
	assert.Error(t, err)

	_, err = Parse("xd")
	assert.Error(t, err)
}

func TestDurationVar(t *testing.T) {
	var d time.Duration
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	DurationVar(fs, &d, "ttl", time.Hour, "ttl")

	assert.Equal(t, time.Hour, d)
	assert.Equal(t, "1h0m0s", fs.Lookup("ttl").DefValue)

	require.NoError(t, fs.Parse([]string{"--ttl", "2d"}))
	assert.Equal(t, 48*time.Hour, d)
}
