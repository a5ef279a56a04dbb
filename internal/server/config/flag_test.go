package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-l", ":9091", "-d", "db", "-t", "1m", "-r", "72h", "-skew", "10s",
			"-k", "redis", "-key-dir", "/var/keys", "-redis", "redis:6379",
			"-b", "bucket", "-e", "http://endpoint", "-n", "nats://n:4222", "-log-level", "debug",
		}, expected: &Config{
			EndpointAddrGRPC:             "127.0.0.1:9090",
			EndpointAddrHTTP:             ":9091",
			DatabaseDSN:                  "db",
			AccessTokenValidityDuration:  time.Minute,
			RefreshTokenValidityDuration: 72 * time.Hour,
			ClockSkew:                    10 * time.Second,
			KeyBackend:                   "redis",
			KeyDir:                       "/var/keys",
			RedisAddr:                    "redis:6379",
			S3Bucket:                     "bucket",
			S3BaseEndpoint:               "http://endpoint",
			NATSURL:                      "nats://n:4222",
			LogLevel:                     "debug",
		}},
		{name: "foreign flags ignored", args: []string{"cmd", "-c", "cfg.json", "-x", "1", "-a", ":1"},
			expected: &Config{EndpointAddrGRPC: ":1"}},
		{name: "bad duration", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
