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
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:9090", "-b", "pgx", "-d", "postgres://db", "-s", "secret",
				"-t", "5", "-u", "https://league.example", "-m", "smtp", "-r", "redis:6379", "-l", "debug",
			},
			expected: &Config{
				EndpointAddrGRPC:            "127.0.0.1:9090",
				DatabaseDriver:              "pgx",
				DatabaseDSN:                 "postgres://db",
				SecretKey:                   "secret",
				AccessTokenValidityDuration: 5 * time.Minute,
				BaseURL:                     "https://league.example",
				MailBackend:                 "smtp",
				RedisAddr:                   "redis:6379",
				LogLevel:                    "debug",
			},
		},
		{
			name:     "unknown flags are filtered out",
			args:     []string{"cmd", "-x", "1", "-t", "2"},
			expected: &Config{AccessTokenValidityDuration: 2 * time.Minute},
		},
		{
			name:        "non-numeric duration panics",
			args:        []string{"cmd", "-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config) })
				return
			}

			require.NotPanics(t, func() { parseFlags(config) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
