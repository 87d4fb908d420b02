package config

import (
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/members/internal/flagx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, "members.db", c.DatabaseDSN)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, "log", c.MailBackend)
	assert.Equal(t, 30, c.DaysUntilRecentActivityLogin)
	assert.Equal(t, 30, c.DaysUntilRecentActivityDriving)
	assert.Equal(t, 5, c.ThrottleLimit)
	assert.Equal(t, 15*time.Minute, c.ThrottleWindow)
	assert.Equal(t, "https://steamcommunity.com/openid/login", c.SteamOpenIDEndpoint)
	assert.Empty(t, c.RedisAddr)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv(flagx.ConfigFileEnv, "")

	path := writeTempFile(t, "members.json", `{"endpoint_addr_grpc": "file:1", "log_level": "warn"}`)
	os.Args = []string{"testbin", "-c", path, "-a", "flag:2"}

	c := LoadConfig()
	require.NotNil(t, c)

	assert.Equal(t, "flag:2", c.EndpointAddrGRPC)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, "sqlite", c.DatabaseDriver)
}
