// Package config handles configuration for the members server,
// including defaults, a JSON or YAML file overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the members server.
//
// Fields:
//   - EndpointAddrGRPC: bind address for the gRPC endpoint.
//   - DatabaseDriver / DatabaseDSN: "sqlite" (modernc) or "pgx" (PostgreSQL) and its DSN.
//   - SecretKey / AccessTokenValidityDuration: HS256 secret and lifetime of access assertions.
//   - BaseURL: public URL prefix used to build email login links.
//   - RootUserID: user id treated as root when computing grades (0 disables).
//   - DaysUntilRecentActivityLogin / ...Driving: windows for the activity part of a grade.
//   - MailBackend: "log", "smtp" or "s3"; SMTP* and S3* configure those backends.
//   - SteamOpenIDEndpoint: Steam OpenID 2.0 provider endpoint.
//   - RedisAddr: when empty, email login requests are throttled in-process.
//   - ThrottleLimit / ThrottleWindow: allowed email login requests per address and window.
//   - LogBackend / LogLevel / LogFile: logging setup.
type Config struct {
	EndpointAddrGRPC string

	DatabaseDriver string
	DatabaseDSN    string

	SecretKey                   string
	AccessTokenValidityDuration time.Duration

	BaseURL                        string
	RootUserID                     int64
	DaysUntilRecentActivityLogin   int
	DaysUntilRecentActivityDriving int

	MailBackend  string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string

	SteamOpenIDEndpoint string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ThrottleLimit  int
	ThrottleWindow time.Duration

	LogBackend string
	LogLevel   string
	LogFile    string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey and the S3 credentials must be overridden in production.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "members.db"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.BaseURL = "https://localhost"
	c.RootUserID = 0
	c.DaysUntilRecentActivityLogin = 30
	c.DaysUntilRecentActivityDriving = 30
	c.MailBackend = "log"
	c.SMTPHost = "localhost"
	c.SMTPPort = 587
	c.SMTPUsername = ""
	c.SMTPPassword = ""
	c.SMTPFrom = "noreply@localhost"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "members-mail"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.SteamOpenIDEndpoint = "https://steamcommunity.com/openid/login"
	c.RedisAddr = ""
	c.RedisPassword = ""
	c.RedisDB = 0
	c.ThrottleLimit = 5
	c.ThrottleWindow = 15 * time.Minute
	c.LogBackend = "slog"
	c.LogLevel = "info"
	c.LogFile = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON/YAML file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
