package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/members/internal/flagx"
	"github.com/dmitrijs2005/members/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config. Durations use timex.Duration so
// files may say "15m" instead of nanoseconds.
type FileConfig struct {
	EndpointAddrGRPC               string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDriver                 string         `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN                    string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                      string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration    timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	BaseURL                        string         `json:"base_url" yaml:"base_url"`
	RootUserID                     int64          `json:"root_user_id" yaml:"root_user_id"`
	DaysUntilRecentActivityLogin   int            `json:"days_until_recent_activity_login" yaml:"days_until_recent_activity_login"`
	DaysUntilRecentActivityDriving int            `json:"days_until_recent_activity_driving" yaml:"days_until_recent_activity_driving"`
	MailBackend                    string         `json:"mail_backend" yaml:"mail_backend"`
	SMTPHost                       string         `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort                       int            `json:"smtp_port" yaml:"smtp_port"`
	SMTPUsername                   string         `json:"smtp_username" yaml:"smtp_username"`
	SMTPPassword                   string         `json:"smtp_password" yaml:"smtp_password"`
	SMTPFrom                       string         `json:"smtp_from" yaml:"smtp_from"`
	S3RootUser                     string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword                 string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                       string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                       string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint                 string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	SteamOpenIDEndpoint            string         `json:"steam_openid_endpoint" yaml:"steam_openid_endpoint"`
	RedisAddr                      string         `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword                  string         `json:"redis_password" yaml:"redis_password"`
	RedisDB                        int            `json:"redis_db" yaml:"redis_db"`
	ThrottleLimit                  int            `json:"throttle_limit" yaml:"throttle_limit"`
	ThrottleWindow                 timex.Duration `json:"throttle_window" yaml:"throttle_window"`
	LogBackend                     string         `json:"log_backend" yaml:"log_backend"`
	LogLevel                       string         `json:"log_level" yaml:"log_level"`
	LogFile                        string         `json:"log_file" yaml:"log_file"`
}

// parseFile overlays the config file named by -c/-config (or MEMBERS_CONFIG)
// onto config. Keys missing from the file keep their current values.
// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
// Unreadable or invalid files panic.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	b, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := fromConfig(config)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, fc)
	default:
		err = json.Unmarshal(b, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}

func fromConfig(c *Config) *FileConfig {
	return &FileConfig{
		EndpointAddrGRPC:               c.EndpointAddrGRPC,
		DatabaseDriver:                 c.DatabaseDriver,
		DatabaseDSN:                    c.DatabaseDSN,
		SecretKey:                      c.SecretKey,
		AccessTokenValidityDuration:    timex.Duration{Duration: c.AccessTokenValidityDuration},
		BaseURL:                        c.BaseURL,
		RootUserID:                     c.RootUserID,
		DaysUntilRecentActivityLogin:   c.DaysUntilRecentActivityLogin,
		DaysUntilRecentActivityDriving: c.DaysUntilRecentActivityDriving,
		MailBackend:                    c.MailBackend,
		SMTPHost:                       c.SMTPHost,
		SMTPPort:                       c.SMTPPort,
		SMTPUsername:                   c.SMTPUsername,
		SMTPPassword:                   c.SMTPPassword,
		SMTPFrom:                       c.SMTPFrom,
		S3RootUser:                     c.S3RootUser,
		S3RootPassword:                 c.S3RootPassword,
		S3Bucket:                       c.S3Bucket,
		S3Region:                       c.S3Region,
		S3BaseEndpoint:                 c.S3BaseEndpoint,
		SteamOpenIDEndpoint:            c.SteamOpenIDEndpoint,
		RedisAddr:                      c.RedisAddr,
		RedisPassword:                  c.RedisPassword,
		RedisDB:                        c.RedisDB,
		ThrottleLimit:                  c.ThrottleLimit,
		ThrottleWindow:                 timex.Duration{Duration: c.ThrottleWindow},
		LogBackend:                     c.LogBackend,
		LogLevel:                       c.LogLevel,
		LogFile:                        c.LogFile,
	}
}

func (fc *FileConfig) apply(c *Config) {
	c.EndpointAddrGRPC = fc.EndpointAddrGRPC
	c.DatabaseDriver = fc.DatabaseDriver
	c.DatabaseDSN = fc.DatabaseDSN
	c.SecretKey = fc.SecretKey
	c.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	c.BaseURL = fc.BaseURL
	c.RootUserID = fc.RootUserID
	c.DaysUntilRecentActivityLogin = fc.DaysUntilRecentActivityLogin
	c.DaysUntilRecentActivityDriving = fc.DaysUntilRecentActivityDriving
	c.MailBackend = fc.MailBackend
	c.SMTPHost = fc.SMTPHost
	c.SMTPPort = fc.SMTPPort
	c.SMTPUsername = fc.SMTPUsername
	c.SMTPPassword = fc.SMTPPassword
	c.SMTPFrom = fc.SMTPFrom
	c.S3RootUser = fc.S3RootUser
	c.S3RootPassword = fc.S3RootPassword
	c.S3Bucket = fc.S3Bucket
	c.S3Region = fc.S3Region
	c.S3BaseEndpoint = fc.S3BaseEndpoint
	c.SteamOpenIDEndpoint = fc.SteamOpenIDEndpoint
	c.RedisAddr = fc.RedisAddr
	c.RedisPassword = fc.RedisPassword
	c.RedisDB = fc.RedisDB
	c.ThrottleLimit = fc.ThrottleLimit
	c.ThrottleWindow = fc.ThrottleWindow.Duration
	c.LogBackend = fc.LogBackend
	c.LogLevel = fc.LogLevel
	c.LogFile = fc.LogFile
}
