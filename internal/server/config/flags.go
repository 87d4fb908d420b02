package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/members/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-b string   database driver, "sqlite" or "pgx"
//	-d string   database DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-u string   public base URL for email login links
//	-m string   mail backend: log, smtp or s3
//	-r string   redis address for throttling (empty: in-process)
//	-l string   log level
//
// Only the flags above are taken from os.Args (see flagx.FilterArgs); the
// rest of the configuration comes from defaults and the config file.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-b", "-d", "-s", "-t", "-u", "-m", "-r", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDriver, "b", config.DatabaseDriver, "database driver (sqlite|pgx)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "public base URL")
	fs.StringVar(&config.MailBackend, "m", config.MailBackend, "mail backend (log|smtp|s3)")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
