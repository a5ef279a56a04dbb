package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string     gRPC bind address
//	-l string     ops HTTP bind address
//	-d string     PostgreSQL DSN
//	-t duration   access token validity
//	-r duration   refresh token validity
//	-k string     key backend (file, redis, s3)
//	-key-dir      key directory for the file backend
//	-redis string Redis address for the redis backend
//	-b string     S3 bucket
//	-e string     S3 base endpoint
//	-n string     NATS URL
//	-log-level    log level
//
// Only the flags listed here are passed to the flag set (flagx.FilterArgs),
// so -c/-config and foreign flags do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-l", "-d", "-t", "-r", "-skew", "-k", "-key-dir", "-redis", "-b", "-e", "-n", "-log-level",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "l", config.EndpointAddrHTTP, "address and port to run ops HTTP server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.DurationVar(&config.ClockSkew, "skew", config.ClockSkew, "tolerated clock skew when verifying access tokens")
	fs.StringVar(&config.KeyBackend, "k", config.KeyBackend, "key backend: file, redis or s3")
	fs.StringVar(&config.KeyDir, "key-dir", config.KeyDir, "key directory (file backend)")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address (redis backend)")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket (s3 backend)")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.NATSURL, "n", config.NATSURL, "NATS URL, empty disables status events")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
