package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	CleanupInterval              timex.Duration `json:"cleanup_interval"`
	ClockSkew                    timex.Duration `json:"clock_skew"`
	KeyBackend                   string         `json:"key_backend"`
	KeyDir                       string         `json:"key_dir"`
	KeyName                      string         `json:"key_name"`
	KeyBits                      int            `json:"key_bits"`
	KeyPassphrase                string         `json:"key_passphrase"`
	KeyLockTimeout               timex.Duration `json:"key_lock_timeout"`
	RedisAddr                    string         `json:"redis_addr"`
	RedisPassword                string         `json:"redis_password"`
	RedisDB                      int            `json:"redis_db"`
	RedisPrefix                  string         `json:"redis_prefix"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3Prefix                     string         `json:"s3_prefix"`
	NATSURL                      string         `json:"nats_url"`
	AdminUserName                string         `json:"admin_username"`
	AdminPassword                string         `json:"admin_password"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:             c.EndpointAddrGRPC,
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		DatabaseDSN:                  c.DatabaseDSN,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		CleanupInterval:              timex.Duration{Duration: c.CleanupInterval},
		ClockSkew:                    timex.Duration{Duration: c.ClockSkew},
		KeyBackend:                   c.KeyBackend,
		KeyDir:                       c.KeyDir,
		KeyName:                      c.KeyName,
		KeyBits:                      c.KeyBits,
		KeyPassphrase:                c.KeyPassphrase,
		KeyLockTimeout:               timex.Duration{Duration: c.KeyLockTimeout},
		RedisAddr:                    c.RedisAddr,
		RedisPassword:                c.RedisPassword,
		RedisDB:                      c.RedisDB,
		RedisPrefix:                  c.RedisPrefix,
		S3RootUser:                   c.S3RootUser,
		S3RootPassword:               c.S3RootPassword,
		S3Bucket:                     c.S3Bucket,
		S3Region:                     c.S3Region,
		S3BaseEndpoint:               c.S3BaseEndpoint,
		S3Prefix:                     c.S3Prefix,
		NATSURL:                      c.NATSURL,
		AdminUserName:                c.AdminUserName,
		AdminPassword:                c.AdminPassword,
		LogLevel:                     c.LogLevel,
		LogFormat:                    c.LogFormat,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.DatabaseDSN = j.DatabaseDSN
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.RefreshTokenValidityDuration = j.RefreshTokenValidityDuration.Duration
	c.CleanupInterval = j.CleanupInterval.Duration
	c.ClockSkew = j.ClockSkew.Duration
	c.KeyBackend = j.KeyBackend
	c.KeyDir = j.KeyDir
	c.KeyName = j.KeyName
	c.KeyBits = j.KeyBits
	c.KeyPassphrase = j.KeyPassphrase
	c.KeyLockTimeout = j.KeyLockTimeout.Duration
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.RedisPrefix = j.RedisPrefix
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.S3Prefix = j.S3Prefix
	c.NATSURL = j.NATSURL
	c.AdminUserName = j.AdminUserName
	c.AdminPassword = j.AdminPassword
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
}

// parseJson overlays values from the JSON file named by -c/-config (or
// GOPHAUTH_CONFIG). Keys missing from the file keep their current value.
// An unreadable or invalid file panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigFileFlag(EnvPrefix + "CONFIG")

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}
