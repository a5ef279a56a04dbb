package config

import (
	"github.com/caarlos0/env/v11"
)

// parseEnv overlays GOPHAUTH_* environment variables. Unset variables leave
// the current value alone. Durations use time.ParseDuration syntax.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
