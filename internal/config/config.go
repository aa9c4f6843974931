// Package config carries the environment-level settings of a run: where the
// part databases live and how to reach Vivado.
package config

import (
	"github.com/caarlos0/env"
	log "github.com/sirupsen/logrus"
)

// Config is populated from the environment; flags override its values.
type Config struct {
	// DatabaseRoot points at the Project X-Ray database checkout.
	DatabaseRoot string `env:"BFAT_DB" envDefault:"database/prjxray-db"`

	// VivadoCmd is the command used to start Vivado in tcl mode.
	VivadoCmd string `env:"BFAT_VIVADO" envDefault:"vivado"`

	// Workers bounds the number of bit groups analyzed in parallel.
	// Zero picks a default.
	Workers int `env:"BFAT_WORKERS" envDefault:"0"`

	LogLevel string `env:"BFAT_LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyLogLevel sets the global log level from the configuration. Unknown
// level names keep the default and are reported once.
func (c *Config) ApplyLogLevel() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("unknown log level %q, using info", c.LogLevel)
		return
	}
	log.SetLevel(level)
}
