// Package config reads server settings from the environment, optionally
// seeded by a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Addr              string        `mapstructure:"addr"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OutboxSize        int           `mapstructure:"outbox_size"`
	// DatabaseURL is a postgres DSN. Empty keeps results in memory.
	DatabaseURL    string   `mapstructure:"database_url"`
	LogLevel       string   `mapstructure:"log_level"`
	LogDev         bool     `mapstructure:"log_dev"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads envFiles (".env" when none are given; a missing file is not an
// error) and then the process environment. Variables already set in the
// environment win over the files.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	v.SetDefault("addr", ":3000")
	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("write_timeout", 3*time.Second)
	v.SetDefault("outbox_size", 64)
	v.SetDefault("database_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dev", false)
	v.SetDefault("allowed_origins", []string{})
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	// hosting platforms hand out PORT; an explicit ADDR still wins
	if _, ok := os.LookupEnv("ADDR"); !ok {
		if port := os.Getenv("PORT"); port != "" {
			cfg.Addr = ":" + port
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: empty ADDR", ErrInvalid)
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: HEARTBEAT_INTERVAL must be positive", ErrInvalid)
	case c.WriteTimeout <= 0:
		return fmt.Errorf("%w: WRITE_TIMEOUT must be positive", ErrInvalid)
	case c.OutboxSize <= 0:
		return fmt.Errorf("%w: OUTBOX_SIZE must be positive", ErrInvalid)
	}
	return nil
}
