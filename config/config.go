// Package config loads service configuration from an optional YAML file and
// the environment, with working defaults for local runs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Server struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Postgres struct {
	// DSN enables the Postgres store; empty keeps the in-memory store.
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type Cache struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

type Fresh struct {
	OpenTTL       time.Duration `mapstructure:"open_ttl"`
	ClosedTTL     time.Duration `mapstructure:"closed_ttl"`
	StaleFallback bool          `mapstructure:"stale_fallback"`
	BatchLimit    int           `mapstructure:"batch_limit"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
}

type RateLimit struct {
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
	MaxKeys int           `mapstructure:"max_keys"`
}

type Source struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	Instrument string        `mapstructure:"instrument"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Postgres  Postgres  `mapstructure:"postgres"`
	Cache     Cache     `mapstructure:"cache"`
	Fresh     Fresh     `mapstructure:"fresh"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	Source    Source    `mapstructure:"source"`
	Log       Log       `mapstructure:"log"`
}

// Load reads configuration from path (optional), then overlays TAAZA_*
// environment variables. A missing config file is not an error; defaults
// carry the service on their own.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TAAZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("cache.default_ttl", 5*time.Minute)
	v.SetDefault("cache.max_entries", 10000)

	v.SetDefault("fresh.open_ttl", 30*time.Second)
	v.SetDefault("fresh.closed_ttl", 6*time.Hour)
	v.SetDefault("fresh.stale_fallback", true)
	v.SetDefault("fresh.batch_limit", 4)
	v.SetDefault("fresh.batch_timeout", 2*time.Minute)

	v.SetDefault("ratelimit.limit", 30)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.max_keys", 10000)

	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.instrument", "")

	v.SetDefault("log.level", "info")
}
