// Package config loads runtime settings from an optional sieve.yaml and
// SIEVE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/sieve/internal/auth"
	"github.com/roach88/sieve/internal/querysql"
)

// EnvPrefix namespaces environment overrides, e.g. SIEVE_HTTP_ADDR.
const EnvPrefix = "SIEVE"

// Config is the full runtime configuration.
type Config struct {
	Filter   FilterConfig   `mapstructure:"filter"`
	SQL      SQLConfig      `mapstructure:"sql"`
	Database DatabaseConfig `mapstructure:"database"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type FilterConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

type SQLConfig struct {
	Dialect      string `mapstructure:"dialect"`
	DefaultLimit uint64 `mapstructure:"default_limit"`
	MaxLimit     uint64 `mapstructure:"max_limit"`
}

// DatabaseConfig selects the executor. A non-empty PostgresURL wins over
// SQLitePath.
type DatabaseConfig struct {
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type SchemaConfig struct {
	Dir string `mapstructure:"dir"`
}

type HTTPConfig struct {
	Addr         string   `mapstructure:"addr"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// AuthConfig maps bearer tokens to principals. With AllowGuest, requests
// without a token may search.
type AuthConfig struct {
	AllowGuest bool        `mapstructure:"allow_guest"`
	Tokens     auth.Tokens `mapstructure:"tokens"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("filter.max_depth", 32)
	v.SetDefault("sql.dialect", string(querysql.SQLite))
	v.SetDefault("sql.default_limit", 100)
	v.SetDefault("sql.max_limit", 1000)
	v.SetDefault("database.sqlite_path", "sieve.db")
	v.SetDefault("database.postgres_url", "")
	v.SetDefault("schema.dir", "./schema")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.max_body_bytes", 1<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("cache.size", 512)
	v.SetDefault("auth.allow_guest", true)
}

// Load reads sieve.yaml from dir if present, then applies environment
// overrides. An empty dir skips the file.
func Load(dir string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("sieve")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with no file and no environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if c.Filter.MaxDepth <= 0 {
		return fmt.Errorf("filter.max_depth must be positive, got %d", c.Filter.MaxDepth)
	}
	if _, err := querysql.ParseDialect(c.SQL.Dialect); err != nil {
		return fmt.Errorf("sql.dialect: %w", err)
	}
	if c.SQL.MaxLimit > 0 && c.SQL.DefaultLimit > c.SQL.MaxLimit {
		return fmt.Errorf("sql.default_limit %d exceeds sql.max_limit %d", c.SQL.DefaultLimit, c.SQL.MaxLimit)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative")
	}
	return nil
}
