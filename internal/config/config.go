// Package config loads server settings from KIDFEED_* environment variables,
// an optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. KIDFEED_SERVER_PORT
const EnvPrefix = "KIDFEED"

// Config is the server configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Session    SessionConfig    `mapstructure:"session"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `mapstructure:"level"`
}

type StorageConfig struct {
	// Type is memory, redis or sql
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
	SQL   SQLConfig   `mapstructure:"sql"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

type SQLConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type AuthConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type SessionConfig struct {
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

type ClassifierConfig struct {
	BlockList []string `mapstructure:"block_list"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.redis.url", "")
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.sql.driver", "sqlite3")
	v.SetDefault("storage.sql.dsn", "file:kidfeed.db?_foreign_keys=on")
	v.SetDefault("storage.sql.max_open_conns", 1)
	v.SetDefault("auth.bcrypt_cost", 0)
	v.SetDefault("session.token_ttl", 24*time.Hour)
	v.SetDefault("session.tick_interval", time.Second)
	v.SetDefault("classifier.block_list", []string{})
}

// Options control where Load looks
type Options struct {
	// EnvFile is loaded into the environment if it exists. Defaults to ".env".
	EnvFile string
	// ConfigFile is an explicit YAML file. When empty, kidfeed.yaml is looked for
	// in the working directory and a missing file is not an error.
	ConfigFile string
}

// Load reads configuration. Environment variables win over the YAML file,
// which wins over defaults.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("kidfeed")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail later and less clearly
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "memory", "sql":
	case "redis":
		if c.Storage.Redis.URL == "" {
			return errors.New("storage.redis.url is required when storage.type is redis")
		}
	default:
		return fmt.Errorf("storage.type must be memory, redis or sql, got %q", c.Storage.Type)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if len(c.Classifier.BlockList) > 0 && !hasWord(c.Classifier.BlockList) {
		return errors.New("classifier.block_list has no words; leave it unset to use the default list")
	}
	return nil
}

func hasWord(words []string) bool {
	for _, w := range words {
		if strings.TrimSpace(w) != "" {
			return true
		}
	}
	return false
}

// SlogLevel parses the configured log level
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
