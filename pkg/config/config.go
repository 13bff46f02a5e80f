// Package config loads service settings from the environment, an optional
// .env file, and an optional config file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	DBDSN             string        `mapstructure:"DB_DSN"`
	DBAutoMigrate     bool          `mapstructure:"DB_AUTO_MIGRATE"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	TokenTTL          time.Duration `mapstructure:"TOKEN_TTL"`
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	GinMode           string        `mapstructure:"GIN_MODE"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	LogEncoding       string        `mapstructure:"LOG_ENCODING"`
	RequiredDocuments int           `mapstructure:"REQUIRED_DOCUMENTS"`
}

const devSecret = "dev-insecure-secret-change"

var defaults = map[string]any{
	"DB_DSN":             "",
	"DB_AUTO_MIGRATE":    true,
	"JWT_SECRET":         devSecret,
	"TOKEN_TTL":          24 * time.Hour,
	"HTTP_ADDR":          ":8081",
	"GIN_MODE":           "debug",
	"LOG_LEVEL":          "info",
	"LOG_ENCODING":       "json",
	"REQUIRED_DOCUMENTS": 5,
}

// Loader keeps the viper instance so the file can be watched after Load.
type Loader struct {
	v        *viper.Viper
	fromFile bool
}

// NewLoader reads .env (if present) and then CONFIG_FILE (if set). Process
// environment variables always win.
func NewLoader() (*Loader, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	l := &Loader{v: v}
	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read .env: %w", err)
		}
		l.fromFile = true
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(strings.TrimPrefix(fileExt(path), "."))
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		l.fromFile = true
	}
	return l, nil
}

func fileExt(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ".yaml"
}

// Load decodes and validates the current settings.
func (l *Loader) Load() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls fn with the reloaded config whenever the backing file changes.
// It is a no-op when no file was read.
func (l *Loader) Watch(fn func(*Config, error)) {
	if !l.fromFile {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		fn(l.Load())
	})
	l.v.WatchConfig()
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBDSN) == "" {
		return errors.New("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN")
	}
	if c.RequiredDocuments < 1 {
		return fmt.Errorf("REQUIRED_DOCUMENTS must be positive, got %d", c.RequiredDocuments)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}

// InsecureSecret reports whether the development JWT secret is in use.
func (c *Config) InsecureSecret() bool { return c.JWTSecret == devSecret }
