package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "CONSTRUCTA"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "constructa.db"
	defaultLogLevel          = "info"
	defaultStaleWindowMillis = 1500
	defaultReapIntervalSecs  = 60
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress           string
	DatabasePath          string
	LogLevel              string
	PresenceSigningSecret string
	CursorStaleWindow     time.Duration
	CursorReapInterval    time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("cursor.stale_window_ms", defaultStaleWindowMillis)
	configViper.SetDefault("cursor.reap_interval_s", defaultReapIntervalSecs)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:           configViper.GetString("http.address"),
		DatabasePath:          configViper.GetString("database.path"),
		LogLevel:              configViper.GetString("log.level"),
		PresenceSigningSecret: configViper.GetString("presence.signing_secret"),
		CursorStaleWindow:     time.Duration(configViper.GetInt("cursor.stale_window_ms")) * time.Millisecond,
		CursorReapInterval:    time.Duration(configViper.GetInt("cursor.reap_interval_s")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.PresenceSigningSecret) == "" {
		return fmt.Errorf("presence.signing_secret is required")
	}
	if c.CursorStaleWindow <= 0 {
		return fmt.Errorf("cursor.stale_window_ms must be positive")
	}
	if c.CursorReapInterval < 0 {
		return fmt.Errorf("cursor.reap_interval_s must not be negative")
	}
	return nil
}
