package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Documents DocumentsConfig `mapstructure:"documents"`
	JWTSecret string          `mapstructure:"jwt_secret"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type UpstreamConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

// DocumentsConfig describes where the configuration documents live and how
// long a parsed snapshot is served before a re-read.
type DocumentsConfig struct {
	Driver          string `mapstructure:"driver"` // file or postgres
	Path            string `mapstructure:"path"`   // directory containing the JSON documents
	DSN             string `mapstructure:"dsn"`    // postgres document store
	SchemaFile      string `mapstructure:"schema_file"`
	PermissionsFile string `mapstructure:"permissions_file"`
	NavigationFile  string `mapstructure:"navigation_file"`
	ReloadSeconds   int    `mapstructure:"reload_seconds"`
}

// ReloadInterval returns the document cache TTL.
func (d DocumentsConfig) ReloadInterval() time.Duration {
	return time.Duration(d.ReloadSeconds) * time.Second
}

// IsPostgres returns true if documents are read from the backend document store.
func (d DocumentsConfig) IsPostgres() bool {
	return d.Driver == "postgres"
}

// Timeout returns the upstream HTTP client timeout.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutMs) * time.Millisecond
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8090)
	viper.SetDefault("upstream.base_url", "http://localhost:8080/api")
	viper.SetDefault("upstream.timeout_ms", 15000)
	viper.SetDefault("documents.driver", "file")
	viper.SetDefault("documents.path", "./documents")
	viper.SetDefault("documents.schema_file", "entity-schema.json")
	viper.SetDefault("documents.permissions_file", "permissions.json")
	viper.SetDefault("documents.navigation_file", "navigation.json")
	viper.SetDefault("documents.reload_seconds", 300)
	viper.SetDefault("jwt_secret", "changeme-secret")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Every key has a default, so a missing file is fine; a malformed one
		// is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
