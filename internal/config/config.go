package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration for the server.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	Log     LogConfig     `mapstructure:"log"`
	App     AppConfig     `mapstructure:"app"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Port                    int           `mapstructure:"port"`
	Host                    string        `mapstructure:"host"`
	ContextPath             string        `mapstructure:"context_path"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// SQLiteConfig holds the embedded storage configuration.
// This server is single-node and always embeds its own state; there is
// no external database backend to point it at.
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LogConfig holds logging-related configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig holds application identity configuration.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AuthConfig holds bearer-token auth configuration.
type AuthConfig struct {
	TokenSecretKey string        `mapstructure:"token_secret_key"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	DefaultUser    string        `mapstructure:"default_user"`
	DefaultPass    string        `mapstructure:"default_pass"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from environment variables only.
func LoadConfigFromEnv() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults. Port 8848 and context path /nacos match the wire
	// contract that SDKs and the console dial by default.
	viper.SetDefault("server.port", 8848)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.context_path", "/nacos")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown_timeout", "30s")

	// SQLite defaults
	viper.SetDefault("sqlite.path", "/data/nacos.db")
	viper.SetDefault("sqlite.max_open_conns", 10)
	viper.SetDefault("sqlite.max_idle_conns", 5)
	viper.SetDefault("sqlite.conn_max_lifetime", "1h")
	viper.SetDefault("sqlite.conn_max_idle_time", "10m")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.filename", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// App defaults
	viper.SetDefault("app.name", "nacos-go")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Auth defaults
	viper.SetDefault("auth.token_secret_key", "")
	viper.SetDefault("auth.token_ttl", "5h")
	viper.SetDefault("auth.default_user", "nacos")
	viper.SetDefault("auth.default_pass", "nacos")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path cannot be empty")
	}

	if c.Log.Level == "" {
		return fmt.Errorf("log level cannot be empty")
	}

	if c.App.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebug returns true if debug mode is enabled.
func (c *Config) IsDebug() bool {
	return c.App.Debug || c.IsDevelopment()
}
