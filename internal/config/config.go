// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBDriver                      string `mapstructure:"DB_DRIVER"`
	DBHost                        string `mapstructure:"DB_HOST"`
	DBPort                        string `mapstructure:"DB_PORT"`
	DBUser                        string `mapstructure:"DB_USER"`
	DBPassword                    string `mapstructure:"DB_PASSWORD"`
	DBName                        string `mapstructure:"DB_NAME"`
	DBSSLMode                     string `mapstructure:"DB_SSLMODE"`
	DBSQLitePath                  string `mapstructure:"DB_SQLITE_PATH"`
	DBReadHost                    string `mapstructure:"DB_READ_HOST"`
	DBReadPort                    string `mapstructure:"DB_READ_PORT"`
	DBReadUser                    string `mapstructure:"DB_READ_USER"`
	DBReadPassword                string `mapstructure:"DB_READ_PASSWORD"`
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL string `mapstructure:"REDIS_URL"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`

	ReconcileIntervalMinutes int `mapstructure:"RECONCILE_INTERVAL_MINUTES"`
	FeedPreviewSize          int `mapstructure:"FEED_PREVIEW_SIZE"`
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// defaults apply to every key neither a config file nor the environment sets.
var defaults = map[string]any{
	"PORT":            "8375",
	"APP_ENV":         "development",
	"JWT_SECRET":      defaultJWTSecret,
	"ALLOWED_ORIGINS": "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173",

	"DB_DRIVER":                        "postgres",
	"DB_HOST":                          "localhost",
	"DB_PORT":                          "5432",
	"DB_USER":                          "user",
	"DB_PASSWORD":                      "password",
	"DB_NAME":                          "social_app",
	"DB_SSLMODE":                       "disable",
	"DB_SQLITE_PATH":                   "socialapp.db",
	"DB_READ_HOST":                     "",
	"DB_READ_PORT":                     "5432",
	"DB_READ_USER":                     "user",
	"DB_READ_PASSWORD":                 "password",
	"DB_SCHEMA_MODE":                   "hybrid",
	"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE": false,
	"DB_MAX_OPEN_CONNS":                25,
	"DB_MAX_IDLE_CONNS":                5,
	"DB_CONN_MAX_LIFETIME_MINUTES":     5,

	"REDIS_URL": "localhost:6379",

	"TRACING_ENABLED":       false,
	"TRACING_EXPORTER":      "stdout",
	"OTLP_ENDPOINT":         "localhost:4318",
	"TRACING_SAMPLER_RATIO": 1.0,

	"RECONCILE_INTERVAL_MINUTES": 0,
	"FEED_PREVIEW_SIZE":          3,
}

// LoadConfig reads config.yml (optional), then config.<APP_ENV>.yml for any
// environment other than development and test (required), then the
// environment. Later sources win.
func LoadConfig() (*Config, error) {
	for _, dir := range []string{".", "..", "../.."} {
		viper.AddConfigPath(dir)
	}
	viper.SetConfigType("yml")
	viper.SetConfigName("config")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	if env := viper.GetString("APP_ENV"); env != "" && env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("profile config config.%s.yml: %w", env, err)
		}
		slog.Info("Loaded profile configuration", slog.String("profile", env))
	}

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	for _, field := range []*string{&c.DBSSLMode, &c.DBDriver, &c.DBSchemaMode, &c.TracingExporter} {
		*field = strings.ToLower(strings.TrimSpace(*field))
	}
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []error
	check := func(bad bool, msg string) {
		if bad {
			problems = append(problems, errors.New(msg))
		}
	}

	check(c.Port == "", "PORT is required")
	check(c.JWTSecret == "", "JWT_SECRET is required")
	check(c.DBDriver != "postgres" && c.DBDriver != "sqlite", "DB_DRIVER must be postgres or sqlite")
	check(c.DBConnMaxLifetimeMinutes < 0, "DB_CONN_MAX_LIFETIME_MINUTES must not be negative")
	check(c.TracingSamplerRatio < 0 || c.TracingSamplerRatio > 1, "TRACING_SAMPLER_RATIO must be between 0 and 1")
	check(c.ReconcileIntervalMinutes < 0, "RECONCILE_INTERVAL_MINUTES must not be negative")
	check(c.FeedPreviewSize < 0, "FEED_PREVIEW_SIZE must not be negative")

	if c.IsProduction() {
		check(c.JWTSecret == defaultJWTSecret, "JWT_SECRET must be changed from the default in production")
		check(len(c.JWTSecret) < 32, "JWT_SECRET must be at least 32 characters in production")
		check(c.DBDriver == "sqlite", "DB_DRIVER=sqlite is not supported in production")
		check(c.DBPassword == "" || c.DBPassword == "password", "a strong DB_PASSWORD is required in production")
		check(c.DBSSLMode == "" || c.DBSSLMode == "disable", "DB_SSLMODE must enable TLS in production")
		if c.AllowedOrigins == "*" {
			slog.Warn("ALLOWED_ORIGINS is * in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters")
	}

	return errors.Join(problems...)
}
