// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port                   string  `mapstructure:"PORT"`
	JWTSecret              string  `mapstructure:"JWT_SECRET"`
	AccessTokenExpireMin   int     `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	RefreshTokenExpireDays int     `mapstructure:"REFRESH_TOKEN_EXPIRE_DAYS"`
	CSRFDisabled           bool    `mapstructure:"CSRF_DISABLED"`
	DBHost                 string  `mapstructure:"DB_HOST"`
	DBPort                 string  `mapstructure:"DB_PORT"`
	DBUser                 string  `mapstructure:"DB_USER"`
	DBPassword             string  `mapstructure:"DB_PASSWORD"`
	DBName                 string  `mapstructure:"DB_NAME"`
	DBSSLMode              string  `mapstructure:"DB_SSLMODE"`
	RedisURL               string  `mapstructure:"REDIS_URL"`
	AllowedOrigins         string  `mapstructure:"ALLOWED_ORIGINS"`
	Env                    string  `mapstructure:"APP_ENV"`
	TracingEnabled         bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter        string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint           string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio    float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional; environment variables and defaults suffice.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err == nil {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	viper.SetDefault("PORT", "8140")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	viper.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	viper.SetDefault("CSRF_DISABLED", false)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "snipted")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// AccessTokenTTL returns the configured access token lifetime.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMin) * time.Minute
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
}

// CookieSecure reports whether auth cookies must carry the Secure flag.
func (c *Config) CookieSecure() bool {
	return c.IsProduction()
}

// CookieSameSite returns the SameSite policy for auth cookies. Cross-site
// frontends in production need None; Lax everywhere else.
func (c *Config) CookieSameSite() string {
	if c.CookieSecure() {
		return "None"
	}
	return "Lax"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AccessTokenExpireMin <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.RefreshTokenExpireDays <= 0 {
		return errors.New("REFRESH_TOKEN_EXPIRE_DAYS must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.CSRFDisabled {
			return errors.New("CSRF_DISABLED must not be set in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else {
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}
