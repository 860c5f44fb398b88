package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProductionConfig() *Config {
	return &Config{
		Port:                   "8140",
		JWTSecret:              "a-very-long-production-secret-value!",
		AccessTokenExpireMin:   30,
		RefreshTokenExpireDays: 7,
		DBPassword:             "s3cure-db-password",
		DBSSLMode:              "require",
		Env:                    "production",
	}
}

func TestValidate(t *testing.T) {
	t.Run("Valid production config passes", func(t *testing.T) {
		require.NoError(t, validProductionConfig().Validate())
	})

	t.Run("Development tolerates weak defaults", func(t *testing.T) {
		cfg := &Config{
			Port:                   "8140",
			JWTSecret:              "your-secret-key-change-in-production",
			AccessTokenExpireMin:   30,
			RefreshTokenExpireDays: 7,
			Env:                    "development",
		}
		require.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "Missing port",
			mutate:  func(c *Config) { c.Port = "" },
			wantErr: "PORT is required",
		},
		{
			name:    "Missing JWT secret",
			mutate:  func(c *Config) { c.JWTSecret = "" },
			wantErr: "JWT_SECRET is required",
		},
		{
			name:    "Non-positive access TTL",
			mutate:  func(c *Config) { c.AccessTokenExpireMin = 0 },
			wantErr: "ACCESS_TOKEN_EXPIRE_MINUTES must be positive",
		},
		{
			name:    "Default JWT secret in production",
			mutate:  func(c *Config) { c.JWTSecret = "your-secret-key-change-in-production" },
			wantErr: "JWT_SECRET must be changed from the default value in production",
		},
		{
			name:    "Short JWT secret in production",
			mutate:  func(c *Config) { c.JWTSecret = "tooshort" },
			wantErr: "JWT_SECRET must be at least 32 characters in production",
		},
		{
			name:    "CSRF disabled in production",
			mutate:  func(c *Config) { c.CSRFDisabled = true },
			wantErr: "CSRF_DISABLED must not be set in production",
		},
		{
			name:    "Default DB password in production",
			mutate:  func(c *Config) { c.DBPassword = "password" },
			wantErr: "a strong DB_PASSWORD is required in production",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validProductionConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTokenTTLs(t *testing.T) {
	cfg := &Config{AccessTokenExpireMin: 30, RefreshTokenExpireDays: 7}
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL())
}

func TestCookiePolicy(t *testing.T) {
	prod := &Config{Env: "production"}
	assert.True(t, prod.CookieSecure())
	assert.Equal(t, "None", prod.CookieSameSite())

	dev := &Config{Env: "development"}
	assert.False(t, dev.CookieSecure())
	assert.Equal(t, "Lax", dev.CookieSameSite())
}
