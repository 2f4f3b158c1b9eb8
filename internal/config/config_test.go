package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/checkin?sslmode=disable")
	t.Setenv("CHECKIN_TOKEN_SECRET", "token-secret")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "9090", cfg.PrometheusPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
	assert.Equal(t, 100, cfg.MaxRecurrenceInstances)
	assert.Equal(t, 60*time.Second, cfg.TokenTTL)
	assert.Equal(t, 15*time.Second, cfg.TokenSkew)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.TelegramToken)
	assert.False(t, cfg.MailEnabled())
}

func TestLoad_RequiredSettings(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "CHECKIN_TOKEN_SECRET", "JWT_SECRET"} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CHECKIN_TOKEN_TTL", "90s")
	t.Setenv("CHECKIN_TOKEN_SKEW", "0s")
	t.Setenv("MAX_RECURRENCE_INSTANCES", "25")
	t.Setenv("PUBLIC_BASE_URL", "https://checkin.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("DEFAULT_TIMEZONE", "Europe/Berlin")
	t.Setenv("SENDGRID_API_KEY", "SG.key")
	t.Setenv("MAIL_FROM_ADDRESS", "club@example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.TokenTTL)
	assert.Equal(t, time.Duration(0), cfg.TokenSkew)
	assert.Equal(t, 25, cfg.MaxRecurrenceInstances)
	assert.Equal(t, "https://checkin.example.com", cfg.PublicBaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "Europe/Berlin", cfg.DefaultTimezone)
	assert.True(t, cfg.MailEnabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"CHECKIN_TOKEN_TTL":        "soon",
		"CHECKIN_TOKEN_SKEW":       "-5s",
		"MAX_RECURRENCE_INSTANCES": "0",
		"DEFAULT_TIMEZONE":         "Mars/Olympus",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://file/checkin
checkin_token_secret: file-secret
jwt_secret: file-jwt
port: "9000"
checkin_token_ttl: 2m
telegram_token: file-bot-token
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/checkin", cfg.DatabaseURL)
	assert.Equal(t, "file-secret", cfg.TokenSecret)
	assert.Equal(t, 2*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "file-bot-token", cfg.TelegramToken)
	// environment wins over the file
	assert.Equal(t, "7000", cfg.Port)
}

func TestLoad_MissingYAMLFile(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
