package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseURL    string
	MigrationsPath string
	Port           string
	PrometheusPort string
	LogLevel       string
	LogFormat      string

	PublicBaseURL          string
	DefaultTimezone        string
	MaxRecurrenceInstances int
	CORSAllowedOrigins     []string

	TokenSecret string
	TokenTTL    time.Duration
	TokenSkew   time.Duration
	JWTSecret   string
	JWTTTL      time.Duration

	TelegramToken   string
	SendGridAPIKey  string
	MailFromAddress string
	MailFromName    string
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Keys match
// the environment variable names in lower case.
type fileConfig struct {
	DatabaseURL            string `yaml:"database_url"`
	MigrationsPath         string `yaml:"migrations_path"`
	Port                   string `yaml:"port"`
	PrometheusPort         string `yaml:"prometheus_port"`
	LogLevel               string `yaml:"log_level"`
	LogFormat              string `yaml:"log_format"`
	PublicBaseURL          string `yaml:"public_base_url"`
	DefaultTimezone        string `yaml:"default_timezone"`
	MaxRecurrenceInstances string `yaml:"max_recurrence_instances"`
	CORSAllowedOrigins     string `yaml:"cors_allowed_origins"`
	TokenSecret            string `yaml:"checkin_token_secret"`
	TokenTTL               string `yaml:"checkin_token_ttl"`
	TokenSkew              string `yaml:"checkin_token_skew"`
	JWTSecret              string `yaml:"jwt_secret"`
	JWTTTL                 string `yaml:"jwt_ttl"`
	TelegramToken          string `yaml:"telegram_token"`
	SendGridAPIKey         string `yaml:"sendgrid_api_key"`
	MailFromAddress        string `yaml:"mail_from_address"`
	MailFromName           string `yaml:"mail_from_name"`
}

func defaults() fileConfig {
	return fileConfig{
		MigrationsPath:         "migrations",
		Port:                   "8080",
		PrometheusPort:         "9090",
		LogLevel:               "info",
		LogFormat:              "text",
		PublicBaseURL:          "http://localhost:8080",
		DefaultTimezone:        "UTC",
		MaxRecurrenceInstances: "100",
		CORSAllowedOrigins:     "*",
		TokenTTL:               "60s",
		TokenSkew:              "15s",
		JWTTTL:                 "24h",
		MailFromName:           "CheckinBoT",
	}
}

// Load loads configuration from an optional .env file, an optional YAML
// file named by CONFIG_FILE and environment variables, in increasing order
// of precedence.
func Load() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	raw := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		DatabaseURL:     getEnvOrDefault("DATABASE_URL", raw.DatabaseURL),
		MigrationsPath:  getEnvOrDefault("MIGRATIONS_PATH", raw.MigrationsPath),
		Port:            getEnvOrDefault("PORT", raw.Port),
		PrometheusPort:  getEnvOrDefault("PROMETHEUS_PORT", raw.PrometheusPort),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", raw.LogLevel),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", raw.LogFormat),
		PublicBaseURL:   strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", raw.PublicBaseURL), "/"),
		DefaultTimezone: getEnvOrDefault("DEFAULT_TIMEZONE", raw.DefaultTimezone),
		TokenSecret:     getEnvOrDefault("CHECKIN_TOKEN_SECRET", raw.TokenSecret),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", raw.JWTSecret),
		TelegramToken:   getEnvOrDefault("TELEGRAM_TOKEN", raw.TelegramToken),
		SendGridAPIKey:  getEnvOrDefault("SENDGRID_API_KEY", raw.SendGridAPIKey),
		MailFromAddress: getEnvOrDefault("MAIL_FROM_ADDRESS", raw.MailFromAddress),
		MailFromName:    getEnvOrDefault("MAIL_FROM_NAME", raw.MailFromName),
	}
	cfg.CORSAllowedOrigins = splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", raw.CORSAllowedOrigins))

	var err error
	if cfg.MaxRecurrenceInstances, err = strconv.Atoi(getEnvOrDefault("MAX_RECURRENCE_INSTANCES", raw.MaxRecurrenceInstances)); err != nil || cfg.MaxRecurrenceInstances < 1 {
		return nil, fmt.Errorf("MAX_RECURRENCE_INSTANCES must be a positive integer")
	}
	if cfg.TokenTTL, err = parseDuration("CHECKIN_TOKEN_TTL", raw.TokenTTL); err != nil {
		return nil, err
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("CHECKIN_TOKEN_TTL must be positive")
	}
	if cfg.TokenSkew, err = parseDuration("CHECKIN_TOKEN_SKEW", raw.TokenSkew); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = parseDuration("JWT_TTL", raw.JWTTTL); err != nil {
		return nil, err
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE %q is not a valid timezone: %w", cfg.DefaultTimezone, err)
	}

	// Required settings
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("CHECKIN_TOKEN_SECRET environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

// MailEnabled reports whether emails go out through SendGrid.
func (c *Config) MailEnabled() bool {
	return c.SendGridAPIKey != "" && c.MailFromAddress != ""
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := getEnvOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration such as 60s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
