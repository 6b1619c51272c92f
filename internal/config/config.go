package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	minSecretKeyLength = 32

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var insecureSecretKeys = map[string]struct{}{
	"change_me_in_production":                    {},
	"replace_with_at_least_32_random_characters": {},

	"secret":    {},
	"changeme":  {},
	"change-me": {},
	"stepdash":  {},
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (smtp SMTP) Enabled() bool {
	return strings.TrimSpace(smtp.Host) != ""
}

type Config struct {
	Port            string
	SecretKey       string
	Location        *time.Location
	DefaultLanguage string
	CookieSecure    bool

	StoreDriver          string
	DBPath               string
	PostgresURL          string
	StoreConnectAttempts int
	StoreQueryTimeout    time.Duration
	RecentLimit          int

	BaseURL string
	SMTP    SMTP

	LogLevel string
	LogFile  string
}

// NewViper returns a viper instance reading the process environment with
// every default applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("TZ", "UTC")
	v.SetDefault("DEFAULT_LANGUAGE", "en")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("STORE_DRIVER", DriverSQLite)
	v.SetDefault("DB_PATH", "data/stepdash.db")
	v.SetDefault("STORE_CONNECT_ATTEMPTS", 5)
	v.SetDefault("STORE_QUERY_TIMEOUT", "10s")
	v.SetDefault("RECENT_LIMIT", 5)
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("LOG_LEVEL", "info")
	return v
}

// LoadDotEnv reads KEY=VALUE pairs from path into the environment. A
// missing file is not an error and existing variables win.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = NewViper()
	}

	secretKey, err := resolveSecretKey(v.GetString("SECRET_KEY"))
	if err != nil {
		return Config{}, err
	}
	port, err := resolvePort(v.GetString("PORT"))
	if err != nil {
		return Config{}, err
	}
	location, err := time.LoadLocation(strings.TrimSpace(v.GetString("TZ")))
	if err != nil {
		return Config{}, fmt.Errorf("invalid TZ %q: %w", v.GetString("TZ"), err)
	}

	cfg := Config{
		Port:                 port,
		SecretKey:            secretKey,
		Location:             location,
		DefaultLanguage:      strings.ToLower(strings.TrimSpace(v.GetString("DEFAULT_LANGUAGE"))),
		CookieSecure:         v.GetBool("COOKIE_SECURE"),
		StoreDriver:          strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		DBPath:               strings.TrimSpace(v.GetString("DB_PATH")),
		PostgresURL:          strings.TrimSpace(v.GetString("POSTGRES_URL")),
		StoreConnectAttempts: v.GetInt("STORE_CONNECT_ATTEMPTS"),
		StoreQueryTimeout:    v.GetDuration("STORE_QUERY_TIMEOUT"),
		RecentLimit:          v.GetInt("RECENT_LIMIT"),
		BaseURL:              strings.TrimRight(strings.TrimSpace(v.GetString("BASE_URL")), "/"),
		SMTP: SMTP{
			Host:     strings.TrimSpace(v.GetString("SMTP_HOST")),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     strings.TrimSpace(v.GetString("SMTP_FROM")),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  strings.TrimSpace(v.GetString("LOG_FILE")),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.StoreDriver {
	case DriverSQLite:
		if cfg.DBPath == "" {
			return errors.New("DB_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if cfg.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, cfg.StoreDriver)
	}

	if cfg.StoreConnectAttempts < 1 {
		return errors.New("STORE_CONNECT_ATTEMPTS must be at least 1")
	}
	if cfg.StoreQueryTimeout <= 0 {
		return errors.New("STORE_QUERY_TIMEOUT must be a positive duration")
	}
	if cfg.RecentLimit < 1 {
		return errors.New("RECENT_LIMIT must be at least 1")
	}
	if cfg.SMTP.Enabled() {
		if cfg.SMTP.Port < 1 || cfg.SMTP.Port > 65535 {
			return fmt.Errorf("SMTP_PORT %d is out of range", cfg.SMTP.Port)
		}
		if cfg.SMTP.From == "" {
			return errors.New("SMTP_FROM is required when SMTP_HOST is set")
		}
	}
	return nil
}

func resolveSecretKey(raw string) (string, error) {
	secretKey := strings.TrimSpace(raw)
	if secretKey == "" {
		return "", errors.New("SECRET_KEY is required")
	}
	if _, insecure := insecureSecretKeys[strings.ToLower(secretKey)]; insecure {
		return "", errors.New("SECRET_KEY uses an insecure placeholder value")
	}
	if len(secretKey) < minSecretKeyLength {
		return "", fmt.Errorf("SECRET_KEY must be at least %d characters", minSecretKeyLength)
	}
	return secretKey, nil
}

func resolvePort(raw string) (string, error) {
	port := strings.TrimSpace(raw)
	if port == "" {
		return "8080", nil
	}
	value, err := strconv.Atoi(port)
	if err != nil || value < 1 || value > 65535 {
		return "", fmt.Errorf("invalid PORT %q", raw)
	}
	return strconv.Itoa(value), nil
}
