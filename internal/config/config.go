package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	StoreBackend     string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	SQLitePath       string        `mapstructure:"SQLITE_PATH"`
	ExtractorURL     string        `mapstructure:"EXTRACTOR_URL"`
	STTURL           string        `mapstructure:"STT_URL"`
	STTLanguage      string        `mapstructure:"STT_LANGUAGE"`
	RecordsDir       string        `mapstructure:"RECORDS_DIR"`
	DefaultPatientID string        `mapstructure:"DEFAULT_PATIENT_ID"`
	TelegramToken    string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	DoctorChatID     int64         `mapstructure:"DOCTOR_CHAT_ID"`
	FontPath         string        `mapstructure:"REPORT_FONT_PATH"`
	HTTPTimeout      time.Duration `mapstructure:"HTTP_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "REDIS_URL", "SQLITE_PATH",
	"EXTRACTOR_URL", "STT_URL", "STT_LANGUAGE", "RECORDS_DIR", "DEFAULT_PATIENT_ID",
	"TELEGRAM_BOT_TOKEN", "DOCTOR_CHAT_ID", "REPORT_FONT_PATH", "HTTP_TIMEOUT",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("SQLITE_PATH", "encounters.db")
	v.SetDefault("EXTRACTOR_URL", "http://extractor:8000/extract")
	v.SetDefault("STT_URL", "http://tts:8000/transcribe")
	v.SetDefault("RECORDS_DIR", "epic_data")
	v.SetDefault("DEFAULT_PATIENT_ID", "P1000")
	v.SetDefault("HTTP_TIMEOUT", "60s")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=%s", c.StoreBackend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", c.StoreBackend)
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_BACKEND=%s", c.StoreBackend)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres, sqlite, got %q", c.StoreBackend)
	}
	if c.ExtractorURL == "" {
		return fmt.Errorf("EXTRACTOR_URL is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}

// ReportsEnabled is true when both Telegram settings are present.
func (c *Config) ReportsEnabled() bool {
	return c.TelegramToken != "" && c.DoctorChatID != 0
}
