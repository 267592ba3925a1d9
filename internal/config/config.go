package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Environment string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	DBDSN       string `mapstructure:"DB_DSN"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	PlatformFeePercent  int    `mapstructure:"PLATFORM_FEE_PERCENT"`
	Currency            string `mapstructure:"CURRENCY"`
	PayoutReturnURL     string `mapstructure:"PAYOUT_RETURN_URL"`
	PayoutRefreshURL    string `mapstructure:"PAYOUT_REFRESH_URL"`

	LiveKitURL       string `mapstructure:"LIVEKIT_URL"`
	LiveKitAPIKey    string `mapstructure:"LIVEKIT_API_KEY"`
	LiveKitAPISecret string `mapstructure:"LIVEKIT_API_SECRET"`
	RecordingBucket  string `mapstructure:"RECORDING_BUCKET"`

	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	MigrationsPath    string        `mapstructure:"MIGRATIONS_PATH"`
	RetryPollInterval time.Duration `mapstructure:"RETRY_POLL_INTERVAL"`
}

// defaults значения по умолчанию для необязательных ключей
var defaults = map[string]any{
	"ENV":                  "development",
	"HTTP_PORT":            "8080",
	"REDIS_ADDR":           "localhost:6379",
	"REDIS_DB":             0,
	"PLATFORM_FEE_PERCENT": 15,
	"CURRENCY":             "usd",
	"MIGRATIONS_PATH":      "migrations",
	"RETRY_POLL_INTERVAL":  "5s",
}

// keys все ключи, которые читаются из окружения
var keys = []string{
	"ENV", "LOG_LEVEL", "HTTP_PORT", "DB_DSN", "JWT_SECRET",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "PLATFORM_FEE_PERCENT", "CURRENCY",
	"PAYOUT_RETURN_URL", "PAYOUT_REFRESH_URL",
	"LIVEKIT_URL", "LIVEKIT_API_KEY", "LIVEKIT_API_SECRET", "RECORDING_BUCKET",
	"TELEGRAM_TOKEN",
	"MIGRATIONS_PATH", "RETRY_POLL_INTERVAL",
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Environment = normalizeEnv(cfg.Environment)
	if cfg.LogLevel != "" {
		if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	return &cfg, nil
}

// Validate проверяет обязательные поля для API и воркера
func (c *Config) Validate() error {
	var missing []string
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.LiveKitURL == "" {
		missing = append(missing, "LIVEKIT_URL")
	}
	if c.LiveKitAPIKey == "" || c.LiveKitAPISecret == "" {
		missing = append(missing, "LIVEKIT_API_KEY/LIVEKIT_API_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required config not set: %s", strings.Join(missing, ", "))
	}

	if c.PlatformFeePercent < 0 || c.PlatformFeePercent > 100 {
		return fmt.Errorf("PLATFORM_FEE_PERCENT must be within [0, 100], got %d", c.PlatformFeePercent)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local", "":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
