package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`      // サーバーポート
	GoEnv string `envconfig:"GO_ENV" required:"true"` // dev/prod

	DatabaseURL      string `envconfig:"DATABASE_URL"` // あれば最優先
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"storefront"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	JWTSecret    string        `envconfig:"JWT_SECRET" required:"true"` // JWT署名シークレット
	JWTAccessTTL time.Duration `envconfig:"JWT_ACCESS_TTL" default:"12h"`

	// checkoutセッションとflash
	SessionSecret string `envconfig:"SESSION_SECRET" required:"true"`
	// カートcookieの署名/暗号化キー（block keyは16/24/32byte）
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY" required:"true"`
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"`

	BaseURL  string `envconfig:"BASE_URL" required:"true"` // メール内の絶対URL
	SiteName string `envconfig:"SITE_NAME" default:"Storefront"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	MailQueueKey  string `envconfig:"MAIL_QUEUE_KEY" default:"mail:outbox"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"25"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"no-reply@example.com"`

	// falseなら在庫チェックはスタブ（常にOK）
	StockTracking bool `envconfig:"STOCK_TRACKING" default:"false"`

	DefaultLanguage    string   `envconfig:"DEFAULT_LANGUAGE" default:"en"`
	SupportedLanguages []string `envconfig:"SUPPORTED_LANGUAGES" default:"en"`
}

// Loadは環境変数
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	//必須チェック（空文字もNG）
	required := []struct{ key, val string }{
		{"JWT_SECRET", cfg.JWTSecret},
		{"SESSION_SECRET", cfg.SessionSecret},
		{"COOKIE_HASH_KEY", cfg.CookieHashKey},
		{"BASE_URL", cfg.BaseURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return Config{}, fmt.Errorf("%s is required", r.key)
		}
	}
	if cfg.GoEnv != "dev" && cfg.GoEnv != "prod" && cfg.GoEnv != "test" {
		return Config{}, fmt.Errorf("GO_ENV must be dev, prod or test")
	}
	switch len(cfg.CookieBlockKey) {
	case 0, 16, 24, 32:
	default:
		return Config{}, fmt.Errorf("COOKIE_BLOCK_KEY must be 16, 24 or 32 bytes")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}
