package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSecret is returned by Require* helpers when a secret needed by a surface is unset.
var ErrMissingSecret = errors.New("required secret not configured")

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Line      LineConfig
	Stripe    StripeConfig
	Omise     OmiseConfig
	App       AppConfig
	Reminders RemindersConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
	MaxBodyBytes int64
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/arkai?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig holds S3-compatible object storage settings (AWS S3 or Cloudflare R2).
type StorageConfig struct {
	Endpoint             string // empty = AWS default endpoint
	Region               string
	Bucket               string
	AccessKeyID          string
	SecretAccessKey      string
	PublicBaseURL        string // optional; used for plain object links
	PresignExpireMinutes int
	MaxFileBytes         int64
}

// LineConfig holds Messaging API credentials.
type LineConfig struct {
	ChannelSecret string
	AccessToken   string
	BotUserID     string // matched against mentionee user ids in groups
	APIBaseURL    string
	DataBaseURL   string
	Timeout       time.Duration
}

// StripeConfig for card/PromptPay checkout sessions.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// OmiseConfig for direct charges (card token, PromptPay QR).
type OmiseConfig struct {
	PublicKey     string
	SecretKey     string
	WebhookSecret string // base64 secret from the Omise dashboard; empty disables signature check
	APIBaseURL    string
}

// AppConfig holds application-level settings.
type AppConfig struct {
	BaseURL             string // public URL used for checkout return links
	CheckoutTokenSecret string
	CheckoutTokenTTL    time.Duration
	TimeZone            string
	RunWorkerInServer   bool
}

// RemindersConfig holds reminder scheduling.
type RemindersConfig struct {
	Schedule string // cron spec; empty disables the dispatcher
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RequireSecrets returns ErrMissingSecret when the webhook channel secret or access token is empty.
func (c LineConfig) RequireSecrets() error {
	if c.ChannelSecret == "" || c.AccessToken == "" {
		return fmt.Errorf("line channel secret/access token: %w", ErrMissingSecret)
	}
	return nil
}

// Location resolves App.TimeZone, falling back to Asia/Bangkok then UTC.
func (c AppConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(c.TimeZone); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation("Asia/Bangkok"); err == nil {
		return loc
	}
	return time.UTC
}

// Load reads configuration from environment, with optional .env file.
// Missing secrets are not an error here: each surface answers with a configuration failure instead.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "3001"),
			ReadTimeout:  getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout: getEnvInt("WRITE_TIMEOUT_SEC", 30),
			MaxBodyBytes: int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "arkai"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:             getEnv("STORAGE_ENDPOINT", ""),
			Region:               getEnv("STORAGE_REGION", "auto"),
			Bucket:               getEnv("STORAGE_BUCKET", ""),
			AccessKeyID:          getEnv("STORAGE_ACCESS_KEY", ""),
			SecretAccessKey:      getEnv("STORAGE_SECRET_KEY", ""),
			PublicBaseURL:        strings.TrimRight(getEnv("STORAGE_PUBLIC_URL", ""), "/"),
			PresignExpireMinutes: getEnvInt("STORAGE_PRESIGN_EXPIRE_MINUTES", 60),
			MaxFileBytes:         int64(getEnvInt("STORAGE_MAX_FILE_BYTES", 20*1024*1024)),
		},
		Line: LineConfig{
			ChannelSecret: getEnv("LINE_CHANNEL_SECRET", ""),
			AccessToken:   getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
			BotUserID:     getEnv("LINE_BOT_USER_ID", ""),
			APIBaseURL:    strings.TrimRight(getEnv("LINE_API_BASE_URL", "https://api.line.me"), "/"),
			DataBaseURL:   strings.TrimRight(getEnv("LINE_DATA_BASE_URL", "https://api-data.line.me"), "/"),
			Timeout:       time.Duration(getEnvInt("LINE_TIMEOUT_SEC", 10)) * time.Second,
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Omise: OmiseConfig{
			PublicKey:     getEnv("OMISE_PUBLIC_KEY", ""),
			SecretKey:     getEnv("OMISE_SECRET_KEY", ""),
			WebhookSecret: getEnv("OMISE_WEBHOOK_SECRET", ""),
			APIBaseURL:    strings.TrimRight(getEnv("OMISE_API_BASE_URL", "https://api.omise.co"), "/"),
		},
		App: AppConfig{
			BaseURL:             strings.TrimRight(getEnv("APP_URL", "http://localhost:3001"), "/"),
			CheckoutTokenSecret: getEnv("CHECKOUT_TOKEN_SECRET", ""),
			CheckoutTokenTTL:    time.Duration(getEnvInt("CHECKOUT_TOKEN_TTL_HOURS", 24)) * time.Hour,
			TimeZone:            getEnv("APP_TIMEZONE", "Asia/Bangkok"),
			RunWorkerInServer:   getEnvBool("RUN_WORKER_IN_SERVER", true),
		},
		Reminders: RemindersConfig{
			Schedule: getEnv("REMINDER_SCHEDULE", "* * * * *"),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
