package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Env string `envconfig:"ENV" default:"development"`

	// Server
	ServerPort      string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	AppURL          string        `envconfig:"APP_URL" default:"http://localhost:3000"`

	// Database
	DatabaseType string `envconfig:"DB_TYPE" default:"sqlite"`
	DatabasePath string `envconfig:"DB_PATH" default:"./mintoons.db"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	// Auth
	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"JWT_TOKEN_TTL" default:"24h"`

	// Logging
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	Email      EmailConfig
	AI         AIConfig
	Stripe     StripeConfig
	Redis      RedisConfig
	Moderation ModerationConfig
	RateLimit  RateLimitConfig
}

// EmailConfig configures SES delivery
type EmailConfig struct {
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
	FromEmail string `envconfig:"SES_FROM_EMAIL" default:"noreply@mintoons.com"`
	FromName  string `envconfig:"SES_FROM_NAME" default:"Mintoons"`
	Debug     bool   `envconfig:"EMAIL_DEBUG" default:"false"`
}

// AIConfig configures the OpenAI-compatible gateway used for story
// continuation and assessment
type AIConfig struct {
	APIKey     string        `envconfig:"AI_API_KEY"`
	BaseURL    string        `envconfig:"AI_BASE_URL"`
	Model      string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Timeout    time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	MaxRetries int           `envconfig:"AI_MAX_RETRIES" default:"3"`
	PromptFile string        `envconfig:"AI_PROMPTS_FILE"`

	// Client credentials for gateways that sit behind OAuth2
	TokenURL     string `envconfig:"AI_TOKEN_URL"`
	ClientID     string `envconfig:"AI_CLIENT_ID"`
	ClientSecret string `envconfig:"AI_CLIENT_SECRET"`
}

// UsesClientCredentials reports whether the full client-credentials triple is set
func (c AIConfig) UsesClientCredentials() bool {
	return c.TokenURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// StripeConfig configures Checkout sessions
type StripeConfig struct {
	SecretKey            string `envconfig:"STRIPE_SECRET_KEY"`
	Currency             string `envconfig:"STRIPE_CURRENCY" default:"usd"`
	PublicationPriceCent int64  `envconfig:"STRIPE_PUBLICATION_PRICE" default:"499"`
	PurchasePriceCent    int64  `envconfig:"STRIPE_PURCHASE_PRICE" default:"1999"`
	SuccessURL           string `envconfig:"STRIPE_SUCCESS_URL"`
	CancelURL            string `envconfig:"STRIPE_CANCEL_URL"`
}

// RedisConfig configures the competition cache. An empty address disables it.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_TTL" default:"5m"`
}

// ModerationConfig configures the bad-words filter
type ModerationConfig struct {
	BadWordsURL string `envconfig:"BAD_WORDS_URL"`
	SeedOnStart bool   `envconfig:"BAD_WORDS_SEED" default:"true"`
}

// RateLimitConfig configures the per-IP token bucket
type RateLimitConfig struct {
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Load reads a .env file when present, then decodes the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks rules envconfig tags can't express
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	c.DatabaseType = strings.ToLower(c.DatabaseType)
	switch c.DatabaseType {
	case "sqlite":
	case "postgres", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_TYPE=%s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q (want sqlite, postgres or mysql)", c.DatabaseType)
	}

	if c.AI.MaxRetries < 1 {
		return errors.New("AI_MAX_RETRIES must be at least 1")
	}
	if c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
