package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/SeakMengs/AutoSign/internal/env"
)

type Config struct {
	Port        string
	ENV         string
	DB          DatabaseConfig
	RateLimiter RateLimiterConfig
	Mail        MailConfig
	Auth        AuthConfig
	Minio       MinioConfig
	RabbitMQ    RabbitMQConfig
	Signing     SigningConfig
	Outbox      OutboxConfig
}

type RateLimiterConfig struct {
	RequestsPerTimeFrame int
	TimeFrame            time.Duration
	Enabled              bool
}

// AuthConfig only verifies owner access tokens, issuing them is the identity service's job.
type AuthConfig struct {
	JWT_SECRET string
}

type DatabaseConfig struct {
	DB_HOST      string
	DB_PORT      string
	DB_DATABASE  string
	DB_USERNAME  string
	DB_PASSWORD  string
	DB_SSLMODE   string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.DB_HOST, d.DB_USERNAME, d.DB_PASSWORD, d.DB_DATABASE, d.DB_PORT, d.DB_SSLMODE)
}

type MailConfig struct {
	// Either "sendgrid" or "gmail"
	PROVIDER           string
	SEND_GRID          SendGridConfig
	FROM_EMAIL         string
	GMAIL_USERNAME     string
	GMAIL_APP_PASSWORD string
}

type SendGridConfig struct {
	API_KEY string
}

type MinioConfig struct {
	ENDPOINT   string
	ACCESS_KEY string
	SECRET_KEY string
	USE_SSL    bool
	BUCKET     string
	// Lifetime of presigned document URLs handed to signers
	PresignExpiry time.Duration
}

type RabbitMQConfig struct {
	HOST     string
	PORT     string
	USER     string
	PASSWORD string
}

func (r RabbitMQConfig) GetConnectionString() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.USER, r.PASSWORD, r.HOST, r.PORT)
}

type SigningConfig struct {
	// Frontend origin used to build signing links, e.g. https://sign.example.com
	BaseURL     string
	TokenSecret string
	// Extra codec lifetime past the business expiry so an expired link still
	// decodes and can be reported as expired instead of invalid.
	TokenGrace           time.Duration
	ReminderCooldown     time.Duration
	DefaultExpiresInDays int
	EnforceAccessCode    bool
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.ENV, "production")
}

func GetConfig() Config {
	return Config{
		Port: env.GetString("PORT", "8080"),
		ENV:  env.GetString("ENV", "development"),
		DB: DatabaseConfig{
			DB_HOST:      env.GetString("DB_HOST", "127.0.0.1"),
			DB_PORT:      env.GetString("DB_PORT", "5432"),
			DB_USERNAME:  env.GetString("DB_USERNAME", "root"),
			DB_PASSWORD:  env.GetString("DB_PASSWORD", ""),
			DB_DATABASE:  env.GetString("DB_DATABASE", "autosign"),
			DB_SSLMODE:   env.GetString("DB_SSLMODE", "disable"),
			MaxOpenConns: env.GetInt("DB_MAX_OPEN_CONNS", 30),
			MaxIdleConns: env.GetInt("DB_MAX_IDLE_CONNS", 30),
			MaxIdleTime:  env.GetString("DB_MAX_IDLE_TIME", "15m"),
		},
		// By default if not specified, we allow 5000 requests per minute per client
		RateLimiter: RateLimiterConfig{
			RequestsPerTimeFrame: env.GetInt("RATE_LIMIT_REQUESTS_PER_TIME_FRAME", 5000),
			TimeFrame:            env.GetDuration("RATE_LIMIT_TIME_FRAME", time.Minute),
			Enabled:              env.GetBool("RATE_LIMIT_ENABLED", true),
		},
		Mail: MailConfig{
			PROVIDER:   env.GetString("MAIL_PROVIDER", "sendgrid"),
			FROM_EMAIL: env.GetString("MAIL_FROM_MAIL", ""),
			SEND_GRID: SendGridConfig{
				API_KEY: env.GetString("MAIL_SEND_GRID_API_KEY", ""),
			},
			GMAIL_USERNAME:     env.GetString("MAIL_GMAIL_USERNAME", ""),
			GMAIL_APP_PASSWORD: env.GetString("MAIL_GMAIL_APP_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWT_SECRET: env.GetString("AUTH_JWT_SECRET", ""),
		},
		Minio: MinioConfig{
			ENDPOINT:      env.GetString("MINIO_ENDPOINT", "127.0.0.1:9000"),
			ACCESS_KEY:    env.GetString("MINIO_ACCESS_KEY", ""),
			SECRET_KEY:    env.GetString("MINIO_SECRET_KEY", ""),
			USE_SSL:       env.GetBool("MINIO_USE_SSL", false),
			BUCKET:        env.GetString("MINIO_BUCKET", "autosign"),
			PresignExpiry: env.GetDuration("MINIO_PRESIGN_EXPIRY", time.Hour),
		},
		RabbitMQ: RabbitMQConfig{
			HOST:     env.GetString("RABBITMQ_HOST", "127.0.0.1"),
			PORT:     env.GetString("RABBITMQ_PORT", "5672"),
			USER:     env.GetString("RABBITMQ_USER", "guest"),
			PASSWORD: env.GetString("RABBITMQ_PASSWORD", "guest"),
		},
		Signing: SigningConfig{
			BaseURL:              env.GetString("SIGNING_BASE_URL", "http://localhost:3000"),
			TokenSecret:          env.GetString("SIGNING_TOKEN_SECRET", ""),
			TokenGrace:           env.GetDuration("SIGNING_TOKEN_GRACE", 30*24*time.Hour),
			ReminderCooldown:     env.GetDuration("SIGNING_REMINDER_COOLDOWN", 24*time.Hour),
			DefaultExpiresInDays: env.GetInt("SIGNING_DEFAULT_EXPIRES_IN_DAYS", 30),
			EnforceAccessCode:    env.GetBool("SIGNING_ENFORCE_ACCESS_CODE", false),
		},
		Outbox: OutboxConfig{
			PollInterval: env.GetDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    env.GetInt("OUTBOX_BATCH_SIZE", 50),
			MaxAttempts:  env.GetInt("OUTBOX_MAX_ATTEMPTS", 5),
		},
	}
}
