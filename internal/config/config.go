package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	WhatsApp   WhatsAppConfig
	Extraction ExtractionConfig
	Worker     WorkerConfig
	Notify     NotifyConfig
}

// NotifyConfig holds the optional ops notification endpoint.
type NotifyConfig struct {
	WebhookURL string
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// WhatsAppConfig defines credentials for the Cloud API and webhook security.
type WhatsAppConfig struct {
	AccessToken    string
	PhoneID        string
	AppSecret      string
	VerifyToken    string
	APIBaseURL     string
	SendTimeoutSec int
}

// ExtractionConfig configures the vision-model adapter.
type ExtractionConfig struct {
	APIKey     string
	Model      string
	TimeoutSec int
}

// WorkerConfig controls how messages are handed off to the conversation
// worker. When TriggerURL is set the webhook dispatches over HTTP; otherwise
// an in-process queue is used.
type WorkerConfig struct {
	TriggerURL      string
	AuthSecret      string
	TokenTTLMinutes int
	QueueSize       int
	Concurrency     int
	LockTTLSec      int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "expense-whatsapp"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:    os.Getenv("WHATSAPP_ACCESS_TOKEN"),
			PhoneID:        os.Getenv("WHATSAPP_PHONE_ID"),
			AppSecret:      os.Getenv("WHATSAPP_APP_SECRET"),
			VerifyToken:    os.Getenv("WHATSAPP_VERIFY_TOKEN"),
			APIBaseURL:     getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v17.0"),
			SendTimeoutSec: getEnvAsInt("WHATSAPP_SEND_TIMEOUT_SECONDS", 10),
		},
		Extraction: ExtractionConfig{
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			Model:      getEnv("EXTRACTION_MODEL", "gpt-4o"),
			TimeoutSec: getEnvAsInt("EXTRACTION_TIMEOUT_SECONDS", 45),
		},
		Worker: WorkerConfig{
			TriggerURL:      os.Getenv("WORKER_TRIGGER_URL"),
			AuthSecret:      getEnv("WORKER_AUTH_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("WORKER_TOKEN_TTL_MINUTES", 5),
			QueueSize:       getEnvAsInt("WORKER_QUEUE_SIZE", 256),
			Concurrency:     getEnvAsInt("WORKER_CONCURRENCY", 4),
			LockTTLSec:      getEnvAsInt("SESSION_LOCK_TTL_SECONDS", 60),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SendTimeout returns the outbound provider-call timeout.
func (w WhatsAppConfig) SendTimeout() time.Duration {
	if w.SendTimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(w.SendTimeoutSec) * time.Second
}

// Timeout bounds a single extraction run, media download included.
func (e ExtractionConfig) Timeout() time.Duration {
	if e.TimeoutSec <= 0 {
		return 45 * time.Second
	}
	return time.Duration(e.TimeoutSec) * time.Second
}

// TokenTTL returns the lifetime of signed worker-trigger tokens.
func (w WorkerConfig) TokenTTL() time.Duration {
	if w.TokenTTLMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(w.TokenTTLMinutes) * time.Minute
}

// LockTTL bounds how long a per-phone session lock may be held.
func (w WorkerConfig) LockTTL() time.Duration {
	if w.LockTTLSec <= 0 {
		return time.Minute
	}
	return time.Duration(w.LockTTLSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
