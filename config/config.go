package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Mux       MuxConfig
	GenAI     GenAIConfig
	Storage   StorageConfig
	Workflow  WorkflowConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
	WorkerMetricsPort  string // cmd/worker exposes /metrics here; empty disables
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/studio?sslmode=disable)
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

// AuthConfig holds the settings used to validate identity provider tokens.
type AuthConfig struct {
	JWTSecret string
	Issuer    string // optional; when set the iss claim must match
}

// MuxConfig holds video platform credentials.
type MuxConfig struct {
	TokenID       string
	TokenSecret   string
	WebhookSecret string
	UploadOrigin  string // cors_origin for direct uploads
}

// GenAIConfig holds the text generation endpoint settings.
type GenAIConfig struct {
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint
	Model   string
}

// StorageConfig holds object storage settings for derived assets (thumbnails, previews).
type StorageConfig struct {
	Driver          string // "s3" or "minio"
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string // minio only, host:port
	UseSSL          bool   // minio only
	PublicBaseURL   string // optional override for object URLs
}

// WorkflowConfig holds durable workflow settings.
type WorkflowConfig struct {
	BaseURL       string // where the workflow endpoints are reachable, e.g. http://localhost:8080
	SigningSecret string
	CheckpointTTL time.Duration
	CallTimeout   time.Duration
}

// RateLimitConfig holds per-user request limits for RPC procedures.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// EventsConfig selects where video lifecycle events are published.
type EventsConfig struct {
	Driver       string // "redis", "kafka" or "none"
	KafkaBrokers []string
	KafkaTopic   string
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

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			WorkerMetricsPort:  getEnv("WORKER_METRICS_PORT", "9091"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "studio"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_ISSUER", ""),
		},
		Mux: MuxConfig{
			TokenID:       getEnv("MUX_TOKEN_ID", ""),
			TokenSecret:   getEnv("MUX_TOKEN_SECRET", ""),
			WebhookSecret: getEnv("MUX_WEBHOOK_SECRET", ""),
			UploadOrigin:  getEnv("MUX_UPLOAD_CORS_ORIGIN", "*"),
		},
		GenAI: GenAIConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			BaseURL: getEnv("GENAI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:   getEnv("GENAI_MODEL", "gemini-2.0-flash"),
		},
		Storage: StorageConfig{
			Driver:          getEnv("STORAGE_DRIVER", "s3"),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("STORAGE_BUCKET", "studio-assets"),
			Endpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
			UseSSL:          getEnvBool("MINIO_USE_SSL", false),
			PublicBaseURL:   getEnv("STORAGE_PUBLIC_BASE_URL", ""),
		},
		Workflow: WorkflowConfig{
			BaseURL:       strings.TrimRight(getEnv("WORKFLOW_BASE_URL", "http://localhost:8080"), "/"),
			SigningSecret: getEnv("WORKFLOW_SIGNING_SECRET", ""),
			CheckpointTTL: time.Duration(getEnvInt("WORKFLOW_CHECKPOINT_TTL_HOURS", 24)) * time.Hour,
			CallTimeout:   time.Duration(getEnvInt("WORKFLOW_CALL_TIMEOUT_SEC", 120)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 50),
			Window:   time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 10)) * time.Second,
		},
		Events: EventsConfig{
			Driver:       getEnv("EVENTS_DRIVER", "redis"),
			KafkaBrokers: splitTrim(getEnv("KAFKA_BROKERS", ""), ","),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "video-events"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimit.Requests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SEC must be positive, got %s", c.RateLimit.Window)
	}
	return nil
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

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
