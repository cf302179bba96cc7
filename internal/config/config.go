package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type API struct {
	AppEnv            string
	Addr              string
	Store             string
	DatabaseURL       string
	ServerAPIKey      string
	SessionJWTSecret  string
	MaxJobAttempts    int
	StuckJobThreshold time.Duration
	ReaperInterval    time.Duration
	BlobAPIURL        string
	BlobToken         string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// LoadAPI reads the api service configuration from the environment.
func LoadAPI() (*API, error) {
	cfg := &API{
		AppEnv:            getEnv("APP_ENV", "production"),
		Addr:              ":" + getEnv("PORT", "8080"),
		Store:             getEnv("STORE", StorePostgres),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ServerAPIKey:      requiredTrimmed("SERVER_API_KEY"),
		SessionJWTSecret:  os.Getenv("SESSION_JWT_SECRET"),
		MaxJobAttempts:    getEnvInt("MAX_JOB_ATTEMPTS", 3),
		StuckJobThreshold: getEnvSeconds("STUCK_JOB_THRESHOLD_SECONDS", 30),
		ReaperInterval:    getEnvSeconds("REAPER_INTERVAL_SECONDS", 10),
		BlobAPIURL:        os.Getenv("BLOB_API_URL"),
		BlobToken:         os.Getenv("BLOB_READ_WRITE_TOKEN"),
		ReadHeaderTimeout: getEnvSeconds("HTTP_READ_HEADER_TIMEOUT_SECONDS", 5),
		ShutdownTimeout:   getEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10),
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is empty")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}
	if cfg.ServerAPIKey == "" {
		return nil, fmt.Errorf("SERVER_API_KEY is empty")
	}
	if cfg.SessionJWTSecret == "" {
		return nil, fmt.Errorf("SESSION_JWT_SECRET is empty")
	}
	if cfg.MaxJobAttempts <= 0 {
		return nil, fmt.Errorf("MAX_JOB_ATTEMPTS must be positive, got %d", cfg.MaxJobAttempts)
	}
	return cfg, nil
}

type Worker struct {
	AppEnv            string
	APIBaseURL        string
	ServerAPIKey      string
	MaxNumWorkers     int
	MaxJobAttempts    int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	JobTimeout        time.Duration
	HTTPTimeout       time.Duration
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
}

func LoadWorker() (*Worker, error) {
	cfg := &Worker{
		AppEnv:            getEnv("APP_ENV", "production"),
		APIBaseURL:        strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080/api"), "/"),
		ServerAPIKey:      requiredTrimmed("SERVER_API_KEY"),
		MaxNumWorkers:     getEnvInt("MAX_NUM_WORKERS", 2),
		MaxJobAttempts:    getEnvInt("MAX_JOB_ATTEMPTS", 3),
		PollInterval:      getEnvSeconds("POLL_INTERVAL_SECONDS", 5),
		HeartbeatInterval: getEnvSeconds("HEARTBEAT_INTERVAL_SECONDS", 10),
		JobTimeout:        getEnvSeconds("JOB_TIMEOUT_SECONDS", 600),
		HTTPTimeout:       getEnvSeconds("HTTP_TIMEOUT_SECONDS", 30),
		OpenAIAPIKey:      requiredTrimmed("OPENAI_API_KEY"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "whisper-1"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
	}

	if cfg.ServerAPIKey == "" {
		return nil, fmt.Errorf("SERVER_API_KEY is empty")
	}
	if cfg.MaxNumWorkers <= 0 {
		return nil, fmt.Errorf("MAX_NUM_WORKERS must be positive, got %d", cfg.MaxNumWorkers)
	}
	if cfg.MaxJobAttempts <= 0 {
		return nil, fmt.Errorf("MAX_JOB_ATTEMPTS must be positive, got %d", cfg.MaxJobAttempts)
	}
	if cfg.HeartbeatInterval <= 0 || cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll and heartbeat intervals must be positive")
	}
	return cfg, nil
}

type Publisher struct {
	AppEnv       string
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
	Interval     time.Duration
	BatchSize    int
	MaxRetries   int
}

func LoadPublisher() (*Publisher, error) {
	cfg := &Publisher{
		AppEnv:       getEnv("APP_ENV", "production"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "asset-processing-job-events"),
		Interval:     time.Duration(getEnvInt("OUTBOX_INTERVAL_MS", 1000)) * time.Millisecond,
		BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		MaxRetries:   getEnvInt("KAFKA_MAX_RETRIES", 3),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is empty")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

// requiredTrimmed strips whitespace and surrounding quotes that often leak in from .env files.
func requiredTrimmed(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), `'"`)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
