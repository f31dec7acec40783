package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Embedder  EmbedderConfig
	Recommend RecommendConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
	NatsURL     string
	RedisURL    string
}

type DatabaseConfig struct {
	Connection string
}

type EmbedderConfig struct {
	BaseURL        string
	Version        string
	Timeout        time.Duration
	HealthInterval time.Duration
}

type RecommendConfig struct {
	RefreshTopic string
	// Debounce window for experiment definition refreshes.
	ExperimentRefreshDebounce time.Duration
	ExperimentRefreshInterval time.Duration
	// How often the backfill worker scans for items with stale embeddings.
	BackfillInterval time.Duration
	// Queue depth for background refresh tasks before publishers block.
	RefreshQueueDepth int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "app.log"),
			NatsURL:     getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Embedder: EmbedderConfig{
			BaseURL:        getEnv("EMBEDDER_BASE_URL", "http://localhost:8600"),
			Version:        getEnv("EMBEDDER_VERSION", "v2"),
			Timeout:        getEnvAsDuration("EMBEDDER_TIMEOUT", 3*time.Second),
			HealthInterval: getEnvAsDuration("EMBEDDER_HEALTH_INTERVAL", time.Minute),
		},
		Recommend: RecommendConfig{
			RefreshTopic:              getEnv("REFRESH_TOPIC_NAME", "RECO_REFRESH"),
			ExperimentRefreshDebounce: getEnvAsDuration("EXPERIMENT_REFRESH_DEBOUNCE", 2*time.Second),
			ExperimentRefreshInterval: getEnvAsDuration("EXPERIMENT_REFRESH_INTERVAL", 5*time.Minute),
			BackfillInterval:          getEnvAsDuration("EMBEDDING_BACKFILL_INTERVAL", 15*time.Minute),
			RefreshQueueDepth:         getEnvAsInt("REFRESH_QUEUE_DEPTH", 256),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
