package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DbName   string
}

type AIConfig struct {
	GeminiModel      string
	EmbeddingBaseURL string
	EmbeddingModel   string
	EmbeddingDims    int
	RequestTimeout   time.Duration
}

type IngestConfig struct {
	PendingTTL   time.Duration
	FetchTimeout time.Duration
}

type JobsConfig struct {
	Workers      int
	PollInterval time.Duration
}

type SearchConfig struct {
	DefaultLimit     int
	DefaultThreshold float64
}

type LoggerConfig struct {
	LogLevel string
}

type AppConfig struct {
	Environment string
	PSQL        PostgresConfig
	Server      struct {
		Address string
	}
	AI      AIConfig
	Ingest  IngestConfig
	Jobs    JobsConfig
	Search  SearchConfig
	Logging LoggerConfig
}

func LoadEnvConfig(envFiles ...string) (*AppConfig, error) {
	var cfg AppConfig
	err := godotenv.Load(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg.Environment = GetEnvOrDie("ENVIRONMENT")
	cfg.Server.Address = GetEnvOrDie("SERVER_ADDRESS")

	// DB
	cfg.PSQL = DefaultPostgresConfig()

	cfg.AI = AIConfig{
		GeminiModel:      GetEnvWithDefault("GEMINI_MODEL", "gemini-2.5-flash-lite-preview-06-17"),
		EmbeddingBaseURL: GetEnvOrDie("EMBEDDING_BASE_URL"),
		EmbeddingModel:   GetEnvWithDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDims:    getEnvInt("EMBEDDING_DIMS", 1536),
		RequestTimeout:   getEnvDuration("AI_REQUEST_TIMEOUT", 30*time.Second),
	}

	cfg.Ingest = IngestConfig{
		PendingTTL:   getEnvDuration("PENDING_TTL", 15*time.Minute),
		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
	}

	cfg.Jobs = JobsConfig{
		Workers:      getEnvInt("JOB_WORKERS", 3),
		PollInterval: getEnvDuration("JOB_POLL_INTERVAL", 5*time.Second),
	}

	cfg.Search = SearchConfig{
		DefaultLimit:     getEnvInt("SEARCH_DEFAULT_LIMIT", 20),
		DefaultThreshold: getEnvFloat("SEARCH_DEFAULT_THRESHOLD", 0.3),
	}

	cfg.Logging = LoggerConfig{
		LogLevel: GetEnvWithDefault("LOG_LEVEL", "info"),
	}

	return &cfg, nil
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:     GetEnvWithDefault("POSTGRES_HOST", "localhost"),
		Port:     GetEnvWithDefault("POSTGRES_PORT", "5432"),
		User:     GetEnvWithDefault("POSTGRES_USER", "postgres"),
		Password: GetEnvWithDefault("POSTGRES_PASS", "postgres"),
		DbName:   GetEnvWithDefault("DB_NAME", "postgres"),
	}
}

func (cfg PostgresConfig) PgConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DbName)
}

func (cfg PostgresConfig) String() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DbName)
}

func GetEnvWithDefault(envName, defaultValue string) string {
	if value := os.Getenv(envName); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvOrDie(envName string) string {
	value := os.Getenv(envName)
	if value == "" {
		panic("Environment variable " + envName + " is not set")
	}
	return value
}

func getEnvInt(envName string, defaultValue int) int {
	value := os.Getenv(envName)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		panic("Environment variable " + envName + " is not an integer: " + value)
	}
	return n
}

func getEnvFloat(envName string, defaultValue float64) float64 {
	value := os.Getenv(envName)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		panic("Environment variable " + envName + " is not a number: " + value)
	}
	return f
}

func getEnvDuration(envName string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envName)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic("Environment variable " + envName + " is not a duration: " + value)
	}
	return d
}
