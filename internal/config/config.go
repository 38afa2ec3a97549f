package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Analysis AnalysisConfig
	Storage  StorageConfig
	Worker   WorkerConfig
	Broker   BrokerConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	CORSOrigins string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type LLMConfig struct {
	Provider        string
	GeminiAPIKey    string
	GeminiModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	Temperature     float64
	MaxOutputTokens int
}

type AnalysisConfig struct {
	// Backend is "llm" for in-process scoring or "http" for a remote scorer.
	Backend        string
	RemoteURL      string
	Timeout        time.Duration
	RatePerMinute  int
	Burst          int
	RunConcurrency int
}

type StorageConfig struct {
	MaxFileSize int64
	Backend     string
	ExportPath  string
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

type WorkerConfig struct {
	Concurrency int
	QueueSize   int
	RunTTL      time.Duration
}

type BrokerConfig struct {
	RabbitMQURL string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "3000"),
			Env:         getEnv("ENV", "development"),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "job_matcher"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		LLM: LLMConfig{
			Provider:        strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
			GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:     getEnvAsFloat("LLM_TEMPERATURE", 0.2),
			MaxOutputTokens: getEnvAsInt("LLM_MAX_OUTPUT_TOKENS", 0),
		},
		Analysis: AnalysisConfig{
			Backend:        strings.ToLower(getEnv("ANALYSIS_BACKEND", "llm")),
			RemoteURL:      getEnv("ANALYSIS_REMOTE_URL", ""),
			Timeout:        getEnvAsDuration("ANALYSIS_TIMEOUT", "30s"),
			RatePerMinute:  getEnvAsInt("ANALYSIS_RATE_PER_MINUTE", 60),
			Burst:          getEnvAsInt("ANALYSIS_BURST", 1),
			RunConcurrency: getEnvAsInt("ANALYSIS_RUN_CONCURRENCY", 1),
		},
		Storage: StorageConfig{
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760),
			Backend:     strings.ToLower(getEnv("EXPORT_BACKEND", "local")),
			ExportPath:  getEnv("EXPORT_PATH", "./exports"),
			S3Bucket:    getEnv("S3_BUCKET", ""),
			S3Prefix:    getEnv("S3_PREFIX", "exports"),
			S3Region:    getEnv("S3_REGION", "auto"),
			S3Endpoint:  getEnv("S3_ENDPOINT", ""),
			S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 2),
			QueueSize:   getEnvAsInt("WORKER_QUEUE_SIZE", 100),
			RunTTL:      getEnvAsDuration("RUN_TTL", "1h"),
		},
		Broker: BrokerConfig{
			RabbitMQURL: getEnv("RABBITMQ_URL", ""),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// Validate reports settings that would make the server unusable.
func (c *Config) Validate() error {
	switch c.Analysis.Backend {
	case "llm":
		switch c.LLM.Provider {
		case "gemini":
			if c.LLM.GeminiAPIKey == "" {
				return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
			}
		case "openai":
			if c.LLM.OpenAIAPIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
			}
		default:
			return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
		}
	case "http":
		if c.Analysis.RemoteURL == "" {
			return fmt.Errorf("ANALYSIS_REMOTE_URL is required when ANALYSIS_BACKEND=http")
		}
	default:
		return fmt.Errorf("unknown ANALYSIS_BACKEND %q", c.Analysis.Backend)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when EXPORT_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown EXPORT_BACKEND %q", c.Storage.Backend)
	}

	if c.Analysis.Timeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
