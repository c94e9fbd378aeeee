package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	// Redis configuration (cross-instance message fanout)
	Redis struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}

	// Storage configuration (chat image uploads)
	Storage struct {
		Backend   string // "local" or "s3"
		LocalPath string
		LocalURL  string
		Bucket    string
		Region    string
		Endpoint  string
		BaseURL   string
		AccessKey string
		SecretKey string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxUploadSize  int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8080")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "marketchat")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)

		// Redis config
		instance.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
		instance.Redis.Addr = getEnvString("REDIS_ADDR", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)

		// Storage config
		instance.Storage.Backend = getEnvString("STORAGE_BACKEND", "local")
		instance.Storage.LocalPath = getEnvString("STORAGE_LOCAL_PATH", "./uploads")
		instance.Storage.LocalURL = getEnvString("STORAGE_LOCAL_URL", "http://localhost:8080/uploads")
		instance.Storage.Bucket = getEnvString("S3_BUCKET", "")
		instance.Storage.Region = getEnvString("S3_REGION", "us-east-1")
		instance.Storage.Endpoint = getEnvString("S3_ENDPOINT", "")
		instance.Storage.BaseURL = getEnvString("S3_BASE_URL", "")
		instance.Storage.AccessKey = getEnvString("S3_ACCESS_KEY", "")
		instance.Storage.SecretKey = getEnvString("S3_SECRET_KEY", "")

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 20))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 40)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
		instance.Security.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 10<<20) // 10MB

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
