package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Env      string
	Port     string
	LogLevel string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Pipeline (statement parser / classifier callbacks)
	PipelineAPIKey string

	// Statement intake
	UploadDir         string
	MaxUploadBytes    int64
	AutoNotifyFlagged bool

	// Notification delivery
	DefaultNotificationType string
	DeliveryWebhookURL      string
	DeliveryAPIKey          string
	DeliveryTimeout         time.Duration
	DeliveryWorkers         int
	DeliveryQueueSize       int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "fraudreview"),
		DBPassword: getEnv("DB_PASSWORD", "fraudreview"),
		DBName:     getEnv("DB_NAME", "fraudreview"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret:        getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		JWTExpirationDur: getDuration("JWT_EXPIRES_IN", 15*time.Minute),

		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:    int64(getInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		AutoNotifyFlagged: getBool("AUTO_NOTIFY_FLAGGED", true),

		DefaultNotificationType: strings.ToLower(getEnv("DEFAULT_NOTIFICATION_TYPE", "sms")),
		DeliveryWebhookURL:      getEnv("DELIVERY_WEBHOOK_URL", ""),
		DeliveryAPIKey:          getEnv("DELIVERY_API_KEY", ""),
		DeliveryTimeout:         getDuration("DELIVERY_TIMEOUT", 10*time.Second),
		DeliveryWorkers:         getInt("DELIVERY_WORKERS", 2),
		DeliveryQueueSize:       getInt("DELIVERY_QUEUE_SIZE", 256),
	}

	switch config.DefaultNotificationType {
	case "call", "email", "sms":
	default:
		log.Printf("Warning: invalid DEFAULT_NOTIFICATION_TYPE value '%s', falling back to sms\n", config.DefaultNotificationType)
		config.DefaultNotificationType = "sms"
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	switch strings.ToLower(raw) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	log.Printf("Warning: invalid %s value '%s', falling back to %t\n", key, raw, defaultValue)
	return defaultValue
}
