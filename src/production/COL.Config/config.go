package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// MongoDB configuration
	Mongo MongoConfig `json:"mongo"`

	// RabbitMQ configuration
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	Mode         string        `json:"mode"` // gin mode: debug, release or test
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// MongoConfig holds document store configuration
type MongoConfig struct {
	URL            string        `json:"-"`
	Database       string        `json:"database"`
	Collection     string        `json:"collection"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// RabbitMQConfig holds broker configuration
type RabbitMQConfig struct {
	URL string `json:"-"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// Load loads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	// A missing .env file is fine, variables may come from the environment directly
	_ = godotenv.Load()

	mongoURL := getEnv("MONGO_URL", os.Getenv("MONGODB_URI"))

	readTimeout, err := getDuration("READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getDuration("WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := getDuration("IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}
	connectTimeout, err := getDuration("MONGO_CONNECT_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	enableCaller, err := getBool("LOG_ENABLE_CALLER", false)
	if err != nil {
		return nil, err
	}
	allowCredentials, err := getBool("CORS_ALLOW_CREDENTIALS", false)
	if err != nil {
		return nil, err
	}
	maxAge, err := getInt("CORS_MAX_AGE", 43200) // 12 hours
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "3000"),
			Mode:         getEnv("GIN_MODE", "release"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		Mongo: MongoConfig{
			URL:            mongoURL,
			Database:       getEnv("MONGO_DB_NAME", databaseFromURL(mongoURL)),
			Collection:     getEnv("MONGO_COLLECTION", "colmeias"),
			ConnectTimeout: connectTimeout,
		},
		RabbitMQ: RabbitMQConfig{
			URL: os.Getenv("RABBITMQ_URL"),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: enableCaller,
		},
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "X-Request-ID"}),
			AllowCredentials: allowCredentials,
			MaxAge:           maxAge,
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Mongo.URL == "" {
		return fmt.Errorf("MONGO_URL is required")
	}
	if c.RabbitMQ.URL == "" {
		return fmt.Errorf("RABBITMQ_URL is required")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Mongo.Collection == "" {
		return fmt.Errorf("MONGO_COLLECTION must not be empty")
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" && c.CORS.AllowCredentials {
			return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be combined with a wildcard origin")
		}
	}
	return nil
}

// databaseFromURL returns the database named in the connection string, or
// "test" which is what the driver falls back to when none is given.
func databaseFromURL(uri string) string {
	if uri == "" {
		return "test"
	}
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return "test"
	}
	return cs.Database
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return intValue, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	switch value {
	case "1", "true", "TRUE":
		return true, nil
	case "0", "false", "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s: %q (expected true/false or 1/0)", key, value)
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
