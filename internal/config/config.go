// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	Env            string
	MetricsEnabled bool
	RequestTimeout time.Duration
}

// DatabaseConfig holds database configuration settings
type DatabaseConfig struct {
	Type       string // "postgres" or "sqlite"
	URI        string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

// PagingConfig bounds every keyset-paginated listing
type PagingConfig struct {
	DefaultSize int
	MaxSize     int
}

// Config holds the complete application configuration
type Config struct {
	Server             *ServerConfig
	Database           *DatabaseConfig
	Paging             *PagingConfig
	JWTSecret          string
	SubscriptionBuffer int
	AllowedOrigins     []string
	Debug              bool
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		Env:            "development",
		MetricsEnabled: true,
		RequestTimeout: 5 * time.Second,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type:       "postgres",
		Port:       5432,
		SSLMode:    "require",
		SQLitePath: "gator-social.db",
	}
}

// DefaultPagingConfig mirrors the page sizes the feed and search listings used before keyset paging.
func DefaultPagingConfig() *PagingConfig {
	return &PagingConfig{
		DefaultSize: 20,
		MaxSize:     100,
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env file from multiple possible locations
	envLocations := []string{
		".env",
		"../../.env", // project root when running from cmd/engine
		filepath.Join(os.Getenv("GOPATH"), "src/gator-social/.env"),
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		_ = godotenv.Load()
	}

	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %v", portStr, err)
		}
		serverConfig.Port = port
	}
	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}
	if env := os.Getenv("ENV"); env != "" {
		serverConfig.Env = env
	}
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}
	if timeout := os.Getenv("REQUEST_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_TIMEOUT %q: %v", timeout, err)
		}
		serverConfig.RequestTimeout = d
	}

	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	paging := DefaultPagingConfig()
	if v := os.Getenv("PAGE_SIZE_DEFAULT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			paging.DefaultSize = n
		}
	}
	if v := os.Getenv("PAGE_SIZE_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			paging.MaxSize = n
		}
	}
	if paging.DefaultSize > paging.MaxSize {
		return nil, fmt.Errorf("PAGE_SIZE_DEFAULT (%d) exceeds PAGE_SIZE_MAX (%d)", paging.DefaultSize, paging.MaxSize)
	}

	config := &Config{
		Server:             serverConfig,
		Database:           dbConfig,
		Paging:             paging,
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SubscriptionBuffer: 64,
		AllowedOrigins:     []string{"*"},
		Debug:              os.Getenv("DEBUG") == "true",
	}

	if v := os.Getenv("SUBSCRIPTION_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.SubscriptionBuffer = n
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	if config.JWTSecret == "" {
		if !config.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required outside development")
		}
		config.JWTSecret = "gator-social-development-secret"
	}

	return config, nil
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	dbConfig := DefaultDatabaseConfig()

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		dbConfig.Type = dbType
	}

	switch dbConfig.Type {
	case "sqlite":
		dbConfig.SQLitePath = getEnvOrDefault("SQLITE_PATH", dbConfig.SQLitePath)
		dbConfig.URI = dbConfig.SQLitePath
	case "postgres":
		// Prioritize DATABASE_URL if provided
		if uri := os.Getenv("DATABASE_URL"); uri != "" {
			dbConfig.URI = uri
			dbConfig.SSLMode = getSSLModeFromURI(uri)
			return dbConfig, nil
		}

		dbConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
		if portStr := os.Getenv("DB_PORT"); portStr != "" {
			if port, err := strconv.Atoi(portStr); err == nil {
				dbConfig.Port = port
			}
		}

		dbConfig.User = os.Getenv("DB_USER")
		if dbConfig.User == "" {
			return nil, fmt.Errorf("DB_USER environment variable is required when DB_TYPE is postgres and DATABASE_URL is not set")
		}
		dbConfig.Password = os.Getenv("DB_PASSWORD")
		if dbConfig.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD environment variable is required when DB_TYPE is postgres and DATABASE_URL is not set")
		}
		dbConfig.Name = getEnvOrDefault("DB_NAME", "postgres")
		dbConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", "require")

		dbConfig.URI = fmt.Sprintf(
			"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
			dbConfig.User,
			dbConfig.Password,
			dbConfig.Host,
			dbConfig.Port,
			dbConfig.Name,
			dbConfig.SSLMode,
		)
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q (want postgres or sqlite)", dbConfig.Type)
	}

	return dbConfig, nil
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper function to extract sslmode from a DSN, defaults to "require"
func getSSLModeFromURI(uri string) string {
	if strings.Contains(uri, "sslmode=") {
		parts := strings.Split(uri, "?")
		if len(parts) > 1 {
			for _, param := range strings.Split(parts[1], "&") {
				kv := strings.SplitN(param, "=", 2)
				if len(kv) == 2 && kv[0] == "sslmode" {
					return kv[1]
				}
			}
		}
	}
	return "require"
}
