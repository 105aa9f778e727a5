package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host        string
	Port        string
	Environment string

	// Database settings
	DBDriver          string
	DBUser            string
	DBPassword        string
	DBConnectString   string
	DBRequirePool     bool
	DBPoolMax         int
	DBPoolIdleTimeout time.Duration
	DBQueueTimeout    time.Duration
	ExposeDBErrors    bool

	// Logging settings
	LogLevel  string
	LogFormat string

	// HTTP settings
	CORSOrigins []string

	// Frontend settings
	APIBaseURL      string
	FrontendEnvFile string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not an error if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:            getEnv("HOST", "0.0.0.0"),
		Port:            getEnv("PORT", "5000"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		DBDriver:        getEnv("DB_DRIVER", "sqlite"),
		DBUser:          getEnv("DB_USER", ""),
		DBPassword:      getEnv("DB_PASSWORD", ""),
		DBConnectString: getEnv("DB_CONNECT_STRING", "./data/case_compass.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		FrontendEnvFile: getEnv("FRONTEND_ENV_FILE", ""),
	}
	cfg.APIBaseURL = getEnv("API_BASE_URL", fmt.Sprintf("http://localhost:%s/api", cfg.Port))

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: expected postgres or sqlite", cfg.DBDriver)
	}

	var err error
	cfg.DBRequirePool, err = strconv.ParseBool(getEnv("DB_REQUIRE_POOL", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_REQUIRE_POOL: %w", err)
	}

	cfg.ExposeDBErrors, err = strconv.ParseBool(getEnv("EXPOSE_DB_ERRORS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXPOSE_DB_ERRORS: %w", err)
	}

	cfg.DBPoolMax, err = strconv.Atoi(getEnv("DB_POOL_MAX", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_POOL_MAX: %w", err)
	}
	if cfg.DBPoolMax < 1 {
		return nil, fmt.Errorf("invalid DB_POOL_MAX: must be at least 1, got %d", cfg.DBPoolMax)
	}

	idleTimeout, err := strconv.Atoi(getEnv("DB_POOL_IDLE_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_POOL_IDLE_TIMEOUT: %w", err)
	}
	cfg.DBPoolIdleTimeout = time.Duration(idleTimeout) * time.Second

	queueTimeout, err := strconv.Atoi(getEnv("DB_QUEUE_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_QUEUE_TIMEOUT: %w", err)
	}
	cfg.DBQueueTimeout = time.Duration(queueTimeout) * time.Second

	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "*"))

	return cfg, nil
}

// DSN assembles the driver connection string. For postgres the user and
// password are folded into a URL-style connect string; sqlite uses the
// connect string as a file path.
func (c *Config) DSN() string {
	if c.DBDriver != "postgres" {
		return c.DBConnectString
	}
	if strings.Contains(c.DBConnectString, "://") || c.DBUser == "" {
		return c.DBConnectString
	}
	return fmt.Sprintf("postgres://%s@%s", url.UserPassword(c.DBUser, c.DBPassword).String(), c.DBConnectString)
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
