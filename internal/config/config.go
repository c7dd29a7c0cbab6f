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

type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Config is the notebox-server configuration.
type Config struct {
	// HTTP
	Addr        string
	CORSOrigins []string

	// Database configuration
	DBPath          string
	DBEncryptionKey string

	// Application encryption
	AppEncryptionKey string

	// Sessions
	SessionTTL   time.Duration
	CookieSecure bool

	// Profile lookups check ownership only when this is set.
	ProfileOwnershipCheck bool
	SeedDemoUsers         bool

	// Audit configuration
	AuditLogPath   string
	AuditAsyncMode bool

	// Backups are scheduled only when BackupInterval is positive.
	BackupDir           string
	BackupEncryptionKey string
	BackupInterval      time.Duration
	BackupRetentionDays int

	// Rate limiting
	RateLimitRPS   int
	RateLimitBurst int

	// Application settings
	Environment string
	Logger      LoggerConfig
}

// ClientConfig is the notebox CLI configuration.
type ClientConfig struct {
	APIURL   string
	StateDir string
	Timeout  time.Duration
	Logger   LoggerConfig
}

// Load reads server configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (not required in production)
	godotenv.Load()

	env := getEnv("APP_ENV", "development")

	config := &Config{
		Addr:                  getEnv("NOTEBOX_ADDR", ":5000"),
		CORSOrigins:           getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		DBPath:                getEnv("DB_PATH", "./data/notebox.db"),
		DBEncryptionKey:       getEnv("DB_ENCRYPTION_KEY", ""),
		AppEncryptionKey:      getEnv("APP_ENCRYPTION_KEY", ""),
		SessionTTL:            time.Duration(getEnvAsInt("SESSION_TTL_HOURS", 168)) * time.Hour,
		CookieSecure:          getEnvAsBool("COOKIE_SECURE", env == "production"),
		ProfileOwnershipCheck: getEnvAsBool("PROFILE_OWNERSHIP_CHECK", false),
		SeedDemoUsers:         getEnvAsBool("SEED_DEMO_USERS", true),
		AuditLogPath:          getEnv("AUDIT_LOG_PATH", "./logs/audit.log"),
		AuditAsyncMode:        getEnvAsBool("AUDIT_ASYNC_MODE", true),
		BackupDir:             getEnv("BACKUP_DIR", "./backups"),
		BackupEncryptionKey:   getEnv("BACKUP_ENCRYPTION_KEY", ""),
		BackupInterval:        time.Duration(getEnvAsInt("BACKUP_INTERVAL_HOURS", 0)) * time.Hour,
		BackupRetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		RateLimitRPS:          getEnvAsInt("RATE_LIMIT_REQUESTS_PER_SECOND", 10),
		RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 20),
		Environment:           env,
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if config.BackupEncryptionKey == "" {
		config.BackupEncryptionKey = config.AppEncryptionKey
	}

	// Validate critical configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DBEncryptionKey == "" {
		return fmt.Errorf("DB_ENCRYPTION_KEY is required")
	}

	if len(c.DBEncryptionKey) < 32 {
		return fmt.Errorf("DB_ENCRYPTION_KEY must be at least 32 characters")
	}

	if c.AppEncryptionKey == "" {
		return fmt.Errorf("APP_ENCRYPTION_KEY is required")
	}

	if len(c.AppEncryptionKey) < 32 {
		return fmt.Errorf("APP_ENCRYPTION_KEY must be at least 32 characters")
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}

	return nil
}

// LoadClient reads CLI configuration from environment variables
func LoadClient() (*ClientConfig, error) {
	godotenv.Load()

	stateDir := getEnv("NOTEBOX_STATE_DIR", "")
	if stateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		stateDir = filepath.Join(dir, "notebox")
	}

	config := &ClientConfig{
		APIURL:   getEnv("NOTEBOX_API_URL", "http://localhost:5000"),
		StateDir: stateDir,
		Timeout:  time.Duration(getEnvAsInt("NOTEBOX_TIMEOUT_SECONDS", 10)) * time.Second,
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "warn"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate ensures the client can reach an API
func (c *ClientConfig) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("NOTEBOX_API_URL is required")
	}

	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("NOTEBOX_API_URL must be an http(s) URL")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("NOTEBOX_TIMEOUT_SECONDS must be positive")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
