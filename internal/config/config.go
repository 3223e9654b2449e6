// Package config provides configuration management for Attic.
// It loads settings from environment variables with the ATTIC_ prefix
// and provides sensible defaults for all configuration options.
//
// User settings (e.g., default_owner) are persisted to the settings table
// in the database. LoadConfigFromDB reads from the database first and falls
// back to environment variables. SaveConfig writes user settings to the
// database.
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration settings for the Attic application.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Security  SecurityConfig
	Scheduler SchedulerConfig
	Backup    BackupConfig
	Features  FeaturesConfig
	User      UserConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7171)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory (default: ./data)
	PostgresDSN   string // Postgres connection string, used when StorageEngine is postgres
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// SchedulerConfig contains reminder delivery configuration.
type SchedulerConfig struct {
	PollInterval string // Due-reminder poll interval duration (default: 30s)
	WebhookURL   string // Default delivery webhook, used when an owner has none set
}

// BackupConfig contains backup configuration.
type BackupConfig struct {
	BackupEnabled          bool   // Enable automatic backups (default: false)
	BackupInterval         string // Backup interval duration (default: 24h)
	BackupPath             string // Path to backup directory (default: ./backups)
	BackupVerify           bool   // Verify backups after creation (default: true)
	BackupRetentionHourly  int    // Number of hourly backups to keep (default: 24)
	BackupRetentionDaily   int    // Number of daily backups to keep (default: 7)
	BackupRetentionWeekly  int    // Number of weekly backups to keep (default: 4)
	BackupRetentionMonthly int    // Number of monthly backups to keep (default: 12)
}

// FeaturesConfig contains feature flags.
type FeaturesConfig struct {
	EnableInbox     bool // Watch {data}/inbox for transcript submissions (default: true)
	EnableScheduler bool // Run the reminder delivery scheduler (default: true)
}

// UserConfig contains user-specific settings that persist across restarts.
// These settings are stored in the settings table in the database.
type UserConfig struct {
	// DefaultOwner is the owner ID used when a request or command does not
	// name one.
	// Env var: ATTIC_DEFAULT_OWNER
	// Database key: default_owner
	DefaultOwner string
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the ATTIC_ prefix. User settings
// (UserConfig) are loaded from environment variables only. Use
// LoadConfigFromDB to also read persisted user settings from the database.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()
	return cfg, nil
}

// LoadConfigFromDB loads configuration from both environment variables and
// the database. The database value takes precedence over the environment
// variable for user settings. Falls back to the environment variable when no
// DB entry exists.
//
// Returns an error if db is nil.
func LoadConfigFromDB(db *sql.DB) (*Config, error) {
	if db == nil {
		return nil, errors.New("config: database connection is required")
	}

	cfg := buildBaseConfig()

	defaultOwner, err := getSetting(db, "default_owner")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config: failed to load default_owner from database: %w", err)
	}

	if defaultOwner != "" {
		// DB value overrides env var
		cfg.User.DefaultOwner = defaultOwner
	}

	return cfg, nil
}

// SaveConfig persists user configuration settings to the settings table in
// the database. Uses upsert semantics so user settings survive application
// restarts.
//
// Returns an error if db is nil.
func (c *Config) SaveConfig(db *sql.DB) error {
	if db == nil {
		return errors.New("config: database connection is required")
	}

	if err := setSetting(db, "default_owner", c.User.DefaultOwner); err != nil {
		return fmt.Errorf("config: failed to save default_owner: %w", err)
	}

	return nil
}

// getSetting retrieves a single setting value by key from the settings table.
// Returns an empty string and sql.ErrNoRows if the key does not exist.
func getSetting(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// setSetting writes a key-value pair to the settings table using upsert
// semantics.
func setSetting(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults. This is the shared base for both LoadConfig and
// LoadConfigFromDB.
func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("ATTIC_PORT", 7171),
			Host: getEnv("ATTIC_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("ATTIC_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("ATTIC_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("ATTIC_POSTGRES_DSN", ""),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("ATTIC_SECURITY_MODE", "development"),
			APIToken:     getEnv("ATTIC_API_TOKEN", ""),
		},
		Scheduler: SchedulerConfig{
			PollInterval: getEnv("ATTIC_SCHEDULER_POLL_INTERVAL", "30s"),
			WebhookURL:   getEnv("ATTIC_WEBHOOK_URL", ""),
		},
		Backup: BackupConfig{
			BackupEnabled:          getEnvBool("ATTIC_BACKUP_ENABLED", false),
			BackupInterval:         getEnv("ATTIC_BACKUP_INTERVAL", "24h"),
			BackupPath:             getEnv("ATTIC_BACKUP_PATH", "./backups"),
			BackupVerify:           getEnvBool("ATTIC_BACKUP_VERIFY", true),
			BackupRetentionHourly:  getEnvInt("ATTIC_BACKUP_RETENTION_HOURLY", 24),
			BackupRetentionDaily:   getEnvInt("ATTIC_BACKUP_RETENTION_DAILY", 7),
			BackupRetentionWeekly:  getEnvInt("ATTIC_BACKUP_RETENTION_WEEKLY", 4),
			BackupRetentionMonthly: getEnvInt("ATTIC_BACKUP_RETENTION_MONTHLY", 12),
		},
		Features: FeaturesConfig{
			EnableInbox:     getEnvBool("ATTIC_ENABLE_INBOX", true),
			EnableScheduler: getEnvBool("ATTIC_ENABLE_SCHEDULER", true),
		},
		User: UserConfig{
			DefaultOwner: getEnv("ATTIC_DEFAULT_OWNER", ""),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the environment variable exists but cannot be parsed as an
// integer, it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" as true and "false", "0", "no" as
// false (case-insensitive). If the environment variable exists but cannot be
// parsed as a boolean, it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
