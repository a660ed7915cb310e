package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gitlab.com/dirk.krummacker/user-management/internal/remote"
)

// Storage backends for the session storage.
const (
	StorageMemory = "memory"
	StorageMySQL  = "mysql"
)

// Config holds the runtime settings of the service. All values come from environment
// variables, optionally read from a .env file in the working directory.
type Config struct {
	Server struct {
		Port       string
		GinLogging bool
	}

	Database struct {
		Host     string
		User     string
		Password string
		Name     string
	}

	Storage       string
	RemoteURL     string
	SessionCookie string
	SessionIdle   time.Duration
	LogLevel      string
}

// Load reads the configuration. Variables already set in the environment win over the .env
// file.
func Load() (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Server.Port = getEnv("PORT", "8080")
	cfg.Server.GinLogging = !strings.EqualFold(getEnv("GIN_LOGGING", "on"), "off")

	cfg.Database.Host = getEnv("DBHOST", "localhost:3306")
	cfg.Database.User = getEnv("DBUSER", "")
	cfg.Database.Password = getEnv("DBPWD", "")
	cfg.Database.Name = getEnv("DBNAME", "test")

	cfg.Storage = strings.ToLower(getEnv("STORAGE", StorageMemory))
	cfg.RemoteURL = getEnv("REMOTE_URL", remote.DefaultURL)
	cfg.SessionCookie = getEnv("SESSION_COOKIE", "user_session")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	idle, err := time.ParseDuration(getEnv("SESSION_IDLE", "30m"))
	if err != nil || idle <= 0 {
		return nil, fmt.Errorf("invalid SESSION_IDLE %q, expected a positive duration like 30m", os.Getenv("SESSION_IDLE"))
	}
	cfg.SessionIdle = idle

	if cfg.Storage != StorageMemory && cfg.Storage != StorageMySQL {
		return nil, fmt.Errorf("invalid STORAGE %q, expected %q or %q", cfg.Storage, StorageMemory, StorageMySQL)
	}
	return cfg, nil
}

// DSN returns the go-sql-driver/mysql data source name of the configured database.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
