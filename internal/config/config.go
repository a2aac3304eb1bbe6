package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values for DATABASE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

// Config represents the full application configuration surface.
type Config struct {
	App      AppConfig
	Media    MediaConfig
	Database DatabaseConfig
	MongoDB  MongoDBConfig
	Sheets   SheetsConfig
	Server   ServerConfig
	Schedule ScheduleConfig
	Download DownloadConfig
	Log      LogConfig
}

// AppConfig holds the public facing settings embedded into generated artifacts.
type AppConfig struct {
	// BaseURL is the site root QR codes point to, e.g. https://inventaire.example.org.
	BaseURL string
}

// MediaConfig controls where generated files are written.
type MediaConfig struct {
	Root string
}

// DatabaseConfig selects and configures the article store backend.
type DatabaseConfig struct {
	Driver string
	DSN    string
	Debug  bool
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SheetsConfig contains configuration required to read Google Sheets sources.
// Both fields are optional; "sheets:" sources are rejected when they are empty.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether a Google Sheets source can be used.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// ScheduleConfig holds the watch mode settings.
type ScheduleConfig struct {
	CronSchedule string
	Timezone     string
}

// DownloadConfig tunes the HTTP client used for remote spreadsheets.
type DownloadConfig struct {
	Timeout    time.Duration
	RetryCount int
}

// LogConfig selects the log encoder.
type LogConfig struct {
	Format string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		App: AppConfig{
			BaseURL: strings.TrimSpace(os.Getenv("BASE_URL")),
		},
		Media: MediaConfig{
			Root: getenvWithDefault("MEDIA_ROOT", "media"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getenvWithDefault("DATABASE_DRIVER", DriverSQLite)),
			DSN:    getenvWithDefault("DATABASE_DSN", "inventaire.db"),
			Debug:  getenvBool("DB_DEBUG", false),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "inventaire"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_ID"),
		},
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Schedule: ScheduleConfig{
			CronSchedule: getenvWithDefault("IMPORT_CRON_SCHEDULE", "0 * * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "UTC"),
		},
		Download: DownloadConfig{
			Timeout:    getenvDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
			RetryCount: getenvInt("DOWNLOAD_RETRY_COUNT", 2),
		},
		Log: LogConfig{
			Format: getenvWithDefault("LOG_FORMAT", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.App.BaseURL == "" {
		return errors.New("BASE_URL must be provided")
	}
	u, err := url.Parse(c.App.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("BASE_URL must be an absolute http(s) URL, got %q", c.App.BaseURL)
	}

	if c.Media.Root == "" {
		return errors.New("MEDIA_ROOT must not be empty")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("DATABASE_DSN must be provided")
		}
	case DriverMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER %q is not supported", c.Database.Driver)
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Schedule.CronSchedule == "" {
		return errors.New("IMPORT_CRON_SCHEDULE must be provided")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is invalid: %w", c.Schedule.Timezone, err)
	}

	if c.Download.Timeout <= 0 {
		return errors.New("DOWNLOAD_TIMEOUT must be positive")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
