package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BASE_URL", "https://inventaire.example.org")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("MEDIA_ROOT", "")
	t.Setenv("DOWNLOAD_TIMEOUT", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://inventaire.example.org", cfg.App.BaseURL)
	assert.Equal(t, "media", cfg.Media.Root)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "inventaire.db", cfg.Database.DSN)
	assert.Equal(t, 30*time.Second, cfg.Download.Timeout)
	assert.False(t, cfg.Sheets.Enabled())
}

func TestLoadRequiresBaseURL(t *testing.T) {
	t.Setenv("BASE_URL", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASE_URL")
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "BASE_URL=http://10.0.0.5:8000\nDATABASE_DRIVER=postgres\nDATABASE_DSN=postgres://u:p@localhost/inv\nDOWNLOAD_TIMEOUT=5s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv never overrides variables that are already set, so clear them
	// for the duration of the test and restore afterwards.
	for _, key := range []string{"BASE_URL", "DATABASE_DRIVER", "DATABASE_DSN", "DOWNLOAD_TIMEOUT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8000", cfg.App.BaseURL)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Download.Timeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{BaseURL: "http://127.0.0.1:8000"},
			Media:    MediaConfig{Root: "media"},
			Database: DatabaseConfig{Driver: DriverSQLite, DSN: "inventaire.db"},
			Server:   ServerConfig{Port: "8080"},
			Schedule: ScheduleConfig{CronSchedule: "0 * * * *", Timezone: "UTC"},
			Download: DownloadConfig{Timeout: time.Second},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "relative base url", mutate: func(c *Config) { c.App.BaseURL = "/articles" }, wantErr: "BASE_URL"},
		{name: "ftp base url", mutate: func(c *Config) { c.App.BaseURL = "ftp://host" }, wantErr: "BASE_URL"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: "DATABASE_DRIVER"},
		{name: "mongodb without uri", mutate: func(c *Config) { c.Database.Driver = DriverMongoDB }, wantErr: "MONGODB_URI"},
		{name: "bad timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, wantErr: "TIMEZONE"},
		{name: "empty media root", mutate: func(c *Config) { c.Media.Root = "" }, wantErr: "MEDIA_ROOT"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
