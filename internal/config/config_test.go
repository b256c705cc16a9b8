package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pipelineEnvKeys = []string{
	"DOG_API_BASE_URL", "DOG_API_ENDPOINT", "DOG_API_KEY", "DOG_API_TIMEOUT", "DOG_API_PAGE_SIZE",
	"WAREHOUSE_DRIVER", "WAREHOUSE_DSN", "RAW_DATASET", "BIGQUERY_DATASET", "RAW_TABLE", "MODEL_DATASET",
	"LEDGER_DRIVER", "LEDGER_DSN", "LANDING_DRIVER", "LANDING_S3_BUCKET", "PROJECT_ID", "GCP_PROJECT_ID",
	"ALERT_WEBHOOK_FAILURES_ONLY", "SCHEDULE_CRON",
	"SMTP_HOST", "SMTP_PORT", "ALERT_EMAIL_FROM", "DEFAULT_FROM_EMAIL", "ALERT_EMAIL_TO", "ALERT_EMAIL_FAILURES_ONLY",
}

// clearEnv unsets every pipeline variable for the duration of the test.
// godotenv never overrides a variable that exists, even when empty.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range pipelineEnvKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://api.thedogapi.com/v1", cfg.API.BaseURL)
	assert.Equal(t, "breeds", cfg.API.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 0, cfg.API.PageSize)
	assert.Equal(t, "duckdb", cfg.Warehouse.Driver)
	assert.Equal(t, "dog_breeds_raw", cfg.Warehouse.RawDataset)
	assert.Equal(t, "dog_breeds_resource", cfg.Warehouse.RawTable)
	assert.Equal(t, "dog_breeds", cfg.Warehouse.ModelDataset)
	assert.Equal(t, "sqlite", cfg.Ledger.Driver)
	assert.Equal(t, "", cfg.Landing.Driver)
	assert.True(t, cfg.Notify.WebhookFailuresOnly)
	assert.True(t, cfg.Notify.EmailFailuresOnly)
	assert.Equal(t, "587", cfg.Notify.SMTPPort)
	assert.Equal(t, "noreply@example.com", cfg.Notify.EmailFrom)
	assert.Equal(t, "0 0 6 * * 1", cfg.Schedule.Cron)
	assert.Equal(t, "https://api.thedogapi.com/v1/breeds", cfg.FullAPIURL())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOG_API_BASE_URL", "http://localhost:9999/v2/")
	t.Setenv("DOG_API_ENDPOINT", "/dogs")
	t.Setenv("DOG_API_PAGE_SIZE", "50")
	t.Setenv("BIGQUERY_DATASET", "legacy_raw")
	t.Setenv("GCP_PROJECT_ID", "breeds-prod")
	t.Setenv("ALERT_WEBHOOK_FAILURES_ONLY", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:9999/v2/dogs", cfg.FullAPIURL())
	assert.Equal(t, 50, cfg.API.PageSize)
	assert.Equal(t, "legacy_raw", cfg.Warehouse.RawDataset, "BIGQUERY_DATASET is honoured as a fallback")
	assert.Equal(t, "breeds-prod", cfg.ProjectID)
	assert.False(t, cfg.Notify.WebhookFailuresOnly)

	t.Setenv("RAW_DATASET", "raw_v2")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "raw_v2", cfg.Warehouse.RawDataset, "RAW_DATASET wins over BIGQUERY_DATASET")
}

func TestFromEnv_InvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOG_API_TIMEOUT", "soon")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "DOG_API_TIMEOUT")

	t.Setenv("DOG_API_TIMEOUT", "")
	t.Setenv("DOG_API_PAGE_SIZE", "ten")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "DOG_API_PAGE_SIZE")
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad base url", func(c *Config) { c.API.BaseURL = "ftp://x" }, "DOG_API_BASE_URL"},
		{"empty endpoint", func(c *Config) { c.API.Endpoint = "/" }, "DOG_API_ENDPOINT"},
		{"negative page size", func(c *Config) { c.API.PageSize = -1 }, "DOG_API_PAGE_SIZE"},
		{"unknown warehouse", func(c *Config) { c.Warehouse.Driver = "bigquery" }, "WAREHOUSE_DRIVER"},
		{"injected dataset", func(c *Config) { c.Warehouse.ModelDataset = "x; DROP TABLE y" }, "MODEL_DATASET"},
		{"unknown ledger", func(c *Config) { c.Ledger.Driver = "mysql" }, "LEDGER_DRIVER"},
		{"s3 without bucket", func(c *Config) { c.Landing.Driver = "s3" }, "LANDING_S3_BUCKET"},
		{"unknown landing", func(c *Config) { c.Landing.Driver = "gcs" }, "LANDING_DRIVER"},
		{"email without relay", func(c *Config) { c.Notify.EmailTo = "data@example.com" }, "SMTP_HOST"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := FromEnv()
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.wantErr)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	t.Run("Explicit file is loaded", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "pipeline.env")
		require.NoError(t, os.WriteFile(path, []byte("DOG_API_ENDPOINT=breeds/search\nMODEL_DATASET=analytics\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "breeds/search", cfg.API.Endpoint)
		assert.Equal(t, "analytics", cfg.Warehouse.ModelDataset)
	})

	t.Run("Missing explicit file is an error", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.Error(t, err)
	})

	t.Run("Missing default file is fine", func(t *testing.T) {
		clearEnv(t)
		t.Chdir(t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "breeds", cfg.API.Endpoint)
	})
}
