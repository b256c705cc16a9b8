package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when no explicit env file is given. Its absence is not an error.
const DefaultEnvFile = ".env"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds all settings for the breed pipeline.
type Config struct {
	API       APIConfig
	Warehouse WarehouseConfig
	Ledger    LedgerConfig
	Landing   LandingConfig
	Notify    NotifyConfig
	Schedule  ScheduleConfig
	Server    ServerConfig
	Log       LogConfig
	ProjectID string
}

// APIConfig describes the upstream breed catalog.
type APIConfig struct {
	BaseURL  string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	PageSize int // 0 means the endpoint returns the full collection in one response
}

// WarehouseConfig describes where raw rows land and where models are materialized.
type WarehouseConfig struct {
	Driver       string // duckdb | postgres
	DSN          string
	RawDataset   string
	RawTable     string
	ModelDataset string
}

// LedgerConfig describes the database holding pipeline run history.
type LedgerConfig struct {
	Driver string // sqlite | postgres
	DSN    string
}

// LandingConfig describes the optional archive of raw API payloads.
type LandingConfig struct {
	Driver      string // "" (disabled) | fs | s3 | memory
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// NotifyConfig describes run-completion notifications.
type NotifyConfig struct {
	NATSURL             string
	SubjectPrefix       string
	WebhookURL          string
	WebhookFailuresOnly bool
	SMTPHost            string
	SMTPPort            string
	SMTPUser            string
	SMTPPass            string
	EmailFrom           string
	EmailTo             string
	EmailFailuresOnly   bool
}

// ScheduleConfig holds the cron expression used in serve mode.
type ScheduleConfig struct {
	Cron string
}

// ServerConfig holds the HTTP settings used in serve mode.
type ServerConfig struct {
	Port string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string // json | console
}

// Load reads an env file (if present) and then the process environment.
// An explicitly named env file must exist; the default one is optional.
func Load(envFile string) (*Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment, applying defaults.
func FromEnv() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("DOG_API_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DOG_API_TIMEOUT: %w", err)
	}
	pageSize, err := strconv.Atoi(getEnv("DOG_API_PAGE_SIZE", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid DOG_API_PAGE_SIZE: %w", err)
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:  getEnv("DOG_API_BASE_URL", "https://api.thedogapi.com/v1"),
			Endpoint: getEnv("DOG_API_ENDPOINT", "breeds"),
			APIKey:   os.Getenv("DOG_API_KEY"),
			Timeout:  timeout,
			PageSize: pageSize,
		},
		Warehouse: WarehouseConfig{
			Driver:       strings.ToLower(getEnv("WAREHOUSE_DRIVER", "duckdb")),
			DSN:          getEnv("WAREHOUSE_DSN", "dog_breeds.duckdb"),
			RawDataset:   getEnv("RAW_DATASET", getEnv("BIGQUERY_DATASET", "dog_breeds_raw")),
			RawTable:     getEnv("RAW_TABLE", "dog_breeds_resource"),
			ModelDataset: getEnv("MODEL_DATASET", "dog_breeds"),
		},
		Ledger: LedgerConfig{
			Driver: strings.ToLower(getEnv("LEDGER_DRIVER", "sqlite")),
			DSN:    getEnv("LEDGER_DSN", "pipeline_state.db"),
		},
		Landing: LandingConfig{
			Driver:      strings.ToLower(os.Getenv("LANDING_DRIVER")),
			FSRoot:      getEnv("LANDING_FS_ROOT", "./landing"),
			S3Bucket:    os.Getenv("LANDING_S3_BUCKET"),
			S3Region:    getEnv("LANDING_S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("LANDING_S3_ENDPOINT"),
			S3PathStyle: strings.EqualFold(os.Getenv("LANDING_S3_PATH_STYLE"), "true"),
		},
		Notify: NotifyConfig{
			NATSURL:             os.Getenv("NATS_URL"),
			SubjectPrefix:       getEnv("NATS_SUBJECT_PREFIX", "pipeline.runs"),
			WebhookURL:          os.Getenv("ALERT_WEBHOOK_URL"),
			WebhookFailuresOnly: !strings.EqualFold(getEnv("ALERT_WEBHOOK_FAILURES_ONLY", "true"), "false"),
			SMTPHost:            os.Getenv("SMTP_HOST"),
			SMTPPort:            getEnv("SMTP_PORT", "587"),
			SMTPUser:            os.Getenv("SMTP_USER"),
			SMTPPass:            os.Getenv("SMTP_PASS"),
			EmailFrom:           getEnv("ALERT_EMAIL_FROM", getEnv("DEFAULT_FROM_EMAIL", "noreply@example.com")),
			EmailTo:             os.Getenv("ALERT_EMAIL_TO"),
			EmailFailuresOnly:   !strings.EqualFold(getEnv("ALERT_EMAIL_FAILURES_ONLY", "true"), "false"),
		},
		Schedule: ScheduleConfig{Cron: getEnv("SCHEDULE_CRON", "0 0 6 * * 1")},
		Server:   ServerConfig{Port: getEnv("SERVER_PORT", "8080")},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		ProjectID: getEnv("PROJECT_ID", os.Getenv("GCP_PROJECT_ID")),
	}
	return cfg, nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("DOG_API_BASE_URL must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if strings.Trim(c.API.Endpoint, "/") == "" {
		return fmt.Errorf("DOG_API_ENDPOINT is required")
	}
	if c.API.PageSize < 0 {
		return fmt.Errorf("DOG_API_PAGE_SIZE must be >= 0, got %d", c.API.PageSize)
	}
	switch c.Warehouse.Driver {
	case "duckdb", "postgres":
	default:
		return fmt.Errorf("unsupported WAREHOUSE_DRIVER %q (duckdb, postgres)", c.Warehouse.Driver)
	}
	for name, ident := range map[string]string{
		"RAW_DATASET":   c.Warehouse.RawDataset,
		"RAW_TABLE":     c.Warehouse.RawTable,
		"MODEL_DATASET": c.Warehouse.ModelDataset,
	} {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("%s must be a plain SQL identifier, got %q", name, ident)
		}
	}
	switch c.Ledger.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported LEDGER_DRIVER %q (sqlite, postgres)", c.Ledger.Driver)
	}
	switch c.Landing.Driver {
	case "", "fs", "memory":
	case "s3":
		if c.Landing.S3Bucket == "" {
			return fmt.Errorf("LANDING_S3_BUCKET is required when LANDING_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unsupported LANDING_DRIVER %q (fs, s3, memory)", c.Landing.Driver)
	}
	if c.Notify.EmailTo != "" && c.Notify.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when ALERT_EMAIL_TO is set")
	}
	return nil
}

// FullAPIURL joins the base URL and the endpoint path.
func (c *Config) FullAPIURL() string {
	return strings.TrimRight(c.API.BaseURL, "/") + "/" + strings.TrimLeft(c.API.Endpoint, "/")
}

// getEnv reads an environment variable with a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
