package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for configuration values.
const (
	DefaultOddsAPIBaseURL = "https://api.the-odds-api.com/v4"
	DefaultOddsRegions    = "eu,uk"
	DefaultDBDriver       = "sqlite"
	DefaultDBPath         = "/data/market-intel.db"
	DefaultPort           = "8080"
	DefaultPollSchedule   = "*/10 * * * *"
	DefaultCLVSchedule    = "*/15 * * * *"
	DefaultSharpBookmaker = "pinnacle"
	DefaultRequestTimeout = 10 * time.Second
	DefaultCallDelay      = 300 * time.Millisecond
	DefaultJobTimeout     = 5 * time.Minute
	DefaultAlertCooldown  = 30 * time.Minute
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultPollWindow     = 72 * time.Hour
	DefaultSnapshotMaxAge = 24 * time.Hour
	DefaultCLVWindow      = 2 * time.Hour
	DefaultCLVBatchSize   = 20
	DefaultRequestsPerMin = 120
)

// Config holds all application configuration.
type Config struct {
	OddsAPIKey     string
	OddsAPIBaseURL string
	OddsRegions    string

	// Storage
	DBDriver    string // "sqlite" or "postgres"
	DBPath      string // sqlite file
	DatabaseURL string // postgres DSN
	RedisURL    string // optional; enables stream publishing and cross-run alert dedupe

	// HTTP surface
	Port        string
	CORSOrigins []string
	CronSecret  string

	// Scheduling
	PollSchedule string
	CLVSchedule  string
	JobTimeout   time.Duration

	// Batch jobs
	SportsFile     string
	SharpBookmaker string
	RequestTimeout time.Duration
	CallDelay      time.Duration
	PollWindow     time.Duration
	SnapshotMaxAge time.Duration
	CLVWindow      time.Duration
	CLVBatchSize   int

	// Alerts
	AlertCooldown    time.Duration
	TelegramBotToken string
	TelegramChatID   int64

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables (and .env file if present).
func Load() Config {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := Config{
		OddsAPIKey:     os.Getenv("ODDS_API_KEY"),
		OddsAPIBaseURL: DefaultOddsAPIBaseURL,
		OddsRegions:    DefaultOddsRegions,
		DBDriver:       DefaultDBDriver,
		DBPath:         DefaultDBPath,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		Port:           DefaultPort,
		CORSOrigins:    []string{"*"},
		CronSecret:     os.Getenv("CRON_SECRET"),
		PollSchedule:   DefaultPollSchedule,
		CLVSchedule:    DefaultCLVSchedule,
		JobTimeout:     DefaultJobTimeout,
		SportsFile:     os.Getenv("SPORTS_FILE"),
		SharpBookmaker: DefaultSharpBookmaker,
		RequestTimeout: DefaultRequestTimeout,
		CallDelay:      DefaultCallDelay,
		PollWindow:     DefaultPollWindow,
		SnapshotMaxAge: DefaultSnapshotMaxAge,
		CLVWindow:      DefaultCLVWindow,
		CLVBatchSize:   DefaultCLVBatchSize,
		AlertCooldown:  DefaultAlertCooldown,

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
	}

	if v := os.Getenv("ODDS_API_BASE_URL"); v != "" {
		cfg.OddsAPIBaseURL = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("ODDS_REGIONS"); v != "" {
		cfg.OddsRegions = v
	}

	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.DBDriver = strings.ToLower(v)
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	if v := os.Getenv("POLL_SCHEDULE"); v != "" {
		cfg.PollSchedule = v
	}

	if v := os.Getenv("CLV_SCHEDULE"); v != "" {
		cfg.CLVSchedule = v
	}

	if v := os.Getenv("SHARP_BOOKMAKER"); v != "" {
		cfg.SharpBookmaker = strings.ToLower(v)
	}

	if v := os.Getenv("REQUEST_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("CALL_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.CallDelay = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("JOB_TIMEOUT_SEC"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.JobTimeout = time.Duration(s) * time.Second
		}
	}

	if v := os.Getenv("CLV_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CLVBatchSize = n
		}
	}

	if v := os.Getenv("ALERT_COOLDOWN_MIN"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			cfg.AlertCooldown = time.Duration(m) * time.Minute
		}
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	return cfg
}

// Validate checks that configuration values are within acceptable ranges.
// A missing ODDS_API_KEY is not rejected here: the batch jobs fail fast on it
// themselves so the HTTP analysis path can run without provider access.
func Validate(cfg Config) error {
	switch cfg.DBDriver {
	case "sqlite":
		if cfg.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	if cfg.RequestTimeout < 100*time.Millisecond {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must be at least 100ms, got %v", cfg.RequestTimeout)
	}
	if cfg.CallDelay < 0 {
		return fmt.Errorf("CALL_DELAY_MS must be non-negative, got %v", cfg.CallDelay)
	}
	if cfg.JobTimeout < time.Second {
		return fmt.Errorf("JOB_TIMEOUT_SEC must be at least 1s, got %v", cfg.JobTimeout)
	}
	if cfg.CLVBatchSize <= 0 {
		return fmt.Errorf("CLV_BATCH_SIZE must be positive, got %d", cfg.CLVBatchSize)
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
