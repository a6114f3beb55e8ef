package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	PageSourceHTTP    = "http"
	PageSourceBrowser = "browser"

	BackendCSV      = "csv"
	BackendPostgres = "postgres"
)

type Config struct {
	CatalogsFile string
	DataDir      string

	AssetWorkers    int
	AssetTimeout    time.Duration
	AssetRetryDelay time.Duration
	RetryCount      int
	PageCap         int
	PageRetryDelay  time.Duration
	SettleDelay     time.Duration

	PageSource string
	BrowserURL string
	UserAgent  string

	SnapshotBackend string
	DatabaseURL     string
	DBBatchSize     int

	SeenMirrorEnabled bool
	RedisHost         string
	RedisPort         string

	AWSRegion       string
	AssetsBucket    string
	NotifyQueueURL  string
	DynamoDBTable   string
	OpenSearchURL   string
	OpenSearchIndex string
}

func Load() (*Config, error) {
	cfg := &Config{
		CatalogsFile:    os.Getenv("CATALOGS_FILE"),
		DataDir:         getEnv("DATA_DIR", "./scraped_data"),
		PageSource:      getEnv("PAGE_SOURCE", PageSourceHTTP),
		BrowserURL:      os.Getenv("BROWSER_URL"),
		UserAgent:       os.Getenv("USER_AGENT"),
		SnapshotBackend: getEnv("SNAPSHOT_BACKEND", BackendCSV),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisHost:       getEnv("REDIS_HOST", "localhost"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		AssetsBucket:    os.Getenv("ASSETS_BUCKET"),
		NotifyQueueURL:  os.Getenv("NOTIFY_QUEUE_URL"),
		DynamoDBTable:   os.Getenv("DYNAMODB_TABLE"),
		OpenSearchURL:   os.Getenv("OPENSEARCH_URL"),
		OpenSearchIndex: getEnv("OPENSEARCH_INDEX", "catalog_listings"),
	}

	var err error
	if cfg.AssetWorkers, err = getInt("ASSET_WORKERS", 10); err != nil {
		return nil, err
	}
	if cfg.RetryCount, err = getInt("RETRY_COUNT", 3); err != nil {
		return nil, err
	}
	if cfg.PageCap, err = getInt("PAGE_CAP", 50); err != nil {
		return nil, err
	}
	if cfg.DBBatchSize, err = getInt("DB_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.AssetTimeout, err = getDuration("ASSET_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.AssetRetryDelay, err = getDuration("ASSET_RETRY_DELAY", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.PageRetryDelay, err = getDuration("PAGE_RETRY_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = getDuration("SETTLE_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.SeenMirrorEnabled, err = getBool("SEEN_MIRROR_ENABLED", false); err != nil {
		return nil, err
	}

	if cfg.AssetWorkers <= 0 {
		return nil, fmt.Errorf("ASSET_WORKERS must be positive, got %d", cfg.AssetWorkers)
	}
	if cfg.PageCap <= 0 {
		return nil, fmt.Errorf("PAGE_CAP must be positive, got %d", cfg.PageCap)
	}
	if cfg.PageSource != PageSourceHTTP && cfg.PageSource != PageSourceBrowser {
		return nil, fmt.Errorf("PAGE_SOURCE must be %q or %q, got %q", PageSourceHTTP, PageSourceBrowser, cfg.PageSource)
	}
	switch cfg.SnapshotBackend {
	case BackendCSV:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres snapshot backend")
		}
	default:
		return nil, fmt.Errorf("SNAPSHOT_BACKEND must be %q or %q, got %q", BackendCSV, BackendPostgres, cfg.SnapshotBackend)
	}

	return cfg, nil
}

// NeedsAWS reports whether any AWS-backed sink is configured.
func (c *Config) NeedsAWS() bool {
	return c.AssetsBucket != "" || c.NotifyQueueURL != "" || c.DynamoDBTable != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative duration", key, raw)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}
