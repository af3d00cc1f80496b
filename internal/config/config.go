// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Logging
	LogLevel string

	// Server
	ServerPort        string
	BaseURL           string
	CORSAllowedOrigin string

	// Swipe
	SwipeThreshold   float64
	SwipeSettleDelay time.Duration
	NewsPageSize     int
	NewsMaxPageSize  int

	// Receipt
	ReceiptPrintingEnabled bool
	PrinterDevice          string
	PrinterAddr            string
	PrinterTimeout         time.Duration
	ReceiptSeed            uint64

	// Rate Limit
	RateLimitReceipt int

	// Import
	Feeds             []FeedConfig
	ImportInterval    time.Duration
	ImportTimeout     time.Duration
	ImportMaxSize     int64
	ImportConcurrency int
	WorkerMetricsPort string

	// Cleanup
	NewsRetentionDays int
	CleanupInterval   time.Duration
}

// FeedConfig は取り込み対象フィードの定義。
type FeedConfig struct {
	URL      string `yaml:"url"`
	Source   string `yaml:"source"`
	Category string `yaml:"category"`
}

// feedFile はFEED_CONFIGで指定するYAMLファイルの構造。
type feedFile struct {
	Feeds []FeedConfig `yaml:"feeds"`
}

// ClientConfig はサーバーに接続するコマンド（replay, healthcheck）の設定。
type ClientConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や、FEED_CONFIGが読み込めない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
	}

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "5001")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:5001")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5001")

	cfg.SwipeThreshold = getEnvFloat("SWIPE_THRESHOLD", 100)
	cfg.SwipeSettleDelay = getEnvDuration("SWIPE_SETTLE_DELAY", 300*time.Millisecond)
	cfg.NewsPageSize = getEnvInt("NEWS_PAGE_SIZE", 20)
	cfg.NewsMaxPageSize = getEnvInt("NEWS_MAX_PAGE_SIZE", 100)

	cfg.ReceiptPrintingEnabled = getEnvBool("RECEIPT_PRINTING_ENABLED", true)
	cfg.PrinterDevice = getEnvString("PRINTER_DEVICE", "/dev/usb/lp0")
	cfg.PrinterAddr = getEnvString("PRINTER_ADDR", "")
	cfg.PrinterTimeout = getEnvDuration("PRINTER_TIMEOUT", 5*time.Second)
	cfg.ReceiptSeed = uint64(getEnvInt64("RECEIPT_SEED", 0))

	cfg.RateLimitReceipt = getEnvInt("RATE_LIMIT_RECEIPT", 30)

	cfg.ImportInterval = getEnvDuration("IMPORT_INTERVAL", 30*time.Minute)
	cfg.ImportTimeout = getEnvDuration("IMPORT_TIMEOUT", 10*time.Second)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 5242880)
	cfg.ImportConcurrency = getEnvInt("IMPORT_CONCURRENCY", 4)
	cfg.WorkerMetricsPort = os.Getenv("WORKER_METRICS_PORT")

	cfg.NewsRetentionDays = getEnvInt("NEWS_RETENTION_DAYS", 30)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)

	feeds, err := loadFeeds(os.Getenv("FEED_URLS"), os.Getenv("FEED_CONFIG"))
	if err != nil {
		return nil, err
	}
	cfg.Feeds = feeds

	return cfg, nil
}

// LoadClient はサーバー接続用の設定を読み込む。DATABASE_URLは不要。
func LoadClient() *ClientConfig {
	return &ClientConfig{
		BaseURL:     strings.TrimRight(getEnvString("BASE_URL", "http://localhost:5001"), "/"),
		HTTPTimeout: getEnvDuration("CLIENT_TIMEOUT", 10*time.Second),
	}
}

// loadFeeds はFEED_URLS（カンマ区切り）とFEED_CONFIG（YAML）のフィードを結合する。
// 同じURLはYAMLの定義を優先する。
func loadFeeds(urls, path string) ([]FeedConfig, error) {
	var feeds []FeedConfig
	index := map[string]int{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("FEED_CONFIGの読み込みに失敗しました: %w", err)
		}
		var f feedFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("FEED_CONFIGのパースに失敗しました: %w", err)
		}
		for i, fc := range f.Feeds {
			fc.URL = strings.TrimSpace(fc.URL)
			if fc.URL == "" {
				return nil, fmt.Errorf("FEED_CONFIGの%d番目のフィードにurlがありません", i+1)
			}
			if _, dup := index[fc.URL]; dup {
				continue
			}
			index[fc.URL] = len(feeds)
			feeds = append(feeds, fc)
		}
	}

	for _, u := range strings.Split(urls, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := index[u]; dup {
			continue
		}
		index[u] = len(feeds)
		feeds = append(feeds, FeedConfig{URL: u})
	}
	return feeds, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
