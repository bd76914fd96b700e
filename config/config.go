package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds crawler configuration. It is read once at process start.
type Config struct {
	BaseURL       string
	PageTemplate  string
	MaxPages      int
	Parallelism   int
	QueueSize     int
	DedupeMaxSize int

	Delay           time.Duration
	RandomDelay     time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	StoreDSN     string
	StoreRetries int

	SourceCurrency string
	TargetCurrency string
	ExchangeRate   float64

	UserAgent        string
	RespectRobotsTxt bool
	Verbose          bool
	MetricsAddr      string

	RedisAddr         string
	RedisDB           int
	RedisStream       string
	RedisStreamMaxLen int64

	ExportFile   string
	ExportFormat string // csv, json, or dual
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://books.toscrape.com/",
		PageTemplate:      "catalogue/page-%d.html",
		MaxPages:          50,
		Parallelism:       8,
		QueueSize:         256,
		DedupeMaxSize:     10000,
		Delay:             0,
		RandomDelay:       0,
		Timeout:           10 * time.Second,
		MaxRetries:        2,
		RetryBackoff:      200 * time.Millisecond,
		RetryBackoffMax:   2 * time.Second,
		StoreDSN:          "data/books.db",
		StoreRetries:      1,
		SourceCurrency:    "EUR",
		TargetCurrency:    "BRL",
		ExchangeRate:      6.35,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RespectRobotsTxt:  false,
		Verbose:           false,
		RedisStream:       "catalog:ingested",
		RedisStreamMaxLen: 10000,
		ExportFile:        "output/books.csv",
		ExportFormat:      "csv",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if strings.Count(c.PageTemplate, "%d") != 1 {
		return fmt.Errorf("page template must contain exactly one %%d")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.StoreDSN == "" {
		return fmt.Errorf("store DSN cannot be empty")
	}
	if c.StoreRetries < 1 {
		return fmt.Errorf("store retries must be at least 1")
	}
	if c.SourceCurrency == "" || c.TargetCurrency == "" {
		return fmt.Errorf("source and target currency are required")
	}
	if c.ExchangeRate <= 0 {
		return fmt.Errorf("exchange rate must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.RedisAddr != "" && c.RedisStream == "" {
		return fmt.Errorf("redis stream is required when redis address is set")
	}
	if c.ExportFormat != "csv" && c.ExportFormat != "json" && c.ExportFormat != "dual" {
		return fmt.Errorf("export format must be csv, json, or dual")
	}
	if c.ExportFile == "" {
		return fmt.Errorf("export file cannot be empty")
	}

	return nil
}
