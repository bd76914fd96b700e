package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CATALOG_"

// EnvString returns the trimmed value of key, reporting whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvFloat parses key as a float.
func EnvFloat(key string) (float64, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses key as a Go duration ("750ms", "10s").
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

// ApplyEnv overrides cfg with any CATALOG_* variables present in the
// environment.
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"BASE_URL":        &cfg.BaseURL,
		"PAGE_TEMPLATE":   &cfg.PageTemplate,
		"STORE_DSN":       &cfg.StoreDSN,
		"SOURCE_CURRENCY": &cfg.SourceCurrency,
		"TARGET_CURRENCY": &cfg.TargetCurrency,
		"USER_AGENT":      &cfg.UserAgent,
		"METRICS_ADDR":    &cfg.MetricsAddr,
		"REDIS_ADDR":      &cfg.RedisAddr,
		"REDIS_STREAM":    &cfg.RedisStream,
		"EXPORT_FILE":     &cfg.ExportFile,
		"EXPORT_FORMAT":   &cfg.ExportFormat,
	}
	for name, dst := range strs {
		if value, ok := EnvString(EnvPrefix + name); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"PAGES":         &cfg.MaxPages,
		"PARALLEL":      &cfg.Parallelism,
		"QUEUE_SIZE":    &cfg.QueueSize,
		"DEDUPE_MAX":    &cfg.DedupeMaxSize,
		"MAX_RETRIES":   &cfg.MaxRetries,
		"STORE_RETRIES": &cfg.StoreRetries,
		"REDIS_DB":      &cfg.RedisDB,
	}
	for name, dst := range ints {
		value, ok, err := EnvInt(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"DELAY":             &cfg.Delay,
		"RANDOM_DELAY":      &cfg.RandomDelay,
		"TIMEOUT":           &cfg.Timeout,
		"RETRY_BACKOFF":     &cfg.RetryBackoff,
		"RETRY_BACKOFF_MAX": &cfg.RetryBackoffMax,
	}
	for name, dst := range durations {
		value, ok, err := EnvDuration(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	if value, ok, err := EnvFloat(EnvPrefix + "EXCHANGE_RATE"); err != nil {
		return err
	} else if ok {
		cfg.ExchangeRate = value
	}
	if value, ok, err := EnvBool(EnvPrefix + "RESPECT_ROBOTS"); err != nil {
		return err
	} else if ok {
		cfg.RespectRobotsTxt = value
	}
	if value, ok, err := EnvBool(EnvPrefix + "VERBOSE"); err != nil {
		return err
	} else if ok {
		cfg.Verbose = value
	}
	if value, ok, err := EnvInt(EnvPrefix + "REDIS_STREAM_MAXLEN"); err != nil {
		return err
	} else if ok {
		cfg.RedisStreamMaxLen = int64(value)
	}
	return nil
}
