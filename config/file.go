package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// fileConfig mirrors Config as it appears in a json5 config file. Durations
// are written as Go duration strings. A nil field was absent from every file.
type fileConfig struct {
	BaseURL       *string `json:"base_url"`
	PageTemplate  *string `json:"page_template"`
	MaxPages      *int    `json:"max_pages"`
	Parallelism   *int    `json:"parallelism"`
	QueueSize     *int    `json:"queue_size"`
	DedupeMaxSize *int    `json:"dedupe_max_size"`

	Delay           *string `json:"delay"`
	RandomDelay     *string `json:"random_delay"`
	Timeout         *string `json:"timeout"`
	MaxRetries      *int    `json:"max_retries"`
	RetryBackoff    *string `json:"retry_backoff"`
	RetryBackoffMax *string `json:"retry_backoff_max"`

	StoreDSN     *string `json:"store_dsn"`
	StoreRetries *int    `json:"store_retries"`

	SourceCurrency *string  `json:"source_currency"`
	TargetCurrency *string  `json:"target_currency"`
	ExchangeRate   *float64 `json:"exchange_rate"`

	UserAgent        *string `json:"user_agent"`
	RespectRobotsTxt *bool   `json:"respect_robots_txt"`
	Verbose          *bool   `json:"verbose"`
	MetricsAddr      *string `json:"metrics_addr"`

	RedisAddr         *string `json:"redis_addr"`
	RedisDB           *int    `json:"redis_db"`
	RedisStream       *string `json:"redis_stream"`
	RedisStreamMaxLen *int64  `json:"redis_stream_max_len"`

	ExportFile   *string `json:"export_file"`
	ExportFormat *string `json:"export_format"`
}

// LoadFile merges the json5 file at name, then its ".local" sibling
// (catalog.json5 -> catalog.local.json5), over cfg. Every key present in a
// file is applied, zero values included. Missing files are skipped; it
// reports whether any file was read.
func LoadFile(cfg *Config, name string) (bool, error) {
	layered := map[string]any{}
	found := false
	for _, path := range []string{name, localName(name)} {
		raw, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return found, fmt.Errorf("read config %s: %w", path, err)
		}
		if len(raw) == 0 {
			continue
		}

		var layer map[string]any
		if err := json5.Unmarshal(raw, &layer); err != nil {
			return found, fmt.Errorf("decode config %s: %w", path, err)
		}
		if err := mergo.Merge(&layered, layer, mergo.WithOverride); err != nil {
			return found, fmt.Errorf("merge config %s: %w", path, err)
		}
		found = true
	}
	if !found {
		return false, nil
	}

	merged, err := json.Marshal(layered)
	if err != nil {
		return found, fmt.Errorf("encode config %s: %w", name, err)
	}
	var fc fileConfig
	if err := json.Unmarshal(merged, &fc); err != nil {
		return found, fmt.Errorf("decode config %s: %w", name, err)
	}
	if err := fc.apply(cfg); err != nil {
		return found, fmt.Errorf("config %s: %w", name, err)
	}
	return found, nil
}

func localName(name string) string {
	dir := filepath.Dir(name)
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+".local"+ext)
}

// apply copies the present fields onto cfg. cfg is left untouched on error.
func (fc fileConfig) apply(cfg *Config) error {
	next := *cfg
	set(&next.BaseURL, fc.BaseURL)
	set(&next.PageTemplate, fc.PageTemplate)
	set(&next.MaxPages, fc.MaxPages)
	set(&next.Parallelism, fc.Parallelism)
	set(&next.QueueSize, fc.QueueSize)
	set(&next.DedupeMaxSize, fc.DedupeMaxSize)
	set(&next.MaxRetries, fc.MaxRetries)
	set(&next.StoreDSN, fc.StoreDSN)
	set(&next.StoreRetries, fc.StoreRetries)
	set(&next.SourceCurrency, fc.SourceCurrency)
	set(&next.TargetCurrency, fc.TargetCurrency)
	set(&next.ExchangeRate, fc.ExchangeRate)
	set(&next.UserAgent, fc.UserAgent)
	set(&next.RespectRobotsTxt, fc.RespectRobotsTxt)
	set(&next.Verbose, fc.Verbose)
	set(&next.MetricsAddr, fc.MetricsAddr)
	set(&next.RedisAddr, fc.RedisAddr)
	set(&next.RedisDB, fc.RedisDB)
	set(&next.RedisStream, fc.RedisStream)
	set(&next.RedisStreamMaxLen, fc.RedisStreamMaxLen)
	set(&next.ExportFile, fc.ExportFile)
	set(&next.ExportFormat, fc.ExportFormat)

	durations := []struct {
		name string
		raw  *string
		dst  *time.Duration
	}{
		{"delay", fc.Delay, &next.Delay},
		{"random_delay", fc.RandomDelay, &next.RandomDelay},
		{"timeout", fc.Timeout, &next.Timeout},
		{"retry_backoff", fc.RetryBackoff, &next.RetryBackoff},
		{"retry_backoff_max", fc.RetryBackoffMax, &next.RetryBackoffMax},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		if *d.raw == "" {
			*d.dst = 0
			continue
		}
		parsed, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	*cfg = next
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
