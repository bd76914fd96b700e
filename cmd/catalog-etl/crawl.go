package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aluiziolira/books-catalog-etl/config"
	"github.com/aluiziolira/books-catalog-etl/models"
	"github.com/aluiziolira/books-catalog-etl/pipeline"
	"github.com/aluiziolira/books-catalog-etl/publisher"
	"github.com/aluiziolira/books-catalog-etl/scraper"
	"github.com/aluiziolira/books-catalog-etl/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const maxFailureRows = 25

var crawlFlags struct {
	baseURL         string
	maxPages        int
	parallelism     int
	queueSize       int
	delay           time.Duration
	randomDelay     time.Duration
	timeout         time.Duration
	maxRetries      int
	retryBackoff    time.Duration
	retryBackoffMax time.Duration
	storeRetries    int
	exchangeRate    float64
	respectRobots   bool
	metricsAddr     string
	redisAddr       string
	redisStream     string
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Walks the listing and upserts every detail page into the store.",
	RunE:  runCrawl,
}

func init() {
	d := config.DefaultConfig()
	f := crawlCmd.Flags()
	f.StringVar(&crawlFlags.baseURL, "base-url", d.BaseURL, "Site root to crawl")
	f.IntVar(&crawlFlags.maxPages, "pages", d.MaxPages, "Maximum listing pages to walk")
	f.IntVar(&crawlFlags.parallelism, "parallel", d.Parallelism, "Concurrent detail fetches")
	f.IntVar(&crawlFlags.queueSize, "queue-size", d.QueueSize, "Pending detail URLs buffered ahead of the workers")
	f.DurationVar(&crawlFlags.delay, "delay", d.Delay, "Delay between requests")
	f.DurationVar(&crawlFlags.randomDelay, "random-delay", d.RandomDelay, "Random jitter added to delay")
	f.DurationVar(&crawlFlags.timeout, "timeout", d.Timeout, "Per-request timeout")
	f.IntVar(&crawlFlags.maxRetries, "max-retries", d.MaxRetries, "Retries per detail URL on transient errors")
	f.DurationVar(&crawlFlags.retryBackoff, "retry-backoff", d.RetryBackoff, "Initial retry backoff")
	f.DurationVar(&crawlFlags.retryBackoffMax, "retry-backoff-max", d.RetryBackoffMax, "Maximum retry backoff")
	f.IntVar(&crawlFlags.storeRetries, "store-retries", d.StoreRetries, "Retries per failed store write (at least 1)")
	f.Float64Var(&crawlFlags.exchangeRate, "exchange-rate", d.ExchangeRate, "Fixed source to target currency rate")
	f.BoolVar(&crawlFlags.respectRobots, "respect-robots", d.RespectRobotsTxt, "Respect robots.txt directives")
	f.StringVar(&crawlFlags.metricsAddr, "metrics-addr", d.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	f.StringVar(&crawlFlags.redisAddr, "redis-addr", d.RedisAddr, "Redis address for ingest notifications")
	f.StringVar(&crawlFlags.redisStream, "redis-stream", d.RedisStream, "Redis stream receiving ingest notifications")
	rootCmd.AddCommand(crawlCmd)
}

func applyCrawlFlags(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		changed := cmd.Flags().Changed
		if changed("base-url") {
			cfg.BaseURL = crawlFlags.baseURL
		}
		if changed("pages") {
			cfg.MaxPages = crawlFlags.maxPages
		}
		if changed("parallel") {
			cfg.Parallelism = crawlFlags.parallelism
		}
		if changed("queue-size") {
			cfg.QueueSize = crawlFlags.queueSize
		}
		if changed("delay") {
			cfg.Delay = crawlFlags.delay
		}
		if changed("random-delay") {
			cfg.RandomDelay = crawlFlags.randomDelay
		}
		if changed("timeout") {
			cfg.Timeout = crawlFlags.timeout
		}
		if changed("max-retries") {
			cfg.MaxRetries = crawlFlags.maxRetries
		}
		if changed("retry-backoff") {
			cfg.RetryBackoff = crawlFlags.retryBackoff
		}
		if changed("retry-backoff-max") {
			cfg.RetryBackoffMax = crawlFlags.retryBackoffMax
		}
		if changed("store-retries") {
			cfg.StoreRetries = crawlFlags.storeRetries
		}
		if changed("exchange-rate") {
			cfg.ExchangeRate = crawlFlags.exchangeRate
		}
		if changed("respect-robots") {
			cfg.RespectRobotsTxt = crawlFlags.respectRobots
		}
		if changed("metrics-addr") {
			cfg.MetricsAddr = crawlFlags.metricsAddr
		}
		if changed("redis-addr") {
			cfg.RedisAddr = crawlFlags.redisAddr
		}
		if changed("redis-stream") {
			cfg.RedisStream = crawlFlags.redisStream
		}
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, applyCrawlFlags(cmd))
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, draining in-flight items")
	}()

	st, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("close store", slog.Any("error", err))
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = st.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("store health check: %w", err)
	}

	metrics := scraper.NewMetrics()
	if cfg.MetricsAddr != "" {
		server := serveMetrics(cfg.MetricsAddr, metrics)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	opts := []pipeline.Option{pipeline.WithMetrics(metrics), pipeline.WithLogger(slog.Default())}
	if cfg.RedisAddr != "" {
		pub := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLen)
		defer pub.Close()
		if err := pub.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, notifications will fail", slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
		}
		opts = append(opts, pipeline.WithPublisher(pub))
	}

	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	p, err := pipeline.New(cfg, fetcher.ForPhase(scraper.PhaseListing), fetcher.ForPhase(scraper.PhaseDetail), st, opts...)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	if cfg.Verbose {
		p.StartMetricsReporting(ctx, 10*time.Second)
	}

	report, err := p.Run(ctx, cfg.BaseURL)
	if report != nil {
		printSummary(report, cfg.StoreDSN)
	}
	if errors.Is(err, context.Canceled) {
		slog.Warn("crawl interrupted; stored items are kept")
		return nil
	}
	return err
}

func serveMetrics(addr string, metrics *scraper.Metrics) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func printSummary(report *models.CrawlReport, storeDSN string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Crawl %s", report.RunID)
	t.AppendRows([]table.Row{
		{"Seed", report.SeedURL},
		{"Store", storeDSN},
		{"Listing pages", report.ListingPages},
		{"Discovered", report.Discovered},
		{"Duplicates", report.Duplicates},
		{"Attempted", report.Attempted},
		{"Succeeded", report.Succeeded},
		{"Failed", report.Failed},
		{"Skipped", report.Skipped},
		{"Retries", report.Retries},
		{"Success rate", fmt.Sprintf("%.2f%%", report.SuccessRate())},
		{"Duration", report.Duration().Round(time.Millisecond)},
	})
	if report.Truncated {
		t.AppendRow(table.Row{"Truncated", "page limit reached with more pages listed"})
	}
	if report.Canceled {
		t.AppendRow(table.Row{"Canceled", "yes"})
	}
	if len(report.ErrorsByType) > 0 {
		t.AppendRow(table.Row{"Error types", formatCounts(report.ErrorsByType)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(report.Failures) == 0 && len(report.Warnings) == 0 {
		return
	}
	failures := table.NewWriter()
	failures.SetOutputMirror(os.Stdout)
	failures.AppendHeader(table.Row{"URL", "Stage", "Kind", "Reason"})
	rows := append(append([]models.Failure{}, report.Failures...), report.Warnings...)
	for i, f := range rows {
		if i == maxFailureRows {
			failures.AppendFooter(table.Row{fmt.Sprintf("... %d more", len(rows)-maxFailureRows), "", "", ""})
			break
		}
		failures.AppendRow(table.Row{f.URL, f.Stage, f.Kind, f.Reason})
	}
	failures.SetStyle(table.StyleRounded)
	failures.Render()
}

func formatCounts(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for kind, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", kind, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
