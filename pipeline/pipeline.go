// Package pipeline runs a crawl: it walks the listing, fetches and extracts
// detail pages on a worker pool, and funnels every result through a single
// store writer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/books-catalog-etl/config"
	"github.com/aluiziolira/books-catalog-etl/models"
	"github.com/aluiziolira/books-catalog-etl/parser"
	"github.com/aluiziolira/books-catalog-etl/publisher"
	"github.com/aluiziolira/books-catalog-etl/scraper"
	"github.com/aluiziolira/books-catalog-etl/store"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of fetching and extracting one detail URL.
type Result struct {
	URL      string
	Item     *models.CatalogItem
	Warnings []error
	Stage    models.Stage
	Err      error
	Retries  int
}

// Pipeline coordinates one crawl against a store.
type Pipeline struct {
	cfg       *config.Config
	walker    *scraper.Walker
	detail    scraper.PageFetcher
	extractor *parser.Extractor
	store     store.Store
	publisher publisher.Publisher
	metrics   *scraper.Metrics
	logger    *slog.Logger
	progress  *progress
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPublisher announces every stored item through pub.
func WithPublisher(pub publisher.Publisher) Option {
	return func(p *Pipeline) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithMetrics records crawl metrics on m.
func WithMetrics(m *scraper.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New wires a pipeline. listing serves the listing walk and detail serves
// item pages; they may be the same fetcher.
func New(cfg *config.Config, listing, detail scraper.PageFetcher, st store.Store, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if listing == nil || detail == nil {
		return nil, errors.New("pipeline: fetcher is required")
	}
	if st == nil {
		return nil, errors.New("pipeline: store is required")
	}

	rates := parser.NewRateTable(cfg.SourceCurrency, cfg.TargetCurrency, cfg.ExchangeRate)
	extractor, err := parser.NewExtractor(cfg.BaseURL, rates)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       cfg,
		detail:    detail,
		extractor: extractor,
		store:     st,
		publisher: publisher.Nop{},
		logger:    slog.Default(),
		progress:  newProgress(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.walker = scraper.NewWalker(listing, cfg.PageTemplate, cfg.MaxPages, p.metrics)
	return p, nil
}

// feedStats is owned by the feeder goroutine until the worker group exits.
type feedStats struct {
	pages      int
	discovered int
	duplicates int
	unqueued   int
	truncated  bool
}

// Run crawls from seedURL and returns the report. A listing failure aborts
// the run and is returned alongside the partial report. When ctx is
// canceled no new fetches start, in-flight results are still written, and
// the context error is returned.
func (p *Pipeline) Run(ctx context.Context, seedURL string) (*models.CrawlReport, error) {
	report := &models.CrawlReport{
		RunID:        uuid.NewString(),
		SeedURL:      seedURL,
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	logger := p.logger.With(slog.String("run_id", report.RunID))
	p.progress.reset()

	logger.Info("crawl started",
		slog.String("seed", seedURL),
		slog.Int("parallelism", p.cfg.Parallelism),
		slog.Int("max_pages", p.cfg.MaxPages),
	)

	urls := make(chan string, p.cfg.QueueSize)
	results := make(chan Result, p.cfg.Parallelism)
	var stats feedStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(urls)
		return p.feed(gctx, seedURL, urls, &stats, logger)
	})
	for i := 0; i < p.cfg.Parallelism; i++ {
		g.Go(func() error {
			for u := range urls {
				p.metrics.SetQueueDepth(len(urls))
				results <- p.process(gctx, u)
			}
			return nil
		})
	}

	// Writes outlive cancellation so drained results still land.
	storeCtx := context.WithoutCancel(ctx)
	written := make(chan struct{})
	go func() {
		defer close(written)
		for res := range results {
			p.record(storeCtx, res, report, logger)
		}
	}()

	runErr := g.Wait()
	close(results)
	<-written

	report.ListingPages = stats.pages
	report.Discovered = stats.discovered
	report.Duplicates = stats.duplicates
	report.Skipped += stats.unqueued
	report.Truncated = stats.truncated
	report.Canceled = ctx.Err() != nil
	report.EndTime = time.Now()

	attrs := []any{
		slog.Int("listing_pages", report.ListingPages),
		slog.Int("discovered", report.Discovered),
		slog.Int("attempted", report.Attempted),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Duration("duration", report.Duration()),
	}

	switch {
	case runErr != nil:
		p.metrics.IncError(scraper.ErrorTypeLabel(runErr))
		logger.Error("crawl aborted", append(attrs, slog.Any("error", runErr))...)
		return report, fmt.Errorf("crawl %s: %w", seedURL, runErr)
	case report.Canceled:
		logger.Warn("crawl canceled", attrs...)
		return report, ctx.Err()
	}
	if report.Truncated {
		attrs = append(attrs, slog.Bool("truncated", true))
	}
	logger.Info("crawl finished", attrs...)
	return report, nil
}

// feed drains the listing walk into urls, skipping links already queued in
// this run.
func (p *Pipeline) feed(ctx context.Context, seedURL string, urls chan<- string, stats *feedStats, logger *slog.Logger) error {
	seen, err := lru.New[string, struct{}](p.cfg.DedupeMaxSize)
	if err != nil {
		return fmt.Errorf("create dedupe cache: %w", err)
	}

	for page, err := range p.walker.Pages(ctx, seedURL) {
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, scraper.ErrPageLimit):
				stats.truncated = true
				return nil
			default:
				return err
			}
		}
		stats.pages++

		for _, link := range page.Links {
			if found, _ := seen.ContainsOrAdd(link, struct{}{}); found {
				stats.duplicates++
				logger.Debug("duplicate link skipped", slog.String("url", link))
				continue
			}
			stats.discovered++
			p.progress.addDiscovered()

			select {
			case urls <- link:
				p.metrics.SetQueueDepth(len(urls))
			case <-ctx.Done():
				stats.unqueued++
				return nil
			}
		}
	}
	return nil
}

// process fetches and extracts one detail page.
func (p *Pipeline) process(ctx context.Context, rawURL string) Result {
	res := Result{URL: rawURL}
	if err := ctx.Err(); err != nil {
		res.Stage = models.StageCanceled
		res.Err = err
		return res
	}

	body, retries, err := p.fetch(ctx, rawURL)
	res.Retries = retries
	if err != nil {
		res.Stage = models.StageFetch
		if ctx.Err() != nil && !isFetchError(err) {
			res.Stage = models.StageCanceled
		}
		res.Err = err
		return res
	}

	extraction, err := p.extractor.Extract(body, rawURL)
	if err != nil {
		res.Stage = models.StageParse
		res.Err = err
		return res
	}
	res.Item = extraction.Item
	res.Warnings = extraction.Warnings
	return res
}

// fetch retries retryable failures with exponential backoff.
func (p *Pipeline) fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	retries := 0
	for attempt := 0; ; attempt++ {
		body, err := p.detail.Fetch(ctx, rawURL)
		if err == nil {
			return body, retries, nil
		}
		if attempt >= p.cfg.MaxRetries || !scraper.IsRetryable(err) {
			return nil, retries, err
		}

		delay := backoffDelay(p.cfg.RetryBackoff, p.cfg.RetryBackoffMax, attempt+1)
		p.logger.Debug("retrying fetch",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		if sleepContext(ctx, delay) != nil {
			return nil, retries, err
		}
		retries++
		p.metrics.IncRetries(string(models.StageFetch))
	}
}

// upsert writes item, retrying every failure StoreRetries times.
func (p *Pipeline) upsert(ctx context.Context, item *models.CatalogItem) (int, error) {
	retries := 0
	for attempt := 0; ; attempt++ {
		err := p.store.Upsert(ctx, item)
		if err == nil {
			return retries, nil
		}
		if attempt >= p.cfg.StoreRetries {
			return retries, err
		}

		delay := backoffDelay(p.cfg.RetryBackoff, p.cfg.RetryBackoffMax, attempt+1)
		p.logger.Warn("retrying store write",
			slog.String("item_key", item.ItemKey),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
		if sleepContext(ctx, delay) != nil {
			return retries, err
		}
		retries++
		p.metrics.IncRetries(string(models.StageStore))
	}
}

// record folds one result into the report. It runs on the writer goroutine
// only.
func (p *Pipeline) record(ctx context.Context, res Result, report *models.CrawlReport, logger *slog.Logger) {
	if res.Stage == models.StageCanceled {
		report.Skipped++
		return
	}

	report.Attempted++
	report.Retries += res.Retries
	if res.Err != nil {
		p.fail(report, res.URL, res.Stage, res.Err, logger)
		return
	}

	for _, w := range res.Warnings {
		report.Warnings = append(report.Warnings, models.Failure{
			URL:    res.URL,
			Stage:  models.StageParse,
			Kind:   scraper.ErrorTypeLabel(w),
			Reason: w.Error(),
		})
		logger.Debug("degraded field", slog.String("url", res.URL), slog.Any("warning", w))
	}

	retries, err := p.upsert(ctx, res.Item)
	report.Retries += retries
	if err != nil {
		p.fail(report, res.URL, models.StageStore, err, logger)
		return
	}

	report.Succeeded++
	p.progress.addAttempt(true, "")
	p.metrics.IncItems()
	logger.Debug("item stored",
		slog.String("item_key", res.Item.ItemKey),
		slog.String("url", res.URL),
	)

	if err := p.publisher.Publish(ctx, report.RunID, res.Item); err != nil {
		logger.Warn("publish failed",
			slog.String("item_key", res.Item.ItemKey),
			slog.Any("error", err),
		)
	}
}

func (p *Pipeline) fail(report *models.CrawlReport, rawURL string, stage models.Stage, err error, logger *slog.Logger) {
	label := scraper.ErrorTypeLabel(err)
	report.Failed++
	report.ErrorsByType[label]++
	report.Failures = append(report.Failures, models.Failure{
		URL:    rawURL,
		Stage:  stage,
		Kind:   label,
		Reason: err.Error(),
	})
	p.progress.addAttempt(false, label)
	p.metrics.IncError(label)
	logger.Warn("item failed",
		slog.String("url", rawURL),
		slog.String("stage", string(stage)),
		slog.String("error_type", label),
		slog.Any("error", err),
	)
}

func isFetchError(err error) bool {
	var fe *scraper.FetchError
	return errors.As(err, &fe)
}
