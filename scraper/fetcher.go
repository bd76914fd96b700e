// Package scraper holds the network side of a crawl: fetching pages and
// walking the paginated listing.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/books-catalog-etl/config"
	"github.com/gocolly/colly/v2"
)

const (
	ctxStatus = "status"
	ctxBody   = "body"
)

// Phase labels requests in metrics.
const (
	PhaseListing = "listing"
	PhaseDetail  = "detail"
)

// PageFetcher performs a single GET and returns the response body.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Fetcher is a PageFetcher backed by a synchronous colly collector. Every
// call is one attempt; retry policy belongs to the caller.
type Fetcher struct {
	collector *colly.Collector
	metrics   *Metrics
	phase     string
}

// NewFetcher builds a fetcher restricted to the configured base host, with
// the configured timeout, pace and user agent.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.Parallelism + 1,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxStatus, r.StatusCode)
		r.Ctx.Put(ctxBody, r.Body)
	})

	return &Fetcher{collector: collector, metrics: metrics, phase: PhaseDetail}, nil
}

// WithTransport swaps the HTTP transport used by the collector.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// ForPhase returns a fetcher sharing the collector whose requests are
// counted under phase.
func (f *Fetcher) ForPhase(phase string) *Fetcher {
	clone := *f
	clone.phase = phase
	return &clone
}

// Fetch issues one GET for rawURL. Non-2xx responses come back as a
// *FetchError carrying the status code.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx := colly.NewContext()
	f.metrics.IncRequest(f.phase)
	start := time.Now()
	err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil)
	f.metrics.ObserveDuration(time.Since(start))

	status, _ := reqCtx.GetAny(ctxStatus).(int)
	if err != nil {
		return nil, classifyError(rawURL, err, status)
	}
	if status == 0 {
		return nil, &FetchError{Kind: KindNetwork, URL: rawURL, Err: errors.New("no response received")}
	}
	if status < 200 || status > 299 {
		return nil, classifyError(rawURL, nil, status)
	}

	body, _ := reqCtx.GetAny(ctxBody).([]byte)
	return body, nil
}
