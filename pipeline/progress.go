package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// progress mirrors the report counters for readers outside the run.
type progress struct {
	mu         sync.Mutex
	discovered int64
	attempted  int64
	succeeded  int64
	failed     int64
	errors     map[string]int
}

func newProgress() *progress {
	return &progress{errors: make(map[string]int)}
}

func (p *progress) reset() {
	p.mu.Lock()
	p.discovered, p.attempted, p.succeeded, p.failed = 0, 0, 0, 0
	p.errors = make(map[string]int)
	p.mu.Unlock()
}

func (p *progress) addDiscovered() {
	p.mu.Lock()
	p.discovered++
	p.mu.Unlock()
}

func (p *progress) addAttempt(ok bool, errorType string) {
	p.mu.Lock()
	p.attempted++
	if ok {
		p.succeeded++
	} else {
		p.failed++
		p.errors[errorType]++
	}
	p.mu.Unlock()
}

func (p *progress) snapshot() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	errs := make(map[string]int, len(p.errors))
	for k, v := range p.errors {
		errs[k] = v
	}

	return map[string]interface{}{
		"discovered": p.discovered,
		"attempted":  p.attempted,
		"succeeded":  p.succeeded,
		"failed":     p.failed,
		"errors":     errs,
	}
}

// GetMetrics returns a snapshot of the running counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.progress.snapshot()
}

// StartMetricsReporting logs progress every interval until ctx is done.
func (p *Pipeline) StartMetricsReporting(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m := p.GetMetrics()
				p.logger.Info("crawl progress",
					slog.Int64("discovered", m["discovered"].(int64)),
					slog.Int64("attempted", m["attempted"].(int64)),
					slog.Int64("succeeded", m["succeeded"].(int64)),
					slog.Int64("failed", m["failed"].(int64)),
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
