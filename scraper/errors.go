package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchErrorKind classifies page fetch failures.
type FetchErrorKind string

const (
	KindTimeout    FetchErrorKind = "timeout"
	KindHTTPStatus FetchErrorKind = "http_status"
	KindNetwork    FetchErrorKind = "network"
)

// FetchError reports a failed GET. StatusCode is set for KindHTTPStatus.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed: timeouts,
// network failures, rate limiting and 5xx responses.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindHTTPStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable *FetchError.
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable()
}

// ListingError is a fatal failure on a listing page: without it the set of
// detail links cannot be trusted to be complete.
type ListingError struct {
	URL  string
	Page int
	Err  error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("listing page %d (%s): %v", e.Page, e.URL, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// ErrPageLimit is yielded by Walk when the page cap is reached while the
// listing still advertises a next page.
var ErrPageLimit = errors.New("scraper: listing page limit reached")

func classifyError(rawURL string, err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, URL: rawURL, Err: err}
	}

	if statusCode != 0 && (statusCode < 200 || statusCode > 299) {
		return &FetchError{Kind: KindHTTPStatus, URL: rawURL, StatusCode: statusCode, Err: err}
	}
	if err == nil {
		return nil
	}
	return &FetchError{Kind: KindNetwork, URL: rawURL, Err: err}
}

// ErrorTypeLabel maps an error to the label used in reports and metrics.
func ErrorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	var le *ListingError
	if errors.As(err, &le) {
		return "listing"
	}
	var labeled interface{ Label() string }
	if errors.As(err, &labeled) {
		return labeled.Label()
	}
	return "other"
}
