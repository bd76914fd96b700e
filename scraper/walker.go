package scraper

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/url"

	"github.com/aluiziolira/books-catalog-etl/parser"
)

// Link is a discovered detail page and the listing page it came from.
type Link struct {
	URL  string
	Page int
}

// Walker follows the paginated listing from a seed URL.
type Walker struct {
	fetcher      PageFetcher
	pageTemplate string
	maxPages     int
	metrics      *Metrics
}

// NewWalker builds a walker. pageTemplate is resolved against the seed URL
// with the 1-based page number (page 1 is the seed itself); maxPages caps
// the walk.
func NewWalker(fetcher PageFetcher, pageTemplate string, maxPages int, metrics *Metrics) *Walker {
	return &Walker{
		fetcher:      fetcher,
		pageTemplate: pageTemplate,
		maxPages:     maxPages,
		metrics:      metrics,
	}
}

// Page is one parsed listing page.
type Page struct {
	Number int
	URL    string
	Links  []string
}

// Walk lazily yields the detail links of every listing page, stopping when a
// page has no "next" marker. A listing failure is yielded once as a
// *ListingError and ends the sequence; reaching the page cap with a next
// marker still present yields ErrPageLimit.
func (w *Walker) Walk(ctx context.Context, seedURL string) iter.Seq2[Link, error] {
	return func(yield func(Link, error) bool) {
		for page, err := range w.Pages(ctx, seedURL) {
			if err != nil {
				yield(Link{}, err)
				return
			}
			for _, link := range page.Links {
				if !yield(Link{URL: link, Page: page.Number}, nil) {
					return
				}
			}
		}
	}
}

// Pages is Walk at page granularity. Pages with no links are still yielded.
func (w *Walker) Pages(ctx context.Context, seedURL string) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		seed, err := url.Parse(seedURL)
		if err != nil {
			yield(Page{}, &ListingError{URL: seedURL, Page: 1, Err: err})
			return
		}

		pageURL := seedURL
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(Page{}, err)
				return
			}

			raw, err := w.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				yield(Page{}, &ListingError{URL: pageURL, Page: page, Err: err})
				return
			}
			listing, err := parser.ParseListing(raw, pageURL)
			if err != nil {
				yield(Page{}, &ListingError{URL: pageURL, Page: page, Err: err})
				return
			}
			w.metrics.IncListingPages()
			slog.Debug("listing page walked",
				slog.Int("page", page),
				slog.String("url", pageURL),
				slog.Int("links", len(listing.Links)),
				slog.Bool("has_next", listing.HasNext),
			)

			if !yield(Page{Number: page, URL: pageURL, Links: listing.Links}, nil) {
				return
			}

			if !listing.HasNext {
				return
			}
			if page >= w.maxPages {
				slog.Warn("listing page limit reached",
					slog.Int("max_pages", w.maxPages),
					slog.String("url", pageURL),
				)
				yield(Page{}, ErrPageLimit)
				return
			}

			next, err := w.pageURL(seed, page+1)
			if err != nil {
				yield(Page{}, &ListingError{URL: pageURL, Page: page + 1, Err: err})
				return
			}
			pageURL = next
		}
	}
}

func (w *Walker) pageURL(seed *url.URL, page int) (string, error) {
	ref, err := url.Parse(fmt.Sprintf(w.pageTemplate, page))
	if err != nil {
		return "", fmt.Errorf("build page %d url: %w", page, err)
	}
	return seed.ResolveReference(ref).String(), nil
}
