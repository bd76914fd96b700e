package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/books-catalog-etl/config"
	"github.com/aluiziolira/books-catalog-etl/models"
	"github.com/aluiziolira/books-catalog-etl/scraper"
	"github.com/aluiziolira/books-catalog-etl/store"
	"github.com/jarcoal/httpmock"
)

const testBaseURL = "http://example.test/"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL
	cfg.Parallelism = 3
	cfg.QueueSize = 4
	cfg.MaxRetries = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 4 * time.Millisecond
	cfg.Timeout = 2 * time.Second
	return cfg
}

// testSite serves a synthetic catalogue through httpmock.
type testSite struct {
	transport *httpmock.MockTransport
}

func newTestSite() *testSite {
	return &testSite{transport: httpmock.NewMockTransport()}
}

func listingURL(page int) string {
	if page == 1 {
		return testBaseURL
	}
	return fmt.Sprintf("%scatalogue/page-%d.html", testBaseURL, page)
}

func detailURL(slug string) string {
	return testBaseURL + "catalogue/" + slug + "/index.html"
}

func htmlResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return httpmock.ResponderFromResponse(resp)
}

// addListing registers listing pages; pages[i] holds the detail slugs of
// page i+1. Every page but the last advertises a next page.
func (s *testSite) addListing(pages ...[]string) {
	for i, slugs := range pages {
		page := i + 1
		var b strings.Builder
		b.WriteString(`<html><body><section><ol class="row">`)
		for _, slug := range slugs {
			href := slug + "/index.html"
			if page == 1 {
				href = "catalogue/" + href
			}
			fmt.Fprintf(&b, `<li><article class="product_pod"><h3><a href="%s" title="%s">%s</a></h3></article></li>`, href, slug, slug)
		}
		b.WriteString(`</ol>`)
		if page < len(pages) {
			fmt.Fprintf(&b, `<ul class="pager"><li class="next"><a href="page-%d.html">next</a></li></ul>`, page+1)
		}
		b.WriteString(`</section></body></html>`)
		s.transport.RegisterResponder(http.MethodGet, listingURL(page), htmlResponder(http.StatusOK, b.String()))
	}
}

// addItem serves a detail page for slug. An empty price omits the price
// element.
func (s *testSite) addItem(slug, upc, price string) {
	s.transport.RegisterResponder(http.MethodGet, detailURL(slug), htmlResponder(http.StatusOK, detailPage(slug, upc, price)))
}

func (s *testSite) calls(rawURL string) int {
	return s.transport.GetCallCountInfo()[http.MethodGet+" "+rawURL]
}

func detailPage(slug, upc, price string) string {
	priceHTML := ""
	if price != "" {
		priceHTML = `<p class="price_color">£` + price + `</p>`
	}
	return fmt.Sprintf(`<html><head>
<meta name="description" content="
    Synopsis of %[1]s.
" />
</head><body>
<ul class="breadcrumb">
  <li><a href="../../index.html">Home</a></li>
  <li><a href="../category/books_1/index.html">Books</a></li>
  <li><a href="../category/books/poetry_23/index.html">Poetry</a></li>
  <li class="active">%[1]s</li>
</ul>
<article class="product_page">
  <img src="../../media/cache/%[2]s.jpg" alt="%[1]s" />
  <h1>Title %[1]s</h1>
  %[3]s
  <p class="instock availability">In stock (7 available)</p>
  <p class="star-rating Four"></p>
  <table class="table table-striped">
    <tr><th>UPC</th><td>%[2]s</td></tr>
    <tr><th>Number of reviews</th><td>2</td></tr>
  </table>
</article>
</body></html>`, slug, upc, priceHTML)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "books.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestPipeline(t *testing.T, cfg *config.Config, site *testSite, st store.Store, opts ...Option) *Pipeline {
	t.Helper()
	fetcher, err := scraper.NewFetcher(cfg, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	fetcher.WithTransport(site.transport)

	p, err := New(cfg, fetcher.ForPhase(scraper.PhaseListing), fetcher, st, opts...)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

// flakyStore fails the first failures upserts of every key it is asked to
// fail.
type flakyStore struct {
	store.Store
	mu       sync.Mutex
	failures int
	keys     map[string]bool
	attempts map[string]int
}

func newFlakyStore(inner store.Store, failures int, keys ...string) *flakyStore {
	fs := &flakyStore{
		Store:    inner,
		failures: failures,
		keys:     make(map[string]bool),
		attempts: make(map[string]int),
	}
	for _, k := range keys {
		fs.keys[k] = true
	}
	return fs
}

func (fs *flakyStore) Upsert(ctx context.Context, item *models.CatalogItem) error {
	fs.mu.Lock()
	fs.attempts[item.ItemKey]++
	n := fs.attempts[item.ItemKey]
	fail := fs.keys[item.ItemKey] && (fs.failures < 0 || n <= fs.failures)
	fs.mu.Unlock()

	if fail {
		return &store.StoreError{Kind: store.Unreachable, Op: "upsert", ItemKey: item.ItemKey, Err: fmt.Errorf("connection reset")}
	}
	return fs.Store.Upsert(ctx, item)
}

func (fs *flakyStore) attemptsFor(key string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.attempts[key]
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (rp *recordingPublisher) Publish(_ context.Context, _ string, item *models.CatalogItem) error {
	rp.mu.Lock()
	rp.keys = append(rp.keys, item.ItemKey)
	rp.mu.Unlock()
	return nil
}

func (rp *recordingPublisher) Close() error { return nil }
