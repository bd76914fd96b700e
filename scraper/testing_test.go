package scraper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aluiziolira/books-catalog-etl/config"
	"github.com/jarcoal/httpmock"
)

const testBaseURL = "http://example.test/"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBaseURL
	cfg.Parallelism = 2
	return cfg
}

func newMockedFetcher(t *testing.T) (*Fetcher, *httpmock.MockTransport) {
	t.Helper()
	f, err := NewFetcher(testConfig(), NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)
	return f, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func listingPageURL(page int) string {
	if page == 1 {
		return testBaseURL
	}
	return fmt.Sprintf("%scatalogue/page-%d.html", testBaseURL, page)
}

// buildListingPage renders a listing with perPage products. Links on the
// first page carry the catalogue/ prefix like the real site root does.
func buildListingPage(page, perPage int, hasNext bool) string {
	var builder strings.Builder
	builder.WriteString("<html><body><section><ol class=\"row\">")

	prefix := ""
	if page == 1 {
		prefix = "catalogue/"
	}
	for i := 1; i <= perPage; i++ {
		id := (page-1)*perPage + i
		builder.WriteString("<li><article class=\"product_pod\">")
		fmt.Fprintf(&builder, "<h3><a href=\"%sbook-%d/index.html\" title=\"Book %d\">Book %d</a></h3>", prefix, id, id, id)
		fmt.Fprintf(&builder, "<p class=\"price_color\">&pound;%0.2f</p>", float64(id))
		builder.WriteString("</article></li>")
	}
	builder.WriteString("</ol>")

	if hasNext {
		fmt.Fprintf(&builder, "<ul class=\"pager\"><li class=\"next\"><a href=\"page-%d.html\">next</a></li></ul>", page+1)
	}
	builder.WriteString("</section></body></html>")
	return builder.String()
}
