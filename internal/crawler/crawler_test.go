package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxPages:          50,
		MaxDepth:          5,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
	}
}

func collect(t *testing.T, c *Crawler) []Page {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var pages []Page
	for p := range c.Crawl(ctx) {
		pages = append(pages, p)
	}
	return pages
}

func serveSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlStaysWithinPrefix(t *testing.T) {
	srv := serveSite(t, map[string]string{
		"/docs": `<html><head><title>Docs</title></head><body><main>
			<h1>Docs</h1>
			<a href="/docs/guide">guide</a>
			<a href="/blog/post">blog</a>
			<a href="https://other.example.com/docs/x">external</a>
			<a href="/docs/manual.pdf">pdf</a>
		</main></body></html>`,
		"/docs/guide": `<html><head><title>Guide</title></head><body><main>
			<p>guide content here</p>
		</main></body></html>`,
		"/blog/post": `<html><body><main><p>should never be fetched</p></main></body></html>`,
	})

	c, err := New(srv.URL+"/docs", testConfig(), nil)
	require.NoError(t, err)

	pages := collect(t, c)
	require.Len(t, pages, 2)

	urls := []string{pages[0].URL, pages[1].URL}
	assert.Contains(t, urls, srv.URL+"/docs")
	assert.Contains(t, urls, srv.URL+"/docs/guide")
}

func TestCrawlRespectsPageBudget(t *testing.T) {
	site := make(map[string]string)
	for i := range 10 {
		next := fmt.Sprintf("/docs/p%d", i+1)
		site[fmt.Sprintf("/docs/p%d", i)] = fmt.Sprintf(
			`<html><body><main><p>page %d body text</p><a href=%q>next</a></main></body></html>`, i, next)
	}
	srv := serveSite(t, site)

	cfg := testConfig()
	cfg.MaxPages = 3
	c, err := New(srv.URL+"/docs/p0", cfg, nil)
	require.NoError(t, err)

	pages := collect(t, c)
	assert.Len(t, pages, 3)
}

func TestCrawlRespectsDepthBudget(t *testing.T) {
	site := make(map[string]string)
	for i := range 10 {
		next := fmt.Sprintf("/docs/d%d", i+1)
		site[fmt.Sprintf("/docs/d%d", i)] = fmt.Sprintf(
			`<html><body><main><p>depth %d body text</p><a href=%q>deeper</a></main></body></html>`, i, next)
	}
	srv := serveSite(t, site)

	cfg := testConfig()
	cfg.MaxDepth = 2
	c, err := New(srv.URL+"/docs/d0", cfg, nil)
	require.NoError(t, err)

	// Depth 0, 1 and 2 are reachable.
	pages := collect(t, c)
	assert.Len(t, pages, 3)
}

func TestCrawlSurvivesFetchErrors(t *testing.T) {
	srv := serveSite(t, map[string]string{
		"/docs": `<html><body><main>
			<p>root body text</p>
			<a href="/docs/missing">missing</a>
			<a href="/docs/ok">ok</a>
		</main></body></html>`,
		"/docs/ok": `<html><body><main><p>still reachable</p></main></body></html>`,
	})

	c, err := New(srv.URL+"/docs", testConfig(), nil)
	require.NoError(t, err)

	pages := collect(t, c)
	require.Len(t, pages, 2)
	assert.Equal(t, srv.URL+"/docs/ok", pages[1].URL)
}

func TestCrawlDeduplicatesByNormalizedURL(t *testing.T) {
	srv := serveSite(t, map[string]string{
		"/docs": `<html><body><main>
			<p>root body text</p>
			<a href="/docs/page">plain</a>
			<a href="/docs/page/">trailing slash</a>
			<a href="/docs/page#section">fragment</a>
		</main></body></html>`,
		"/docs/page": `<html><body><main><p>page body text</p></main></body></html>`,
	})

	c, err := New(srv.URL+"/docs", testConfig(), nil)
	require.NoError(t, err)

	pages := collect(t, c)
	assert.Len(t, pages, 2)
}

func TestCrawlExtractsStructuredContent(t *testing.T) {
	srv := serveSite(t, map[string]string{
		"/docs": `<html><head><title>API Reference</title></head><body>
			<nav>navigation junk</nav>
			<main>
				<h2>Getting Started</h2>
				<p>Install the client library.</p>
				<pre>go get example.com/client</pre>
			</main>
			<footer>footer junk</footer>
		</body></html>`,
	})

	c, err := New(srv.URL+"/docs", testConfig(), nil)
	require.NoError(t, err)

	pages := collect(t, c)
	require.Len(t, pages, 1)

	p := pages[0]
	assert.Equal(t, "API Reference", p.Title)
	assert.Contains(t, p.Content, "## Getting Started")
	assert.Contains(t, p.Content, "Install the client library.")
	assert.Contains(t, p.Content, "```\ngo get example.com/client\n```")
	assert.NotContains(t, p.Content, "navigation junk")
	assert.NotContains(t, p.Content, "footer junk")
}

func TestCrawlSkipsNonHTMLResponses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><main><p>root text</p><a href="/docs/data">data</a></main></body></html>`))
	})
	mux.HandleFunc("/docs/data", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"not": "html"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/docs", testConfig(), nil)
	require.NoError(t, err)

	pages := collect(t, c)
	require.Len(t, pages, 1)
	assert.Equal(t, srv.URL+"/docs", pages[0].URL)
}

func TestNewRejectsBadSeeds(t *testing.T) {
	_, err := New("ftp://example.com/docs", testConfig(), nil)
	assert.ErrorIs(t, err, ErrOutOfScope)

	_, err = New("/just/a/path", testConfig(), nil)
	assert.ErrorIs(t, err, ErrOutOfScope)
}

func TestInScope(t *testing.T) {
	c, err := New("https://example.com/docs", testConfig(), nil)
	require.NoError(t, err)

	cases := []struct {
		raw  string
		want bool
	}{
		{"https://example.com/docs", true},
		{"https://example.com/docs/", true},
		{"https://example.com/docs/a/b", true},
		{"https://example.com/blog", false},
		{"https://other.example.com/docs", false},
		{"https://example.com/docs/file.pdf", false},
		{"https://example.com/docs/image.PNG", false},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.want, c.inScope(u), tc.raw)
	}
}
