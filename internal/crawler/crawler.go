// Package crawler implements a bounded, prefix-scoped crawl of a
// documentation site.
//
// A candidate URL is in scope only when its host matches the seed URL's host
// and its path starts with the seed's path prefix, which confines the crawl
// to a documentation subtree. Traversal is depth-first over an explicit
// stack with a shared visited set; budgets on depth and total pages bound
// the walk. Fetch errors are isolated per URL and never abort the crawl.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Page is one fully extracted documentation page. Its identity is the
// normalized URL (fragment stripped, trailing slash stripped).
type Page struct {
	URL     string
	Title   string
	Content string
}

// ErrOutOfScope reports a seed URL whose crawl scope cannot be established.
var ErrOutOfScope = errors.New("url out of crawl scope")

const defaultUserAgent = "DocentBot/1.0"

// blockedExtensions are asset/binary types never worth fetching.
var blockedExtensions = []string{
	".pdf", ".zip", ".tar", ".gz", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".css", ".js",
}

// Config bounds a crawl.
type Config struct {
	MaxPages int           // total page budget; default 500
	MaxDepth int           // link distance from the seed; default 5
	Timeout  time.Duration // per-request timeout; default 30s
	// RequestsPerSecond paces fetches; 0 means a conservative default.
	RequestsPerSecond float64
}

func (c *Config) applyDefaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 500
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 4
	}
}

// Crawler walks a documentation subtree. The visited set is internal;
// construct a new Crawler for each run.
type Crawler struct {
	base       *url.URL
	pathPrefix string
	cfg        Config
	client     *http.Client
	limiter    *rate.Limiter
	visited    map[string]bool
	logger     *slog.Logger
}

// New creates a Crawler rooted at baseURL.
func New(baseURL string, cfg Config, logger *slog.Logger) (*Crawler, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrOutOfScope, base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrOutOfScope, baseURL)
	}

	prefix := strings.TrimSuffix(base.Path, "/")
	if prefix == "" {
		prefix = "/"
	}

	return &Crawler{
		base:       base,
		pathPrefix: prefix,
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		visited:    make(map[string]bool),
		logger:     logger,
	}, nil
}

type frame struct {
	url   string
	depth int
}

// Crawl walks the subtree and sends extracted pages on the returned channel.
// The channel is closed when the crawl finishes, runs out of budget, or ctx
// is cancelled. Crawl is single-use: the visited set persists across calls.
func (c *Crawler) Crawl(ctx context.Context) <-chan Page {
	out := make(chan Page)
	go func() {
		defer close(out)
		c.run(ctx, out)
	}()
	return out
}

func (c *Crawler) run(ctx context.Context, out chan<- Page) {
	c.logger.Info("starting crawl",
		"base", c.base.String(), "prefix", c.pathPrefix,
		"max_pages", c.cfg.MaxPages, "max_depth", c.cfg.MaxDepth)

	stack := []frame{{url: normalize(c.base), depth: 0}}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			return
		}

		top := len(stack) - 1
		f := stack[top]
		stack = stack[:top]

		if f.depth > c.cfg.MaxDepth {
			continue
		}
		if len(c.visited) >= c.cfg.MaxPages {
			break
		}
		if c.visited[f.url] {
			continue
		}

		parsed, err := url.Parse(f.url)
		if err != nil || !c.inScope(parsed) {
			continue
		}
		c.visited[f.url] = true

		page, links, err := c.fetch(ctx, f.url)
		if err != nil {
			// Per-URL isolation: report and keep walking other branches.
			c.logger.Warn("page fetch failed", "url", f.url, "error", err)
			continue
		}

		if page != nil && strings.TrimSpace(page.Content) != "" {
			c.logger.Debug("crawled page", "url", f.url, "visited", len(c.visited))
			select {
			case out <- *page:
			case <-ctx.Done():
				return
			}
		}

		// Push in reverse so the first link on the page is explored first.
		next := f.depth + 1
		for i := len(links) - 1; i >= 0; i-- {
			if !c.visited[links[i]] {
				stack = append(stack, frame{url: links[i], depth: next})
			}
		}
	}

	c.logger.Info("crawl complete", "pages_visited", len(c.visited))
}

// fetch retrieves one URL and returns the extracted page (nil for non-HTML
// responses) and its in-scope outbound links.
func (c *Crawler) fetch(ctx context.Context, pageURL string) (*Page, []string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, nil, nil
	}

	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing html: %w", err)
	}

	page := &Page{
		URL:     pageURL,
		Title:   extractTitle(doc),
		Content: extractContent(doc, pageURL),
	}

	links := c.extractLinks(doc, pageURL)
	return page, links, nil
}

// inScope reports whether a URL belongs to the crawl subtree.
func (c *Crawler) inScope(u *url.URL) bool {
	if u.Host != c.base.Host {
		return false
	}

	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, c.pathPrefix) {
		return false
	}

	lower := strings.ToLower(path)
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return true
}

// normalize strips the fragment and any trailing slash, producing the URL
// identity used by the visited set.
func normalize(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	return strings.TrimSuffix(clean.String(), "/")
}
