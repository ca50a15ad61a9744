package crawler

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

func parseDocument(body io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(body)
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// extractContent walks the main content region and renders headings and code
// blocks with lightweight markers so chunk boundaries keep their structure.
// When the structural walk finds nothing it falls back to readability
// extraction over the document's own HTML.
func extractContent(doc *goquery.Document, pageURL string) string {
	clone := doc.Clone()
	clone.Find("script, style, nav, header, footer, aside").Remove()

	root := clone.Find("main").First()
	if root.Length() == 0 {
		root = clone.Find("article").First()
	}
	if root.Length() == 0 {
		root = clone.Find("body").First()
	}

	var b strings.Builder
	root.Find("h1, h2, h3, h4, p, li, pre, code").Each(func(_ int, sel *goquery.Selection) {
		// Code nested inside pre is covered by the pre block itself.
		if goquery.NodeName(sel) == "code" && sel.ParentsFiltered("pre").Length() > 0 {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(sel) {
		case "h1", "h2", "h3", "h4":
			b.WriteString("\n## " + text + "\n")
		case "pre":
			b.WriteString("\n```\n" + text + "\n```\n")
		default:
			b.WriteString(text + "\n")
		}
	})

	content := strings.TrimSpace(b.String())
	if content != "" {
		return content
	}
	return readabilityFallback(doc, pageURL)
}

func readabilityFallback(doc *goquery.Document, pageURL string) string {
	html, err := doc.Html()
	if err != nil {
		return ""
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = nil
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// extractLinks collects the page's in-scope outbound links, normalized and
// deduplicated, in document order.
func (c *Crawler) extractLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil || !c.inScope(resolved) {
			return
		}

		link := normalize(resolved)
		if seen[link] || c.visited[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links
}
