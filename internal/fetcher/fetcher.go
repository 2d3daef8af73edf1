package fetcher

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pbaille/listkeep/internal/input"
)

// MaxBodySize caps how much of a response is read
const MaxBodySize = 5 * 1024 * 1024

// Payload is what a URL yields for import: either a whole exported
// document, or loose item texts scraped from an HTML list.
type Payload struct {
	Document string
	Items    []string
}

// Client fetches import sources over HTTP
type Client struct {
	HTTP *http.Client
}

// New returns a Client with a 30 second timeout
func New() *Client {
	return &Client{HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch retrieves rawURL. JSON responses are returned as a document; HTML
// responses yield the text of every <li>.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Payload, error) {
	// Validate URL
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "listkeep/1.0")
	req.Header.Set("Accept", "application/json, text/html;q=0.9")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "text/html":
		items := ListItems(string(body))
		if len(items) == 0 {
			return nil, fmt.Errorf("no list items found")
		}
		return &Payload{Items: items}, nil
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"),
		strings.HasPrefix(strings.TrimSpace(string(body)), "{"):
		return &Payload{Document: string(body)}, nil
	}
	return nil, fmt.Errorf("unsupported content type %q", mediaType)
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://")
}

// ListItems parses HTML and returns the sanitized text of each <li>, in
// document order. Nested lists contribute their own entries.
func ListItems(htmlContent string) []string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	var items []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "li" {
			if text := input.SanitizeItem(ownText(n)); text != "" {
				items = append(items, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return items
}

// ownText collects the text under n, skipping nested lists and non-content
// elements
func ownText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "ul", "ol", "script", "style":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c)
	}
	return sb.String()
}
