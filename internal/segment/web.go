package segment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/kaikaijiang/Instant-RAG/internal/domain"
)

// DefaultFetchTimeout bounds a single page download.
const DefaultFetchTimeout = 60 * time.Second

// NormalizeURL produces the canonical form used both to deduplicate
// re-ingestion requests and to build chunk-id prefixes: https scheme, no
// trailing slash, no utm_* query parameters, no fragment.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid URL format", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", domain.ErrInvalidURL
	}

	scheme := parsed.Scheme
	if scheme == "http" || scheme == "https" {
		scheme = "https"
	}

	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		path = "/"
	}

	query := parsed.Query()
	for key := range query {
		if strings.HasPrefix(key, "utm_") {
			query.Del(key)
		}
	}

	normalized := url.URL{
		Scheme:   scheme,
		Host:     parsed.Host,
		Path:     path,
		RawQuery: query.Encode(),
	}
	return normalized.String(), nil
}

// ValidateURL reports whether the string parses with both scheme and host.
func ValidateURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	return err == nil && parsed.Scheme != "" && parsed.Host != ""
}

// WebFetcher downloads pages and segments their readable text. Outbound
// requests share a rate limiter so batches of URL ingestions stay polite.
type WebFetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	splitter *RecursiveSplitter
}

// NewWebFetcher builds a fetcher with the given timeout (zero means
// DefaultFetchTimeout) and a limit of two requests per second.
func NewWebFetcher(timeout time.Duration) *WebFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &WebFetcher{
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(2), 2),
		splitter: NewRecursiveSplitter(DefaultChunkSize, DefaultOverlap),
	}
}

// Fetch downloads the page at rawURL and returns its pieces, the page title,
// and the normalized URL the pieces are keyed on. Web pages are a single
// logical page without pagination.
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string) ([]Piece, string, string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, "", "", err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalized, nil)
	if err != nil {
		return nil, "", "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to fetch %s: %w", normalized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", "", fmt.Errorf("failed to fetch %s: status %d", normalized, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read %s: %w", normalized, err)
	}

	title, text, err := ExtractReadableText(string(body))
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to parse %s: %w", normalized, err)
	}
	if title == "" {
		title = "Untitled Web Page"
	}

	chunks := f.splitter.Split(CleanText(text))
	prefix := chunkIDPrefix(normalized)

	pieces := make([]Piece, 0, len(chunks))
	for i, chunk := range chunks {
		pieces = append(pieces, Piece{
			ChunkID:    fmt.Sprintf("%s_c%d", prefix, i+1),
			Text:       chunk,
			SourceType: domain.SourceTypeWeb,
			DocName:    normalized,
		})
	}
	return pieces, title, normalized, nil
}

func chunkIDPrefix(normalizedURL string) string {
	prefix := strings.ReplaceAll(normalizedURL, "://", "_")
	return strings.ReplaceAll(prefix, "/", "_")
}

// ExtractReadableText strips script, style, nav, footer, header, and hidden
// elements, then extracts text preferring <main>, then <article>, then
// <body>. Returns the page title and the extracted text.
func ExtractReadableText(rawHTML string) (string, string, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", "", err
	}

	title := findTitle(root)
	pruneNoise(root)

	content := findFirstElement(root, "main")
	if content == nil {
		content = findFirstElement(root, "article")
	}
	if content == nil {
		content = findFirstElement(root, "body")
	}
	if content == nil {
		content = root
	}

	var sb strings.Builder
	collectText(content, &sb)
	return title, sb.String(), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func pruneNoise(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if isNoiseNode(c) {
			n.RemoveChild(c)
			continue
		}
		pruneNoise(c)
	}
}

func isNoiseNode(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "script", "style", "nav", "footer", "header", "noscript":
		return true
	}
	for _, attr := range n.Attr {
		if attr.Key == "hidden" {
			return true
		}
		if attr.Key == "style" {
			style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
			if strings.Contains(style, "display:none") {
				return true
			}
		}
	}
	return false
}

func findFirstElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirstElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
