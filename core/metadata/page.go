package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageTitleFetcher reads the title a web page advertises for itself. It is
// the fallback when the media fetcher cannot name a URL.
type PageTitleFetcher struct {
	Client    *http.Client
	UserAgent string
}

func NewPageTitleFetcher() *PageTitleFetcher {
	return &PageTitleFetcher{
		Client:    &http.Client{Timeout: 15 * time.Second},
		UserAgent: "Mozilla/5.0 (compatible; Rippers/1.0)",
	}
}

// Title prefers og:title, then twitter:title, then <title>.
func (f *PageTitleFetcher) Title(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	for _, sel := range []string{`meta[property="og:title"]`, `meta[name="twitter:title"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title, nil
	}
	return "", fmt.Errorf("page has no title")
}
