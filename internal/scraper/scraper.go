package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bidscanner/internal/models"
)

// PageLoader opens a URL and hands back something the extractor can read
type PageLoader interface {
	Load(ctx context.Context, pageURL string) (Page, error)
}

// Scraper runs one-shot scans of URLs outside any tab, e.g. from the CLI
type Scraper struct {
	loader    PageLoader
	extractor *Extractor
}

// New creates a scraper. A nil loader falls back to plain HTTP fetching,
// which only sees server-rendered markup.
func New(loader PageLoader, extractor *Extractor) *Scraper {
	if loader == nil {
		loader = NewHTTPLoader(nil)
	}
	return &Scraper{loader: loader, extractor: extractor}
}

// ScanURL loads pageURL and extracts it. Loading can fail; extraction cannot.
func (s *Scraper) ScanURL(ctx context.Context, pageURL string) (models.ExtractionResult, error) {
	page, err := s.loader.Load(ctx, pageURL)
	if err != nil {
		return models.NeverScanned(), fmt.Errorf("failed to load %s: %w", pageURL, err)
	}
	if c, ok := page.(io.Closer); ok {
		defer c.Close()
	}
	return s.extractor.Extract(ctx, page), nil
}

// HTTPLoader fetches pages with a plain HTTP GET
type HTTPLoader struct {
	client *http.Client
}

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewHTTPLoader wraps client, or a client with a 30s timeout when nil
func NewHTTPLoader(client *http.Client) *HTTPLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPLoader{client: client}
}

func (l *HTTPLoader) Load(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &StaticPage{url: resp.Request.URL.String(), doc: doc}, nil
}
