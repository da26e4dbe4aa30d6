package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a live or captured document the extractor can read
type Page interface {
	URL() string
	Title() string
	Document(ctx context.Context) (*goquery.Document, error)
}

// StaticPage is a Page backed by an HTML string. The document is parsed once.
type StaticPage struct {
	url string
	doc *goquery.Document
}

// NewStaticPage parses markup into a page that reports pageURL as its location
func NewStaticPage(pageURL, markup string) (*StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", pageURL, err)
	}
	return &StaticPage{url: pageURL, doc: doc}, nil
}

func (p *StaticPage) URL() string { return p.url }

// Title returns the text of the <title> element, like document.title
func (p *StaticPage) Title() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

func (p *StaticPage) Document(ctx context.Context) (*goquery.Document, error) {
	return p.doc, nil
}

// emptyDocument stands in when a page cannot be read
func emptyDocument() *goquery.Document {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body></body></html>"))
	return doc
}
