package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bidscanner/internal/models"
)

// bidSelector is a coarse class-substring filter. It over-selects on purpose;
// the price pattern decides what is kept.
const bidSelector = `[class*="bid"], [class*="price"], [class*="amount"]`

// pricePattern matches "$" followed by digits and commas, with an optional
// two-digit cents part. A third digit after the cents voids them, so "$12.345"
// yields "$12" while "$4,250.00USD" keeps "$4,250.00". "1234" never matches.
var pricePattern = regexp.MustCompile(`(\$[\d,]+)(\.\d{2})?(\d)?`)

// MatchPrice returns the first currency-looking substring of text
func MatchPrice(text string) (string, bool) {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[3] != "" {
		return m[1], true
	}
	return m[1] + m[2], true
}

// Extractor runs the registered adapter for a page plus the page-wide bid scan
type Extractor struct {
	registry *Registry
	now      func() time.Time
	logger   logrus.FieldLogger
	tracer   trace.Tracer
}

// Option configures an Extractor
type Option func(*Extractor)

// WithClock replaces time.Now for scan timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLogger sets the logger used for scan diagnostics
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// NewExtractor creates an extractor over registry. A nil registry means no
// site adapters, so only the bid scan runs.
func NewExtractor(registry *Registry, opts ...Option) *Extractor {
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Extractor{
		registry: registry,
		now:      time.Now,
		logger:   logrus.StandardLogger(),
		tracer:   otel.Tracer("bidscanner/internal/scraper"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the adapter registry in use
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Extract scans page. It never fails: an unreadable document is scanned as an
// empty one and the result still carries url, title and timestamp.
func (e *Extractor) Extract(ctx context.Context, page Page) models.ExtractionResult {
	ctx, span := e.tracer.Start(ctx, "scraper.Extract", trace.WithAttributes(attribute.String("page.url", page.URL())))
	defer span.End()

	doc, err := page.Document(ctx)
	if err != nil || doc == nil {
		e.logger.WithError(err).WithField("url", page.URL()).Warn("Could not read page document, scanning empty page")
		doc = emptyDocument()
	}

	result := e.ExtractDocument(page.URL(), page.Title(), doc)
	span.SetAttributes(
		attribute.Bool("vehicle.found", result.Vehicle != nil),
		attribute.Int("bids.count", len(result.Bids)),
	)
	return result
}

// ExtractDocument scans an already parsed document
func (e *Extractor) ExtractDocument(pageURL, pageTitle string, doc *goquery.Document) (result models.ExtractionResult) {
	result = models.ExtractionResult{
		URL:           pageURL,
		PageTitle:     pageTitle,
		ScanTimestamp: e.now(),
		Bids:          []models.BidCandidate{},
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("url", pageURL).Errorf("Extraction aborted: %v", r)
		}
	}()

	host := hostname(pageURL)
	if name, adapter, ok := e.registry.Lookup(host); ok {
		vehicle := adapter.Extract(doc)
		result.Vehicle = &vehicle
		e.logger.WithFields(logrus.Fields{"site": name, "vin": vehicle.VIN}).Debug("Vehicle data extracted")
	}

	result.Bids = ScanBids(doc)
	e.logger.WithFields(logrus.Fields{
		"url":  pageURL,
		"host": host,
		"bids": len(result.Bids),
	}).Debug("Scan complete")
	return result
}

// ScanBids collects every bid/price/amount element whose text looks like a price,
// in document order. Nested matches are kept as separate candidates.
func ScanBids(doc *goquery.Document) []models.BidCandidate {
	bids := []models.BidCandidate{}
	safeFind(doc.Selection, bidSelector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		price, ok := MatchPrice(text)
		if !ok {
			return
		}
		markup, err := goquery.OuterHtml(s)
		if err != nil {
			markup = ""
		}
		bids = append(bids, models.BidCandidate{
			RawMarkup: markup,
			Price:     price,
			Text:      text,
		})
	})
	return bids
}

func hostname(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
