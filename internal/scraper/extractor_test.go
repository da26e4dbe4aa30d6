package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidscanner/internal/models"
)

func newPage(t *testing.T, pageURL, markup string) *StaticPage {
	t.Helper()
	page, err := NewStaticPage(pageURL, markup)
	require.NoError(t, err)
	return page
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestMatchPrice(t *testing.T) {
	tests := []struct {
		text  string
		price string
		ok    bool
	}{
		{"$1,234.56", "$1,234.56", true},
		{"1234", "", false},
		{"$12.345", "$12", true},
		{"Current Bid: $4,250.00", "$4,250.00", true},
		{"$99.99", "$99.99", true},
		{"$500", "$500", true},
		{"USD 500", "", false},
		{"Buy now $7,000 or bid $6,500.50", "$7,000", true},
		{"$4,250.00USD", "$4,250.00", true},
		{"Bid $99.99x", "$99.99", true},
		{"$1,000.5", "$1,000", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			price, ok := MatchPrice(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.price, price)
		})
	}
}

func TestExtractCopartListing(t *testing.T) {
	page := newPage(t, "https://www.copart.com/lot/12345678", `
		<html><head><title>2015 GMC Yukon</title></head><body>
			<h1>2015 GMC Yukon Denali</h1>
			<span data-uname="lotsearchVin"> 1GKS1AKC8FR106564 </span>
			<div class="price-box">Current Bid: $4,250.00</div>
		</body></html>`)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result := NewExtractor(DefaultRegistry(), WithClock(fixedClock(ts))).Extract(context.Background(), page)

	require.NotNil(t, result.Vehicle)
	assert.Equal(t, "1GKS1AKC8FR106564", result.Vehicle.VIN)
	assert.Equal(t, "2015 GMC Yukon Denali", result.Vehicle.Title)
	require.Len(t, result.Bids, 1)
	assert.Equal(t, "$4,250.00", result.Bids[0].Price)
	assert.Equal(t, "Current Bid: $4,250.00", result.Bids[0].Text)
	assert.Contains(t, result.Bids[0].RawMarkup, `class="price-box"`)
	assert.Equal(t, "https://www.copart.com/lot/12345678", result.URL)
	assert.Equal(t, "2015 GMC Yukon", result.PageTitle)
	assert.Equal(t, ts, result.ScanTimestamp)
}

func TestExtractUnknownHost(t *testing.T) {
	page := newPage(t, "https://example.org/cars/1", `
		<html><body>
			<p>Nothing to see</p>
			<span class="price">$99.99</span>
		</body></html>`)

	result := NewExtractor(DefaultRegistry()).Extract(context.Background(), page)

	assert.Nil(t, result.Vehicle)
	require.Len(t, result.Bids, 1)
	assert.Equal(t, "$99.99", result.Bids[0].Price)
}

func TestExtractEmptyPage(t *testing.T) {
	page := newPage(t, "https://www.iaai.com/empty", "")

	result := NewExtractor(DefaultRegistry()).Extract(context.Background(), page)

	require.NotNil(t, result.Vehicle, "adapter still runs on a recognized host")
	assert.True(t, result.Vehicle.Empty())
	assert.NotNil(t, result.Bids)
	assert.Empty(t, result.Bids)
	assert.True(t, result.Scanned())
	assert.Equal(t, "https://www.iaai.com/empty", result.URL)
}

func TestExtractIsIdempotent(t *testing.T) {
	page := newPage(t, "https://copart.com/lot/1", `
		<div class="lot-title">2019 Honda Civic</div>
		<div class="lot-number">55667788</div>
		<div class="current-bid">$3,100</div>
		<div class="bid-history"><span class="amount">$2,900</span></div>`)

	first := NewExtractor(DefaultRegistry(), WithClock(fixedClock(time.Unix(100, 0)))).Extract(context.Background(), page)
	second := NewExtractor(DefaultRegistry(), WithClock(fixedClock(time.Unix(200, 0)))).Extract(context.Background(), page)

	assert.True(t, first.SameContent(second))
	assert.NotEqual(t, first.ScanTimestamp, second.ScanTimestamp)
}

func TestScanBidsKeepsNestedMatches(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(stringsReader(`
		<div class="bid-panel"><span class="bid-amount">$5,000</span></div>
		<div class="pricing">no price here</div>
		<div class="Price">$1.00</div>`))
	require.NoError(t, err)

	bids := ScanBids(doc)

	require.Len(t, bids, 2, "outer and inner element both match; capitalised class does not")
	assert.Equal(t, "$5,000", bids[0].Price)
	assert.Equal(t, "$5,000", bids[1].Price)
	assert.Contains(t, bids[0].RawMarkup, "bid-panel")
	assert.Contains(t, bids[1].RawMarkup, "bid-amount")
}

type brokenPage struct{}

func (brokenPage) URL() string   { return "https://www.manheim.com/listing" }
func (brokenPage) Title() string { return "Manheim" }
func (brokenPage) Document(context.Context) (*goquery.Document, error) {
	return nil, errors.New("target closed")
}

func TestExtractUnreadableDocument(t *testing.T) {
	result := NewExtractor(DefaultRegistry()).Extract(context.Background(), brokenPage{})

	assert.Equal(t, "https://www.manheim.com/listing", result.URL)
	assert.Equal(t, "Manheim", result.PageTitle)
	require.NotNil(t, result.Vehicle)
	assert.True(t, result.Vehicle.Empty())
	assert.Empty(t, result.Bids)
}

func TestExtractNeverFailsOnOddMarkup(t *testing.T) {
	markups := []string{
		"",
		"<",
		"<div class='bid'>",
		"<table><tr><td class=price>$1<td class=price>$2</table>",
		"<html><body><div class=\"bid\"><div class=\"bid\"><div class=\"bid\">$3</div></div></div>",
		"<svg class=\"amount\"><text>$4</text></svg>",
	}
	extractor := NewExtractor(DefaultRegistry())
	for _, markup := range markups {
		page := newPage(t, "https://adesa.com/x", markup)
		assert.NotPanics(t, func() {
			result := extractor.Extract(context.Background(), page)
			assert.NotNil(t, result.Bids)
		})
	}
}

func TestExtractWithoutRegistry(t *testing.T) {
	page := newPage(t, "https://www.copart.com/lot/1", `<span class="vin-number">VIN123</span>`)

	result := NewExtractor(nil).Extract(context.Background(), page)

	assert.Nil(t, result.Vehicle)
}

func TestNeverScannedSentinel(t *testing.T) {
	sentinel := models.NeverScanned()
	assert.False(t, sentinel.Scanned())
	assert.NotNil(t, sentinel.Bids)
}
