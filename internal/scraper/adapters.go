package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bidscanner/internal/models"
)

// Field names understood by SelectorAdapter
const (
	FieldVIN        = "vin"
	FieldTitle      = "title"
	FieldCurrentBid = "currentBid"
	FieldLotNumber  = "lotNumber"
)

// FieldRule is a prioritized selector chain for one vehicle field
type FieldRule struct {
	Field     string
	Selectors []string
}

// SelectorAdapter fills each field from the first selector in its chain that
// finds an element, using that element's trimmed text.
type SelectorAdapter struct {
	Rules []FieldRule
}

func (a SelectorAdapter) Extract(doc *goquery.Document) models.VehicleRecord {
	var vehicle models.VehicleRecord
	for _, rule := range a.Rules {
		text, ok := firstMatchText(doc, rule.Selectors)
		if !ok {
			continue
		}
		setField(&vehicle, rule.Field, text)
	}
	return vehicle
}

// firstMatchText returns the trimmed text of the first element matched by the
// first selector in the chain that matches anything.
func firstMatchText(doc *goquery.Document, selectors []string) (string, bool) {
	for _, selector := range selectors {
		sel := safeFind(doc.Selection, selector)
		if sel.Length() == 0 {
			continue
		}
		return strings.TrimSpace(sel.First().Text()), true
	}
	return "", false
}

// safeFind treats a selector that cascadia cannot handle as matching nothing
func safeFind(root *goquery.Selection, selector string) (sel *goquery.Selection) {
	defer func() {
		if r := recover(); r != nil {
			sel = root.Slice(0, 0)
		}
	}()
	return root.Find(selector)
}

func setField(v *models.VehicleRecord, field, text string) {
	switch field {
	case FieldVIN:
		v.VIN = text
	case FieldTitle:
		v.Title = text
	case FieldCurrentBid:
		v.CurrentBid = text
	case FieldLotNumber:
		v.LotNumber = text
	}
}

var copartAdapter = SelectorAdapter{Rules: []FieldRule{
	{Field: FieldVIN, Selectors: []string{
		`[data-uname="lotsearchVin"]`,
		".vin-number",
		`[data-uname="vin"]`,
	}},
	{Field: FieldTitle, Selectors: []string{
		`[data-uname="lotsearchTitle"]`,
		".lot-title",
		"h1",
	}},
	{Field: FieldCurrentBid, Selectors: []string{
		`[data-uname="lotsearchCurrentbid"]`,
		".current-bid",
		".bid-amount",
	}},
	{Field: FieldLotNumber, Selectors: []string{
		`[data-uname="lotsearchLotnumber"]`,
		".lot-number",
	}},
}}

var iaaiAdapter = SelectorAdapter{Rules: []FieldRule{
	{Field: FieldVIN, Selectors: []string{".vin-number", `[data-testid="vin"]`}},
	{Field: FieldTitle, Selectors: []string{".vehicle-title", "h1"}},
}}

var manheimAdapter = SelectorAdapter{Rules: []FieldRule{
	{Field: FieldVIN, Selectors: []string{".vin", `[data-field="vin"]`}},
}}

var adesaAdapter = SelectorAdapter{Rules: []FieldRule{
	{Field: FieldVIN, Selectors: []string{".vin-number", `[data-field="vin"]`}},
}}

// DefaultRegistry registers the built-in auction sites in lookup order
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("copart", HostContains("copart.com"), copartAdapter)
	r.Register("iaai", HostContains("iaai.com"), iaaiAdapter)
	r.Register("manheim", HostContains("manheim.com"), manheimAdapter)
	r.Register("adesa", HostContains("adesa.com"), adesaAdapter)
	return r
}
