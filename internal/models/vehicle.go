package models

import "time"

// VehicleRecord holds whatever a site adapter managed to read off a listing page.
// Every field is the raw trimmed text of the matched element; a field is empty
// when none of the adapter's selectors matched.
type VehicleRecord struct {
	VIN        string `json:"vin,omitempty"`
	Title      string `json:"title,omitempty"`
	CurrentBid string `json:"currentBid,omitempty"`
	LotNumber  string `json:"lotNumber,omitempty"`
}

// Empty reports whether no field was extracted
func (v VehicleRecord) Empty() bool {
	return v.VIN == "" && v.Title == "" && v.CurrentBid == "" && v.LotNumber == ""
}

// BidCandidate is one page element whose text looked like a currency amount
type BidCandidate struct {
	RawMarkup string `json:"rawMarkup"` // outerHTML of the element
	Price     string `json:"price"`     // first currency match, e.g. "$4,250.00"
	Text      string `json:"text"`      // trimmed textContent
}

// ExtractionResult is the unit exchanged between the tab agent, the background
// worker and the panel. Vehicle is nil when no adapter is registered for the host.
type ExtractionResult struct {
	URL           string         `json:"url"`
	PageTitle     string         `json:"pageTitle"`
	ScanTimestamp time.Time      `json:"scanTimestamp,omitzero"`
	Vehicle       *VehicleRecord `json:"vehicle,omitempty"`
	Bids          []BidCandidate `json:"bids"`
}

// NeverScanned is the value reported before the first scan of a page completes
func NeverScanned() ExtractionResult {
	return ExtractionResult{Bids: []BidCandidate{}}
}

// Scanned reports whether r came from an actual scan rather than NeverScanned
func (r ExtractionResult) Scanned() bool {
	return !r.ScanTimestamp.IsZero()
}

// SameContent compares two results ignoring the scan timestamp
func (r ExtractionResult) SameContent(other ExtractionResult) bool {
	if r.URL != other.URL || r.PageTitle != other.PageTitle {
		return false
	}
	if (r.Vehicle == nil) != (other.Vehicle == nil) {
		return false
	}
	if r.Vehicle != nil && *r.Vehicle != *other.Vehicle {
		return false
	}
	if len(r.Bids) != len(other.Bids) {
		return false
	}
	for i := range r.Bids {
		if r.Bids[i] != other.Bids[i] {
			return false
		}
	}
	return true
}
