package scraper

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"bidscanner/internal/models"
)

// Adapter reads a vehicle record out of a document for one auction site.
// Implementations must be pure reads and must not fail: a missing element
// simply leaves its field empty.
type Adapter interface {
	Extract(doc *goquery.Document) models.VehicleRecord
}

// AdapterFunc lets a plain function act as an Adapter
type AdapterFunc func(doc *goquery.Document) models.VehicleRecord

func (f AdapterFunc) Extract(doc *goquery.Document) models.VehicleRecord {
	return f(doc)
}

// HostMatcher decides whether an adapter applies to a hostname
type HostMatcher func(hostname string) bool

// HostContains matches any hostname containing substr, so "copart.com"
// also covers "www.copart.com" and "g2.copart.com".
func HostContains(substr string) HostMatcher {
	return func(hostname string) bool {
		return strings.Contains(hostname, substr)
	}
}

type registration struct {
	name    string
	match   HostMatcher
	adapter Adapter
}

// Registry is an ordered list of site adapters. Lookup walks it in
// registration order and the first matching entry wins.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends an adapter. Later registrations only win for hosts that no
// earlier entry matches.
func (r *Registry) Register(name string, match HostMatcher, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registration{name: name, match: match, adapter: adapter})
}

// Lookup returns the first adapter whose matcher accepts hostname
func (r *Registry) Lookup(hostname string) (string, Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.match(hostname) {
			return e.name, e.adapter, true
		}
	}
	return "", nil, false
}

// Names lists registered adapters in lookup order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.name)
	}
	return names
}

// Supports reports whether any adapter is registered for hostname
func (r *Registry) Supports(hostname string) bool {
	_, _, ok := r.Lookup(hostname)
	return ok
}

// SupportsURL reports whether an adapter is registered for pageURL's host
func (r *Registry) SupportsURL(pageURL string) bool {
	return r.Supports(hostname(pageURL))
}
