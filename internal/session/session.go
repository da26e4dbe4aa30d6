// Package session holds the most recent extraction result for one tab.
package session

import (
	"sync"

	"bidscanner/internal/models"
)

// Session keeps exactly one result. Each RecordScan replaces it outright,
// so a later, emptier scan overwrites a richer earlier one.
type Session struct {
	mu      sync.RWMutex
	current models.ExtractionResult
	scanned bool
	scans   int
	changes int
}

// New returns a session that has not seen a scan yet
func New() *Session {
	return &Session{}
}

// RecordScan replaces the held result
func (s *Session) RecordScan(result models.ExtractionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanned || !s.current.SameContent(result) {
		s.changes++
	}
	s.current = result
	s.scanned = true
	s.scans++
}

// CurrentResult returns the last recorded result, or models.NeverScanned()
func (s *Session) CurrentResult() models.ExtractionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.scanned {
		return models.NeverScanned()
	}
	return s.current
}

// Scans counts how many results have been recorded
func (s *Session) Scans() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scans
}

// Changes counts recorded results that differed from the one before them
func (s *Session) Changes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changes
}
