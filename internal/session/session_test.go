package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bidscanner/internal/models"
)

func TestCurrentResultBeforeAnyScan(t *testing.T) {
	s := New()

	result := s.CurrentResult()

	assert.False(t, result.Scanned())
	assert.NotNil(t, result.Bids)
	assert.Equal(t, 0, s.Scans())
}

func TestLastWriteWins(t *testing.T) {
	s := New()
	a := models.ExtractionResult{
		URL:           "https://www.copart.com/lot/1",
		ScanTimestamp: time.Unix(1, 0),
		Vehicle:       &models.VehicleRecord{VIN: "A", Title: "rich"},
		Bids:          []models.BidCandidate{{Price: "$1"}},
	}
	b := models.ExtractionResult{
		URL:           "https://www.copart.com/lot/1",
		ScanTimestamp: time.Unix(2, 0),
		Bids:          []models.BidCandidate{},
	}

	s.RecordScan(a)
	s.RecordScan(b)

	got := s.CurrentResult()
	assert.Equal(t, b, got)
	assert.Nil(t, got.Vehicle, "no merge with the earlier vehicle")
	assert.Equal(t, 2, s.Scans())
}

func TestConcurrentRecordAndRead(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.RecordScan(models.ExtractionResult{ScanTimestamp: time.Unix(int64(i+1), 0), Bids: []models.BidCandidate{}})
		}(i)
		go func() {
			defer wg.Done()
			_ = s.CurrentResult()
		}()
	}
	wg.Wait()

	assert.True(t, s.CurrentResult().Scanned())
	assert.Equal(t, 20, s.Scans())
}

func TestChangesIgnoreRepeatedContent(t *testing.T) {
	s := New()
	first := models.ExtractionResult{
		URL:           "https://www.copart.com/lot/1",
		ScanTimestamp: time.Unix(1, 0),
		Bids:          []models.BidCandidate{{Price: "$1"}},
	}
	same := first
	same.ScanTimestamp = time.Unix(2, 0)
	grown := same
	grown.Bids = []models.BidCandidate{{Price: "$1"}, {Price: "$2"}}

	s.RecordScan(first)
	assert.Equal(t, 1, s.Changes())
	s.RecordScan(same)
	assert.Equal(t, 1, s.Changes(), "only the timestamp moved")
	s.RecordScan(grown)
	assert.Equal(t, 2, s.Changes())
	assert.Equal(t, 3, s.Scans())
}
