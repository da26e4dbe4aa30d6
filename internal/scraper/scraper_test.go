package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanURLOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><head><title>Lot</title></head><body><span class="bid-now">$12,000</span></body></html>`)
	}))
	defer srv.Close()

	s := New(nil, NewExtractor(DefaultRegistry()))

	result, err := s.ScanURL(context.Background(), srv.URL+"/lot/1")
	require.NoError(t, err)
	assert.Equal(t, "Lot", result.PageTitle)
	assert.Nil(t, result.Vehicle)
	require.Len(t, result.Bids, 1)
	assert.Equal(t, "$12,000", result.Bids[0].Price)

	_, err = s.ScanURL(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}
