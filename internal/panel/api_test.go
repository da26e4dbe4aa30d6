package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidscanner/internal/bidrequest"
	"bidscanner/internal/database"
	"bidscanner/internal/messaging"
	"bidscanner/internal/models"
	"bidscanner/internal/options"
	"bidscanner/internal/scraper"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTabs struct {
	tab   models.Tab
	err   error
	stats []models.TabScanStats
}

func (f fakeTabs) ActiveTab(context.Context) (models.Tab, error) { return f.tab, f.err }

func (f fakeTabs) ScanStats() []models.TabScanStats { return f.stats }

type testEnv struct {
	bus    *messaging.Bus
	hub    *Hub
	db     *database.Database
	opts   *options.Store
	router *gin.Engine
}

func newTestEnv(t *testing.T, tabs ActiveTabs) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := database.NewDatabase(filepath.Join(dir, "panel.db"))
	require.NoError(t, err)

	bus := messaging.New()
	hub := NewHub(bus, nil)
	opts := options.NewStore(filepath.Join(dir, "options.json"))
	bids := bidrequest.NewService(db, nil)

	h := NewHandler(bus, hub, tabs, db, opts, bids, scraper.DefaultRegistry())
	h.requestTimeout = time.Second

	cfg := DefaultRouterConfig()
	cfg.RateLimit = 0
	cfg.ScanCooldown = time.Hour
	cfg.AdminKey = "secret"

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		hub.Close()
		bus.Close()
		db.Close()
	})

	return &testEnv{bus: bus, hub: hub, db: db, opts: opts, router: NewRouter(ctx, h, cfg)}
}

func performJSONRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func scannedResult() models.ExtractionResult {
	return models.ExtractionResult{
		URL:           "https://www.copart.com/lot/123",
		PageTitle:     "2019 Honda Civic",
		ScanTimestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Vehicle:       &models.VehicleRecord{Title: "2019 Honda Civic", LotNumber: "123"},
		Bids: []models.BidCandidate{
			{RawMarkup: `<span onclick="x()">$4,250</span>`, Price: "$4,250", Text: "$4,250"},
		},
	}
}

// registerTab answers GET_EXTRACTED_DATA and SCAN_VEHICLE_DATA with result
func registerTab(t *testing.T, bus *messaging.Bus, tabID int, result models.ExtractionResult) {
	t.Helper()
	err := bus.Register(messaging.TabAddress(tabID), messaging.HandlerFunc(
		func(_ context.Context, msg models.Message, _ messaging.Sender, respond messaging.Responder) bool {
			switch msg.Type {
			case models.GetExtractedData, models.ScanVehicleData:
				respond(models.WithData(result))
			default:
				respond(models.UnknownType())
			}
			return false
		}))
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, fakeTabs{stats: []models.TabScanStats{
		{TabID: 3, URL: "https://www.copart.com/lot/1", Scans: 4, Changes: 2, Rescans: 3, PendingMutations: 1},
	}})

	w := performJSONRequest(env.router, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string                `json:"status"`
		Tabs   []models.TabScanStats `json:"tabs"`
	}
	decode(t, w, &body)
	assert.Equal(t, "ok", body.Status)
	require.Len(t, body.Tabs, 1)
	assert.Equal(t, 4, body.Tabs[0].Scans)
	assert.Equal(t, 3, body.Tabs[0].Rescans)
	assert.Equal(t, 1, body.Tabs[0].PendingMutations)
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestActiveTab(t *testing.T) {
	env := newTestEnv(t, fakeTabs{tab: models.Tab{ID: 4, WindowID: 2, URL: "https://www.copart.com/lot/12345678", Active: true}})
	w := performJSONRequest(env.router, http.MethodGet, "/api/tabs/active", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tab ActiveTabResponse
	decode(t, w, &tab)
	assert.Equal(t, 4, tab.ID)
	assert.True(t, tab.Supported)

	missing := newTestEnv(t, fakeTabs{err: errors.New("no window")})
	w = performJSONRequest(missing.router, http.MethodGet, "/api/tabs/active", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrNoActiveTab)
}

func TestActiveTabUnsupportedSite(t *testing.T) {
	env := newTestEnv(t, fakeTabs{tab: models.Tab{ID: 6, WindowID: 1, URL: "https://example.org/cars/1", Active: true}})
	w := performJSONRequest(env.router, http.MethodGet, "/api/tabs/active", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tab ActiveTabResponse
	decode(t, w, &tab)
	assert.Equal(t, 6, tab.ID)
	assert.Equal(t, "https://example.org/cars/1", tab.URL)
	assert.False(t, tab.Supported)
	assert.Contains(t, w.Body.String(), `"supported":false`)
}

func TestTabDataSanitizesMarkup(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})
	registerTab(t, env.bus, 7, scannedResult())

	w := performJSONRequest(env.router, http.MethodGet, "/api/tabs/7/data", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.Response
	decode(t, w, &resp)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.NotContains(t, resp.Data.Bids[0].RawMarkup, "onclick")
	assert.Equal(t, "$4,250", resp.Data.Bids[0].Price)
}

func TestTabDataUnreachable(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})

	w := performJSONRequest(env.router, http.MethodGet, "/api/tabs/99/data", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"No data available"}`, w.Body.String())

	w = performJSONRequest(env.router, http.MethodGet, "/api/tabs/abc/data", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTabScanCooldown(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})
	registerTab(t, env.bus, 3, scannedResult())

	w := performJSONRequest(env.router, http.MethodPost, "/api/tabs/3/scan", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performJSONRequest(env.router, http.MethodPost, "/api/tabs/3/scan", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAuthRoundTrip(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})

	// no background worker: reads as signed out
	w := performJSONRequest(env.router, http.MethodGet, "/api/auth", nil, nil)
	assert.JSONEq(t, `{"isAuthenticated":false}`, w.Body.String())

	authenticated := false
	require.NoError(t, env.bus.Register(messaging.Background, messaging.HandlerFunc(
		func(_ context.Context, msg models.Message, _ messaging.Sender, respond messaging.Responder) bool {
			switch msg.Type {
			case models.GetAuthStatus:
				respond(models.AuthStatus(authenticated))
			case models.SetAuthStatus:
				var req AuthRequest
				if err := msg.DecodePayload(&req); err != nil {
					respond(models.Fail(err.Error()))
					break
				}
				authenticated = req.IsAuthenticated
				respond(models.OK())
			}
			return false
		})))

	w = performJSONRequest(env.router, http.MethodPut, "/api/auth", AuthRequest{IsAuthenticated: true}, nil)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = performJSONRequest(env.router, http.MethodGet, "/api/auth", nil, nil)
	assert.JSONEq(t, `{"isAuthenticated":true}`, w.Body.String())
}

func TestOpenSidePanelWithoutBackground(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})
	w := performJSONRequest(env.router, http.MethodPost, "/api/side-panel", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOptions(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})

	w := performJSONRequest(env.router, http.MethodGet, "/api/options", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Options
	decode(t, w, &got)
	assert.Equal(t, models.DefaultOptions(), got)

	saved := models.Options{AutoScan: true, ScanInterval: 60, DataRetention: 7}
	w = performJSONRequest(env.router, http.MethodPut, "/api/options", saved, nil)
	require.Equal(t, http.StatusOK, w.Code)

	loaded, err := env.opts.Load()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	w = performJSONRequest(env.router, http.MethodPut, "/api/options", models.Options{ScanInterval: 1, DataRetention: 7}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuyersCRUD(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})

	w := performJSONRequest(env.router, http.MethodPost, "/api/buyers", models.Buyer{
		Name:        "Premier Auto Group",
		Email:       "bids@premier.example",
		Rating:      4.8,
		Specialties: []string{"Luxury"},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Buyer
	decode(t, w, &created)
	require.NotEmpty(t, created.ID)

	w = performJSONRequest(env.router, http.MethodGet, "/api/buyers?q=luxury", nil, nil)
	var list []models.Buyer
	decode(t, w, &list)
	require.Len(t, list, 1)

	created.Company = "Premier"
	w = performJSONRequest(env.router, http.MethodPut, "/api/buyers/"+created.ID, created, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = performJSONRequest(env.router, http.MethodGet, "/api/buyers/"+created.ID, nil, nil)
	var fetched models.Buyer
	decode(t, w, &fetched)
	assert.Equal(t, "Premier", fetched.Company)

	w = performJSONRequest(env.router, http.MethodDelete, "/api/buyers/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performJSONRequest(env.router, http.MethodGet, "/api/buyers/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateBuyerRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})

	w := performJSONRequest(env.router, http.MethodPost, "/api/buyers", models.Buyer{Name: "A", Rating: 9}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performJSONRequest(env.router, http.MethodPost, "/api/buyers", map[string]string{"email": "x@example.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBidRequest(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})
	registerTab(t, env.bus, 5, scannedResult())

	buyer := &models.Buyer{Name: "Metro Motors"}
	require.NoError(t, env.db.CreateBuyer(context.Background(), buyer))

	w := performJSONRequest(env.router, http.MethodPost, "/api/bid-requests", CreateBidRequestBody{
		TabID:    5,
		BuyerIDs: []string{buyer.ID, buyer.ID},
		Message:  "Clean title",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var req models.BidRequest
	decode(t, w, &req)
	assert.Equal(t, models.BidRequestPending, req.Status)
	assert.Equal(t, "$4,250", req.Vehicle.CurrentBid)
	require.Len(t, req.Offers, 1)

	w = performJSONRequest(env.router, http.MethodGet, "/api/bid-requests/"+req.ID, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performJSONRequest(env.router, http.MethodGet, "/api/bid-requests", nil, nil)
	var list []models.BidRequest
	decode(t, w, &list)
	assert.Len(t, list, 1)
}

func TestCreateBidRequestErrors(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})
	registerTab(t, env.bus, 5, models.NeverScanned())

	w := performJSONRequest(env.router, http.MethodPost, "/api/bid-requests", CreateBidRequestBody{
		TabID: 5, BuyerIDs: []string{"1"},
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	registerTab(t, env.bus, 6, scannedResult())
	w = performJSONRequest(env.router, http.MethodPost, "/api/bid-requests", CreateBidRequestBody{
		TabID: 6, BuyerIDs: []string{"missing"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performJSONRequest(env.router, http.MethodGet, "/api/bid-requests/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRequireKey(t *testing.T) {
	env := newTestEnv(t, fakeTabs{})
	require.NoError(t, env.opts.Save(models.Options{AutoScan: true, ScanInterval: 60, DataRetention: 7}))

	w := performJSONRequest(env.router, http.MethodDelete, "/api/admin/data", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.True(t, env.opts.Exists())

	w = performJSONRequest(env.router, http.MethodDelete, "/api/admin/data", nil, map[string]string{"X-Admin-Key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.opts.Exists())

	w = performJSONRequest(env.router, http.MethodPost, "/api/admin/expire", nil, map[string]string{"X-Admin-Key": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"expired":0}`, w.Body.String())
}
