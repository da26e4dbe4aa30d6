package panel

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bidscanner/internal/bidrequest"
	"bidscanner/internal/database"
	"bidscanner/internal/messaging"
	"bidscanner/internal/models"
	"bidscanner/internal/options"
	"bidscanner/internal/util"
	"bidscanner/internal/validation"
)

// NoDataAvailable is what the panel shows for any failed tab query
const NoDataAvailable = "No data available"

const defaultRequestTimeout = 5 * time.Second

// ActiveTabs finds the tab the user is looking at and reports what the
// agents in open tabs have been doing
type ActiveTabs interface {
	ActiveTab(ctx context.Context) (models.Tab, error)
	ScanStats() []models.TabScanStats
}

// SiteSupport says whether a page has a dedicated site adapter
type SiteSupport interface {
	SupportsURL(pageURL string) bool
}

// ActiveTabResponse is the active tab plus whether its site is supported
type ActiveTabResponse struct {
	models.Tab
	Supported bool `json:"supported"`
}

// Store is the persistence the API reads and writes
type Store interface {
	CreateBuyer(ctx context.Context, buyer *models.Buyer) error
	GetBuyer(ctx context.Context, id string) (*models.Buyer, error)
	ListBuyers(ctx context.Context, search string) ([]models.Buyer, error)
	UpdateBuyer(ctx context.Context, buyer *models.Buyer) error
	DeleteBuyer(ctx context.Context, id string) error
	ResetSettings(ctx context.Context, defaults models.Settings) error
}

// Handler serves the panel API
type Handler struct {
	bus            *messaging.Bus
	hub            *Hub
	tabs           ActiveTabs
	store          Store
	options        *options.Store
	bids           *bidrequest.Service
	sites          SiteSupport
	requestTimeout time.Duration
}

// NewHandler wires the API to the bus and stores
func NewHandler(bus *messaging.Bus, hub *Hub, tabs ActiveTabs, store Store, opts *options.Store, bids *bidrequest.Service, sites SiteSupport) *Handler {
	return &Handler{
		bus:            bus,
		hub:            hub,
		tabs:           tabs,
		store:          store,
		options:        opts,
		bids:           bids,
		sites:          sites,
		requestTimeout: defaultRequestTimeout,
	}
}

// the panel is the sender for tab and auth queries; the popup opens the side panel
var (
	fromPanel = messaging.Sender{Address: messaging.Panel}
	fromPopup = messaging.Sender{Address: messaging.Popup}
)

func (h *Handler) request(c *gin.Context, to messaging.Address, from messaging.Sender, msg models.Message) (models.Response, error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()
	return h.bus.Request(ctx, to, from, msg)
}

func noData(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": false, "error": NoDataAvailable})
}

// Health godoc
// @Summary Service health
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/health [get]
func (h *Handler) Health(c *gin.Context) {
	windowID, open := h.hub.WindowID()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"endpoints": h.bus.Addresses(),
		"panel":     gin.H{"open": open, "windowId": windowID, "clients": h.hub.Clients()},
		"tabs":      h.tabs.ScanStats(),
	})
}

// ActiveTab godoc
// @Summary Get the active tab of the current window
// @Tags tabs
// @Produce json
// @Description The supported flag tells whether a site adapter is registered for the tab's host.
// @Success 200 {object} panel.ActiveTabResponse
// @Failure 404 {object} map[string]string "error: No active tab found"
// @Router /api/tabs/active [get]
func (h *Handler) ActiveTab(c *gin.Context) {
	tab, err := h.tabs.ActiveTab(c.Request.Context())
	if err != nil || tab.ID == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrNoActiveTab})
		return
	}
	c.JSON(http.StatusOK, ActiveTabResponse{Tab: tab, Supported: h.sites.SupportsURL(tab.URL)})
}

// TabData godoc
// @Summary Get the latest extraction for a tab
// @Description Sends GET_EXTRACTED_DATA to the tab. A tab that never scanned returns an empty result, an unreachable tab returns "No data available".
// @Tags tabs
// @Produce json
// @Param id path int true "Tab id"
// @Success 200 {object} models.Response
// @Failure 400 {object} map[string]string
// @Router /api/tabs/{id}/data [get]
func (h *Handler) TabData(c *gin.Context) {
	h.queryTab(c, models.GetExtractedData)
}

// TabScan godoc
// @Summary Rescan a tab now
// @Description Sends SCAN_VEHICLE_DATA to the tab and returns the fresh result.
// @Tags tabs
// @Produce json
// @Param id path int true "Tab id"
// @Success 200 {object} models.Response
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string "error: Scan too frequent"
// @Router /api/tabs/{id}/scan [post]
func (h *Handler) TabScan(c *gin.Context) {
	h.queryTab(c, models.ScanVehicleData)
}

func (h *Handler) queryTab(c *gin.Context, t models.MessageType) {
	tabID, err := validation.ValidateTabID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.request(c, messaging.TabAddress(tabID), fromPanel, models.Message{Type: t})
	if err != nil || resp.Failed() || resp.Data == nil {
		noData(c)
		return
	}
	sanitized := h.hub.Sanitize(*resp.Data)
	c.JSON(http.StatusOK, models.WithData(sanitized))
}

// AuthStatus godoc
// @Summary Get the authentication flag
// @Tags auth
// @Produce json
// @Success 200 {object} models.Response
// @Router /api/auth [get]
func (h *Handler) AuthStatus(c *gin.Context) {
	resp, err := h.request(c, messaging.Background, fromPanel, models.Message{Type: models.GetAuthStatus})
	if err != nil {
		// an absent background reads as signed out
		c.JSON(http.StatusOK, models.AuthStatus(false))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AuthRequest is the body of PUT /api/auth
type AuthRequest struct {
	IsAuthenticated bool `json:"isAuthenticated"`
}

// SetAuthStatus godoc
// @Summary Set the authentication flag
// @Tags auth
// @Accept json
// @Produce json
// @Param auth body AuthRequest true "New flag"
// @Success 200 {object} models.Response
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/auth [put]
func (h *Handler) SetAuthStatus(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}
	msg, err := models.NewMessage(models.SetAuthStatus, req)
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to encode request", err)
		return
	}
	resp, err := h.request(c, messaging.Background, fromPanel, msg)
	if err != nil {
		util.SafeErrorResponse(c, http.StatusServiceUnavailable, "Background worker unavailable", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// OpenSidePanel godoc
// @Summary Open the side panel for the active window
// @Tags panel
// @Produce json
// @Success 200 {object} models.Response
// @Failure 503 {object} map[string]string
// @Router /api/side-panel [post]
func (h *Handler) OpenSidePanel(c *gin.Context) {
	resp, err := h.request(c, messaging.Background, fromPopup, models.Message{Type: models.OpenSidePanel})
	if err != nil {
		util.SafeErrorResponse(c, http.StatusServiceUnavailable, "Background worker unavailable", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetOptions godoc
// @Summary Get options-page settings
// @Tags options
// @Produce json
// @Success 200 {object} models.Options
// @Router /api/options [get]
func (h *Handler) GetOptions(c *gin.Context) {
	o, err := h.options.Load()
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load options", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// SaveOptions godoc
// @Summary Save options-page settings
// @Tags options
// @Accept json
// @Produce json
// @Param options body models.Options true "Options"
// @Success 200 {object} models.Options
// @Failure 400 {object} map[string]string
// @Router /api/options [put]
func (h *Handler) SaveOptions(c *gin.Context) {
	var o models.Options
	if err := c.ShouldBindJSON(&o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}
	if err := options.Validate(o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.options.Save(o); err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to save options", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// ClearData godoc
// @Summary Clear all extension data
// @Description Removes saved options and resets settings to their install defaults.
// @Tags admin
// @Produce json
// @Param X-Admin-Key header string true "Admin key"
// @Success 200 {object} models.Response
// @Failure 401 {object} map[string]string
// @Router /api/admin/data [delete]
func (h *Handler) ClearData(c *gin.Context) {
	if err := h.options.Clear(); err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to clear options", err)
		return
	}
	if err := h.store.ResetSettings(c.Request.Context(), models.DefaultSettings()); err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to reset settings", err)
		return
	}
	c.JSON(http.StatusOK, models.OK())
}

// ExpireBidRequests godoc
// @Summary Expire stale bid requests now
// @Tags admin
// @Produce json
// @Param X-Admin-Key header string true "Admin key"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/admin/expire [post]
func (h *Handler) ExpireBidRequests(c *gin.Context) {
	o, err := h.options.Load()
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load options", err)
		return
	}
	n, err := h.bids.ExpireOlderThan(c.Request.Context(), time.Duration(o.DataRetention)*24*time.Hour)
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to expire bid requests", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "expired": n})
}

// ListBuyers godoc
// @Summary List buyers
// @Tags buyers
// @Produce json
// @Param q query string false "Filter by name, company, location or specialty"
// @Success 200 {array} models.Buyer
// @Router /api/buyers [get]
func (h *Handler) ListBuyers(c *gin.Context) {
	buyers, err := h.store.ListBuyers(c.Request.Context(), c.Query("q"))
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load buyers", err)
		return
	}
	c.JSON(http.StatusOK, buyers)
}

// GetBuyer godoc
// @Summary Get one buyer
// @Tags buyers
// @Produce json
// @Param id path string true "Buyer id"
// @Success 200 {object} models.Buyer
// @Failure 404 {object} map[string]string
// @Router /api/buyers/{id} [get]
func (h *Handler) GetBuyer(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateBuyerID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	buyer, err := h.store.GetBuyer(c.Request.Context(), id)
	if errors.Is(err, database.ErrBuyerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load buyer", err)
		return
	}
	c.JSON(http.StatusOK, buyer)
}

func bindBuyer(c *gin.Context) (*models.Buyer, bool) {
	var buyer models.Buyer
	if err := c.ShouldBindJSON(&buyer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return nil, false
	}
	name, err := validation.ValidateBuyerName(buyer.Name)
	if err == nil {
		buyer.Name = name
		err = validation.ValidateEmail(buyer.Email)
	}
	if err == nil {
		err = validation.ValidatePhone(buyer.Phone)
	}
	if err == nil {
		err = validation.ValidateRating(buyer.Rating)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return &buyer, true
}

// CreateBuyer godoc
// @Summary Add a buyer
// @Tags buyers
// @Accept json
// @Produce json
// @Param buyer body models.Buyer true "Buyer"
// @Success 201 {object} models.Buyer
// @Failure 400 {object} map[string]string
// @Router /api/buyers [post]
func (h *Handler) CreateBuyer(c *gin.Context) {
	buyer, ok := bindBuyer(c)
	if !ok {
		return
	}
	buyer.ID = ""
	if err := h.store.CreateBuyer(c.Request.Context(), buyer); err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to create buyer", err)
		return
	}
	c.JSON(http.StatusCreated, buyer)
}

// UpdateBuyer godoc
// @Summary Update a buyer
// @Tags buyers
// @Accept json
// @Produce json
// @Param id path string true "Buyer id"
// @Param buyer body models.Buyer true "Buyer"
// @Success 200 {object} models.Buyer
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/buyers/{id} [put]
func (h *Handler) UpdateBuyer(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateBuyerID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	buyer, ok := bindBuyer(c)
	if !ok {
		return
	}
	buyer.ID = id
	err := h.store.UpdateBuyer(c.Request.Context(), buyer)
	if errors.Is(err, database.ErrBuyerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to update buyer", err)
		return
	}
	c.JSON(http.StatusOK, buyer)
}

// DeleteBuyer godoc
// @Summary Remove a buyer
// @Tags buyers
// @Produce json
// @Param id path string true "Buyer id"
// @Success 200 {object} models.Response
// @Failure 404 {object} map[string]string
// @Router /api/buyers/{id} [delete]
func (h *Handler) DeleteBuyer(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateBuyerID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.store.DeleteBuyer(c.Request.Context(), id)
	if errors.Is(err, database.ErrBuyerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to delete buyer", err)
		return
	}
	c.JSON(http.StatusOK, models.OK())
}

// CreateBidRequestBody is the body of POST /api/bid-requests
type CreateBidRequestBody struct {
	TabID    int      `json:"tabId" binding:"required"`
	BuyerIDs []string `json:"buyerIds" binding:"required"`
	Message  string   `json:"message"`
}

// CreateBidRequest godoc
// @Summary Send a tab's scanned vehicle to buyers
// @Tags bid-requests
// @Accept json
// @Produce json
// @Param request body CreateBidRequestBody true "Tab and buyers"
// @Success 201 {object} models.BidRequest
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string "error: No data available"
// @Router /api/bid-requests [post]
func (h *Handler) CreateBidRequest(c *gin.Context) {
	var body CreateBidRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data"})
		return
	}
	message, err := validation.ValidateMessage(body.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, id := range body.BuyerIDs {
		if err := validation.ValidateBuyerID(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	resp, err := h.request(c, messaging.TabAddress(body.TabID), fromPanel, models.Message{Type: models.GetExtractedData})
	if err != nil || resp.Data == nil || !resp.Data.Scanned() {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": NoDataAvailable})
		return
	}

	req, err := h.bids.Broadcast(c.Request.Context(), bidrequest.BroadcastInput{
		Result:   *resp.Data,
		BuyerIDs: body.BuyerIDs,
		Message:  message,
	})
	switch {
	case errors.Is(err, bidrequest.ErrNoBuyers), errors.Is(err, database.ErrBuyerNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil && req == nil:
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to create bid request", err)
		return
	case err != nil:
		// stored, but some buyers were not notified
		c.JSON(http.StatusAccepted, gin.H{"bidRequest": req, "warning": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ListBidRequests godoc
// @Summary List bid requests, newest first
// @Tags bid-requests
// @Produce json
// @Param limit query int false "Maximum number of requests"
// @Success 200 {array} models.BidRequest
// @Router /api/bid-requests [get]
func (h *Handler) ListBidRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 0 || limit > 500 {
		limit = 50
	}
	list, err := h.bids.List(c.Request.Context(), limit)
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load bid requests", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetBidRequest godoc
// @Summary Get one bid request with its offers
// @Tags bid-requests
// @Produce json
// @Param id path string true "Bid request id"
// @Success 200 {object} models.BidRequest
// @Failure 404 {object} map[string]string
// @Router /api/bid-requests/{id} [get]
func (h *Handler) GetBidRequest(c *gin.Context) {
	req, err := h.bids.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrBidRequestNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load bid request", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Events godoc
// @Summary Stream panel events over a websocket
// @Tags panel
// @Router /api/ws [get]
func (h *Handler) Events(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
