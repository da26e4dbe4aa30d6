// Package panel is the side panel: a websocket hub that shows scan results
// as tabs announce them, and the HTTP API the panel front-end calls.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"bidscanner/internal/messaging"
	"bidscanner/internal/models"
	"bidscanner/internal/validation"
)

// Event types pushed to websocket clients
const (
	EventVehicleData = "vehicle_data"
	EventOffer       = "offer"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	sendBufSize = 16
)

// Event is one websocket frame
type Event struct {
	Type  string                   `json:"type"`
	TabID int                      `json:"tabId,omitempty"`
	Data  *models.ExtractionResult `json:"data,omitempty"`
	Offer *models.BuyerOffer       `json:"offer,omitempty"`
}

// Hub is the panel endpoint on the bus. It exists on the bus only while open.
type Hub struct {
	bus    *messaging.Bus
	logger logrus.FieldLogger
	policy *bluemonday.Policy

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	windowID int
	open     bool
	clients  map[*client]struct{}
	latest   map[int]models.ExtractionResult
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a closed panel
func NewHub(bus *messaging.Bus, logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		bus:     bus,
		logger:  logger.WithField("context", "panel"),
		policy:  bluemonday.UGCPolicy(),
		clients: make(map[*client]struct{}),
		latest:  make(map[int]models.ExtractionResult),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Open binds the panel to a window and starts receiving pushes. Opening an
// already open panel just rebinds it.
func (h *Hub) Open(ctx context.Context, windowID int) error {
	if err := validation.ValidateWindowID(windowID); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.windowID = windowID
	if h.open {
		return nil
	}
	if err := h.bus.Register(messaging.Panel, h); err != nil && !errors.Is(err, messaging.ErrAlreadyRegistered) {
		return err
	}
	h.open = true
	h.logger.WithField("window", windowID).Info("Side panel opened")
	return nil
}

// Close hides the panel: it leaves the bus and drops every client
func (h *Hub) Close() {
	h.mu.Lock()
	wasOpen := h.open
	h.open = false
	h.windowID = 0
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	if wasOpen {
		h.bus.Unregister(messaging.Panel)
	}
	for c := range clients {
		c.close()
	}
}

// WindowID reports the bound window while the panel is open
func (h *Hub) WindowID() (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.windowID, h.open
}

// Latest returns the last sanitized result shown for a tab
func (h *Hub) Latest(tabID int) (models.ExtractionResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.latest[tabID]
	return r, ok
}

// Clients counts connected websocket clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleMessage implements messaging.Handler
func (h *Hub) HandleMessage(_ context.Context, msg models.Message, sender messaging.Sender, respond messaging.Responder) bool {
	if msg.Type != models.VehicleDataExtracted {
		respond(models.UnknownType())
		return false
	}

	var result models.ExtractionResult
	if err := msg.DecodePayload(&result); err != nil {
		h.logger.WithError(err).Warn("Ignoring malformed scan result")
		return false
	}
	result = h.Sanitize(result)

	tabID, _ := sender.Address.TabID()
	h.mu.Lock()
	h.latest[tabID] = result
	h.mu.Unlock()

	h.broadcast(Event{Type: EventVehicleData, TabID: tabID, Data: &result})
	return false
}

// PublishOffer shows a buyer offer as it arrives
func (h *Hub) PublishOffer(offer models.BuyerOffer) {
	h.broadcast(Event{Type: EventOffer, Offer: &offer})
}

// Sanitize strips unsafe markup from bid candidates before display
func (h *Hub) Sanitize(r models.ExtractionResult) models.ExtractionResult {
	if len(r.Bids) == 0 {
		return r
	}
	bids := make([]models.BidCandidate, len(r.Bids))
	for i, b := range r.Bids {
		b.RawMarkup = h.policy.Sanitize(b.RawMarkup)
		bids[i] = b
	}
	r.Bids = bids
	return r
}

func (h *Hub) broadcast(ev Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to encode panel event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// slow client
			delete(h.clients, c)
			c.close()
		}
	}
}

// ServeWS upgrades the request and streams events until the client leaves
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
