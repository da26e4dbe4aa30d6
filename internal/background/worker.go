// Package background is the long-lived coordinator. It owns the settings
// store, re-injects tab agents after navigation, opens the side panel and
// answers auth queries.
package background

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"bidscanner/internal/messaging"
	"bidscanner/internal/models"
)

// ErrNoWindow is returned when neither the clicked tab nor the active tab has a window
var ErrNoWindow = errors.New("could not find window to open side panel")

// Tabs answers which tab is active in the current window
type Tabs interface {
	ActiveTab(ctx context.Context) (models.Tab, error)
}

// Injector (re-)starts the content agent in a tab
type Injector interface {
	Inject(ctx context.Context, tabID int) error
}

// SidePanel shows the panel UI bound to a window
type SidePanel interface {
	Open(ctx context.Context, windowID int) error
}

// SettingsStore persists the flat settings written at install time
type SettingsStore interface {
	InitializeDefaults(ctx context.Context, defaults models.Settings) (bool, error)
	AuthStatus(ctx context.Context) (bool, error)
	SetAuthStatus(ctx context.Context, authenticated bool) error
}

// Deps are the host and storage services the worker drives
type Deps struct {
	Tabs     Tabs
	Injector Injector
	Panel    SidePanel
	Store    SettingsStore
	Logger   logrus.FieldLogger
}

// Worker handles background messages and host events
type Worker struct {
	bus      *messaging.Bus
	tabs     Tabs
	injector Injector
	panel    SidePanel
	store    SettingsStore
	logger   logrus.FieldLogger

	mu     sync.RWMutex
	latest map[int]models.ExtractionResult

	wg sync.WaitGroup
}

// New creates a worker. Call Start to put it on the bus.
func New(bus *messaging.Bus, deps Deps) *Worker {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Worker{
		bus:      bus,
		tabs:     deps.Tabs,
		injector: deps.Injector,
		panel:    deps.Panel,
		store:    deps.Store,
		logger:   logger.WithField("context", "background"),
		latest:   make(map[int]models.ExtractionResult),
	}
}

// Start registers the worker at the background address
func (w *Worker) Start() error {
	return w.bus.Register(messaging.Background, w)
}

// Close removes the worker from the bus and waits for async replies
func (w *Worker) Close() {
	w.bus.Unregister(messaging.Background)
	w.wg.Wait()
}

// Latest returns the last result a tab announced
func (w *Worker) Latest(tabID int) (models.ExtractionResult, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.latest[tabID]
	return r, ok
}

// OnTabRemoved forgets a closed tab
func (w *Worker) OnTabRemoved(tabID int) {
	w.mu.Lock()
	delete(w.latest, tabID)
	w.mu.Unlock()
}

// OnInstalled writes default settings on first install only
func (w *Worker) OnInstalled(ctx context.Context, reason string) (err error) {
	defer w.recoverInto(&err, "OnInstalled")
	w.logger.WithField("reason", reason).Info("Extension installed")
	if reason != models.InstallReasonInstall {
		return nil
	}
	written, err := w.store.InitializeDefaults(ctx, models.DefaultSettings())
	if err != nil {
		return fmt.Errorf("failed to initialize default settings: %w", err)
	}
	if written {
		w.logger.Info("Default settings initialized")
	}
	return nil
}

// OnTabUpdated re-injects the content agent once a navigation completes.
// Failures are logged and never retried.
func (w *Worker) OnTabUpdated(ctx context.Context, tabID int, change models.TabChange, tab models.Tab) {
	defer w.recoverInto(nil, "OnTabUpdated")
	if change.Status != models.TabComplete || tab.URL == "" {
		return
	}
	if err := w.injector.Inject(ctx, tabID); err != nil {
		w.logger.WithFields(logrus.Fields{"tab": tabID, "url": tab.URL}).WithError(err).Info("Content script injection failed")
		return
	}
	w.logger.WithField("tab", tabID).Debug("Content script injected")
}

// OnActionClicked opens the panel for the clicked tab's window, falling back to
// the active tab when the handle carries no window.
func (w *Worker) OnActionClicked(ctx context.Context, tab *models.Tab) (err error) {
	defer w.recoverInto(&err, "OnActionClicked")
	windowID := 0
	if tab != nil {
		windowID = tab.WindowID
	}
	if windowID == 0 {
		active, aerr := w.tabs.ActiveTab(ctx)
		if aerr != nil || active.WindowID == 0 {
			w.logger.WithError(aerr).Error("Could not find window to open side panel")
			return ErrNoWindow
		}
		windowID = active.WindowID
		w.logger.Debug("Opening side panel via active tab")
	}
	if err := w.panel.Open(ctx, windowID); err != nil {
		w.logger.WithError(err).Error("Error opening side panel")
		return fmt.Errorf("failed to open side panel: %w", err)
	}
	w.logger.WithField("window", windowID).Info("Side panel opened")
	return nil
}

// HandleMessage implements messaging.Handler
func (w *Worker) HandleMessage(ctx context.Context, msg models.Message, sender messaging.Sender, respond messaging.Responder) (keepOpen bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithField("type", msg.Type).Errorf("Handler panicked: %v", r)
			respond(models.Fail(models.ErrInternal))
			keepOpen = false
		}
	}()
	w.logger.WithFields(logrus.Fields{"type": msg.Type, "from": sender.Address}).Debug("Background received message")

	switch msg.Type {
	case models.GetAuthStatus:
		w.async(respond, func() models.Response {
			authenticated, err := w.store.AuthStatus(ctx)
			if err != nil {
				w.logger.WithError(err).Warn("Failed to read auth status")
			}
			return models.AuthStatus(err == nil && authenticated)
		})
		return true

	case models.SetAuthStatus:
		authenticated := gjson.GetBytes(msg.Payload, "isAuthenticated").Bool()
		if err := w.store.SetAuthStatus(ctx, authenticated); err != nil {
			w.logger.WithError(err).Warn("Failed to store auth status")
			respond(models.Fail(models.ErrInternal))
			return false
		}
		respond(models.OK())
		return false

	case models.OpenSidePanel:
		w.async(respond, func() models.Response {
			return w.openSidePanel(ctx)
		})
		return true

	case models.VehicleDataExtracted:
		w.recordExtraction(msg, sender)
		return false

	default:
		respond(models.UnknownType())
		return false
	}
}

func (w *Worker) openSidePanel(ctx context.Context) models.Response {
	tab, err := w.tabs.ActiveTab(ctx)
	if err != nil || tab.WindowID == 0 {
		return models.Fail(models.ErrNoActiveTab)
	}
	if err := w.panel.Open(ctx, tab.WindowID); err != nil {
		w.logger.WithError(err).Error("Error opening side panel")
		return models.Fail(models.ErrOpenSidePanel)
	}
	return models.OK()
}

func (w *Worker) recordExtraction(msg models.Message, sender messaging.Sender) {
	tabID, ok := sender.Address.TabID()
	if !ok {
		return
	}
	var result models.ExtractionResult
	if err := msg.DecodePayload(&result); err != nil {
		w.logger.WithError(err).Warn("Ignoring malformed extraction result")
		return
	}
	w.mu.Lock()
	w.latest[tabID] = result
	w.mu.Unlock()
	w.logger.WithFields(logrus.Fields{"tab": tabID, "bids": len(result.Bids)}).Debug("Vehicle data extracted")
}

// async resolves respond from its own goroutine, whatever fn does
func (w *Worker) async(respond messaging.Responder, fn func() models.Response) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Errorf("Async handler panicked: %v", r)
				respond(models.Fail(models.ErrInternal))
			}
		}()
		respond(fn())
	}()
}

func (w *Worker) recoverInto(err *error, where string) {
	if r := recover(); r != nil {
		w.logger.WithField("hook", where).Errorf("Recovered from panic: %v", r)
		if err != nil {
			*err = fmt.Errorf("%s: %s", where, models.ErrInternal)
		}
	}
}
