// Package contentscript runs the per-tab agent: it extracts listing data from
// the tab's page, keeps the latest result, rescans when the page mutates and
// answers panel queries over the bus.
package contentscript

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bidscanner/internal/messaging"
	"bidscanner/internal/models"
	"bidscanner/internal/scraper"
	"bidscanner/internal/session"
	"bidscanner/internal/watcher"
)

// Config describes one tab
type Config struct {
	TabID    int
	WindowID int
	Page     scraper.Page
	Watcher  watcher.Config
	Options  models.Options
	Logger   logrus.FieldLogger
}

// Agent is the content-side endpoint for one tab
type Agent struct {
	cfg       Config
	bus       *messaging.Bus
	extractor *scraper.Extractor
	session   *session.Session
	watcher   *watcher.Watcher
	logger    logrus.FieldLogger

	scanMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// New builds an agent. Nothing runs until Start.
func New(bus *messaging.Bus, extractor *scraper.Extractor, cfg Config) *Agent {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	logger := cfg.Logger.WithField("tab", cfg.TabID)
	if cfg.Watcher.Logger == nil {
		cfg.Watcher.Logger = logger
	}
	a := &Agent{
		cfg:       cfg,
		bus:       bus,
		extractor: extractor,
		session:   session.New(),
		logger:    logger,
	}
	a.watcher = watcher.New(cfg.Watcher, func(ctx context.Context) { a.Scan(ctx) })
	return a
}

// Address is the bus address the agent answers on
func (a *Agent) Address() messaging.Address {
	return messaging.TabAddress(a.cfg.TabID)
}

// Session exposes the held result
func (a *Agent) Session() *session.Session {
	return a.session
}

// Watcher exposes the scan scheduler
func (a *Agent) Watcher() *watcher.Watcher {
	return a.watcher
}

// Start registers the agent on the bus and arms scanning. mutations may be nil
// for pages that cannot report DOM changes.
func (a *Agent) Start(ctx context.Context, mutations <-chan watcher.MutationBatch) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started || a.closed {
		return nil
	}
	if err := a.bus.Register(a.Address(), a); err != nil {
		return err
	}
	a.started = true

	ctx, a.cancel = context.WithCancel(ctx)
	a.watcher.Start(ctx)
	if mutations != nil {
		a.watcher.Observe(mutations)
	}

	if a.cfg.Options.AutoScan && a.cfg.Options.ScanInterval > 0 {
		a.wg.Add(1)
		go a.autoScan(ctx, time.Duration(a.cfg.Options.ScanInterval)*time.Second)
	}

	a.logger.WithField("url", a.cfg.Page.URL()).Info("Content agent started")
	return nil
}

func (a *Agent) autoScan(ctx context.Context, interval time.Duration) {
	defer a.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Scan(ctx)
		}
	}
}

// Scan extracts the page, records the result and announces it. Scans never
// overlap; the last one to finish wins.
func (a *Agent) Scan(ctx context.Context) models.ExtractionResult {
	a.scanMu.Lock()
	result := a.extractor.Extract(ctx, a.cfg.Page)
	a.session.RecordScan(result)
	a.scanMu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"vehicle": result.Vehicle != nil,
		"bids":    len(result.Bids),
	}).Debug("Scan complete")

	msg, err := models.NewMessage(models.VehicleDataExtracted, result)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to encode scan result")
		return result
	}
	from := messaging.FromTab(a.cfg.TabID, a.cfg.WindowID)
	if n := a.bus.Broadcast(ctx, from, msg); n == 0 {
		a.logger.Debug("No receivers for scan result")
	}
	return result
}

// HandleMessage answers panel and popup queries. Every reply is synchronous.
func (a *Agent) HandleMessage(ctx context.Context, msg models.Message, _ messaging.Sender, respond messaging.Responder) bool {
	switch msg.Type {
	case models.ScanVehicleData:
		respond(models.WithData(a.Scan(ctx)))
	case models.GetExtractedData:
		respond(models.WithData(a.session.CurrentResult()))
	default:
		respond(models.UnknownType())
	}
	return false
}

// Close stops scheduled scans and removes the agent from the bus
func (a *Agent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	started := a.started
	cancel := a.cancel
	a.mu.Unlock()

	a.watcher.Stop()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	if started {
		a.bus.Unregister(a.Address())
	}
	a.logger.Debug("Content agent closed")
}
