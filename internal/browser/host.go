package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"bidscanner/internal/contentscript"
	"bidscanner/internal/messaging"
	"bidscanner/internal/models"
	"bidscanner/internal/scraper"
	"bidscanner/internal/watcher"
)

// DefaultWindowID is the single window the host manages
const DefaultWindowID = 1

var (
	ErrRestrictedPage = errors.New("cannot inject into a browser-internal page")
	ErrTabNotFound    = errors.New("tab not found")
	ErrNoActiveTab    = errors.New("no active tab")
)

var restrictedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"devtools://",
	"edge://",
	"about:",
	"view-source:",
}

// IsRestricted reports whether pageURL belongs to the browser itself
func IsRestricted(pageURL string) bool {
	u := strings.ToLower(strings.TrimSpace(pageURL))
	if u == "" {
		return true
	}
	for _, prefix := range restrictedPrefixes {
		if strings.HasPrefix(u, prefix) {
			return true
		}
	}
	return false
}

// PageOpener creates browser pages; Manager is the real one
type PageOpener interface {
	NewPage(ctx context.Context) (*rod.Page, error)
}

// Listener receives tab lifecycle events
type Listener interface {
	OnTabUpdated(ctx context.Context, tabID int, change models.TabChange, tab models.Tab)
	OnTabRemoved(tabID int)
}

// HostConfig is what the host needs to run content agents
type HostConfig struct {
	Bus       *messaging.Bus
	Extractor *scraper.Extractor
	Watcher   watcher.Config
	Options   func() models.Options
	Logger    logrus.FieldLogger
}

// Host tracks open tabs and the content agent injected into each
type Host struct {
	opener PageOpener
	cfg    HostConfig
	logger logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener Listener
	nextID   int
	activeID int
	tabs     map[int]*Tab
	agents   map[int]*contentscript.Agent
}

// NewHost creates a host with no tabs
func NewHost(opener PageOpener, cfg HostConfig) *Host {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Options == nil {
		cfg.Options = models.DefaultOptions
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		opener: opener,
		cfg:    cfg,
		logger: cfg.Logger.WithField("context", "host"),
		ctx:    ctx,
		cancel: cancel,
		nextID: 1,
		tabs:   make(map[int]*Tab),
		agents: make(map[int]*contentscript.Agent),
	}
}

// SetListener routes tab events, normally to the background worker
func (h *Host) SetListener(l Listener) {
	h.mu.Lock()
	h.listener = l
	h.mu.Unlock()
}

// OpenTab opens pageURL in a new tab and makes it active
func (h *Host) OpenTab(ctx context.Context, pageURL string) (models.Tab, error) {
	page, err := h.opener.NewPage(ctx)
	if err != nil {
		return models.Tab{}, err
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	tab := newTab(id, DefaultWindowID, page)
	h.tabs[id] = tab
	h.activeID = id
	h.mu.Unlock()

	wait := page.Context(h.ctx).EachEvent(func(e *proto.PageLoadEventFired) {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.loadComplete(tab)
		}()
	})
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		wait()
	}()

	h.logger.WithFields(logrus.Fields{"tab": id, "url": pageURL}).Info("Tab opened")
	if err := page.Context(ctx).Navigate(pageURL); err != nil {
		return tab.Model(true), fmt.Errorf("failed to navigate tab %d: %w", id, err)
	}
	return tab.Model(true), nil
}

// Navigate loads pageURL in an existing tab
func (h *Host) Navigate(ctx context.Context, tabID int, pageURL string) error {
	tab, err := h.tab(tabID)
	if err != nil {
		return err
	}
	if err := tab.page.Context(ctx).Navigate(pageURL); err != nil {
		return fmt.Errorf("failed to navigate tab %d: %w", tabID, err)
	}
	return nil
}

// loadComplete tears down the old document's agent and reports the load
func (h *Host) loadComplete(tab *Tab) {
	h.closeAgent(tab.id)

	h.mu.Lock()
	l := h.listener
	active := h.activeID == tab.id
	h.mu.Unlock()

	model := tab.Model(active)
	h.logger.WithFields(logrus.Fields{"tab": tab.id, "url": model.URL}).Debug("Load complete")
	if l != nil {
		l.OnTabUpdated(h.ctx, tab.id, models.TabChange{Status: models.TabComplete, URL: model.URL}, model)
	}
}

// Activate focuses a tab
func (h *Host) Activate(tabID int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.tabs[tabID]; !ok {
		return ErrTabNotFound
	}
	h.activeID = tabID
	return nil
}

// ActiveTab is the focused tab of the window
func (h *Host) ActiveTab(ctx context.Context) (models.Tab, error) {
	h.mu.Lock()
	tab, ok := h.tabs[h.activeID]
	h.mu.Unlock()
	if !ok {
		return models.Tab{}, ErrNoActiveTab
	}
	return tab.Model(true), nil
}

// Tabs lists open tabs by id
func (h *Host) Tabs() []models.Tab {
	h.mu.Lock()
	tabs := make([]*Tab, 0, len(h.tabs))
	for _, t := range h.tabs {
		tabs = append(tabs, t)
	}
	active := h.activeID
	h.mu.Unlock()

	out := make([]models.Tab, 0, len(tabs))
	for _, t := range tabs {
		out = append(out, t.Model(t.id == active))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Agent returns the content agent running in a tab
func (h *Host) Agent(tabID int) (*contentscript.Agent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.agents[tabID]
	return a, ok
}

// ScanStats reports scan activity for every tab with a running agent
func (h *Host) ScanStats() []models.TabScanStats {
	h.mu.Lock()
	agents := make(map[int]*contentscript.Agent, len(h.agents))
	for id, a := range h.agents {
		agents[id] = a
	}
	h.mu.Unlock()

	out := make([]models.TabScanStats, 0, len(agents))
	for id, a := range agents {
		out = append(out, agentStats(id, a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}

func agentStats(tabID int, a *contentscript.Agent) models.TabScanStats {
	sess, w := a.Session(), a.Watcher()
	return models.TabScanStats{
		TabID:            tabID,
		URL:              sess.CurrentResult().URL,
		Scans:            sess.Scans(),
		Changes:          sess.Changes(),
		Rescans:          w.Rescans(),
		PendingMutations: w.Pending(),
	}
}

// Inject starts a content agent in the tab's current document, replacing any
// agent already there
func (h *Host) Inject(ctx context.Context, tabID int) error {
	tab, err := h.tab(tabID)
	if err != nil {
		return err
	}
	if pageURL := tab.URL(); IsRestricted(pageURL) {
		return fmt.Errorf("%s: %w", pageURL, ErrRestrictedPage)
	}

	h.closeAgent(tabID)
	if n := tab.drain(); n > 0 {
		h.logger.WithFields(logrus.Fields{"tab": tabID, "batches": n}).Debug("Dropped mutations from previous document")
	}

	// without mutation reports the agent still scans once
	var mutations <-chan watcher.MutationBatch
	if err := tab.observe(ctx); err != nil {
		h.logger.WithField("tab", tabID).WithError(err).Warn("Mutation observer unavailable")
	} else {
		mutations = tab.Mutations()
	}

	agent := contentscript.New(h.cfg.Bus, h.cfg.Extractor, contentscript.Config{
		TabID:    tabID,
		WindowID: tab.windowID,
		Page:     tab,
		Watcher:  h.cfg.Watcher,
		Options:  h.cfg.Options(),
		Logger:   h.cfg.Logger,
	})
	if err := agent.Start(h.ctx, mutations); err != nil {
		return fmt.Errorf("failed to start agent in tab %d: %w", tabID, err)
	}

	h.mu.Lock()
	h.agents[tabID] = agent
	h.mu.Unlock()
	return nil
}

func (h *Host) closeAgent(tabID int) {
	h.mu.Lock()
	agent, ok := h.agents[tabID]
	delete(h.agents, tabID)
	h.mu.Unlock()
	if ok {
		agent.Close()
	}
}

// CloseTab closes a tab and its agent
func (h *Host) CloseTab(tabID int) error {
	h.mu.Lock()
	tab, ok := h.tabs[tabID]
	delete(h.tabs, tabID)
	if h.activeID == tabID {
		h.activeID = 0
		for id := range h.tabs {
			if id > h.activeID {
				h.activeID = id
			}
		}
	}
	l := h.listener
	h.mu.Unlock()
	if !ok {
		return ErrTabNotFound
	}

	h.closeAgent(tabID)
	err := tab.close()
	if l != nil {
		l.OnTabRemoved(tabID)
	}
	return err
}

func (h *Host) tab(tabID int) (*Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tab, ok := h.tabs[tabID]
	if !ok {
		return nil, fmt.Errorf("tab %d: %w", tabID, ErrTabNotFound)
	}
	return tab, nil
}

// Close closes every tab and waits for event loops to finish
func (h *Host) Close() {
	h.mu.Lock()
	ids := make([]int, 0, len(h.tabs))
	for id := range h.tabs {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.CloseTab(id)
	}
	h.cancel()
	h.wg.Wait()
}
