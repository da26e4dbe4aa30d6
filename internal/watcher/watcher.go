// Package watcher re-triggers page extraction when the DOM grows.
//
// A Watcher runs one unconditional scan after InitialDelay, then turns each
// mutation batch that added nodes into a rescan RescanDelay later. By default
// every qualifying batch arms its own timer, so a burst of N batches produces
// N rescans. With Coalesce set, a burst collapses into a single trailing
// rescan that fires RescanDelay after the last batch.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultInitialDelay = 2 * time.Second
	DefaultRescanDelay  = 1 * time.Second
)

// State of the rescan state machine
type State int

const (
	Idle State = iota
	PendingRescan
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingRescan:
		return "pending_rescan"
	default:
		return "unknown"
	}
}

// MutationBatch summarizes one MutationObserver callback
type MutationBatch struct {
	AddedNodes int
	At         time.Time
}

// Config controls scan timing
type Config struct {
	InitialDelay time.Duration
	RescanDelay  time.Duration
	Coalesce     bool
	Logger       logrus.FieldLogger
}

func (c *Config) defaults() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.RescanDelay <= 0 {
		c.RescanDelay = DefaultRescanDelay
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}

// ScanFunc performs one extraction. It is called from timer goroutines.
type ScanFunc func(ctx context.Context)

// Watcher schedules scans for one page
type Watcher struct {
	cfg  Config
	scan ScanFunc

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	initial *time.Timer
	armed   map[*time.Timer]struct{}
	started bool
	stopped bool
	rescans int

	wg sync.WaitGroup
}

// New creates a watcher that calls scan on schedule
func New(cfg Config, scan ScanFunc) *Watcher {
	cfg.defaults()
	return &Watcher{
		cfg:   cfg,
		scan:  scan,
		armed: make(map[*time.Timer]struct{}),
	}
}

// Start arms the initial scan. Calling it twice is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(ctx)

	var t *time.Timer
	t = time.AfterFunc(w.cfg.InitialDelay, func() {
		if !w.claim(&t, true) {
			return
		}
		defer w.wg.Done()
		w.cfg.Logger.Debug("Running initial scan")
		w.scan(w.ctx)
	})
	w.initial = t
}

// Observe feeds batches from ch into Notify until ch closes or the watcher stops
func (w *Watcher) Observe(ch <-chan MutationBatch) {
	w.mu.Lock()
	if w.stopped || !w.started {
		w.mu.Unlock()
		return
	}
	ctx := w.ctx
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-ch:
				if !ok {
					return
				}
				w.Notify(batch)
			}
		}
	}()
}

// Notify schedules a rescan if the batch added at least one node
func (w *Watcher) Notify(batch MutationBatch) {
	if batch.AddedNodes <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || !w.started {
		return
	}

	if w.cfg.Coalesce && len(w.armed) > 0 {
		for t := range w.armed {
			t.Stop()
			delete(w.armed, t)
		}
	}

	var t *time.Timer
	t = time.AfterFunc(w.cfg.RescanDelay, func() {
		if !w.claim(&t, false) {
			return
		}
		defer w.wg.Done()
		w.cfg.Logger.WithField("added_nodes", batch.AddedNodes).Debug("Running mutation rescan")
		w.scan(w.ctx)
	})
	w.armed[t] = struct{}{}
}

// claim removes a fired timer from the armed set and reports whether its scan
// should still run. A timer that was replaced or cancelled loses the claim.
func (w *Watcher) claim(tp **time.Timer, initial bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := *tp
	if w.stopped {
		return false
	}
	if initial {
		if w.initial != t {
			return false
		}
		w.initial = nil
	} else {
		if _, ok := w.armed[t]; !ok {
			return false
		}
		delete(w.armed, t)
		w.rescans++
	}
	w.wg.Add(1)
	return true
}

// State is PendingRescan while any rescan timer is armed
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.armed) > 0 {
		return PendingRescan
	}
	return Idle
}

// Pending counts armed rescan timers
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.armed)
}

// Rescans counts rescans that have fired
func (w *Watcher) Rescans() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rescans
}

// Stop cancels every armed timer and waits for in-flight scans to return
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	if w.initial != nil {
		w.initial.Stop()
		w.initial = nil
	}
	for t := range w.armed {
		t.Stop()
		delete(w.armed, t)
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.wg.Wait()
}
