package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"bidscanner/internal/models"
	"bidscanner/internal/watcher"
)

const (
	mutationBinding = "__bidscannerMutations"
	mutationBuffer  = 64
)

// observerScript reports every MutationObserver callback's added-node count
// through the runtime binding. Injecting it twice into one document is harmless.
const observerScript = `() => {
	if (window.__bidscannerObserver) return;
	window.__bidscannerObserver = new MutationObserver((records) => {
		let added = 0;
		for (const r of records) added += r.addedNodes.length;
		window.` + mutationBinding + `(added);
	});
	window.__bidscannerObserver.observe(document.documentElement || document, { childList: true, subtree: true });
}`

// Tab is one browser tab. It is read by the extractor as a scraper.Page.
type Tab struct {
	id       int
	windowID int
	page     *rod.Page

	mu        sync.Mutex
	mutations chan watcher.MutationBatch
	closed    bool
	unbind    func() error
}

func newTab(id, windowID int, page *rod.Page) *Tab {
	return &Tab{
		id:        id,
		windowID:  windowID,
		page:      page,
		mutations: make(chan watcher.MutationBatch, mutationBuffer),
	}
}

func (t *Tab) ID() int { return t.id }

func (t *Tab) WindowID() int { return t.windowID }

// URL is the tab's current location
func (t *Tab) URL() string { return pageInfo(t.page).URL }

// Title is the current document.title
func (t *Tab) Title() string { return pageInfo(t.page).Title }

// Document snapshots the live DOM
func (t *Tab) Document(ctx context.Context) (*goquery.Document, error) {
	return documentOf(ctx, t.page)
}

// Mutations delivers one batch per observer callback. Batches are dropped
// while the channel is full.
func (t *Tab) Mutations() <-chan watcher.MutationBatch {
	return t.mutations
}

// Model describes the tab the way the platform reports it
func (t *Tab) Model(active bool) models.Tab {
	info := pageInfo(t.page)
	return models.Tab{ID: t.id, WindowID: t.windowID, URL: info.URL, Title: info.Title, Active: active}
}

// bind installs the runtime binding once per tab. It survives navigation.
func (t *Tab) bind() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unbind != nil || t.closed {
		return nil
	}
	stop, err := t.page.Expose(mutationBinding, func(arg gson.JSON) (interface{}, error) {
		t.report(arg.Int())
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to expose mutation binding: %w", err)
	}
	t.unbind = stop
	return nil
}

func (t *Tab) report(added int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.mutations <- watcher.MutationBatch{AddedNodes: added, At: time.Now()}:
	default:
	}
}

// drain discards batches still buffered from an earlier document
func (t *Tab) drain() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0
	}
	n := 0
	for {
		select {
		case <-t.mutations:
			n++
		default:
			return n
		}
	}
}

// observe starts the MutationObserver in the current document
func (t *Tab) observe(ctx context.Context) error {
	if err := t.bind(); err != nil {
		return err
	}
	if _, err := t.page.Context(ctx).Eval(observerScript); err != nil {
		return fmt.Errorf("failed to start mutation observer: %w", err)
	}
	return nil
}

func (t *Tab) close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	unbind := t.unbind
	close(t.mutations)
	t.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	return t.page.Close()
}

func documentOf(ctx context.Context, page *rod.Page) (*goquery.Document, error) {
	res, err := page.Context(ctx).Eval(`() => document.documentElement ? document.documentElement.outerHTML : ""`)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(res.Value.Str()))
}
