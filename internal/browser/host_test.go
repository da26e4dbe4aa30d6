package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidscanner/internal/contentscript"
	"bidscanner/internal/messaging"
	"bidscanner/internal/models"
	"bidscanner/internal/scraper"
	"bidscanner/internal/watcher"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestIsRestricted(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"chrome://settings", true},
		{"CHROME://extensions", true},
		{"about:blank", true},
		{"devtools://devtools/bundled/inspector.html", true},
		{"chrome-extension://abc/popup.html", true},
		{"", true},
		{"https://www.copart.com/lot/123", false},
		{"http://localhost:8080/", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRestricted(tt.url))
		})
	}
}

func TestHostWithoutTabs(t *testing.T) {
	host := NewHost(NewManager(Config{Logger: quietLogger()}), HostConfig{Logger: quietLogger()})
	defer host.Close()

	_, err := host.ActiveTab(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveTab)
	assert.ErrorIs(t, host.Inject(context.Background(), 3), ErrTabNotFound)
	assert.ErrorIs(t, host.Activate(3), ErrTabNotFound)
	assert.ErrorIs(t, host.CloseTab(3), ErrTabNotFound)
	assert.Empty(t, host.Tabs())
}

func TestOpenTabBeforeLaunch(t *testing.T) {
	host := NewHost(NewManager(Config{Logger: quietLogger()}), HostConfig{Logger: quietLogger()})
	defer host.Close()

	_, err := host.OpenTab(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrNotLaunched)
}

func TestFindChromiumPathPrefersEnv(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(bin, []byte{}, 0o755))
	t.Setenv("CHROME_BIN", bin)

	assert.Equal(t, bin, findChromiumPath())
	assert.Equal(t, "/custom/chrome", NewManager(Config{ChromeBin: "/custom/chrome"}).chromePath())
}

func TestTabDrainDropsStaleBatches(t *testing.T) {
	tab := newTab(4, DefaultWindowID, nil)
	tab.report(3)
	tab.report(1)

	assert.Equal(t, 2, tab.drain())
	assert.Empty(t, tab.Mutations())

	tab.report(5)
	require.Len(t, tab.Mutations(), 1)
	assert.Equal(t, 5, (<-tab.Mutations()).AddedNodes)
}

func TestScanStatsPerAgent(t *testing.T) {
	host := NewHost(NewManager(Config{Logger: quietLogger()}), HostConfig{Logger: quietLogger()})
	defer host.Close()
	assert.Empty(t, host.ScanStats())

	bus := messaging.New(messaging.WithLogger(quietLogger()))
	defer bus.Close()
	page, err := scraper.NewStaticPage("https://www.copart.com/lot/12345678", `<html><body>
		<span data-uname="lotsearchVin">1GKS1AKC8FR106564</span>
		<div class="price-box">$4,250.00</div>
	</body></html>`)
	require.NoError(t, err)
	agent := contentscript.New(bus, scraper.NewExtractor(scraper.DefaultRegistry()), contentscript.Config{
		TabID:    9,
		WindowID: DefaultWindowID,
		Page:     page,
		Logger:   quietLogger(),
	})
	defer agent.Close()
	agent.Scan(context.Background())
	agent.Scan(context.Background())

	host.mu.Lock()
	host.agents[9] = agent
	host.mu.Unlock()

	stats := host.ScanStats()
	require.Len(t, stats, 1)
	assert.Equal(t, models.TabScanStats{
		TabID:   9,
		URL:     "https://www.copart.com/lot/12345678",
		Scans:   2,
		Changes: 1,
	}, stats[0])
}

type injectingListener struct {
	host *Host

	mu      sync.Mutex
	updated []int
	removed []int
}

func (l *injectingListener) OnTabUpdated(ctx context.Context, tabID int, change models.TabChange, tab models.Tab) {
	l.mu.Lock()
	l.updated = append(l.updated, tabID)
	l.mu.Unlock()
	if change.Status == models.TabComplete {
		l.host.Inject(ctx, tabID)
	}
}

func (l *injectingListener) OnTabRemoved(tabID int) {
	l.mu.Lock()
	l.removed = append(l.removed, tabID)
	l.mu.Unlock()
}

// TestHostScansLivePage drives a real Chrome; it is skipped where none is installed
func TestHostScansLivePage(t *testing.T) {
	if findChromiumPath() == "" {
		t.Skip("no Chrome binary available")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Lot 42</title></head><body>
			<div class="current-bid">$7,100</div>
			<script>setTimeout(() => {
				const d = document.createElement('div');
				d.className = 'bid-history';
				d.textContent = '$7,250';
				document.body.appendChild(d);
			}, 200);</script>
		</body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	manager := NewManager(Config{Headless: true, Logger: quietLogger()})
	if err := manager.Launch(ctx); err != nil {
		t.Skipf("browser failed to launch: %v", err)
	}
	defer manager.Close()

	bus := messaging.New()
	defer bus.Close()

	host := NewHost(manager, HostConfig{
		Bus:       bus,
		Extractor: scraper.NewExtractor(scraper.DefaultRegistry()),
		Watcher:   watcher.Config{InitialDelay: 50 * time.Millisecond, RescanDelay: 50 * time.Millisecond},
		Logger:    quietLogger(),
	})
	listener := &injectingListener{host: host}
	host.SetListener(listener)
	defer host.Close()

	tab, err := host.OpenTab(ctx, srv.URL)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		agent, ok := host.Agent(tab.ID)
		return ok && len(agent.Session().CurrentResult().Bids) == 2
	}, 10*time.Second, 50*time.Millisecond)

	active, err := host.ActiveTab(ctx)
	require.NoError(t, err)
	assert.Equal(t, tab.ID, active.ID)
	assert.Equal(t, "Lot 42", active.Title)

	require.NoError(t, host.CloseTab(tab.ID))
	assert.False(t, bus.Registered(messaging.TabAddress(tab.ID)))
	listener.mu.Lock()
	assert.Equal(t, []int{tab.ID}, listener.removed)
	listener.mu.Unlock()
}
