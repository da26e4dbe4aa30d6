// Package browser hosts real tabs in headless Chrome. It plays the part of
// the browser platform: it opens tabs, reports navigation, injects the
// content agent and answers which tab is active.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"

	"bidscanner/internal/scraper"
)

const stableWait = 500 * time.Millisecond

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var ErrNotLaunched = errors.New("browser not launched")

// Config controls how Chrome is started
type Config struct {
	Headless  bool
	ChromeBin string // empty searches CHROME_BIN and the usual install paths
	UserAgent string
	Logger    logrus.FieldLogger
}

// Manager owns the Chrome process
type Manager struct {
	cfg    Config
	logger logrus.FieldLogger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewManager creates a manager. Chrome starts on Launch.
func NewManager(cfg Config) *Manager {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Manager{cfg: cfg, logger: cfg.Logger.WithField("context", "browser")}
}

// Launch starts Chrome and connects to it. Launching twice is a no-op.
func (m *Manager) Launch(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != nil {
		return nil
	}

	l := m.newLauncher().Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	m.launcher = l
	m.browser = b
	m.logger.WithField("headless", m.cfg.Headless).Info("Browser launched")
	return nil
}

func (m *Manager) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(m.cfg.Headless).
		Set("user-agent", m.cfg.UserAgent).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-first-run").
		Set("disable-default-apps")

	if bin := m.chromePath(); bin != "" {
		m.logger.WithField("bin", bin).Debug("Using installed Chrome")
		l = l.Bin(bin)
	}

	if isDockerEnvironment() {
		m.logger.Debug("Container detected, applying sandbox flags")
		l = l.NoSandbox(true).Set("disable-setuid-sandbox")
	}
	return l
}

func (m *Manager) chromePath() string {
	if m.cfg.ChromeBin != "" {
		return m.cfg.ChromeBin
	}
	return findChromiumPath()
}

// NewPage opens a blank stealth page
func (m *Manager) NewPage(ctx context.Context) (*rod.Page, error) {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()
	if b == nil {
		return nil, ErrNotLaunched
	}

	page, err := stealth.Page(b.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return page.Context(context.Background()), nil
}

// Load implements scraper.PageLoader: it renders pageURL in a fresh page.
// The returned page must be closed.
func (m *Manager) Load(ctx context.Context, pageURL string) (scraper.Page, error) {
	page, err := m.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	p := page.Context(ctx)
	if err := p.Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		page.Close()
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}
	// let client-side rendering settle the way a user would see it
	if err := p.WaitStable(stableWait); err != nil {
		m.logger.WithField("url", pageURL).WithError(err).Debug("Page did not settle")
	}
	return &renderedPage{page: page}, nil
}

// Close shuts Chrome down
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.launcher.Kill()
	m.browser = nil
	m.launcher = nil
	return err
}

// renderedPage is a one-shot page loaded for the CLI scanner
type renderedPage struct {
	page *rod.Page
}

func (p *renderedPage) URL() string   { return pageInfo(p.page).URL }
func (p *renderedPage) Title() string { return pageInfo(p.page).Title }

func (p *renderedPage) Document(ctx context.Context) (*goquery.Document, error) {
	return documentOf(ctx, p.page)
}

func (p *renderedPage) Close() error { return p.page.Close() }

func pageInfo(page *rod.Page) proto.TargetTargetInfo {
	info, err := page.Info()
	if err != nil || info == nil {
		return proto.TargetTargetInfo{}
	}
	return *info
}

// findChromiumPath looks for a Chrome or Chromium binary in common locations
func findChromiumPath() string {
	if chromeBin := os.Getenv("CHROME_BIN"); chromeBin != "" {
		if _, err := os.Stat(chromeBin); err == nil {
			return chromeBin
		}
	}

	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
		"/opt/google/chrome/chrome",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// isDockerEnvironment checks if running inside Docker
func isDockerEnvironment() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		cgroup := string(data)
		return strings.Contains(cgroup, "docker") || strings.Contains(cgroup, "containerd")
	}
	return false
}
