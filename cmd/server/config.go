package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"bidscanner/internal/scraper"
	"bidscanner/internal/watcher"
)

// config is read from the environment first; flags override it
type config struct {
	port         string
	dbPath       string
	natsURL      string
	adaptersFile string
	optionsFile  string
	chromeBin    string
	headless     bool
	noBrowser    bool
	adminKey     string
	staticDir    string
	logLevel     string
	openURL      string

	initialDelay time.Duration
	rescanDelay  time.Duration
	coalesce     bool
}

func configFromEnv() *config {
	return &config{
		port:         getEnv("PORT", "8080"),
		dbPath:       getEnv("DB_PATH", "data/bidscanner.db"),
		natsURL:      os.Getenv("NATS_URL"),
		adaptersFile: os.Getenv("ADAPTERS_FILE"),
		optionsFile:  getEnv("OPTIONS_FILE", "data/options.json"),
		chromeBin:    os.Getenv("CHROME_BIN"),
		headless:     getEnvBool("HEADLESS", true),
		adminKey:     os.Getenv("ADMIN_KEY"),
		staticDir:    os.Getenv("STATIC_DIR"),
		logLevel:     getEnv("LOG_LEVEL", "info"),
		initialDelay: getEnvDuration("INITIAL_SCAN_DELAY", watcher.DefaultInitialDelay),
		rescanDelay:  getEnvDuration("RESCAN_DELAY", watcher.DefaultRescanDelay),
		coalesce:     getEnvBool("COALESCE_RESCANS", false),
	}
}

func (c *config) setupLogging() error {
	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.logLevel, err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// registry is the built-in adapters plus any declared in the adapters file
func (c *config) registry() (*scraper.Registry, error) {
	registry := scraper.DefaultRegistry()
	if c.adaptersFile == "" {
		return registry, nil
	}
	n, err := scraper.LoadAdapters(c.adaptersFile, registry)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"file": c.adaptersFile, "sites": n}).Info("Loaded site adapters")
	return registry, nil
}

func (c *config) watcherConfig() watcher.Config {
	return watcher.Config{
		InitialDelay: c.initialDelay,
		RescanDelay:  c.rescanDelay,
		Coalesce:     c.coalesce,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
