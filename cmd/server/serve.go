package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bidscanner/internal/background"
	"bidscanner/internal/bidrequest"
	"bidscanner/internal/browser"
	"bidscanner/internal/database"
	"bidscanner/internal/messaging"
	"bidscanner/internal/models"
	"bidscanner/internal/options"
	"bidscanner/internal/panel"
	"bidscanner/internal/scraper"
)

const (
	retentionInterval = time.Hour
	shutdownTimeout   = 10 * time.Second
)

func getCmdServe(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the browser host, background worker and panel API",
		Long: `Run the browser host, background worker and panel API.

  Tabs opened in the managed browser get a content agent on every completed
  navigation. The panel API listens on PORT (default 8080).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.port, "port", cfg.port, "HTTP port for the panel API")
	flags.StringVar(&cfg.dbPath, "db", cfg.dbPath, "sqlite database path")
	flags.StringVar(&cfg.natsURL, "nats", cfg.natsURL, "NATS server URL for bid requests (empty stores them as pending)")
	flags.StringVar(&cfg.optionsFile, "options", cfg.optionsFile, "options file path")
	flags.StringVar(&cfg.chromeBin, "chrome", cfg.chromeBin, "Chrome binary (default: search common paths)")
	flags.BoolVar(&cfg.headless, "headless", cfg.headless, "run Chrome headless")
	flags.BoolVar(&cfg.noBrowser, "no-browser", cfg.noBrowser, "serve the API without launching Chrome")
	flags.StringVar(&cfg.openURL, "open", cfg.openURL, "open this URL in a tab and show the side panel")
	flags.StringVar(&cfg.staticDir, "static", cfg.staticDir, "directory with the panel front-end")
	flags.DurationVar(&cfg.initialDelay, "initial-delay", cfg.initialDelay, "delay before a tab's first scan")
	flags.DurationVar(&cfg.rescanDelay, "rescan-delay", cfg.rescanDelay, "delay between a DOM mutation and its rescan")
	flags.BoolVar(&cfg.coalesce, "coalesce", cfg.coalesce, "collapse bursts of mutations into one rescan")
	return cmd
}

func serve(ctx context.Context, cfg *config) error {
	logger := logrus.StandardLogger()

	db, err := database.NewDatabase(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	opts := options.NewStore(cfg.optionsFile)
	currentOptions := func() models.Options {
		o, err := opts.Load()
		if err != nil {
			logger.WithError(err).Warn("Failed to load options, using defaults")
			return models.DefaultOptions()
		}
		return o
	}

	registry, err := cfg.registry()
	if err != nil {
		return err
	}
	extractor := scraper.NewExtractor(registry, scraper.WithLogger(logger))

	bus := messaging.New(messaging.WithLogger(logger))
	defer bus.Close()

	hub := panel.NewHub(bus, logger)
	defer hub.Close()

	manager := browser.NewManager(browser.Config{
		Headless:  cfg.headless,
		ChromeBin: cfg.chromeBin,
		Logger:    logger,
	})
	if !cfg.noBrowser {
		if err := manager.Launch(ctx); err != nil {
			return err
		}
	}
	defer manager.Close()

	host := browser.NewHost(manager, browser.HostConfig{
		Bus:       bus,
		Extractor: extractor,
		Watcher:   cfg.watcherConfig(),
		Options:   currentOptions,
		Logger:    logger,
	})
	defer host.Close()

	worker := background.New(bus, background.Deps{
		Tabs:     host,
		Injector: host,
		Panel:    hub,
		Store:    db,
		Logger:   logger,
	})
	if err := worker.Start(); err != nil {
		return err
	}
	defer worker.Close()
	host.SetListener(worker)

	installed, err := db.Installed(ctx)
	if err != nil {
		return err
	}
	reason := models.InstallReasonInstall
	if installed {
		reason = models.InstallReasonUpdate
	}
	if err := worker.OnInstalled(ctx, reason); err != nil {
		return err
	}

	var nc *nats.Conn
	if cfg.natsURL != "" {
		nc, err = nats.Connect(cfg.natsURL, nats.Name("bidscanner"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Drain()
	}
	bids := bidrequest.NewService(db, nc,
		bidrequest.WithLogger(logger),
		bidrequest.WithOfferHook(hub.PublishOffer))
	if nc != nil {
		if _, err := bids.StartOfferConsumer(nc); err != nil {
			return fmt.Errorf("failed to subscribe to offers: %w", err)
		}
	}
	retentionCtx, stopRetention := context.WithCancel(ctx)
	retentionDone := make(chan struct{})
	go func() {
		defer close(retentionDone)
		bids.RunRetention(retentionCtx, retentionInterval, func() time.Duration {
			return time.Duration(currentOptions().DataRetention) * 24 * time.Hour
		})
	}()
	defer func() { <-retentionDone }()
	defer stopRetention()

	if gin.Mode() == gin.ReleaseMode && cfg.adminKey == "" {
		logger.Warn("ADMIN_KEY is not set, admin routes are disabled")
	}
	routerCfg := panel.DefaultRouterConfig()
	routerCfg.AdminKey = cfg.adminKey
	routerCfg.StaticDir = cfg.staticDir
	handler := panel.NewHandler(bus, hub, host, db, opts, bids, registry)
	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           panel.NewRouter(ctx, handler, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.openURL != "" {
		tab, err := host.OpenTab(ctx, cfg.openURL)
		if err != nil {
			return err
		}
		// same as clicking the toolbar icon on the new tab
		if err := worker.OnActionClicked(ctx, &tab); err != nil {
			logger.WithError(err).Warn("Failed to open side panel")
		}
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.port).Info("Server starting")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
