package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bidscanner/internal/browser"
	"bidscanner/internal/cache"
	"bidscanner/internal/models"
	"bidscanner/internal/scraper"
)

func getCmdScan(cfg *config) *cobra.Command {
	var (
		file       string
		pageURL    string
		useBrowser bool
		cacheFile  string
		maxAge     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Extract one page and print the result as JSON",
		Long: `Extract one page and print the result as JSON.

  With a URL the page is fetched over HTTP, or rendered in Chrome with --browser.
  With --file the saved markup is read instead; --url sets the location used for
  adapter lookup.`,
		Example: `  bidscanner scan https://www.copart.com/lot/12345678
  bidscanner scan --file saved.html --url https://www.iaai.com/VehicleDetail/1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := cfg.registry()
			if err != nil {
				return err
			}
			extractor := scraper.NewExtractor(registry)

			var result models.ExtractionResult
			switch {
			case file != "":
				markup, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				page, err := scraper.NewStaticPage(pageURL, string(markup))
				if err != nil {
					return err
				}
				result = extractor.Extract(cmd.Context(), page)

			case len(args) == 1:
				var results *cache.ScanCache
				if cacheFile != "" {
					results = cache.New(cacheFile, maxAge)
					if cached, ok := results.Get(args[0]); ok {
						logrus.WithField("url", args[0]).Info("Using cached scan")
						result = cached
						break
					}
				}

				var loader scraper.PageLoader
				if useBrowser {
					manager := browser.NewManager(browser.Config{Headless: true, ChromeBin: cfg.chromeBin})
					if err := manager.Launch(cmd.Context()); err != nil {
						return err
					}
					defer manager.Close()
					loader = manager
				}
				result, err = scraper.New(loader, extractor).ScanURL(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if results != nil {
					if err := results.Put(args[0], result); err != nil {
						logrus.WithError(err).Warn("Failed to cache scan")
					}
				}

			default:
				return errors.New("a URL or --file is required")
			}

			logrus.WithFields(logrus.Fields{
				"vehicle": result.Vehicle != nil,
				"bids":    len(result.Bids),
			}).Debug("Scan complete")

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read markup from a saved HTML file")
	cmd.Flags().StringVar(&pageURL, "url", "", "page URL to report with --file")
	cmd.Flags().BoolVar(&useBrowser, "browser", false, "render the page in Chrome before extracting")
	cmd.Flags().StringVar(&cacheFile, "cache", "", "reuse results cached in this file (e.g. "+cache.DefaultFile+")")
	cmd.Flags().DurationVar(&maxAge, "max-age", cache.DefaultExpiry, "how long a cached result stays fresh")
	return cmd
}
