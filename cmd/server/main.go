// Bid Scanner panel API
// @title Bid Scanner Panel API
// @version 1.0
// @description Side panel API for the vehicle bid scanner: tab scans, buyers and bid requests
// @host localhost:8080
// @BasePath /

package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	_ "bidscanner/docs"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	cfg := configFromEnv()
	root := newRootCmd(cfg)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config) *cobra.Command {
	serve := getCmdServe(cfg)

	root := &cobra.Command{
		Use:           "bidscanner",
		Short:         "Scan vehicle listings and send them to buyers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.setupLogging()
		},
		// serve is the default
		RunE: serve.RunE,
	}
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", cfg.logLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.adaptersFile, "adapters", cfg.adaptersFile, "YAML file with extra site adapters")
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, getCmdScan(cfg))
	return root
}
