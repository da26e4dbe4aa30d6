package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"bidscanner/internal/database"
	"bidscanner/internal/models"
)

func main() {
	godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/bidscanner.db"
	}

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Bid Scanner database tool",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "🗃️  Bid Scanner Database Tool")
			fmt.Fprintln(cmd.OutOrStdout(), "==============================")
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "db", dbPath, "sqlite database path")

	withDB := func(fn func(cmd *cobra.Command, db *database.Database, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, err := database.NewDatabase(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			return fn(cmd, db, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the schema and write install defaults",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *database.Database, _ []string) error {
				written, err := db.InitializeDefaults(cmd.Context(), models.DefaultSettings())
				if err != nil {
					return err
				}
				if written {
					fmt.Fprintln(cmd.OutOrStdout(), "✅ Database initialized with default settings")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "✅ Database already initialized, settings untouched")
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show schema metadata and row counts",
			Args:  cobra.NoArgs,
			RunE:  withDB(showStatus),
		},
		&cobra.Command{
			Use:   "reset-settings",
			Short: "Overwrite settings with install defaults",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *database.Database, _ []string) error {
				if err := db.ResetSettings(cmd.Context(), models.DefaultSettings()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✅ Settings reset to defaults")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "seed-buyers [file]",
			Short: "Import a buyer directory from JSON (once per database)",
			Args:  cobra.MaximumNArgs(1),
			RunE: withDB(func(cmd *cobra.Command, db *database.Database, args []string) error {
				path := "data/buyers.json"
				if len(args) == 1 {
					path = args[0]
				}
				n, err := db.SeedBuyersFromJSON(cmd.Context(), path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %d buyers from %s\n", n, path)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "backup",
			Short: "Copy the database and options file into a timestamped directory",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				dir := filepath.Dir(dbPath)
				dst, err := database.BackupFiles(dir, []string{filepath.Base(dbPath), "options.json"})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Backup written to %s\n", dst)
				return nil
			},
		},
	)
	return root
}

func showStatus(cmd *cobra.Command, db *database.Database, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	meta, err := db.Metadata(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(out, "Metadata:")
	for _, k := range keys {
		fmt.Fprintf(out, "  %-22s %s\n", k, meta[k])
	}

	buyers, err := db.CountBuyers(ctx)
	if err != nil {
		return err
	}
	settings, err := db.Settings(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Buyers:                 %d\n", buyers)
	fmt.Fprintf(out, "Authenticated:          %v\n", settings.IsAuthenticated)
	fmt.Fprintf(out, "Auto scan:              %v\n", settings.UserPreferences.AutoScan)
	fmt.Fprintf(out, "Notifications:          %v\n", settings.UserPreferences.Notifications)
	return nil
}
