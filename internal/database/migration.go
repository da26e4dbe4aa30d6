package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"bidscanner/internal/models"
)

const metaBuyersSeeded = "buyers_seeded"

// SeedBuyersFromJSON loads a buyer directory exported as JSON. It runs once per
// database; later calls are skipped and report zero.
func (d *Database) SeedBuyersFromJSON(ctx context.Context, jsonPath string) (int, error) {
	var seeded string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM database_metadata WHERE key = ?", metaBuyersSeeded).Scan(&seeded)
	if err == nil && seeded != "" {
		logrus.Info("Buyers already seeded, skipping...")
		return 0, nil
	}

	file, err := os.Open(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open buyers file: %w", err)
	}
	defer file.Close()

	var data struct {
		Buyers []models.Buyer `json:"buyers"`
	}
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return 0, fmt.Errorf("failed to decode buyers JSON: %w", err)
	}

	for i := range data.Buyers {
		buyer := data.Buyers[i]
		if buyer.Name == "" {
			return 0, fmt.Errorf("buyer %d has no name", i)
		}
		if err := d.CreateBuyer(ctx, &buyer); err != nil {
			return 0, fmt.Errorf("failed to insert buyer %s: %w", buyer.Name, err)
		}
	}

	if _, err := d.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO database_metadata (key, value) VALUES (?, ?)",
		metaBuyersSeeded, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, fmt.Errorf("failed to update seed status: %w", err)
	}

	logrus.WithField("count", len(data.Buyers)).Info("Seeded buyers into database")
	return len(data.Buyers), nil
}

// BackupFiles copies the named files from dataDir into a timestamped
// subdirectory. Missing files are skipped.
func BackupFiles(dataDir string, files []string) (string, error) {
	backupDir := fmt.Sprintf("%s/backup_%d", dataDir, time.Now().Unix())

	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	for _, filename := range files {
		srcPath := fmt.Sprintf("%s/%s", dataDir, filename)
		dstPath := fmt.Sprintf("%s/%s", backupDir, filename)

		if _, err := os.Stat(srcPath); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return "", fmt.Errorf("failed to backup %s: %w", filename, err)
		}
	}

	logrus.WithField("dir", backupDir).Info("Data backed up")
	return backupDir, nil
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
