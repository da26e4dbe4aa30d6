package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSeedBuyersFromJSON(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	jsonData := `{"buyers":[
		{"name":"Mike Johnson","company":"Johnson Auto Sales","rating":4.8,"specialties":["Honda","Toyota","Nissan"]},
		{"name":"Sarah Martinez","company":"Elite Auto Group","rating":4.9,"specialties":["BMW","Mercedes","Audi"]}
	]}`
	jsonPath := filepath.Join(t.TempDir(), "buyers.json")
	if err := os.WriteFile(jsonPath, []byte(jsonData), 0o644); err != nil {
		t.Fatalf("failed to write json: %v", err)
	}

	n, err := db.SeedBuyersFromJSON(ctx, jsonPath)
	if err != nil || n != 2 {
		t.Fatalf("first seed: n=%d err=%v", n, err)
	}

	// Second run should detect the completed seed and skip
	n, err = db.SeedBuyersFromJSON(ctx, jsonPath)
	if err != nil || n != 0 {
		t.Fatalf("second seed: n=%d err=%v", n, err)
	}

	count, err := db.CountBuyers(ctx)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 buyers, got %d err=%v", count, err)
	}
}

func TestSeedBuyersRejectsNamelessBuyer(t *testing.T) {
	db := newTestDatabase(t)
	jsonPath := filepath.Join(t.TempDir(), "buyers.json")
	if err := os.WriteFile(jsonPath, []byte(`{"buyers":[{"company":"Nobody"}]}`), 0o644); err != nil {
		t.Fatalf("failed to write json: %v", err)
	}
	if _, err := db.SeedBuyersFromJSON(context.Background(), jsonPath); err == nil {
		t.Fatalf("expected error for buyer without name")
	}
}

func TestBackupFiles(t *testing.T) {
	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, "options.json"), []byte(`{"autoScan":true}`), 0o644); err != nil {
		t.Fatalf("failed to write options: %v", err)
	}

	backupDir, err := BackupFiles(dataDir, []string{"options.json", "adapters.yaml"})
	if err != nil {
		t.Fatalf("BackupFiles failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(backupDir, "options.json"))
	if err != nil || string(data) != `{"autoScan":true}` {
		t.Fatalf("backup content mismatch: %q err=%v", data, err)
	}
	if _, err := os.Stat(filepath.Join(backupDir, "adapters.yaml")); !os.IsNotExist(err) {
		t.Fatalf("missing source file should be skipped")
	}
}
