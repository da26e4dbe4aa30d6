package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bidscanner/internal/models"
)

//go:embed schema.sql
var schema string

// Setting keys
const (
	KeyIsAuthenticated = "isAuthenticated"
	KeyUserPreferences = "userPreferences"
)

const metaDefaultsInitialized = "defaults_initialized"

var (
	ErrBuyerNotFound      = errors.New("buyer not found")
	ErrBidRequestNotFound = errors.New("bid request not found")
	ErrOfferNotFound      = errors.New("offer not found")
)

type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_cache_size=10000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	database := &Database{db: db}
	if err := database.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks the connection is usable
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) initializeSchema() error {
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Metadata returns every database_metadata row
func (d *Database) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key, value FROM database_metadata ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Installed reports whether defaults were ever written, i.e. whether the
// next start is an update rather than a first install
func (d *Database) Installed(ctx context.Context) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM database_metadata WHERE key = ?`, metaDefaultsInitialized).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to read install state: %w", err)
	}
	return n > 0, nil
}

// Settings methods

// InitializeDefaults writes defaults the first time it is called for this
// database and reports whether it did. Later calls leave settings untouched.
func (d *Database) InitializeDefaults(ctx context.Context, defaults models.Settings) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO database_metadata (key, value) VALUES (?, ?)`,
		metaDefaultsInitialized, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to mark defaults: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if err := writeSettings(ctx, tx, defaults); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// ResetSettings overwrites settings with defaults without touching the install guard
func (d *Database) ResetSettings(ctx context.Context, defaults models.Settings) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := writeSettings(ctx, tx, defaults); err != nil {
		return err
	}
	return tx.Commit()
}

func writeSettings(ctx context.Context, tx *sql.Tx, s models.Settings) error {
	if err := putSetting(ctx, tx, KeyIsAuthenticated, s.IsAuthenticated); err != nil {
		return err
	}
	return putSetting(ctx, tx, KeyUserPreferences, s.UserPreferences)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func putSetting(ctx context.Context, ex execer, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(raw), time.Now())
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// getSetting decodes key into v and reports whether the key exists
func (d *Database) getSetting(ctx context.Context, key string, v interface{}) (bool, error) {
	var raw string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return true, nil
}

// AuthStatus reads isAuthenticated, false when unset
func (d *Database) AuthStatus(ctx context.Context) (bool, error) {
	var v bool
	if _, err := d.getSetting(ctx, KeyIsAuthenticated, &v); err != nil {
		return false, err
	}
	return v, nil
}

// SetAuthStatus writes isAuthenticated
func (d *Database) SetAuthStatus(ctx context.Context, authenticated bool) error {
	return putSetting(ctx, d.db, KeyIsAuthenticated, authenticated)
}

// Settings reads the whole settings document. Missing keys keep their defaults.
func (d *Database) Settings(ctx context.Context) (models.Settings, error) {
	s := models.DefaultSettings()
	if _, err := d.getSetting(ctx, KeyIsAuthenticated, &s.IsAuthenticated); err != nil {
		return s, err
	}
	if _, err := d.getSetting(ctx, KeyUserPreferences, &s.UserPreferences); err != nil {
		return s, err
	}
	return s, nil
}

// SetPreferences writes userPreferences
func (d *Database) SetPreferences(ctx context.Context, p models.Preferences) error {
	return putSetting(ctx, d.db, KeyUserPreferences, p)
}
