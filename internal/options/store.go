package options

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bidscanner/internal/models"
)

const DefaultFile = "data/options.json"

const fileVersion = "1.0"

// Bounds accepted from the options page
const (
	MinScanInterval  = 5
	MaxScanInterval  = 3600
	MinDataRetention = 1
	MaxDataRetention = 365
)

// optionsData represents the structure saved to file
type optionsData struct {
	Options   models.Options `json:"options"`
	LastSaved time.Time      `json:"lastSaved"`
	Version   string         `json:"version"`
}

// Store keeps the options-page settings in a JSON file
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore uses path, or DefaultFile when path is empty
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultFile
	}
	return &Store{path: path}
}

// Path is the backing file
func (s *Store) Path() string {
	return s.path
}

// Validate rejects values the options page would never produce
func Validate(o models.Options) error {
	if o.ScanInterval < MinScanInterval || o.ScanInterval > MaxScanInterval {
		return fmt.Errorf("scanInterval must be between %d and %d seconds", MinScanInterval, MaxScanInterval)
	}
	if o.DataRetention < MinDataRetention || o.DataRetention > MaxDataRetention {
		return fmt.Errorf("dataRetention must be between %d and %d days", MinDataRetention, MaxDataRetention)
	}
	return nil
}

// Save writes options to the file
func (s *Store) Save(o models.Options) error {
	if err := Validate(o); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data := optionsData{
		Options:   o,
		LastSaved: time.Now(),
		Version:   fileVersion,
	}
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	// Write then rename so readers never see a partial file
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write options file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace options file: %w", err)
	}
	return nil
}

// Load reads options, returning the defaults when nothing was saved yet.
// Fields missing from the file keep their default values.
func (s *Store) Load() (models.Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jsonData, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return models.DefaultOptions(), nil
	}
	if err != nil {
		return models.Options{}, fmt.Errorf("failed to read options file: %w", err)
	}

	data := optionsData{Options: models.DefaultOptions()}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return models.Options{}, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return data.Options, nil
}

// Clear removes the saved options so Load returns the defaults again
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove options file: %w", err)
	}
	return nil
}

// Age returns how long ago the options were last written
func (s *Store) Age() (time.Duration, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}

// Exists checks if the options file exists
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return !os.IsNotExist(err)
}
