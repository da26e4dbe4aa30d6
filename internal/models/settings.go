package models

// Preferences are the nested user preferences stored next to the auth flag
type Preferences struct {
	AutoScan      bool `json:"autoScan"`
	Notifications bool `json:"notifications"`
}

// Settings mirrors the flat key-value store written at install time
type Settings struct {
	IsAuthenticated bool        `json:"isAuthenticated"`
	UserPreferences Preferences `json:"userPreferences"`
}

// DefaultSettings are written exactly once, on first install
func DefaultSettings() Settings {
	return Settings{
		IsAuthenticated: false,
		UserPreferences: Preferences{
			AutoScan:      false,
			Notifications: true,
		},
	}
}

// Options are the options-page settings kept in the synced store
type Options struct {
	AutoScan      bool `json:"autoScan"`
	Notifications bool `json:"notifications"`
	ScanInterval  int  `json:"scanInterval"`  // seconds between periodic rescans when AutoScan is on
	DataRetention int  `json:"dataRetention"` // days before pending bid requests expire
}

// DefaultOptions matches what the options page shows before anything is saved
func DefaultOptions() Options {
	return Options{
		AutoScan:      false,
		Notifications: true,
		ScanInterval:  30,
		DataRetention: 30,
	}
}
