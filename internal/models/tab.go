package models

// Tab status values reported by the host on navigation
const (
	TabLoading  = "loading"
	TabComplete = "complete"
)

// Install reasons passed to the background worker
const (
	InstallReasonInstall = "install"
	InstallReasonUpdate  = "update"
)

// Tab is a browser tab as seen by the extension
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"windowId"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
	Active   bool   `json:"active"`
}

// TabChange describes one navigation update for a tab
type TabChange struct {
	Status string `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
}

// TabScanStats is the scan activity of the content agent in one tab
type TabScanStats struct {
	TabID            int    `json:"tabId"`
	URL              string `json:"url,omitempty"`
	Scans            int    `json:"scans"`
	Changes          int    `json:"changes"`
	Rescans          int    `json:"rescans"`
	PendingMutations int    `json:"pendingMutations"`
}
