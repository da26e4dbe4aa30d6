package messaging

import (
	"fmt"
	"strconv"
	"strings"
)

// Address names an execution context on the bus
type Address string

const (
	Background Address = "background"
	Panel      Address = "panel"
	Popup      Address = "popup"

	tabPrefix = "tab/"
)

// TabAddress is the address of the agent running inside a tab
func TabAddress(tabID int) Address {
	return Address(fmt.Sprintf("%s%d", tabPrefix, tabID))
}

// IsTab reports whether a is a per-tab agent rather than an extension page
func (a Address) IsTab() bool {
	return strings.HasPrefix(string(a), tabPrefix)
}

// TabID extracts the tab id from a tab address
func (a Address) TabID() (int, bool) {
	if !a.IsTab() {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(string(a), tabPrefix))
	if err != nil {
		return 0, false
	}
	return id, true
}

// Sender identifies where a message came from
type Sender struct {
	Address  Address `json:"address"`
	TabID    int     `json:"tabId,omitempty"`
	WindowID int     `json:"windowId,omitempty"`
}

// FromTab is the sender value used by tab agents
func FromTab(tabID, windowID int) Sender {
	return Sender{Address: TabAddress(tabID), TabID: tabID, WindowID: windowID}
}
