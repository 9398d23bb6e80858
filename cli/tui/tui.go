package tui

import (
	"fmt"
	"strings"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
//
// The live run progress view is not routed through here; it is bound to
// a snapshot channel and started via RunProgressTUI directly.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "history_") {
		return RunHistoryTUI(viewType, data)
	}
	if strings.HasPrefix(viewType, "tune_") {
		return RunTuneTUI(viewType, data)
	}

	return fmt.Errorf("unknown view type: %s", viewType)
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only the read-only history and tune commands render through Run; the
// run command drives its own live view.
func IsTUISupported(viewType string) bool {
	supportedPrefixes := []string{
		"history_",
		"tune_",
	}

	for _, prefix := range supportedPrefixes {
		if strings.HasPrefix(viewType, prefix) {
			return true
		}
	}

	return false
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		"history_transfers",
		"tune_profile",
	}
}
