package cmd

import (
	"strings"
	"testing"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := ReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestArchiveFlags_CoverBackendSelection(t *testing.T) {
	names := map[string]bool{}
	for _, f := range ArchiveFlags() {
		names[f.Names()[0]] = true
	}

	for _, want := range []string{"archive-backend", "archive-path", "archive-dataset"} {
		if !names[want] {
			t.Errorf("ArchiveFlags missing --%s", want)
		}
	}
}

func TestNetworkFlags_CoverConditionsAndProbes(t *testing.T) {
	names := map[string]bool{}
	for _, f := range NetworkFlags() {
		names[f.Names()[0]] = true
	}

	for _, want := range []string{"bandwidth", "latency", "loss", "shared", "probe-url", "probe-bucket"} {
		if !names[want] {
			t.Errorf("NetworkFlags missing --%s", want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "flag", "config"); got != "flag" {
		t.Errorf("firstNonEmpty = %q, want flag", got)
	}
	if got := firstNonEmpty("", "", ""); got != "" {
		t.Errorf("firstNonEmpty = %q, want empty", got)
	}
}

func TestCommandList(t *testing.T) {
	list := commandList()
	for _, want := range []string{"backup", "restore", "check", "snapshots", "init", "stats"} {
		if !strings.Contains(list, want) {
			t.Errorf("command list %q missing %s", list, want)
		}
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Documents the function exists and can be called.
	// Actual TTY behavior depends on runtime environment.
	_ = isStderrTTY()
}
