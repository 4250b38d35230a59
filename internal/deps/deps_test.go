package deps

import (
	"os"
	"path/filepath"
	"testing"

	"zbridge/internal/config"
)

func TestLookup(t *testing.T) {
	present := filepath.Join(t.TempDir(), "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	got := Lookup([]Binary{
		{Name: "Present", Command: "  " + present + " "},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset"},
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(got))
	}
	if !got[0].Available || got[0].Path != present {
		t.Fatalf("expected present binary resolved, got %#v", got[0])
	}
	if got[1].Available || got[1].Detail == "" {
		t.Fatalf("expected missing binary reported, got %#v", got[1])
	}
	if got[2].Available || got[2].Detail != "command not configured" {
		t.Fatalf("unexpected unset status: %#v", got[2])
	}
}

func TestBinariesIncludeTools(t *testing.T) {
	cfg := config.Default()
	cfg.Host.Executable = "/opt/zbrush/ZBrush"
	cfg.Tools = map[string]config.Tool{
		"workfiles": {Command: []string{"ayon", "tools", "workfiles"}},
		"loader":    {Command: []string{"ayon", "tools", "loader"}},
	}

	bins := Binaries(&cfg)
	if len(bins) != 3 {
		t.Fatalf("expected host plus two tools, got %d", len(bins))
	}
	if bins[0].Command != "/opt/zbrush/ZBrush" || bins[0].Optional {
		t.Fatalf("unexpected host entry: %#v", bins[0])
	}
	if bins[1].Name != "Tool loader" || !bins[1].Optional || bins[1].Command != "ayon" {
		t.Fatalf("unexpected tool entry: %#v", bins[1])
	}
}
