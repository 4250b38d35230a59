package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"zbridge/internal/config"
	"zbridge/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRunAllReportsHostAndOptionalTools(t *testing.T) {
	binDir := t.TempDir()
	host := filepath.Join(binDir, "zbrush")
	if err := os.WriteFile(host, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Host.Executable = host
	cfg.Tools = map[string]config.Tool{"loader": {Command: []string{"clearly-not-present-loader"}}}

	results := RunAll(&cfg, t.TempDir())
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %#v", len(results), results)
	}
	failed := Failed(results)
	if len(failed) != 0 {
		t.Fatalf("expected only optional failures, got %#v", failed)
	}
	last := results[len(results)-1]
	if last.Passed || last.Name != "Tool loader" {
		t.Fatalf("expected missing tool to be reported, got %#v", last)
	}
}

func TestRunAllFlagsMissingHost(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Host.Executable = ""

	failed := Failed(RunAll(&cfg, ""))
	if len(failed) != 1 || failed[0].Name != "Host" {
		t.Fatalf("expected host failure, got %#v", failed)
	}
}

func TestRunAllPassesWithStubHost(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHostStub())
	results := RunAll(cfg, "")
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected clean run, got %#v", failed)
	}
	host := results[len(results)-1]
	if host.Name != "Host" || !host.Passed || host.Detail != cfg.Host.Executable {
		t.Fatalf("unexpected host result: %#v", host)
	}
}
