package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"zbridge/internal/config"
)

// ConfigOption adjusts the config built by NewConfig before directories are
// created.
type ConfigOption func(base string, cfg *config.Config) error

// NewConfig returns a config rooted in a fresh temp directory:
//
//	<base>/state        state dir (logs under state/logs)
//	<base>/projects     work root
//	<base>/bin/zbrush   host executable (not created unless WithHostStub)
//
// Coordinator timings are shortened so tests fail fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(cfg.Paths.StateDir, "logs")
	cfg.Workdir.Root = filepath.Join(base, "projects")
	cfg.Host.Executable = filepath.Join(base, "bin", "zbrush")
	cfg.Host.ScriptTimeout = 5
	cfg.Host.MemoryBlockSize = 4096
	cfg.Coordinator.Secret = "test-secret"
	cfg.Coordinator.DialTimeoutMillis = 200
	cfg.Coordinator.PollIntervalMillis = 10

	for _, opt := range opts {
		if err := opt(base, &cfg); err != nil {
			t.Fatalf("config option: %v", err)
		}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithOverwrite sets the container overwrite policy.
func WithOverwrite(enabled bool) ConfigOption {
	return func(_ string, cfg *config.Config) error {
		cfg.Registry.OverwriteExisting = enabled
		return nil
	}
}

// WithTool registers a tool command.
func WithTool(name string, command ...string) ConfigOption {
	return func(_ string, cfg *config.Config) error {
		if cfg.Tools == nil {
			cfg.Tools = map[string]config.Tool{}
		}
		cfg.Tools[name] = config.Tool{Command: command}
		return nil
	}
}

// WithHostStub writes an executable shell script at the configured host
// path that exits 0 without doing anything.
func WithHostStub() ConfigOption {
	return func(_ string, cfg *config.Config) error {
		if err := os.MkdirAll(filepath.Dir(cfg.Host.Executable), 0o755); err != nil {
			return err
		}
		return os.WriteFile(cfg.Host.Executable, []byte("#!/bin/sh\nexit 0\n"), 0o755)
	}
}

// BaseDir returns the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
