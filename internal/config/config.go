package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and log directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Host contains configuration for the scriptable host application.
type Host struct {
	Executable        string `toml:"executable"`
	PluginDir         string `toml:"plugin_dir"`
	ScriptTimeout     int    `toml:"script_timeout"`
	MemoryBlockSize   int    `toml:"memory_block_size"`
	WorkfileExtension string `toml:"workfile_extension"`
	RetryAttempts     int    `toml:"retry_attempts"`
	RetryDelayMillis  int    `toml:"retry_delay_millis"`
}

// Workdir contains the work directory template and metadata layout.
type Workdir struct {
	Root        string `toml:"root"`
	Template    string `toml:"template"`
	MetadataDir string `toml:"metadata_dir"`
}

// Registry contains container registry policy.
type Registry struct {
	OverwriteExisting bool `toml:"overwrite_existing"`
}

// Coordinator contains single-instance coordinator settings.
type Coordinator struct {
	Secret             string `toml:"secret"`
	DialTimeoutMillis  int    `toml:"dial_timeout_millis"`
	IdleTimeout        int    `toml:"idle_timeout"`
	PollIntervalMillis int    `toml:"poll_interval_millis"`
}

// Tool describes an external pipeline tool opened by the coordinator.
type Tool struct {
	Command []string `toml:"command"`
}

// Workfile contains workfile bookkeeping options.
type Workfile struct {
	History    bool `toml:"history"`
	ReopenLast bool `toml:"reopen_last"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for zbridge.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Host: host binary, script timeout and memory block sizing
//   - Workdir: work directory template and metadata folder name
//   - Registry: container overwrite policy
//   - Coordinator: shared secret and timing for the single-instance server
//   - Tools: external commands for creator, loader, publisher and friends
//   - Workfile: history database and reopen-last behaviour
//   - Logging: log format and level
type Config struct {
	Paths       Paths           `toml:"paths"`
	Host        Host            `toml:"host"`
	Workdir     Workdir         `toml:"workdir"`
	Registry    Registry        `toml:"registry"`
	Coordinator Coordinator     `toml:"coordinator"`
	Tools       map[string]Tool `toml:"tools"`
	Workfile    Workfile        `toml:"workfile"`
	Logging     Logging         `toml:"logging"`
}

const (
	defaultConfigLocation = "~/.config/zbridge/config.toml"
	localConfigName       = "zbridge.toml"
)

// DefaultConfigPath returns ~/.config/zbridge/config.toml expanded.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigLocation)
}

// Load reads the config at path, or at the first existing default location
// when path is empty, on top of Default(). It returns the normalized config,
// the file it considered and whether that file existed. A missing file is not
// an error.
func Load(path string) (*Config, string, bool, error) {
	file, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config %s: %w", file, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", file, err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, file, exists, nil
}

// locate picks the config file. An explicit path is used as given even when
// it does not exist; otherwise the user config wins over ./zbridge.toml.
func locate(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		file, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(file)
		return file, exists, err
	}

	user, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	local, err := filepath.Abs(localConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{user, local} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return user, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat config %s: %w", path, err)
	}
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ScriptTimeout returns the bounded wait applied to a single host script.
func (c *Config) ScriptTimeout() time.Duration {
	return time.Duration(c.Host.ScriptTimeout) * time.Second
}

// RetryDelay returns the pause between opt-in host retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Host.RetryDelayMillis) * time.Millisecond
}

// DialTimeout returns the coordinator client connect timeout.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Coordinator.DialTimeoutMillis) * time.Millisecond
}

// PollInterval returns the coordinator main-thread tick.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Coordinator.PollIntervalMillis) * time.Millisecond
}

// IdleTimeout returns how long a coordinator server waits without traffic before
// exiting. Zero means run until cancelled.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Coordinator.IdleTimeout) * time.Second
}

// HistoryPath returns the workfile history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// CoordinatorLockPath returns the lock file that elects the coordinator server.
func (c *Config) CoordinatorLockPath() string {
	return filepath.Join(c.Paths.StateDir, "coordinator.lock")
}

// CoordinatorAddressPath returns the discovery file written by a running server.
func (c *Config) CoordinatorAddressPath() string {
	return filepath.Join(c.Paths.StateDir, "coordinator.json")
}

// LogFilePath returns the JSON log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "zbridge.log")
}

// ToolNames returns the configured tool names in sorted order.
func (c *Config) ToolNames() []string {
	names := make([]string, 0, len(c.Tools))
	for name := range c.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExpandPath turns a user supplied path into a clean absolute path. A
// leading "~" or "~/" is replaced with the home directory. Empty stays empty.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// CreateSample writes the commented sample config to path, creating parent
// directories. An existing file is replaced.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
