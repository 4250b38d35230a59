package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeHost(); err != nil {
		return err
	}
	if err := c.normalizeWorkdir(); err != nil {
		return err
	}
	c.normalizeCoordinator()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = ExpandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, defaultLogDirName)
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeHost() error {
	c.Host.Executable = strings.TrimSpace(c.Host.Executable)
	if c.Host.Executable == "" {
		if value, ok := os.LookupEnv("ZBRIDGE_HOST_EXECUTABLE"); ok {
			c.Host.Executable = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("ZBRUSH_EXECUTABLE"); ok {
			c.Host.Executable = strings.TrimSpace(value)
		}
	}
	if strings.ContainsAny(c.Host.Executable, `/\`) || strings.HasPrefix(c.Host.Executable, "~") {
		var err error
		if c.Host.Executable, err = ExpandPath(c.Host.Executable); err != nil {
			return fmt.Errorf("host.executable: %w", err)
		}
	}
	var err error
	if c.Host.PluginDir, err = ExpandPath(strings.TrimSpace(c.Host.PluginDir)); err != nil {
		return fmt.Errorf("host.plugin_dir: %w", err)
	}
	ext := strings.ToLower(strings.TrimSpace(c.Host.WorkfileExtension))
	if ext == "" {
		ext = defaultWorkfileExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Host.WorkfileExtension = ext
	if c.Host.RetryAttempts <= 0 {
		c.Host.RetryAttempts = defaultRetryAttempts
	}
	if c.Host.RetryDelayMillis < 0 {
		c.Host.RetryDelayMillis = 0
	}
	return nil
}

func (c *Config) normalizeWorkdir() error {
	c.Workdir.Root = strings.TrimSpace(c.Workdir.Root)
	if c.Workdir.Root == "" {
		if value, ok := os.LookupEnv("AVALON_PROJECTS"); ok {
			c.Workdir.Root = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Workdir.Root, err = ExpandPath(c.Workdir.Root); err != nil {
		return fmt.Errorf("workdir.root: %w", err)
	}
	c.Workdir.Template = strings.TrimSpace(c.Workdir.Template)
	if c.Workdir.Template == "" {
		c.Workdir.Template = defaultWorkdirTemplate
	}
	c.Workdir.MetadataDir = strings.TrimSpace(c.Workdir.MetadataDir)
	if c.Workdir.MetadataDir == "" {
		c.Workdir.MetadataDir = defaultMetadataDir
	}
	return nil
}

func (c *Config) normalizeCoordinator() {
	if c.Coordinator.Secret == "" {
		if value, ok := os.LookupEnv("ZBRIDGE_COORDINATOR_SECRET"); ok && value != "" {
			c.Coordinator.Secret = value
		} else {
			c.Coordinator.Secret = defaultCoordinatorSecret
		}
	}
	if c.Coordinator.DialTimeoutMillis <= 0 {
		c.Coordinator.DialTimeoutMillis = defaultDialTimeoutMillis
	}
	if c.Coordinator.PollIntervalMillis <= 0 {
		c.Coordinator.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Coordinator.IdleTimeout < 0 {
		c.Coordinator.IdleTimeout = 0
	}
}

func (c *Config) normalizeTools() {
	if c.Tools == nil {
		c.Tools = map[string]Tool{}
		return
	}
	normalized := make(map[string]Tool, len(c.Tools))
	for name, tool := range c.Tools {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		args := make([]string, 0, len(tool.Command))
		for _, arg := range tool.Command {
			if arg = strings.TrimSpace(arg); arg != "" {
				args = append(args, arg)
			}
		}
		normalized[key] = Tool{Command: args}
	}
	c.Tools = normalized
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
