package config

import (
	"errors"
	"fmt"
	"strings"
)

var templateFields = []string{"{project}", "{asset}", "{task}"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateHost(); err != nil {
		return err
	}
	if err := c.validateWorkdir(); err != nil {
		return err
	}
	if err := c.validateCoordinator(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateHost() error {
	if err := ensurePositiveMap(map[string]int{
		"host.script_timeout":    c.Host.ScriptTimeout,
		"host.memory_block_size": c.Host.MemoryBlockSize,
		"host.retry_attempts":    c.Host.RetryAttempts,
	}); err != nil {
		return err
	}
	if len(c.Host.WorkfileExtension) < 2 {
		return errors.New("host.workfile_extension must name an extension such as .zpr")
	}
	return nil
}

func (c *Config) validateWorkdir() error {
	for _, field := range templateFields {
		if !strings.Contains(c.Workdir.Template, field) {
			return fmt.Errorf("workdir.template must reference %s", field)
		}
	}
	if strings.ContainsAny(c.Workdir.MetadataDir, `/\`) {
		return errors.New("workdir.metadata_dir must be a single directory name")
	}
	return nil
}

func (c *Config) validateCoordinator() error {
	if strings.TrimSpace(c.Coordinator.Secret) == "" {
		return errors.New("coordinator.secret must be set (or set ZBRIDGE_COORDINATOR_SECRET)")
	}
	return ensurePositiveMap(map[string]int{
		"coordinator.dial_timeout_millis":  c.Coordinator.DialTimeoutMillis,
		"coordinator.poll_interval_millis": c.Coordinator.PollIntervalMillis,
	})
}

func (c *Config) validateTools() error {
	for _, name := range c.ToolNames() {
		if strings.ContainsAny(name, " \t") {
			return fmt.Errorf("tools.%s: tool names must not contain whitespace", name)
		}
		if len(c.Tools[name].Command) == 0 {
			return fmt.Errorf("tools.%s.command must list the program to run", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
