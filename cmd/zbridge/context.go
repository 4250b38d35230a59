package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"zbridge/internal/config"
	"zbridge/internal/logging"
	"zbridge/internal/pipeline"
	"zbridge/internal/zscript"
)

type commandContext struct {
	configFlag *string
	formatFlag *string

	// host replaces the configured host executable when set.
	host zscript.Host

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configPath is the --config flag value, empty when unset.
func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// newLogger builds the command logger. Console records go to the command's
// stderr so stdout stays parseable.
func (c *commandContext) newLogger(cmd *cobra.Command) (*logging.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Console:  cmd.ErrOrStderr(),
		FilePath: cfg.LogFilePath(),
	})
}

// withPipeline attaches to the running host session and hands the facade to fn.
func (c *commandContext) withPipeline(cmd *cobra.Command, fn func(context.Context, *pipeline.Pipeline) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	opts := []pipeline.Option{pipeline.WithLogger(logger.Logger)}
	if c.host != nil {
		opts = append(opts, pipeline.WithHost(c.host))
	}
	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := p.Install(ctx); err != nil {
		return err
	}
	return fn(ctx, p)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
