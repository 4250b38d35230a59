package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"zbridge/internal/config"
	"zbridge/internal/coordinator"
	"zbridge/internal/logging"
	"zbridge/internal/pipeline"
	"zbridge/internal/zscript"
)

func newLaunchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "launch <tool>",
		Short: "Open a pipeline tool, starting the coordinator when none is running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool := strings.ToLower(strings.TrimSpace(args[0]))
			return ctx.withRuntime(cmd, func(rt coordinator.Runtime) error {
				outcome, err := coordinator.Launch(cmd.Context(), rt, tool)
				if outcome == coordinator.OutcomeForwarded && err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Opened %s in the running coordinator\n", tool)
				}
				return ignoreCancel(err)
			})
		},
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var tool string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt coordinator.Runtime) error {
				err := coordinator.Serve(cmd.Context(), rt, strings.ToLower(strings.TrimSpace(tool)))
				if errors.Is(err, coordinator.ErrAlreadyRunning) {
					return fmt.Errorf("a coordinator is already running for %s", rt.Config.Paths.StateDir)
				}
				return ignoreCancel(err)
			})
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "Tool to open once the server is listening")
	return cmd
}

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Send an update notification to the running coordinator",
	}
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "update-from-host",
		Short: "Tell open tools that host state changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.send(cmd, coordinator.UpdateFromHost())
		},
	})
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "update-host",
		Short: "Push pipeline state back into the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.send(cmd, coordinator.UpdateHost())
		},
	})
	return notifyCmd
}

func newExecCommand(ctx *commandContext) *cobra.Command {
	var file string
	var local bool
	cmd := &cobra.Command{
		Use:   "exec [script]",
		Short: "Run a host script through the coordinator (or directly with --local)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScriptArg(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			if !local {
				return ctx.send(cmd, coordinator.ExecuteScript(script))
			}
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				return p.Host().Run(c, zscript.New().Add(zscript.Raw{Text: script}))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the script from a file (- for stdin)")
	cmd.Flags().BoolVar(&local, "local", false, "Run on the host directly instead of forwarding")
	return cmd
}

func readScriptArg(stdin io.Reader, file string, args []string) (string, error) {
	var script string
	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		script = string(data)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		script = string(data)
	case len(args) == 1:
		script = args[0]
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return "", errors.New("script is empty (pass it as an argument or with --file)")
	}
	return script, nil
}

func (c *commandContext) send(cmd *cobra.Command, msg coordinator.Message) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	res := coordinator.NewClient(cfg, logger.Logger).Send(cmd.Context(), msg)
	if !res.Delivered() {
		if res.Err != nil {
			return fmt.Errorf("coordinator %s: %w", res.Status, res.Err)
		}
		return fmt.Errorf("coordinator %s", res.Status)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Delivered %s to %s\n", msg.Command, res.Address)
	return nil
}

// withRuntime builds the coordinator runtime. The session gets a host for
// forwarded scripts and update handlers bound to the pipeline facade when the
// host is configured; without one those requests are logged and dropped.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(coordinator.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	rt := coordinator.Runtime{Config: cfg, Logger: logger.Logger}
	p, err := c.sessionPipeline(cfg, logger.Logger)
	if err != nil {
		logging.WarnWithContext(logging.NewComponentLogger(logger.Logger, "cli"), "host not available to the coordinator", "host_unconfigured",
			logging.Error(err),
			logging.String(logging.FieldImpact, "forwarded scripts and update requests are ignored"),
			logging.String(logging.FieldErrorHint, "set host.executable or ZBRIDGE_HOST_EXECUTABLE"),
		)
		return fn(rt)
	}
	defer p.Close()

	rt.Session = []coordinator.SessionOption{
		coordinator.WithHost(p.Host()),
		coordinator.WithUpdateFromHost(p.Install),
		coordinator.WithUpdateHost(func(ctx context.Context) error {
			current := p.Workfiles().Context()
			if !current.Complete() {
				return nil
			}
			return p.Workfiles().SetContext(ctx, current)
		}),
	}
	return fn(rt)
}

func (c *commandContext) sessionPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if c.host != nil {
		opts = append(opts, pipeline.WithHost(c.host))
	}
	return pipeline.New(cfg, opts...)
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
