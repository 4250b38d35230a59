package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"zbridge/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the zbridge configuration",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(ctx),
		newConfigShowCommand(ctx),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		pathFlag  string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(pathFlag)
			if err != nil {
				return err
			}
			if err := refuseExisting(target, overwrite); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Next: set host.executable (or ZBRIDGE_HOST_EXECUTABLE) and add a [tools.<name>] command for each pipeline tool.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Where to write the file (defaults to the standard config location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	flagValue = strings.TrimSpace(flagValue)
	if flagValue == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(flagValue)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", flagValue, err)
	}
	return path, nil
}

func refuseExisting(path string, overwrite bool) error {
	if overwrite {
		return nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%s already exists; pass --overwrite to replace it", path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("stat %s: %w", path, err)
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report problems",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, resolved, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("create state directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "No config file found; built-in defaults apply")
			}
			fmt.Fprintf(out, "Host executable configured: %s\n", yesNo(cfg.Host.Executable != ""))
			fmt.Fprintf(out, "Tools configured: %d\n", len(cfg.Tools))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

type configView struct {
	StateDir      string   `json:"state_dir"`
	LogDir        string   `json:"log_dir"`
	Executable    string   `json:"host_executable"`
	PluginDir     string   `json:"plugin_dir,omitempty"`
	ScriptTimeout int      `json:"script_timeout"`
	WorkRoot      string   `json:"work_root,omitempty"`
	Template      string   `json:"work_template"`
	MetadataDir   string   `json:"metadata_dir"`
	Overwrite     bool     `json:"overwrite_existing"`
	IdleTimeout   int      `json:"idle_timeout"`
	Tools         []string `json:"tools"`
	History       bool     `json:"history"`
	LogLevel      string   `json:"log_level"`
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ctx.configValue()
			view := configView{
				StateDir:      cfg.Paths.StateDir,
				LogDir:        cfg.Paths.LogDir,
				Executable:    cfg.Host.Executable,
				PluginDir:     cfg.Host.PluginDir,
				ScriptTimeout: cfg.Host.ScriptTimeout,
				WorkRoot:      cfg.Workdir.Root,
				Template:      cfg.Workdir.Template,
				MetadataDir:   cfg.Workdir.MetadataDir,
				Overwrite:     cfg.Registry.OverwriteExisting,
				IdleTimeout:   cfg.Coordinator.IdleTimeout,
				Tools:         cfg.ToolNames(),
				History:       cfg.Workfile.History,
				LogLevel:      cfg.Logging.Level,
			}
			return ctx.emit(cmd, view, func() string {
				return renderKeyValues([][2]string{
					{"State dir", view.StateDir},
					{"Log dir", view.LogDir},
					{"Host executable", view.Executable},
					{"Plugin dir", view.PluginDir},
					{"Script timeout (s)", strconv.Itoa(view.ScriptTimeout)},
					{"Work root", view.WorkRoot},
					{"Work template", view.Template},
					{"Metadata dir", view.MetadataDir},
					{"Overwrite containers", yesNo(view.Overwrite)},
					{"Coordinator idle (s)", strconv.Itoa(view.IdleTimeout)},
					{"Tools", strings.Join(view.Tools, ", ")},
					{"History", yesNo(view.History)},
					{"Log level", view.LogLevel},
				})
			})
		},
	}
}
