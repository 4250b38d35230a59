package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"zbridge/internal/pipeline"
	"zbridge/internal/workdir"
)

type contextView struct {
	Project  string `json:"project_name"`
	Asset    string `json:"asset_name"`
	Task     string `json:"task_name"`
	WorkDir  string `json:"workdir,omitempty"`
	Workfile string `json:"workfile"`
	State    string `json:"state"`
}

func newContextCommand(ctx *commandContext) *cobra.Command {
	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "Show or change the pipeline context of the host session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				return ctx.showContext(cmd, c, p)
			})
		},
	}

	var project, asset, task string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store a new pipeline context in host memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				next := p.Workfiles().Context()
				if cmd.Flags().Changed("project") {
					next.Project = project
				}
				if cmd.Flags().Changed("asset") {
					next.Asset = asset
				}
				if cmd.Flags().Changed("task") {
					next.Task = task
				}
				if err := p.Workfiles().SetContext(c, next); err != nil {
					return err
				}
				return ctx.showContext(cmd, c, p)
			})
		},
	}
	setCmd.Flags().StringVar(&project, "project", "", "Project name")
	setCmd.Flags().StringVar(&asset, "asset", "", "Asset name")
	setCmd.Flags().StringVar(&task, "task", "", "Task name")
	contextCmd.AddCommand(setCmd)

	return contextCmd
}

func (c *commandContext) showContext(cmd *cobra.Command, ctx context.Context, p *pipeline.Pipeline) error {
	current := p.Workfiles().Context()
	view := contextView{
		Project: current.Project,
		Asset:   current.Asset,
		Task:    current.Task,
		State:   p.Workfiles().State().String(),
	}
	if dir, err := p.WorkRoot(); err == nil {
		view.WorkDir = dir
	}
	workfile, err := p.CurrentWorkfile(ctx)
	if err != nil {
		return err
	}
	view.Workfile = workfile
	return c.emit(cmd, view, func() string {
		return renderKeyValues([][2]string{
			{"Project", current.Project},
			{"Asset", current.Asset},
			{"Task", current.Task},
			{"Work directory", view.WorkDir},
			{"Workfile", displayWorkfile(view.Workfile)},
			{"State", view.State},
		})
	})
}

func displayWorkfile(path string) string {
	if path == "" {
		return workdir.UntitledScene
	}
	return path
}

func newWorkfileCommand(ctx *commandContext) *cobra.Command {
	workfileCmd := &cobra.Command{
		Use:   "workfile",
		Short: "Open, save and inspect host workfiles",
	}

	workfileCmd.AddCommand(&cobra.Command{
		Use:   "current",
		Short: "Print the open workfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				path, err := p.CurrentWorkfile(c)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), displayWorkfile(path))
				return nil
			})
		},
	})

	workfileCmd.AddCommand(&cobra.Command{
		Use:   "open <path>",
		Short: "Open a workfile in the host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				if err := p.OpenWorkfile(c, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", args[0])
				return nil
			})
		},
	})

	workfileCmd.AddCommand(&cobra.Command{
		Use:   "save [path]",
		Short: "Save the scene, carrying its containers to the new name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) == 1 {
				target = args[0]
			}
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				saved, err := p.SaveWorkfile(c, target)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", saved)
				return nil
			})
		},
	})

	workfileCmd.AddCommand(&cobra.Command{
		Use:   "launched",
		Short: "Initialize a freshly started host session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				if err := p.Launched(c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session ready for %s\n", p.Workfiles().Context())
				return nil
			})
		},
	})

	workfileCmd.AddCommand(&cobra.Command{
		Use:   "exit",
		Short: "Drop untitled-scene metadata when the host closes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				removed, err := p.Exit(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d untitled container(s)\n", removed)
				return nil
			})
		},
	})

	return workfileCmd
}
