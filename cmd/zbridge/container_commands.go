package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"zbridge/internal/pipeline"
	"zbridge/internal/registry"
)

func newContainersCommand(ctx *commandContext) *cobra.Command {
	containersCmd := &cobra.Command{
		Use:     "containers",
		Aliases: []string{"container"},
		Short:   "Inspect and edit the loaded-content records of the current scene",
	}

	containersCmd.AddCommand(newContainersListCommand(ctx))
	containersCmd.AddCommand(newContainersAddCommand(ctx))
	containersCmd.AddCommand(newContainersUpdateCommand(ctx))
	containersCmd.AddCommand(newContainersRemoveCommand(ctx))
	containersCmd.AddCommand(newContainersImprintCommand(ctx))
	containersCmd.AddCommand(newContainersLoadCommand(ctx))

	return containersCmd
}

func newContainersListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				containers, err := p.GetContainers(c)
				if err != nil {
					return err
				}
				if containers == nil {
					containers = []registry.Container{}
				}
				return ctx.emit(cmd, containers, func() string {
					return containerTable(containers).render()
				})
			})
		},
	}
}

func containerTable(containers []registry.Container) tableView {
	rows := make([][]string, 0, len(containers))
	for _, c := range containers {
		rows = append(rows, []string{c.Name, c.Namespace, c.Loader, c.Representation})
	}
	return tableView{
		headers: []string{"Name", "Namespace", "Loader", "Representation"},
		rows:    rows,
		empty:   "No containers",
	}
}

func newContainersAddCommand(ctx *commandContext) *cobra.Command {
	var namespace, loader, representation string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Record a loaded representation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				added, err := p.Containerise(c, args[0], namespace, representation, loader)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, added, func() string { return containerTable([]registry.Container{added}).render() })
			})
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "Container namespace")
	cmd.Flags().StringVar(&loader, "loader", "", "Loader that created the container")
	cmd.Flags().StringVar(&representation, "representation", "", "Representation id")
	return cmd
}

func newContainersUpdateCommand(ctx *commandContext) *cobra.Command {
	var namespace, loader, representation string
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Change fields of a container, leaving the rest untouched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var changes registry.Changes
			if cmd.Flags().Changed("namespace") {
				changes.Namespace = &namespace
			}
			if cmd.Flags().Changed("loader") {
				changes.Loader = &loader
			}
			if cmd.Flags().Changed("representation") {
				changes.Representation = &representation
			}
			if changes.Empty() {
				return fmt.Errorf("nothing to update (pass --namespace, --loader or --representation)")
			}
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				updated, err := p.Containers().Update(c, args[0], changes)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, updated, func() string { return containerTable([]registry.Container{updated}).render() })
			})
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "New namespace")
	cmd.Flags().StringVar(&loader, "loader", "", "New loader")
	cmd.Flags().StringVar(&representation, "representation", "", "New representation id")
	return cmd
}

func newContainersRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a container record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				if err := p.RemoveContainerData(c, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed container %s\n", args[0])
				return nil
			})
		},
	}
}

func newContainersImprintCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "imprint <object> <representation>",
		Short: "Point the container of a host object at a new representation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				updated, err := p.Imprint(c, args[0], args[1])
				if err != nil {
					return err
				}
				return ctx.emit(cmd, updated, func() string { return containerTable([]registry.Container{updated}).render() })
			})
		},
	}
}

func newContainersLoadCommand(ctx *commandContext) *cobra.Command {
	var req pipeline.MeshRequest
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Import a mesh into the active tool and record its container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Path = args[0]
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				loaded, err := p.LoadMesh(c, req)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, loaded, func() string { return containerTable([]registry.Container{loaded}).render() })
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Container name (required)")
	cmd.Flags().StringVar(&req.Namespace, "namespace", "", "Container namespace")
	cmd.Flags().StringVar(&req.Representation, "representation", "", "Representation id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
