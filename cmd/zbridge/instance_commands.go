package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"zbridge/internal/pipeline"
	"zbridge/internal/workfile"
)

func newInstancesCommand(ctx *commandContext) *cobra.Command {
	instancesCmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"instance"},
		Short:   "Inspect the publish instances of the current scene",
	}

	instancesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				instances, err := p.ListInstances(c)
				if err != nil {
					return err
				}
				if instances == nil {
					instances = []workfile.Instance{}
				}
				return ctx.emit(cmd, instances, func() string { return instanceTable(instances).render() })
			})
		},
	})

	instancesCmd.AddCommand(&cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Remove instances by id",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				removed, err := p.Workfiles().RemoveInstances(c, args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d instance(s)\n", removed)
				return nil
			})
		},
	})

	instancesCmd.AddCommand(&cobra.Command{
		Use:   "ensure-workfile",
		Short: "Create or retarget the workfile instance for the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				inst, changed, err := p.CreateWorkfileInstance(c)
				if err != nil {
					return err
				}
				verb := "unchanged"
				if changed {
					verb = "updated"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workfile instance %s %s\n", inst.ID(), verb)
				return nil
			})
		},
	})

	return instancesCmd
}

func instanceTable(instances []workfile.Instance) tableView {
	rows := make([][]string, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, []string{inst.ID(), field(inst, "family"), field(inst, "subset"), field(inst, "asset"), field(inst, "task"), otherKeys(inst)})
	}
	return tableView{
		headers: []string{"ID", "Family", "Subset", "Asset", "Task", "Other fields"},
		rows:    rows,
		empty:   "No instances",
	}
}

func field(inst workfile.Instance, key string) string {
	if v, ok := inst[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func otherKeys(inst workfile.Instance) string {
	shown := map[string]bool{workfile.InstanceIDKey: true, "family": true, "subset": true, "asset": true, "task": true}
	var keys []string
	for k := range inst {
		if !shown[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
