package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zbridge/internal/preflight"
	"zbridge/internal/workdir"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check host, directories and tools are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// An unresolvable work directory only skips that check.
			dir, _ := workdir.NewResolver(cfg).WorkDir(workdir.ContextFromEnv())

			results := preflight.RunAll(cfg, dir)
			if err := ctx.emit(cmd, results, func() string {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := "ok"
					switch {
					case r.Passed:
					case r.Optional:
						status = "missing"
					default:
						status = "FAIL"
					}
					rows = append(rows, []string{r.Name, status, r.Detail})
				}
				return tableView{headers: []string{"Check", "Status", "Detail"}, rows: rows}.render()
			}); err != nil {
				return err
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
