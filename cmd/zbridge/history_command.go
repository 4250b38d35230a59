package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"zbridge/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var clear bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent workfile opens and saves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if clear {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d history event(s)\n", removed)
				return nil
			}

			events, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if events == nil {
				events = []history.Event{}
			}
			return ctx.emit(cmd, events, func() string {
				rows := make([][]string, 0, len(events))
				for _, evt := range events {
					rows = append(rows, []string{
						strconv.FormatInt(evt.ID, 10),
						evt.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						string(evt.Kind),
						evt.Context.String(),
						evt.Path,
					})
				}
				return tableView{
					headers: []string{"ID", "When", "Kind", "Context", "Path"},
					rows:    rows,
					aligns:  []columnAlignment{alignRight},
					empty:   "No workfile history",
				}.render()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events to show")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete all recorded events")
	return cmd
}
