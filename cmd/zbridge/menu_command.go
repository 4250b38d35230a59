package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"zbridge/internal/menu"
)

func newMenuCommand(ctx *commandContext) *cobra.Command {
	var binary string

	menuCmd := &cobra.Command{
		Use:   "menu",
		Short: "Generate the host plugin palette",
	}
	menuCmd.PersistentFlags().StringVar(&binary, "binary", "", "zbridge executable the buttons run (default: this executable)")

	resolveBinary := func() (string, error) {
		if binary != "" {
			return binary, nil
		}
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate zbridge executable: %w", err)
		}
		return exe, nil
	}

	menuCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the palette script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := resolveBinary()
			if err != nil {
				return err
			}
			text, err := menu.FromConfig(ctx.configValue(), exe).Render()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	})

	menuCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Write the palette script into host.plugin_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := resolveBinary()
			if err != nil {
				return err
			}
			path, err := menu.Install(ctx.configValue(), exe)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed menu to %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Restart the host to load the new palette.")
			return nil
		},
	})

	return menuCmd
}
