package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"zbridge/internal/metacodec"
)

const (
	formatAuto  = "auto"
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// outputFormat resolves --format. auto picks a table on a terminal and JSON
// when stdout is piped.
func (c *commandContext) outputFormat(cmd *cobra.Command) (string, error) {
	format := formatAuto
	if c.formatFlag != nil {
		format = strings.ToLower(strings.TrimSpace(*c.formatFlag))
	}
	switch format {
	case "", formatAuto:
		if isTerminal(cmd.OutOrStdout()) {
			return formatTable, nil
		}
		return formatJSON, nil
	case formatTable, formatJSON, formatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", format)
	}
}

// emit writes v in the selected format. table renders the human view and may
// be nil for values without one, in which case JSON is used.
func (c *commandContext) emit(cmd *cobra.Command, v any, table func() string) error {
	format, err := c.outputFormat(cmd)
	if err != nil {
		return err
	}
	switch format {
	case formatYAML:
		return writeYAML(cmd, v)
	case formatTable:
		if table != nil {
			fmt.Fprint(cmd.OutOrStdout(), table())
			return nil
		}
	}
	return writeJSON(cmd, v)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeYAML encodes v as YAML. Values go through their JSON form first so
// field names match the files on disk.
func writeYAML(cmd *cobra.Command, v any) error {
	data, err := metacodec.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("convert to yaml: %w", err)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
