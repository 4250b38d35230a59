package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"zbridge/internal/config"
)

// Binary is an external program zbridge starts.
type Binary struct {
	Name     string
	Command  string
	Purpose  string
	Optional bool
}

// Status is the lookup result for one Binary.
type Status struct {
	Binary
	Path      string
	Available bool
	Detail    string
}

// Lookup resolves each binary on PATH (or as an absolute path) without
// running it.
func Lookup(binaries []Binary) []Status {
	out := make([]Status, len(binaries))
	for i, bin := range binaries {
		bin.Command = strings.TrimSpace(bin.Command)
		out[i] = lookupOne(bin)
	}
	return out
}

func lookupOne(bin Binary) Status {
	st := Status{Binary: bin}
	if bin.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(bin.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("%q not found on PATH", bin.Command)
		return st
	}
	st.Path = path
	st.Available = true
	st.Detail = path
	return st
}

// Binaries lists the host executable followed by the first word of every
// configured tool command, in tool name order. Only the host is required.
func Binaries(cfg *config.Config) []Binary {
	list := []Binary{{Name: "Host", Command: cfg.Host.Executable, Purpose: "runs generated scripts"}}
	for _, name := range cfg.ToolNames() {
		var program string
		if argv := cfg.Tools[name].Command; len(argv) > 0 {
			program = argv[0]
		}
		list = append(list, Binary{
			Name:     "Tool " + name,
			Command:  program,
			Purpose:  "opened from the " + name + " menu entry",
			Optional: true,
		})
	}
	return list
}
