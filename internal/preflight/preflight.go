package preflight

import (
	"strings"

	"zbridge/internal/config"
	"zbridge/internal/deps"
)

// Result is one readiness check. Optional failures are reported but do not
// fail the run.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail"`
}

// RunAll checks the state and log directories, the work directory when
// known, the host plugin directory when configured, and every binary.
func RunAll(cfg *config.Config, workdir string) []Result {
	if cfg == nil {
		return nil
	}

	dirs := [][2]string{
		{"State directory", cfg.Paths.StateDir},
		{"Log directory", cfg.Paths.LogDir},
	}
	if strings.TrimSpace(workdir) != "" {
		dirs = append(dirs, [2]string{"Work directory", workdir})
	}
	if cfg.Host.PluginDir != "" {
		dirs = append(dirs, [2]string{"Host plugin directory", cfg.Host.PluginDir})
	}

	var results []Result
	for _, d := range dirs {
		results = append(results, CheckDirectoryAccess(d[0], d[1]))
	}
	for _, st := range deps.Lookup(deps.Binaries(cfg)) {
		results = append(results, binaryResult(st))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
