package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"zbridge/internal/config"
	"zbridge/internal/logging"
	"zbridge/internal/services"
)

// ToolLauncher opens a pipeline tool.
type ToolLauncher interface {
	Launch(ctx context.Context, tool string) error
}

// CommandLauncher starts tools as the external commands configured under
// [tools.<name>]. Children inherit the environment plus the coordinator
// address so they can send notifications back.
type CommandLauncher struct {
	tools   map[string]config.Tool
	address func() string
	logger  *slog.Logger

	mu      sync.Mutex
	running map[string]*exec.Cmd
}

// NewCommandLauncher builds a launcher from configuration. address is
// called at launch time and may return "".
func NewCommandLauncher(cfg *config.Config, address func() string, logger *slog.Logger) *CommandLauncher {
	if address == nil {
		address = func() string { return "" }
	}
	return &CommandLauncher{
		tools:   cfg.Tools,
		address: address,
		logger:  logging.NewComponentLogger(logger, "launcher"),
		running: make(map[string]*exec.Cmd),
	}
}

// Launch starts tool unless an instance is already running.
func (l *CommandLauncher) Launch(_ context.Context, tool string) error {
	entry, ok := l.tools[tool]
	if !ok || len(entry.Command) == 0 {
		return services.Wrap(services.ErrValidation, "launcher", "launch",
			fmt.Sprintf("tool %q is not configured (add [tools.%s] command)", tool, tool), nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cmd, ok := l.running[tool]; ok {
		l.logger.Info("tool already running", logging.String("tool", tool), logging.Int("pid", cmd.Process.Pid))
		return nil
	}

	cmd := exec.Command(entry.Command[0], entry.Command[1:]...)
	cmd.Env = os.Environ()
	if l.address != nil {
		if addr := l.address(); addr != "" {
			cmd.Env = append(cmd.Env, EnvAddress+"="+addr)
		}
	}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start tool %s: %w", tool, err)
	}
	l.running[tool] = cmd
	l.logger.Info("tool started", logging.String("tool", tool), logging.Int("pid", cmd.Process.Pid))

	go func() {
		err := cmd.Wait()
		l.mu.Lock()
		if l.running[tool] == cmd {
			delete(l.running, tool)
		}
		l.mu.Unlock()
		if err != nil {
			logging.WarnWithContext(l.logger, "tool exited with error", "tool_exit_failed",
				logging.String("tool", tool),
				logging.Error(err),
				logging.String(logging.FieldImpact, "tool window closed unexpectedly"),
				logging.String(logging.FieldErrorHint, "run the tool command by hand to see its output"),
			)
			return
		}
		l.logger.Debug("tool exited", logging.String("tool", tool))
	}()
	return nil
}

// Running returns how many tools are still running.
func (l *CommandLauncher) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.running)
}
