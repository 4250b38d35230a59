package zscript

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zbridge/internal/logging"
	"zbridge/internal/services"
)

const (
	component           = "zscript"
	doneBlock           = "zbridge_done"
	defaultPollInterval = 50 * time.Millisecond
)

// Host runs a script inside the host application and blocks until the host
// has finished executing it.
type Host interface {
	Run(ctx context.Context, script *Script) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures a ProcessHost.
type Option func(*ProcessHost)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(h *ProcessHost) {
		if exec != nil {
			h.exec = exec
		}
	}
}

// WithLogger sets the logger used for host output and timing.
func WithLogger(logger *slog.Logger) Option {
	return func(h *ProcessHost) {
		if logger != nil {
			h.logger = logging.NewComponentLogger(logger, component)
		}
	}
}

// WithTempDir places generated script files in dir instead of the system temp directory.
func WithTempDir(dir string) Option {
	return func(h *ProcessHost) {
		if strings.TrimSpace(dir) != "" {
			h.tempDir = dir
		}
	}
}

// WithPollInterval changes how often the completion marker is checked.
func WithPollInterval(interval time.Duration) Option {
	return func(h *ProcessHost) {
		if interval > 0 {
			h.poll = interval
		}
	}
}

// ProcessHost hands scripts to the host binary as temporary files. The host
// may return before the script has run (it forwards the file to an already
// running instance), so every script ends by dumping a marker block and Run
// waits for that marker file.
type ProcessHost struct {
	binary  string
	timeout time.Duration
	tempDir string
	poll    time.Duration
	exec    Executor
	logger  *slog.Logger
}

// NewProcessHost constructs a host runner for the given binary. timeout bounds
// a single Run; zero disables the bound.
func NewProcessHost(binary string, timeout time.Duration, opts ...Option) (*ProcessHost, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrHostUnavailable, component, "configure", "host executable not set (host.executable or ZBRIDGE_HOST_EXECUTABLE)", nil)
	}
	h := &ProcessHost{
		binary:  binary,
		timeout: timeout,
		tempDir: os.TempDir(),
		poll:    defaultPollInterval,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(nil, component),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// TempDir returns the directory used for scripts and dump files.
func (h *ProcessHost) TempDir() string {
	return h.tempDir
}

// Run writes the script to a temporary file, invokes the host with its path,
// and waits for the completion marker.
func (h *ProcessHost) Run(ctx context.Context, script *Script) error {
	if script == nil {
		return services.Wrap(services.ErrValidation, component, "run", "nil script", nil)
	}
	if err := script.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, component, "run", "invalid script", err)
	}
	if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
		return services.Wrap(services.ErrScriptExecutionFailed, component, "run", "create temp dir", err)
	}

	base := filepath.Join(h.tempDir, "zbridge-"+uuid.NewString())
	scriptPath := base + ".txt"
	markerPath := base + ".done"
	defer func() {
		_ = os.Remove(scriptPath)
		_ = os.Remove(markerPath)
	}()

	full := New().Add(script.Ops()...).Add(
		MemDelete{Name: doneBlock},
		MemCreate{Name: doneBlock, Size: 8},
		MemWriteString{Name: doneBlock, Value: Quote("done")},
		MemSaveToFile{Name: doneBlock, Path: markerPath},
		MemDelete{Name: doneBlock},
	)
	if err := os.WriteFile(scriptPath, []byte(full.Render()), 0o644); err != nil {
		return services.Wrap(services.ErrScriptExecutionFailed, component, "run", "write script file", err)
	}

	runCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	h.logger.Debug("running host script",
		logging.String("script", scriptPath),
		logging.Int("ops", script.Len()),
	)
	err := h.exec.Run(runCtx, h.binary, []string{filepath.ToSlash(scriptPath)}, func(line string) {
		h.logger.Debug("host output", logging.String("line", line))
	})
	if err != nil {
		if ctxErr := classifyContext(ctx, runCtx); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrHostUnavailable, component, "run", "invoke "+h.binary, err)
	}

	if err := h.waitForMarker(ctx, runCtx, markerPath); err != nil {
		return err
	}
	h.logger.Debug("host script finished", logging.Duration("elapsed", time.Since(start)))
	return nil
}

func (h *ProcessHost) waitForMarker(parent, ctx context.Context, path string) error {
	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrScriptExecutionFailed, component, "wait", "stat completion marker", err)
		}
		select {
		case <-ctx.Done():
			if err := classifyContext(parent, ctx); err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// classifyContext maps a finished run context to ErrTimeout when our own
// deadline fired, or to the caller's cancellation.
func classifyContext(parent, ctx context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, component, "wait", "host did not finish the script in time", ctx.Err())
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
	}
	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
