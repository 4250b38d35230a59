package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"zbridge/internal/logging"
	"zbridge/internal/mainthread"
	"zbridge/internal/zscript"
)

// UpdateFunc reacts to an update notification on the session loop.
type UpdateFunc func(ctx context.Context) error

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLauncher sets the tool launcher.
func WithLauncher(l ToolLauncher) SessionOption {
	return func(s *Session) { s.launcher = l }
}

// WithHost sets the host used for forwarded scripts.
func WithHost(h zscript.Host) SessionOption {
	return func(s *Session) { s.host = h }
}

// WithUpdateFromHost sets the reaction to update_from_host.
func WithUpdateFromHost(fn UpdateFunc) SessionOption {
	return func(s *Session) { s.onUpdateFromHost = fn }
}

// WithUpdateHost sets the reaction to update_host.
func WithUpdateHost(fn UpdateFunc) SessionOption {
	return func(s *Session) { s.onUpdateHost = fn }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "session")
			s.queue = mainthread.NewQueue(0, logger)
		}
	}
}

// WithTick sets how often the loop checks for idleness.
func WithTick(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.tick = d
		}
	}
}

// Session owns the state the server acts on: tool launchers, update
// handlers and the host. All of it is touched only from the loop goroutine
// started by Run; the server hands messages over through the queue.
type Session struct {
	queue            *mainthread.Queue
	launcher         ToolLauncher
	host             zscript.Host
	onUpdateFromHost UpdateFunc
	onUpdateHost     UpdateFunc
	logger           *slog.Logger
	tick             time.Duration
}

// NewSession constructs a session. Call Close when done.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		queue:  mainthread.NewQueue(0, nil),
		logger: logging.NewComponentLogger(nil, "session"),
		tick:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit schedules fn on the session loop.
func (s *Session) Submit(ctx context.Context, name string, fn mainthread.Func) (*mainthread.Item, error) {
	return s.queue.Submit(ctx, name, fn)
}

// Handle implements Handler. It does not wait for the work to run.
func (s *Session) Handle(ctx context.Context, msg Message) {
	_, err := s.queue.Submit(ctx, string(msg.Command), func(ctx context.Context) (any, error) {
		return nil, s.dispatch(ctx, msg)
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "message not scheduled", "session_submit_failed",
			logging.String("command", string(msg.Command)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "request dropped"),
		)
	}
}

// Open schedules a tool launch and waits for it.
func (s *Session) Open(ctx context.Context, tool string) error {
	item, err := s.queue.Submit(ctx, "open "+tool, func(ctx context.Context) (any, error) {
		return nil, s.dispatch(ctx, OpenTool(tool))
	})
	if err != nil {
		return err
	}
	_, err = item.Wait(ctx)
	return err
}

func (s *Session) dispatch(ctx context.Context, msg Message) error {
	switch msg.Command {
	case CommandOpen:
		if s.launcher == nil {
			return errors.New("no tool launcher configured")
		}
		return s.launcher.Launch(ctx, msg.Tool())
	case CommandUpdateFromHost:
		return runUpdate(ctx, s.onUpdateFromHost)
	case CommandUpdateHost:
		return runUpdate(ctx, s.onUpdateHost)
	case CommandExecuteScript:
		if s.host == nil {
			return errors.New("no host configured for forwarded scripts")
		}
		return s.host.Run(ctx, zscript.New().Add(zscript.Raw{Text: msg.Script()}))
	default:
		return msg.Validate()
	}
}

func runUpdate(ctx context.Context, fn UpdateFunc) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Run executes queued work until ctx is done. When idle is positive the loop
// also returns once activity reports nothing newer than idle ago.
func (s *Session) Run(ctx context.Context, idle time.Duration, activity func() time.Time) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.queue.Drain(context.WithoutCancel(ctx))
			return nil
		case <-s.queue.Closed():
			s.queue.Drain(context.WithoutCancel(ctx))
			return nil
		case item := <-s.queue.Items():
			s.queue.Execute(ctx, item)
		case <-ticker.C:
			if idle > 0 && activity != nil && time.Since(activity()) >= idle {
				s.logger.Info("coordinator idle, shutting down", logging.Duration("idle", idle))
				return nil
			}
		}
	}
}

// Close stops accepting work.
func (s *Session) Close() {
	s.queue.Close()
}
