package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"zbridge/internal/config"
	"zbridge/internal/logging"
)

// Outcome reports how Launch satisfied a request.
type Outcome string

const (
	// OutcomeForwarded means a running server received the request.
	OutcomeForwarded Outcome = "forwarded"
	// OutcomeServed means this process became the server and ran until
	// cancelled or idle.
	OutcomeServed Outcome = "served"
)

// Runtime carries what a coordinator process needs.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Launcher ToolLauncher
	Session  []SessionOption
}

const raceRetries = 5

// Launch is the launcher-menu entry point. It first tries to hand the tool
// request to a running server; if none answers, it becomes the server, opens
// the tool itself and serves until ctx is cancelled or the idle timeout
// passes.
func Launch(ctx context.Context, rt Runtime, tool string) (Outcome, error) {
	logger := logging.NewComponentLogger(rt.Logger, component)
	client := NewClient(rt.Config, rt.Logger)

	if tool != "" {
		res := client.Send(ctx, OpenTool(tool))
		if res.Delivered() {
			logger.Info("tool request forwarded", logging.String("tool", tool), logging.String("address", res.Address))
			return OutcomeForwarded, nil
		}
		logger.Debug("no running coordinator", logging.String("status", res.Status.String()), logging.Error(res.Err))
	}

	err := Serve(ctx, rt, tool)
	if !errors.Is(err, ErrAlreadyRunning) || tool == "" {
		return OutcomeServed, err
	}

	// Another process won the election between our send and our listen.
	for i := 0; i < raceRetries; i++ {
		select {
		case <-ctx.Done():
			return OutcomeForwarded, ctx.Err()
		case <-time.After(rt.Config.PollInterval()):
		}
		if res := client.Send(ctx, OpenTool(tool)); res.Delivered() {
			return OutcomeForwarded, nil
		}
	}
	return OutcomeForwarded, err
}

// Serve runs a coordinator server with a fresh session. initialTool, when
// set, is opened once the server is listening.
func Serve(ctx context.Context, rt Runtime, initialTool string) error {
	var srv *Server
	address := func() string {
		if srv == nil {
			return ""
		}
		return srv.Addr()
	}
	launcher := rt.Launcher
	if launcher == nil {
		launcher = NewCommandLauncher(rt.Config, address, rt.Logger)
	}

	opts := append([]SessionOption{
		WithLauncher(launcher),
		WithSessionLogger(rt.Logger),
		WithTick(rt.Config.PollInterval()),
	}, rt.Session...)
	session := NewSession(opts...)
	defer session.Close()

	var err error
	srv, err = Listen(ctx, rt.Config, session, rt.Logger)
	if err != nil {
		return err
	}
	defer srv.Close()
	srv.Serve()

	if initialTool != "" {
		session.Handle(ctx, OpenTool(initialTool))
	}

	activity := func() time.Time {
		if r, ok := launcher.(interface{ Running() int }); ok && r.Running() > 0 {
			return time.Now()
		}
		return srv.LastActivity()
	}
	return session.Run(ctx, rt.Config.IdleTimeout(), activity)
}
