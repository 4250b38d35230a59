package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"zbridge/internal/codec"
	"zbridge/internal/config"
	"zbridge/internal/logging"
	"zbridge/internal/services"
)

const handshakeTimeout = 5 * time.Second

// ErrAlreadyRunning reports that another process holds the server lock.
var ErrAlreadyRunning = errors.New("coordinator server already running")

// Handler receives authenticated messages in arrival order per connection.
type Handler interface {
	Handle(ctx context.Context, msg Message)
}

// Server accepts loopback connections, authenticates them and passes their
// messages to a Handler. Only one server runs per state directory.
type Server struct {
	listener     net.Listener
	handler      Handler
	key          authKey
	logger       *slog.Logger
	lock         *flock.Flock
	endpointPath string

	lastActivity atomic.Int64
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// Listen takes the server lock, binds an ephemeral loopback port and
// publishes the discovery record.
func Listen(ctx context.Context, cfg *config.Config, handler Handler, logger *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("coordinator server requires a handler")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	lock := flock.New(cfg.CoordinatorLockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("listen: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		listener:     listener,
		handler:      handler,
		key:          deriveKey(cfg.Coordinator.Secret),
		logger:       logging.NewComponentLogger(logger, component),
		lock:         lock,
		endpointPath: cfg.CoordinatorAddressPath(),
		ctx:          serverCtx,
		cancel:       cancel,
	}
	s.touch()

	ep := Endpoint{Address: listener.Addr().String(), PID: os.Getpid(), StartedAt: time.Now().UTC()}
	if err := writeEndpoint(s.endpointPath, ep); err != nil {
		s.Close()
		return nil, fmt.Errorf("publish endpoint: %w", err)
	}
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// LastActivity returns when the last message was received.
func (s *Server) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Server) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Serve accepts connections on a background goroutine until Close.
func (s *Server) Serve() {
	s.logger.Info("coordinator listening", logging.String("address", s.Addr()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "coordinator_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "launcher requests may fail to connect"),
					logging.String(logging.FieldErrorHint, "restart the coordinator if this repeats"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.serveConn(c)
			}(conn)
		}
	}()
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(s.ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	ok, err := serverHandshake(conn, s.key)
	if err != nil || !ok {
		logging.WarnWithContext(s.logger, "client authentication failed", "coordinator_auth_failed",
			logging.String("remote", conn.RemoteAddr().String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "request dropped"),
			logging.String(logging.FieldErrorHint, "check coordinator.secret matches on both sides"),
		)
		return
	}
	_ = conn.SetDeadline(time.Time{})

	for {
		var msg Message
		if err := codec.ReadFrame(conn, &msg); err != nil {
			if !errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				s.logger.Debug("connection closed with error", logging.Error(err))
			}
			return
		}
		s.touch()
		if err := msg.Validate(); err != nil {
			logging.WarnWithContext(s.logger, "invalid message dropped", "coordinator_bad_message",
				logging.Error(err),
				logging.String(logging.FieldImpact, "request ignored"),
			)
			continue
		}
		ctx := services.WithRequestID(s.ctx, msg.RequestID)
		logging.WithContext(ctx, s.logger).Debug("message received", logging.String("command", string(msg.Command)))
		s.handler.Handle(ctx, msg)
	}
}

// Close stops accepting, waits for connections to finish, removes the
// discovery record and releases the lock.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.listener.Close()
		s.wg.Wait()
		if err := os.Remove(s.endpointPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(s.logger, "failed to remove endpoint file", "coordinator_cleanup_failed",
				logging.String("path", s.endpointPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "clients may dial a stale address until the next server starts"),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
			)
		}
		if err := s.lock.Unlock(); err != nil {
			s.logger.Debug("release coordinator lock failed", logging.Error(err))
		}
		s.logger.Info("coordinator stopped")
	})
}
