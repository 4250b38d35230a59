package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"zbridge/internal/codec"
	"zbridge/internal/config"
	"zbridge/internal/logging"
)

const component = "coordinator"

// Status is the outcome of a send.
type Status int

const (
	StatusDelivered Status = iota
	StatusConnectionRefused
	StatusTimeout
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusConnectionRefused:
		return "connection_refused"
	case StatusTimeout:
		return "timeout"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result describes a send attempt. Err carries the underlying cause for
// logging and is nil when the message was delivered.
type Result struct {
	Status  Status
	Address string
	Err     error
}

// Delivered reports whether the server accepted the message.
func (r Result) Delivered() bool {
	return r.Status == StatusDelivered
}

// Client sends one message per connection to a running server.
type Client struct {
	resolve func() (string, error)
	key     authKey
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient builds a client that discovers the server through the
// environment override or the discovery file.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		resolve: func() (string, error) { return ResolveAddress(cfg) },
		key:     deriveKey(cfg.Coordinator.Secret),
		timeout: cfg.DialTimeout(),
		logger:  logging.NewComponentLogger(logger, component),
	}
}

// NewClientForAddress builds a client for a fixed address.
func NewClientForAddress(address, secret string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		resolve: func() (string, error) { return address, nil },
		key:     deriveKey(secret),
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, component),
	}
}

// Send delivers msg and closes the connection. It never returns an error
// value: every failure maps to a Result status.
func (c *Client) Send(ctx context.Context, msg Message) Result {
	if err := msg.Validate(); err != nil {
		return Result{Status: StatusRejected, Err: err}
	}
	addr, err := c.resolve()
	if err != nil || strings.TrimSpace(addr) == "" {
		if err == nil {
			err = errors.New("no coordinator address")
		}
		return Result{Status: StatusConnectionRefused, Err: err}
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return c.failure(addr, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(timeout))
	if err := clientHandshake(conn, c.key); err != nil {
		if errors.Is(err, errRejected) {
			return Result{Status: StatusRejected, Address: addr, Err: err}
		}
		return c.failure(addr, err)
	}
	if msg.RequestID == "" {
		msg.RequestID = uuid.NewString()
	}
	if err := codec.WriteFrame(conn, msg); err != nil {
		return c.failure(addr, err)
	}
	c.logger.Debug("message delivered",
		logging.String("command", string(msg.Command)),
		logging.String(logging.FieldCorrelationID, msg.RequestID),
		logging.String("address", addr),
	)
	return Result{Status: StatusDelivered, Address: addr}
}

func (c *Client) failure(addr string, err error) Result {
	status := StatusConnectionRefused
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		status = StatusTimeout
	}
	return Result{Status: status, Address: addr, Err: err}
}

// NotifyUpdateFromHost tells a running server that host state changed.
func NotifyUpdateFromHost(ctx context.Context, c *Client) Result {
	return c.Send(ctx, UpdateFromHost())
}

// NotifyUpdateHost asks a running server to push tool state into the host.
func NotifyUpdateHost(ctx context.Context, c *Client) Result {
	return c.Send(ctx, UpdateHost())
}

// ForwardScript hands script text to a running server for execution in the
// host it owns.
func ForwardScript(ctx context.Context, c *Client, script string) Result {
	return c.Send(ctx, ExecuteScript(script))
}
