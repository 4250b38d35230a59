package mainthread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"zbridge/internal/logging"
)

const component = "mainthread"

// ErrClosed is returned when submitting to a closed queue.
var ErrClosed = errors.New("main thread queue closed")

// Func is work that must run on the loop goroutine.
type Func func(ctx context.Context) (any, error)

// Item is a submitted callback and its outcome.
type Item struct {
	name   string
	fn     Func
	done   chan struct{}
	result any
	err    error
}

// Name returns the label given at submission.
func (i *Item) Name() string {
	return i.name
}

// Done is closed once the callback has run.
func (i *Item) Done() <-chan struct{} {
	return i.done
}

// Wait blocks until the callback has run or ctx is done and returns the
// callback's result. A panic in the callback is returned as an error.
func (i *Item) Wait(ctx context.Context) (any, error) {
	select {
	case <-i.done:
		return i.result, i.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *Item) execute(ctx context.Context) {
	defer close(i.done)
	defer func() {
		if r := recover(); r != nil {
			i.err = fmt.Errorf("%s panicked: %v", i.name, r)
		}
	}()
	i.result, i.err = i.fn(ctx)
}

// Queue hands callbacks from any goroutine to a single loop goroutine, the
// one that owns host and tool state.
type Queue struct {
	items  chan *Item
	logger *slog.Logger

	// mu is held for reading by in-flight Submits; Close takes it for
	// writing only after closed is signalled, so a blocked Submit wakes first.
	mu        sync.RWMutex
	closed    chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a queue holding up to size pending items.
func NewQueue(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		items:  make(chan *Item, size),
		closed: make(chan struct{}),
		logger: logging.NewComponentLogger(logger, component),
	}
}

// Submit enqueues fn. It blocks while the queue is full, until ctx is done or
// the queue is closed.
func (q *Queue) Submit(ctx context.Context, name string, fn Func) (*Item, error) {
	if fn == nil {
		return nil, errors.New("nil callback")
	}
	item := &Item{name: name, fn: fn, done: make(chan struct{})}

	q.mu.RLock()
	defer q.mu.RUnlock()
	select {
	case <-q.closed:
		return nil, ErrClosed
	default:
	}
	select {
	case q.items <- item:
		return item, nil
	case <-q.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Items exposes the pending items for loops that select over other channels.
// Each received item must be passed to Execute.
func (q *Queue) Items() <-chan *Item {
	return q.items
}

// Closed is closed once Close has been called.
func (q *Queue) Closed() <-chan struct{} {
	return q.closed
}

// Execute runs item on the calling goroutine and logs a failure.
func (q *Queue) Execute(ctx context.Context, item *Item) {
	item.execute(ctx)
	if item.err != nil {
		logging.ErrorWithContext(q.logger, "main thread callback failed", "callback_failed",
			logging.String("callback", item.name),
			logging.Error(item.err),
		)
		return
	}
	q.logger.Debug("main thread callback finished", logging.String("callback", item.name))
}

// Run executes items until ctx is done or the queue is closed. Items still
// queued at close are executed before Run returns.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.closed:
			q.Drain(ctx)
			return nil
		case item := <-q.items:
			q.Execute(ctx, item)
		}
	}
}

// Drain executes every item already queued without blocking and returns how
// many ran.
func (q *Queue) Drain(ctx context.Context) int {
	ran := 0
	for {
		select {
		case item := <-q.items:
			q.Execute(ctx, item)
			ran++
		default:
			return ran
		}
	}
}

// Close stops accepting items and wakes Submits blocked on a full queue. When
// it returns no further item can be enqueued; items already queued can still
// be drained. Close is idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
	q.mu.Lock()
	defer q.mu.Unlock()
}
