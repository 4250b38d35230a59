package zscript_test

import (
	"context"
	"errors"
	"testing"

	"zbridge/internal/services"
	"zbridge/internal/zscript"
)

type flakyHost struct {
	failures int
	err      error
	calls    int
}

func (f *flakyHost) Run(ctx context.Context, script *zscript.Script) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func TestRetryHostRetriesTransientFailures(t *testing.T) {
	inner := &flakyHost{failures: 2, err: services.Wrap(services.ErrTimeout, "test", "run", "", nil)}
	host := zscript.NewRetryHost(inner, 3, 0, nil)
	if err := host.Run(context.Background(), zscript.New().Add(zscript.MemDelete{Name: "a"})); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryHostDoesNotRetryValidation(t *testing.T) {
	inner := &flakyHost{failures: 5, err: services.Wrap(services.ErrValidation, "test", "run", "", nil)}
	host := zscript.NewRetryHost(inner, 3, 0, nil)
	err := host.Run(context.Background(), zscript.New().Add(zscript.MemDelete{Name: "a"}))
	if !errors.Is(err, services.ErrValidation) || inner.calls != 1 {
		t.Fatalf("expected single failing call, got calls=%d err=%v", inner.calls, err)
	}
}

func TestNewRetryHostSingleAttemptIsPassthrough(t *testing.T) {
	inner := &flakyHost{}
	if host := zscript.NewRetryHost(inner, 1, 0, nil); host != zscript.Host(inner) {
		t.Fatal("expected inner host to be returned unchanged")
	}
}
