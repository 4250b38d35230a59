package coordinator_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"zbridge/internal/coordinator"
	"zbridge/internal/testsupport"
)

func TestSessionDispatchesOnLoop(t *testing.T) {
	host := testsupport.NewFakeHost()
	launcher := newRecordingLauncher()
	updates := make(chan string, 4)

	session := coordinator.NewSession(
		coordinator.WithLauncher(launcher),
		coordinator.WithHost(host),
		coordinator.WithUpdateFromHost(func(context.Context) error { updates <- "from_host"; return nil }),
		coordinator.WithUpdateHost(func(context.Context) error { updates <- "host"; return nil }),
		coordinator.WithTick(10*time.Millisecond),
	)
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = session.Run(ctx, 0, nil) }()

	session.Handle(ctx, coordinator.UpdateFromHost())
	session.Handle(ctx, coordinator.UpdateHost())
	session.Handle(ctx, coordinator.ExecuteScript("[MemCreate, probe, 16]"))
	if err := session.Open(ctx, "publisher"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, want := range []string{"from_host", "host"} {
		select {
		case got := <-updates:
			if got != want {
				t.Fatalf("update order: got %s want %s", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing %s update", want)
		}
	}
	if tool := launcher.wait(t); tool != "publisher" {
		t.Fatalf("launched %q", tool)
	}
	scripts := host.Scripts()
	if len(scripts) != 1 || !strings.Contains(scripts[0], "[MemCreate, probe, 16]") {
		t.Fatalf("forwarded script not run: %v", scripts)
	}
}

func TestSessionOpenReportsLauncherError(t *testing.T) {
	session := coordinator.NewSession(coordinator.WithTick(10 * time.Millisecond))
	defer session.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = session.Run(ctx, 0, nil) }()

	if err := session.Open(ctx, "loader"); err == nil || !strings.Contains(err.Error(), "launcher") {
		t.Fatalf("expected missing launcher error, got %v", err)
	}
	item, err := session.Submit(ctx, "custom", func(context.Context) (any, error) { return 7, nil })
	if err != nil {
		t.Fatal(err)
	}
	if v, err := item.Wait(ctx); err != nil || v.(int) != 7 {
		t.Fatalf("Submit result = %v %v", v, err)
	}
}

func TestCommandLauncherRequiresConfiguredTool(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := coordinator.NewCommandLauncher(cfg, nil, nil)
	if err := l.Launch(context.Background(), "loader"); err == nil {
		t.Fatal("expected error for unconfigured tool")
	}
}

func TestCommandLauncherStartsProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTool("loader", "true"))
	l := coordinator.NewCommandLauncher(cfg, func() string { return "127.0.0.1:1" }, nil)
	if err := l.Launch(context.Background(), "loader"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for l.Running() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("tool process did not exit")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMessageValidation(t *testing.T) {
	cases := []struct {
		msg  coordinator.Message
		fail bool
	}{
		{coordinator.OpenTool("loader"), false},
		{coordinator.OpenTool("  "), true},
		{coordinator.ExecuteScript(""), true},
		{coordinator.UpdateHost(), false},
		{coordinator.Message{Command: "nope"}, true},
	}
	for _, tc := range cases {
		err := tc.msg.Validate()
		if (err != nil) != tc.fail {
			t.Errorf("Validate(%+v) = %v, want fail=%v", tc.msg, err, tc.fail)
		}
	}
}
