package workfile_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zbridge/internal/config"
	"zbridge/internal/services"
	"zbridge/internal/testsupport"
	"zbridge/internal/workdir"
	"zbridge/internal/workfile"
	"zbridge/internal/zscript"
)

var shotA = workdir.Context{Project: "proj", Asset: "shotA", Task: "modeling"}

type fixture struct {
	cfg     *config.Config
	host    *testsupport.FakeHost
	workdir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	wd := filepath.Join(testsupport.BaseDir(cfg), "proj", "shotA", "work")
	t.Setenv(workdir.EnvWorkdir, wd)
	return &fixture{cfg: cfg, host: testsupport.NewFakeHost(), workdir: wd}
}

func (f *fixture) store(opts ...workfile.Option) *workfile.Store {
	opts = append([]workfile.Option{workfile.WithDefaultContext(shotA)}, opts...)
	return workfile.New(f.cfg, f.host, opts...)
}

func TestLaunchSeedsContextFromDefaults(t *testing.T) {
	f := newFixture(t)
	store := f.store()
	ctx := context.Background()

	if store.State() != workfile.StateUninitialized {
		t.Fatalf("expected uninitialized, got %s", store.State())
	}
	if err := store.Launch(ctx); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if store.State() != workfile.StateLoaded {
		t.Fatalf("expected loaded, got %s", store.State())
	}
	if store.Context() != shotA {
		t.Fatalf("unexpected context %+v", store.Context())
	}
	if _, ok := f.host.Block(workfile.BlockContext); !ok {
		t.Fatal("expected context block to be created in host memory")
	}
	current, err := store.CurrentWorkfile(ctx)
	if err != nil || current != "" {
		t.Fatalf("expected empty current workfile, got %q %v", current, err)
	}
}

func TestContextSurvivesFreshStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.store()
	if err := first.Launch(ctx); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	changed := workdir.Context{Project: "proj", Asset: "shotB", Task: "sculpt"}
	if err := first.SetContext(ctx, changed); err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	if _, err := first.Save(ctx, filepath.Join(f.workdir, "sceneA.zpr")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := f.store()
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if second.Context() != changed {
		t.Fatalf("reloaded context = %+v, want %+v", second.Context(), changed)
	}
	if second.State() != workfile.StateSaved {
		t.Fatalf("expected saved state after reload, got %s", second.State())
	}
}

func TestSetContextRejectsIncomplete(t *testing.T) {
	f := newFixture(t)
	err := f.store().SetContext(context.Background(), workdir.Context{Project: "p"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveRunsHostActionAndRecordsSideFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := f.store()
	if err := store.Launch(ctx); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(f.workdir, "sceneA")
	saved, err := store.Save(ctx, target)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.ToSlash(target) + ".zpr"; saved != want {
		t.Fatalf("Save returned %q, want %q", saved, want)
	}
	if store.State() != workfile.StateSaved {
		t.Fatalf("expected saved state, got %s", store.State())
	}

	actions := f.host.Actions()
	if len(actions) != 1 || actions[0].Name != zscript.ActionFileSaveAs || actions[0].File != saved {
		t.Fatalf("unexpected host actions %+v", actions)
	}
	side := testsupport.ReadFile(t, filepath.Join(f.workdir, ".metadata", workdir.CurrentFileName))
	if side != saved {
		t.Fatalf("side file = %q, want %q", side, saved)
	}
	mirror := filepath.Join(f.workdir, ".metadata", "sceneA", "context", "context.json")
	if got := testsupport.ReadFile(t, mirror); got == "" {
		t.Fatal("expected context mirror on disk")
	}

	again, err := store.Save(ctx, "")
	if err != nil || again != saved {
		t.Fatalf("Save over current = %q %v", again, err)
	}
}

func TestSaveWithoutPathOrCurrentFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := f.store()
	if _, err := store.Save(ctx, "x.zpr"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error before launch, got %v", err)
	}
	if err := store.Launch(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error without a path, got %v", err)
	}
}

func TestSaveAsCopiesContainers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := f.store()
	if err := store.Launch(ctx); err != nil {
		t.Fatal(err)
	}
	untitled := filepath.Join(f.workdir, ".metadata", workdir.UntitledScene, "containers")
	testsupport.WriteFile(t, filepath.Join(untitled, "propA.json"), `{"name":"propA"}`)

	if _, err := store.Save(ctx, filepath.Join(f.workdir, "sceneA.zpr")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	copied := testsupport.ListDir(t, filepath.Join(f.workdir, ".metadata", "sceneA", "containers"))
	if len(copied) != 1 || copied[0] != "propA.json" {
		t.Fatalf("expected container carried to new scene, got %v", copied)
	}
	if _, err := store.Save(ctx, filepath.Join(f.workdir, "sceneB.zpr")); err != nil {
		t.Fatalf("Save as: %v", err)
	}
	if got := testsupport.ListDir(t, filepath.Join(f.workdir, ".metadata", "sceneB", "containers")); len(got) != 1 {
		t.Fatalf("expected container carried to sceneB, got %v", got)
	}
}

func TestOpenAdoptsSceneContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := f.store()
	if err := store.Launch(ctx); err != nil {
		t.Fatal(err)
	}
	other := workdir.Context{Project: "proj", Asset: "shotC", Task: "lookdev"}
	testsupport.WriteFile(t, filepath.Join(f.workdir, ".metadata", "sceneC", "context", "context.json"),
		`{"project_name":"proj","asset_name":"shotC","task_name":"lookdev"}`)

	path := filepath.Join(f.workdir, "sceneC.zpr")
	if err := store.Open(ctx, path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Context() != other {
		t.Fatalf("context = %+v, want %+v", store.Context(), other)
	}
	current, err := store.CurrentWorkfile(ctx)
	if err != nil || current != filepath.ToSlash(path) {
		t.Fatalf("current workfile = %q %v", current, err)
	}
	actions := f.host.Actions()
	if len(actions) != 1 || actions[0].Name != zscript.ActionFileOpen {
		t.Fatalf("unexpected actions %+v", actions)
	}
}

func TestOpenAdoptsContextFromAnotherWorkdir(t *testing.T) {
	f := newFixture(t)
	t.Setenv(workdir.EnvWorkdir, "")
	ctx := context.Background()
	store := f.store()
	if err := store.Launch(ctx); err != nil {
		t.Fatal(err)
	}

	other := workdir.Context{Project: "proj", Asset: "shotC", Task: "lookdev"}
	otherDir := filepath.Join(f.cfg.Workdir.Root, "proj", "shotC", "work", "lookdev")
	testsupport.WriteFile(t, filepath.Join(otherDir, ".metadata", "sceneC", "context", "context.json"),
		`{"project_name":"proj","asset_name":"shotC","task_name":"lookdev"}`)

	path := filepath.Join(otherDir, "sceneC.zpr")
	if err := store.Open(ctx, path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Context() != other {
		t.Fatalf("context = %+v, want %+v", store.Context(), other)
	}
	current, err := store.CurrentWorkfile(ctx)
	if err != nil || current != filepath.ToSlash(path) {
		t.Fatalf("current workfile = %q %v", current, err)
	}
	side := filepath.Join(otherDir, ".metadata", workdir.CurrentFileName)
	if got := testsupport.ReadFile(t, side); got != filepath.ToSlash(path) {
		t.Fatalf("side file in the opened workdir = %q", got)
	}
}

func TestLaunchReopensLastWorkfile(t *testing.T) {
	f := newFixture(t)
	f.cfg.Workfile.ReopenLast = true
	hist := testsupport.MustOpenHistory(t)
	ctx := context.Background()

	first := f.store(workfile.WithHistory(hist))
	if err := first.Launch(ctx); err != nil {
		t.Fatal(err)
	}
	saved, err := first.Save(ctx, filepath.Join(f.workdir, "sceneA.zpr"))
	if err != nil {
		t.Fatal(err)
	}

	f.host.Restart()
	second := f.store(workfile.WithHistory(hist))
	if err := second.Launch(ctx); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	current, err := second.CurrentWorkfile(ctx)
	if err != nil || current != saved {
		t.Fatalf("expected %q reopened, got %q %v", saved, current, err)
	}
	if second.State() != workfile.StateSaved {
		t.Fatalf("expected saved state, got %s", second.State())
	}
}

func TestHostFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.host.Err = services.Wrap(services.ErrHostUnavailable, "test", "run", "host gone", nil)
	err := f.store().Launch(context.Background())
	if !errors.Is(err, services.ErrHostUnavailable) {
		t.Fatalf("expected host unavailable, got %v", err)
	}
}

func TestContextData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := f.store()

	data, err := store.ContextData(ctx)
	if err != nil || len(data) != 0 {
		t.Fatalf("expected empty create context, got %v %v", data, err)
	}
	if err := store.UpdateContextData(ctx, map[string]any{"publish_attributes": map[string]any{"x": true}}); err != nil {
		t.Fatalf("UpdateContextData: %v", err)
	}
	data, err = store.ContextData(ctx)
	if err != nil {
		t.Fatalf("ContextData: %v", err)
	}
	attrs, ok := data["publish_attributes"].(map[string]any)
	if !ok || attrs["x"] != true {
		t.Fatalf("unexpected create context %v", data)
	}
}
