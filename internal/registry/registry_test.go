package registry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"zbridge/internal/registry"
	"zbridge/internal/services"
	"zbridge/internal/testsupport"
	"zbridge/internal/workdir"
	"zbridge/internal/workfile"
)

type fixture struct {
	store    *workfile.Store
	registry *registry.Registry
	workdir  string
}

func newFixture(t *testing.T, overwrite bool) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithOverwrite(overwrite))
	wd := filepath.Join(testsupport.BaseDir(cfg), "proj", "shotA", "work")
	t.Setenv(workdir.EnvWorkdir, wd)

	store := workfile.New(cfg, testsupport.NewFakeHost(),
		workfile.WithDefaultContext(workdir.Context{Project: "proj", Asset: "shotA", Task: "modeling"}))
	if err := store.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	return &fixture{store: store, registry: registry.New(cfg, store), workdir: wd}
}

func (f *fixture) containersDir(scene string) string {
	return filepath.Join(f.workdir, ".metadata", scene, "containers")
}

func TestContaineriseWritesUnderSavedScene(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	if _, err := f.store.Save(ctx, filepath.Join(f.workdir, "sceneA.zpr")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c, err := f.registry.Containerise(ctx, "propA", "propA_01", "rep-1", "MeshLoader")
	if err != nil {
		t.Fatalf("Containerise: %v", err)
	}
	if c.Schema != registry.Schema || c.ID != registry.ContainerID {
		t.Fatalf("expected constants filled in, got %+v", c)
	}
	files := testsupport.ListDir(t, f.containersDir("sceneA"))
	if len(files) != 1 || files[0] != "propA.json" {
		t.Fatalf("unexpected container files %v", files)
	}

	var stored map[string]any
	if err := json.Unmarshal([]byte(testsupport.ReadFile(t, filepath.Join(f.containersDir("sceneA"), "propA.json"))), &stored); err != nil {
		t.Fatalf("stored file is not JSON: %v", err)
	}
	if stored["representation"] != "rep-1" || stored["loader"] != "MeshLoader" || stored["namespace"] != "propA_01" {
		t.Fatalf("unexpected stored record %v", stored)
	}
}

func TestAddThenListContainsRecord(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	before, err := f.registry.List(ctx)
	if err != nil || len(before) != 0 {
		t.Fatalf("expected empty registry, got %v %v", before, err)
	}
	for _, name := range []string{"b", "a"} {
		if _, err := f.registry.Add(ctx, registry.Container{Name: name, Representation: "r-" + name}); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}
	list, err := f.registry.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].ObjectName != "a" {
		t.Fatalf("expected objectName to default to name, got %q", list[0].ObjectName)
	}
}

func TestAddDuplicatePolicy(t *testing.T) {
	ctx := context.Background()

	strict := newFixture(t, false)
	if _, err := strict.registry.Add(ctx, registry.Container{Name: "propA", Representation: "1"}); err != nil {
		t.Fatal(err)
	}
	_, err := strict.registry.Add(ctx, registry.Container{Name: "propA", Representation: "2"})
	if !errors.Is(err, services.ErrDuplicateContainer) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	lenient := newFixture(t, true)
	if _, err := lenient.registry.Add(ctx, registry.Container{Name: "propA", Representation: "1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := lenient.registry.Add(ctx, registry.Container{Name: "propA", Representation: "2"}); err != nil {
		t.Fatalf("expected overwrite, got %v", err)
	}
	got, err := lenient.registry.Get(ctx, "propA")
	if err != nil || got.Representation != "2" {
		t.Fatalf("expected overwritten record, got %+v %v", got, err)
	}
}

func TestAddRejectsPathNames(t *testing.T) {
	f := newFixture(t, false)
	for _, name := range []string{"", "../escape", `a\b`, ".."} {
		if _, err := f.registry.Add(context.Background(), registry.Container{Name: name}); !errors.Is(err, services.ErrValidation) {
			t.Errorf("Add(%q): expected validation error, got %v", name, err)
		}
	}
}

func TestRemoveMissingLeavesDirectoryUntouched(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	if _, err := f.registry.Add(ctx, registry.Container{Name: "propA"}); err != nil {
		t.Fatal(err)
	}
	before := testsupport.ListDir(t, f.containersDir(workdir.UntitledScene))

	err := f.registry.Remove(ctx, "ghost")
	if !errors.Is(err, services.ErrContainerNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	after := testsupport.ListDir(t, f.containersDir(workdir.UntitledScene))
	if len(before) != len(after) {
		t.Fatalf("directory changed: before %v after %v", before, after)
	}

	if err := f.registry.Remove(ctx, "propA"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if left := testsupport.ListDir(t, f.containersDir(workdir.UntitledScene)); len(left) != 0 {
		t.Fatalf("expected container removed, got %v", left)
	}
}

func TestUpdateChangesOnlyRequestedField(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	path := filepath.Join(f.containersDir(workdir.UntitledScene), "propA.json")
	testsupport.WriteFile(t, path, `{"schema":"openpype:container-2.0","id":"pyblish.avalon.container",`+
		`"name":"propA","namespace":"ns","loader":"MeshLoader","representation":"old",`+
		`"custom":{"nested":[1,2,3]},"color":"red"}`)

	var before map[string]json.RawMessage
	if err := json.Unmarshal([]byte(testsupport.ReadFile(t, path)), &before); err != nil {
		t.Fatal(err)
	}

	rep := "new"
	updated, err := f.registry.Update(ctx, "propA", registry.Changes{Representation: &rep})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Representation != "new" {
		t.Fatalf("returned record not updated: %+v", updated)
	}

	var after map[string]json.RawMessage
	if err := json.Unmarshal([]byte(testsupport.ReadFile(t, path)), &after); err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Fatalf("field set changed: before %v after %v", before, after)
	}
	for key, raw := range before {
		if key == "representation" {
			if string(after[key]) != `"new"` {
				t.Fatalf("representation = %s", after[key])
			}
			continue
		}
		if compact(t, after[key]) != compact(t, raw) {
			t.Fatalf("field %s changed: %s -> %s", key, raw, after[key])
		}
	}
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	f := newFixture(t, false)
	rep := "x"
	_, err := f.registry.Update(context.Background(), "ghost", registry.Changes{Representation: &rep})
	if !errors.Is(err, services.ErrContainerNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLegacyListFilesDeriveObjectName(t *testing.T) {
	f := newFixture(t, false)
	dir := f.containersDir(workdir.UntitledScene)
	testsupport.WriteFile(t, filepath.Join(dir, "legacy.json"),
		`[{"schema":"openpype:container-2.0","id":"pyblish.avalon.container","name":["meshA","meshB"],"namespace":"","loader":"MeshLoader","representation":"r1"}]`)
	testsupport.WriteFile(t, filepath.Join(dir, "broken.json"), `{"name":`)

	list, err := f.registry.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected broken file skipped, got %+v", list)
	}
	if list[0].ObjectName != "meshA|meshB" {
		t.Fatalf("objectName = %q", list[0].ObjectName)
	}

	rep := "r2"
	if _, err := f.registry.Update(context.Background(), "legacy", registry.Changes{Representation: &rep}); err != nil {
		t.Fatalf("Update legacy: %v", err)
	}
	var stored []map[string]any
	if err := json.Unmarshal([]byte(testsupport.ReadFile(t, filepath.Join(dir, "legacy.json"))), &stored); err != nil {
		t.Fatalf("legacy file no longer a list: %v", err)
	}
	if stored[0]["representation"] != "r2" {
		t.Fatalf("unexpected legacy record %v", stored[0])
	}
	if _, ok := stored[0]["name"].([]any); !ok {
		t.Fatalf("legacy name list should be preserved, got %v", stored[0]["name"])
	}
}

func TestClearRemovesSceneContainers(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		if _, err := f.registry.Add(ctx, registry.Container{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := f.registry.Clear(ctx, workdir.UntitledScene)
	if err != nil || removed != 2 {
		t.Fatalf("Clear = %d %v", removed, err)
	}
}

func TestContainerPreservesUnknownFields(t *testing.T) {
	var c registry.Container
	if err := json.Unmarshal([]byte(`{"name":"n","loader":null,"representation":42,"extra":{"k":"v"}}`), &c); err != nil {
		t.Fatal(err)
	}
	if c.Representation != "42" || c.Loader != "" {
		t.Fatalf("unexpected loose decode %+v", c)
	}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var round map[string]json.RawMessage
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatal(err)
	}
	if string(round["extra"]) != `{"k":"v"}` {
		t.Fatalf("extra field lost: %s", data)
	}
}

func compact(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		t.Fatalf("compact %s: %v", raw, err)
	}
	return buf.String()
}
