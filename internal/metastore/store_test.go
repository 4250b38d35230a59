package metastore_test

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"zbridge/internal/metastore"
	"zbridge/internal/testsupport"
)

func TestNamesSkipsTempAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "b.json"), `{"name":"b"}`)
	testsupport.WriteFile(t, filepath.Join(dir, "a.json"), `{"name":"a"}`)
	testsupport.WriteFile(t, filepath.Join(dir, ".c.json.1234abcd.tmp"), `{}`)
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), `hello`)

	names, err := metastore.New(nil).Names(dir)
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestNamesMissingDirectoryIsEmpty(t *testing.T) {
	names, err := metastore.New(nil).Names(filepath.Join(t.TempDir(), "missing"))
	if err != nil || len(names) != 0 {
		t.Fatalf("expected no names, got %v %v", names, err)
	}
}

func TestReadRecordsFlattensListsAndSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "a.json"), `{"name":"a"}`)
	testsupport.WriteFile(t, filepath.Join(dir, "b.json"), `[{"name":"b1"},{"name":"b2"}]`)
	testsupport.WriteFile(t, filepath.Join(dir, "c.json"), `{broken`)
	testsupport.WriteFile(t, filepath.Join(dir, "d.json"), "{\"name\":\"d\"}\x00\x00\x00")

	entries, err := metastore.New(nil).ReadRecords(dir)
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	var got []string
	for _, e := range entries {
		var rec struct{ Name string }
		if err := json.Unmarshal(e.Raw, &rec); err != nil {
			t.Fatalf("unmarshal %s: %v", e.Raw, err)
		}
		got = append(got, e.Name+":"+rec.Name)
	}
	want := []string{"a:a", "b:b1", "b:b2", "d:d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestWriteAndReadJSON(t *testing.T) {
	store := metastore.New(nil)
	path := filepath.Join(t.TempDir(), "scene", "instances", "instances.json")

	if err := store.WriteJSON(path, []map[string]string{{"instance_id": "1"}}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var out []map[string]string
	if err := store.ReadJSON(path, &out); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(out) != 1 || out[0]["instance_id"] != "1" {
		t.Fatalf("unexpected read %v", out)
	}

	missing := []string{"default"}
	if err := store.ReadJSON(filepath.Join(t.TempDir(), "nope.json"), &missing); err != nil || missing[0] != "default" {
		t.Fatalf("expected default for missing file, got %v %v", missing, err)
	}
}

func TestRemoveMissingReportsNotExist(t *testing.T) {
	err := metastore.New(nil).Remove(filepath.Join(t.TempDir(), "x.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}

func TestClearAndCopySection(t *testing.T) {
	store := metastore.New(nil)
	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "dst")
	testsupport.WriteFile(t, filepath.Join(src, "a.json"), `{}`)
	testsupport.WriteFile(t, filepath.Join(src, "b.json"), `{}`)

	copied, err := store.CopySection(src, dst)
	if err != nil || copied != 2 {
		t.Fatalf("CopySection: %d %v", copied, err)
	}
	if copied, err := store.CopySection(filepath.Join(src, "missing"), dst); err != nil || copied != 0 {
		t.Fatalf("CopySection missing: %d %v", copied, err)
	}
	removed, err := store.Clear(src)
	if err != nil || removed != 2 {
		t.Fatalf("Clear: %d %v", removed, err)
	}
	if names, _ := store.Names(dst); len(names) != 2 {
		t.Fatalf("destination lost files: %v", names)
	}
}

func TestSideFileStripsPadding(t *testing.T) {
	store := metastore.New(nil)
	path := filepath.Join(t.TempDir(), "current_file.txt")

	if got, err := store.ReadSideFile(path); err != nil || got != "" {
		t.Fatalf("missing side file: %q %v", got, err)
	}
	if err := os.WriteFile(path, []byte("/proj/sceneA.zpr\x00\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.ReadSideFile(path); got != "/proj/sceneA.zpr" {
		t.Fatalf("unexpected side file content %q", got)
	}
	if err := store.WriteSideFile(path, ""); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.ReadSideFile(path); got != "" {
		t.Fatalf("expected truncated side file, got %q", got)
	}
}

func TestLockSerializesWriters(t *testing.T) {
	store := metastore.New(nil)
	dir := t.TempDir()

	unlock, err := store.Lock(context.Background(), dir)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if _, err := store.Lock(ctx, dir); err == nil {
		t.Fatal("expected second lock to wait and fail while held")
	}

	unlock()
	unlock2, err := store.Lock(context.Background(), dir)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	unlock2()
}
