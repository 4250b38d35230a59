package zscript_test

import (
	"strings"
	"testing"

	"zbridge/internal/zscript"
)

func TestRenderWrapsOperationsInFreeze(t *testing.T) {
	script := zscript.New().Add(
		zscript.MemCreateIfMissing{Name: "context", Size: 400000, Default: zscript.Quote("{}")},
		zscript.MemSaveToFile{Name: "context", Path: `C:\tmp\out.txt`},
		zscript.MemDelete{Name: "context"},
		zscript.SetNextFileName{Path: "/work/sceneA.zpr"},
		zscript.Press{Action: zscript.ActionFileSaveAs},
	)
	text := script.Render()
	if !strings.HasPrefix(text, "[IFreeze,\n") || !strings.HasSuffix(text, "]\n") {
		t.Fatalf("expected freeze wrapper, got %q", text)
	}
	for _, fragment := range []string{
		`[MemCreate, context, 400000, 0]`,
		`[MemWriteString, context, "{}", 0]`,
		`[MemSaveToFile, context, "C:/tmp/out.txt", 1]`,
		`[MemDelete, context]`,
		`[FileNameSetNext, "/work/sceneA.zpr"]`,
		`[IKeyPress, 13, [IPress, File:SaveAs:SaveAs]]`,
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in script:\n%s", fragment, text)
		}
	}
	if strings.Index(text, "MemSaveToFile") > strings.Index(text, "MemDelete") {
		t.Fatalf("expected dump before delete:\n%s", text)
	}
}

func TestRenderUsesForwardSlashesInPaths(t *testing.T) {
	text := zscript.New().Add(
		zscript.SetNextFileName{Path: `D:\assets\hero\hero.obj`},
		zscript.MemSaveToFile{Name: "dump", Path: `\\server\share\dump.txt`},
	).Render()
	for _, fragment := range []string{
		`[FileNameSetNext, "D:/assets/hero/hero.obj"]`,
		`[MemSaveToFile, dump, "//server/share/dump.txt", 1]`,
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in script:\n%s", fragment, text)
		}
	}
	if strings.Contains(text, `\\`) {
		t.Fatalf("expected no escaped backslashes:\n%s", text)
	}
}

func TestValidateRejectsBadOperations(t *testing.T) {
	cases := map[string]*zscript.Script{
		"empty":      zscript.New(),
		"bad name":   zscript.New().Add(zscript.MemDelete{Name: "has space"}),
		"digit name": zscript.New().Add(zscript.MemDelete{Name: "1block"}),
		"zero size":  zscript.New().Add(zscript.MemCreate{Name: "ok", Size: 0}),
		"no path":    zscript.New().Add(zscript.MemSaveToFile{Name: "ok"}),
		"no action":  zscript.New().Add(zscript.Press{}),
	}
	for name, script := range cases {
		if err := script.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
	ok := zscript.New().Add(zscript.Raw{Text: "[Note, \"hi\"]"}, zscript.MemCreate{Name: "create_context", Size: 10})
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
