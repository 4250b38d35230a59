package metacodec_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"zbridge/internal/metacodec"
	"zbridge/internal/services"
	"zbridge/internal/zscript"
)

// hostStore simulates what the host keeps after evaluating a literal and
// dumping its block: the unquoted string followed by NUL padding.
func hostStore(t *testing.T, l zscript.Literal, pad int) []byte {
	t.Helper()
	s, err := zscript.Unquote(l)
	if err != nil {
		t.Fatalf("Unquote: %v", err)
	}
	return append([]byte(s), bytes.Repeat([]byte{0}, pad)...)
}

func TestRoundTripThroughHostLiteral(t *testing.T) {
	values := []any{
		map[string]any{},
		[]any{},
		"plain",
		`quote " and backslash \ inside`,
		map[string]any{
			"project_name": "proj",
			"asset_name":   "shotA",
			"task_name":    "modeling",
			"nested":       map[string]any{"list": []any{json.Number("1"), "two", true, nil}},
			"path":         `C:\work\sceneA.zpr`,
			"html":         "<a & b>",
		},
		[]any{map[string]any{"instance_id": "abc", "family": "model"}},
		json.Number("42.5"),
		map[string]any{"frame": json.Number("9007199254740993")},
	}
	for _, v := range values {
		lit, err := metacodec.Encode(v)
		if err != nil {
			t.Fatalf("Encode(%v): %v", v, err)
		}
		for _, pad := range []int{0, 1, 1000} {
			got, err := metacodec.DecodeValue(hostStore(t, lit, pad), "sentinel")
			if err != nil {
				t.Fatalf("Decode(%s, pad=%d): %v", lit, pad, err)
			}
			if !reflect.DeepEqual(got, v) {
				t.Fatalf("round trip mismatch for pad=%d: got %#v want %#v", pad, got, v)
			}
		}
	}
}

func TestDecodeKeepsLargeIntegers(t *testing.T) {
	got, err := metacodec.DecodeValue([]byte(`{"id": 9007199254740993, "ratio": 0.25}`+"\x00\x00"), nil)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", got)
	}
	if m["id"] != json.Number("9007199254740993") {
		t.Fatalf("id lost precision: %#v", m["id"])
	}
	out, err := metacodec.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"id":9007199254740993,"ratio":0.25}` {
		t.Fatalf("re-encoded = %s", out)
	}

	var typed struct {
		ID int64 `json:"id"`
	}
	if err := metacodec.Decode([]byte(`{"id": 9007199254740993}`), &typed); err != nil || typed.ID != 9007199254740993 {
		t.Fatalf("typed decode = %+v %v", typed, err)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	var v any
	if err := metacodec.Decode([]byte(`{"a":1} {"b":2}`), &v); !errors.Is(err, services.ErrMetadataCorrupt) {
		t.Fatalf("expected ErrMetadataCorrupt, got %v", err)
	}
}

func TestPaddingDoesNotChangeDecodedValue(t *testing.T) {
	base := []byte(`[{"name":"propA"}]`)
	want, err := metacodec.DecodeValue(base, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k := 0; k < 5; k++ {
		padded := append(append([]byte(nil), base...), bytes.Repeat([]byte{0}, k*97)...)
		got, err := metacodec.DecodeValue(padded, nil)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("k=%d: got %#v want %#v", k, got, want)
		}
	}
}

func TestDecodeEmptyKeepsDefault(t *testing.T) {
	out := []string{"default"}
	if err := metacodec.Decode([]byte("\x00\x00  \n"), &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 1 || out[0] != "default" {
		t.Fatalf("expected default untouched, got %v", out)
	}
	v, err := metacodec.DecodeValue(nil, map[string]any{})
	if err != nil || !reflect.DeepEqual(v, map[string]any{}) {
		t.Fatalf("expected empty mapping default, got %#v %v", v, err)
	}
}

func TestDecodeIgnoresStaleBytesAfterNUL(t *testing.T) {
	var out map[string]string
	if err := metacodec.Decode([]byte("{\"a\":\"b\"}\x00tail-from-older-value\x00\x00"), &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["a"] != "b" {
		t.Fatalf("unexpected decode %v", out)
	}
}

func TestDecodeAcceptsHandEditedJSON(t *testing.T) {
	raw := []byte("{\n  // edited by hand\n  \"name\": \"propA\",\n}\n")
	var out map[string]string
	if err := metacodec.Decode(raw, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["name"] != "propA" {
		t.Fatalf("unexpected decode %v", out)
	}
}

func TestDecodeCorruptIsClassified(t *testing.T) {
	var out []any
	err := metacodec.Decode([]byte("[{'name': 'legacy'}"), &out)
	if !errors.Is(err, services.ErrMetadataCorrupt) {
		t.Fatalf("expected metadata corrupt, got %v", err)
	}
	if !services.IsRecoverable(err) {
		t.Fatal("expected corrupt metadata to be recoverable")
	}
}

func TestMarshalSortsKeysAndKeepsHTML(t *testing.T) {
	data, err := metacodec.Marshal(map[string]any{"b": 1, "a": "<x>"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a":"<x>","b":1}` {
		t.Fatalf("unexpected encoding %s", data)
	}
	indented, err := metacodec.MarshalIndent(map[string]any{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(indented), "}\n") || !strings.Contains(string(indented), "\n  \"a\": 1") {
		t.Fatalf("unexpected indentation %q", indented)
	}
}

func TestEncodeRejectsUnrepresentable(t *testing.T) {
	if _, err := metacodec.Encode(map[string]any{"ch": make(chan int)}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeOrFallsBack(t *testing.T) {
	got, err := metacodec.DecodeOr([]byte("\x00\x00"), []string{"x"})
	if err != nil || len(got) != 1 || got[0] != "x" {
		t.Fatalf("empty: got %v %v", got, err)
	}
	got, err = metacodec.DecodeOr([]byte("not json"), []string{})
	if !errors.Is(err, services.ErrMetadataCorrupt) || len(got) != 0 {
		t.Fatalf("corrupt: got %v %v", got, err)
	}
	got, err = metacodec.DecodeOr([]byte(`["a","b"]`+"\x00"), []string{})
	if err != nil || len(got) != 2 {
		t.Fatalf("valid: got %v %v", got, err)
	}
}
