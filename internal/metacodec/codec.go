package metacodec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/jsonc"

	"zbridge/internal/services"
	"zbridge/internal/zscript"
)

const component = "metacodec"

// Marshal renders v as compact JSON with sorted map keys. HTML characters are
// left unescaped so values read back by hand look like what was written.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "encode", "value is not JSON representable", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalIndent is Marshal with two-space indentation, used for files on disk.
func MarshalIndent(v any) ([]byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "encode", "indent", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Encode renders v as a script string literal.
func Encode(v any) (zscript.Literal, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return zscript.Quote(string(data)), nil
}

// Strip removes the NUL padding the host appends when dumping a memory block,
// along with surrounding whitespace. Content after the first NUL is dropped:
// the encoder never emits a raw NUL, so anything past it is stale block bytes.
func Strip(raw []byte) []byte {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return bytes.TrimSpace(raw)
}

// IsEmpty reports whether raw holds no data once padding is stripped.
func IsEmpty(raw []byte) bool {
	return len(Strip(raw)) == 0
}

// Decode parses raw into out. Empty input leaves out untouched so callers
// pre-seed it with their default. Hand-edited content with comments or
// trailing commas is accepted. Anything else that does not parse is reported
// as services.ErrMetadataCorrupt. Numbers decoded into interface values are
// json.Number, so integers keep every digit.
func Decode(raw []byte, out any) error {
	data := Strip(raw)
	if len(data) == 0 {
		return nil
	}
	err := unmarshal(data, out)
	if err == nil {
		return nil
	}
	if lenient := jsonc.ToJSON(data); !bytes.Equal(lenient, data) {
		if lerr := unmarshal(lenient, out); lerr == nil {
			return nil
		}
	}
	return services.Wrap(services.ErrMetadataCorrupt, component, "decode", preview(data), err)
}

func unmarshal(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after the JSON value")
	}
	return nil
}

// DecodeValue parses raw into a generic value. Empty input yields def.
func DecodeValue(raw []byte, def any) (any, error) {
	if IsEmpty(raw) {
		return def, nil
	}
	var out any
	if err := Decode(raw, &out); err != nil {
		return def, err
	}
	return out, nil
}

func preview(data []byte) string {
	const limit = 48
	if len(data) <= limit {
		return fmt.Sprintf("unparseable content %q", data)
	}
	return fmt.Sprintf("unparseable content %q...", data[:limit])
}

// DecodeOr decodes raw into a fresh T. Empty or corrupt content yields
// fallback; a corrupt error is still returned so callers applying the
// default-fallback policy can log what they skipped.
func DecodeOr[T any](raw []byte, fallback T) (T, error) {
	if IsEmpty(raw) {
		return fallback, nil
	}
	var out T
	if err := Decode(raw, &out); err != nil {
		return fallback, err
	}
	return out, nil
}
