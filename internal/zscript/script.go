package zscript

import (
	"fmt"
	"strings"
)

// Op is a single host script operation.
type Op interface {
	Render() string
}

// MemCreate allocates a named memory block.
type MemCreate struct {
	Name string
	Size int
}

func (o MemCreate) Render() string {
	return fmt.Sprintf("[MemCreate, %s, %d, 0]", o.Name, o.Size)
}

// MemCreateIfMissing allocates a block and seeds it with Default only when the
// block does not exist yet.
type MemCreateIfMissing struct {
	Name    string
	Size    int
	Default Literal
}

func (o MemCreateIfMissing) Render() string {
	return fmt.Sprintf("[If, [MemGetSize, %s],,\n  [MemCreate, %s, %d, 0]\n  [MemWriteString, %s, %s, 0]\n]",
		o.Name, o.Name, o.Size, o.Name, o.Default)
}

// MemWriteString writes a literal at offset zero of a block.
type MemWriteString struct {
	Name  string
	Value Literal
}

func (o MemWriteString) Render() string {
	return fmt.Sprintf("[MemWriteString, %s, %s, 0]", o.Name, o.Value)
}

// MemSaveToFile dumps the whole block, padded to its size, to Path.
type MemSaveToFile struct {
	Name string
	Path string
}

func (o MemSaveToFile) Render() string {
	return fmt.Sprintf("[MemSaveToFile, %s, %s, 1]", o.Name, Quote(hostPath(o.Path)))
}

// MemDelete frees a block. Deleting a missing block is a no-op in the host.
type MemDelete struct {
	Name string
}

func (o MemDelete) Render() string {
	return fmt.Sprintf("[MemDelete, %s]", o.Name)
}

// SetNextFileName primes the file dialog used by the next UI action.
type SetNextFileName struct {
	Path string
}

func (o SetNextFileName) Render() string {
	return fmt.Sprintf("[FileNameSetNext, %s]", Quote(hostPath(o.Path)))
}

// Press triggers a named UI action and confirms its dialog with Enter.
type Press struct {
	Action string
}

func (o Press) Render() string {
	return fmt.Sprintf("[IKeyPress, 13, [IPress, %s]]", o.Action)
}

// Raw embeds caller-supplied script text verbatim.
type Raw struct {
	Text string
}

func (o Raw) Render() string {
	return o.Text
}

// UI actions used by the bridge.
const (
	ActionFileOpen   = "File:Open:Open"
	ActionFileSaveAs = "File:SaveAs:SaveAs"
	ActionToolImport = "Tool:Import:Import"
)

// Script is an ordered list of operations executed inside a single freeze
// block so a concurrent script never observes a partial result.
type Script struct {
	ops []Op
}

// New returns an empty script.
func New() *Script {
	return &Script{}
}

// Add appends operations and returns the script for chaining.
func (s *Script) Add(ops ...Op) *Script {
	s.ops = append(s.ops, ops...)
	return s
}

// Ops returns a copy of the script operations.
func (s *Script) Ops() []Op {
	return append([]Op(nil), s.ops...)
}

// Len reports the number of operations.
func (s *Script) Len() int {
	return len(s.ops)
}

// Validate checks block names and sizes.
func (s *Script) Validate() error {
	if len(s.ops) == 0 {
		return fmt.Errorf("script has no operations")
	}
	for i, op := range s.ops {
		var name string
		size := 1
		switch o := op.(type) {
		case MemCreate:
			name, size = o.Name, o.Size
		case MemCreateIfMissing:
			name, size = o.Name, o.Size
		case MemWriteString:
			name = o.Name
		case MemSaveToFile:
			name = o.Name
			if strings.TrimSpace(o.Path) == "" {
				return fmt.Errorf("op %d: save path required", i)
			}
		case MemDelete:
			name = o.Name
		case SetNextFileName:
			if strings.TrimSpace(o.Path) == "" {
				return fmt.Errorf("op %d: file name required", i)
			}
			continue
		case Press:
			if strings.TrimSpace(o.Action) == "" {
				return fmt.Errorf("op %d: action required", i)
			}
			continue
		default:
			continue
		}
		if !ValidBlockName(name) {
			return fmt.Errorf("op %d: invalid memory block name %q", i, name)
		}
		if size <= 0 {
			return fmt.Errorf("op %d: block %s size must be positive, got %d", i, name, size)
		}
	}
	return nil
}

// Render produces the script text.
func (s *Script) Render() string {
	var b strings.Builder
	b.WriteString("[IFreeze,\n")
	for _, op := range s.ops {
		b.WriteString(op.Render())
		b.WriteByte('\n')
	}
	b.WriteString("]\n")
	return b.String()
}

// ValidBlockName reports whether name can be used as a memory block identifier.
func ValidBlockName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// hostPath rewrites backslash separators as forward slashes.
func hostPath(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}
