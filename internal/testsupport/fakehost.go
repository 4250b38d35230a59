package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"zbridge/internal/services"
	"zbridge/internal/zscript"
)

// Action records a UI action pressed by a script together with the file name
// primed before it.
type Action struct {
	Name string
	File string
}

// FakeHost emulates the host's memory blocks in process. Blocks are fixed
// size byte buffers, so dumps are NUL padded exactly like the real host.
type FakeHost struct {
	mu       sync.Mutex
	blocks   map[string][]byte
	actions  []Action
	scripts  []string
	nextFile string

	// Err, when set, is returned by Run before any operation executes.
	Err error
	// OnPress is called for every UI action.
	OnPress func(action Action) error
}

// NewFakeHost returns an empty fake host.
func NewFakeHost() *FakeHost {
	return &FakeHost{blocks: make(map[string][]byte)}
}

// Run interprets the script operations in order.
func (h *FakeHost) Run(ctx context.Context, script *zscript.Script) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := script.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "fakehost", "run", "invalid script", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.scripts = append(h.scripts, script.Render())

	for _, op := range script.Ops() {
		if err := h.apply(op); err != nil {
			return services.Wrap(services.ErrScriptExecutionFailed, "fakehost", "run", op.Render(), err)
		}
	}
	return nil
}

func (h *FakeHost) apply(op zscript.Op) error {
	switch o := op.(type) {
	case zscript.MemCreate:
		if _, ok := h.blocks[o.Name]; !ok {
			h.blocks[o.Name] = make([]byte, o.Size)
		}
	case zscript.MemCreateIfMissing:
		if _, ok := h.blocks[o.Name]; ok {
			return nil
		}
		h.blocks[o.Name] = make([]byte, o.Size)
		return h.write(o.Name, o.Default)
	case zscript.MemWriteString:
		return h.write(o.Name, o.Value)
	case zscript.MemSaveToFile:
		buf, ok := h.blocks[o.Name]
		if !ok {
			return fmt.Errorf("block %s does not exist", o.Name)
		}
		return os.WriteFile(o.Path, buf, 0o644)
	case zscript.MemDelete:
		delete(h.blocks, o.Name)
	case zscript.SetNextFileName:
		h.nextFile = o.Path
	case zscript.Press:
		action := Action{Name: o.Action, File: h.nextFile}
		h.nextFile = ""
		h.actions = append(h.actions, action)
		if h.OnPress != nil {
			return h.OnPress(action)
		}
	}
	return nil
}

func (h *FakeHost) write(name string, value zscript.Literal) error {
	buf, ok := h.blocks[name]
	if !ok {
		return fmt.Errorf("block %s does not exist", name)
	}
	s, err := zscript.Unquote(value)
	if err != nil {
		return err
	}
	if len(s) >= len(buf) {
		return fmt.Errorf("string of %d bytes does not fit block %s", len(s), name)
	}
	copy(buf, s)
	buf[len(s)] = 0
	return nil
}

// Block returns the string stored in a block, up to the first NUL.
func (h *FakeHost) Block(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.blocks[name]
	if !ok {
		return "", false
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), true
}

// Actions returns the UI actions pressed so far.
func (h *FakeHost) Actions() []Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Action(nil), h.actions...)
}

// Scripts returns the rendered text of every script run.
func (h *FakeHost) Scripts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.scripts...)
}

// Restart drops every memory block, as a host restart would.
func (h *FakeHost) Restart() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks = make(map[string][]byte)
}
