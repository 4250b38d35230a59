package zscript

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"zbridge/internal/services"
)

// DefaultBlockSize is the number of bytes reserved per memory block.
const DefaultBlockSize = 400000

// Memory moves values in and out of host memory blocks. The host has no
// return channel, so reads always run write, dump and read phases in that
// order: the block is created with a default if missing, dumped to a file,
// and the file is read back here.
type Memory struct {
	host      Host
	blockSize int
	tempDir   string
}

// NewMemory wraps a host. tempDir receives dump files; empty means the system temp dir.
func NewMemory(host Host, blockSize int, tempDir string) *Memory {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Memory{host: host, blockSize: blockSize, tempDir: tempDir}
}

// BlockSize returns the configured block size.
func (m *Memory) BlockSize() int {
	return m.blockSize
}

// Write replaces the contents of block with value.
func (m *Memory) Write(ctx context.Context, block string, value Literal) error {
	if err := m.checkFits(block, value); err != nil {
		return err
	}
	script := New().Add(
		MemDelete{Name: block},
		MemCreate{Name: block, Size: m.blockSize},
		MemWriteString{Name: block, Value: value},
	)
	return m.host.Run(ctx, script)
}

// Read returns the raw dump of block, creating it with def when missing. The
// dump is padded with NUL bytes up to the block size.
func (m *Memory) Read(ctx context.Context, block string, def Literal) ([]byte, error) {
	if err := m.checkFits(block, def); err != nil {
		return nil, err
	}
	return m.dump(ctx, block, MemCreateIfMissing{Name: block, Size: m.blockSize, Default: def})
}

// Exchange writes value into a scratch block, dumps it and deletes it, all in
// one script. It is used for values the host must resolve itself.
func (m *Memory) Exchange(ctx context.Context, value Literal) ([]byte, error) {
	block := "zbridge_x" + uuid.NewString()[:8]
	if err := m.checkFits(block, value); err != nil {
		return nil, err
	}
	return m.dump(ctx, block,
		MemCreate{Name: block, Size: m.blockSize},
		MemWriteString{Name: block, Value: value},
	)
}

func (m *Memory) dump(ctx context.Context, block string, prepare ...Op) ([]byte, error) {
	if err := os.MkdirAll(m.tempDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrScriptExecutionFailed, component, "dump", "create temp dir", err)
	}
	out := filepath.Join(m.tempDir, fmt.Sprintf("zbridge-%s-%s.txt", block, uuid.NewString()[:8]))
	defer func() { _ = os.Remove(out) }()

	script := New().Add(prepare...).Add(MemSaveToFile{Name: block, Path: out})
	if isScratch(prepare) {
		script.Add(MemDelete{Name: block})
	}
	if err := m.host.Run(ctx, script); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(out)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrScriptExecutionFailed, component, "dump", "host produced no output file for "+block, err)
		}
		return nil, services.Wrap(services.ErrScriptExecutionFailed, component, "dump", "read output file", err)
	}
	return data, nil
}

func (m *Memory) checkFits(block string, value Literal) error {
	if !ValidBlockName(block) {
		return services.Wrap(services.ErrValidation, component, "memory", fmt.Sprintf("invalid block name %q", block), nil)
	}
	if n := value.Len(); n >= m.blockSize {
		return services.Wrap(services.ErrValidation, component, "memory",
			fmt.Sprintf("value for %s is %d bytes, block holds %d", block, n, m.blockSize-1), nil)
	}
	return nil
}

func isScratch(prepare []Op) bool {
	for _, op := range prepare {
		if _, ok := op.(MemCreateIfMissing); ok {
			return false
		}
	}
	return true
}
