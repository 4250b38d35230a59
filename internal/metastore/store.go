package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"zbridge/internal/fileutil"
	"zbridge/internal/logging"
	"zbridge/internal/metacodec"
	"zbridge/internal/services"
)

const (
	component    = "metastore"
	recordExt    = ".json"
	lockFileName = ".lock"
	lockRetry    = 20 * time.Millisecond
)

// Entry is one record read from a section directory. Name is the file name
// without extension; a legacy list file yields one entry per element, all
// sharing the file's name.
type Entry struct {
	Name string
	Raw  json.RawMessage
}

// Store reads and writes metadata files. It holds no state beyond the logger;
// every call is addressed by path.
type Store struct {
	logger *slog.Logger
}

// New constructs a Store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{logger: logging.NewComponentLogger(logger, component)}
}

// Lock takes the per-scene write lock, waiting until ctx is done. Readers
// never lock.
func (s *Store) Lock(ctx context.Context, sceneDir string) (func(), error) {
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "lock", "create scene dir", err)
	}
	lock := flock.New(filepath.Join(sceneDir, lockFileName))
	ok, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, services.Wrap(services.ErrTimeout, component, "lock", sceneDir, ctxErr)
		}
		return nil, fmt.Errorf("lock %s: %w", sceneDir, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTimeout, component, "lock", sceneDir, nil)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Debug("release scene lock failed", logging.String("dir", sceneDir), logging.Error(err))
		}
	}, nil
}

// Names lists the record names in dir in file-name order. A missing
// directory has no records.
func (s *Store) Names(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || fileutil.IsTempName(name) || !strings.HasSuffix(name, recordExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(names)
	return names, nil
}

// RecordPath returns the file holding record name in dir.
func RecordPath(dir, name string) string {
	return filepath.Join(dir, name+recordExt)
}

// ReadRecords returns every record in dir. Files that cannot be read or
// parsed are skipped with a warning.
func (s *Store) ReadRecords(dir string) ([]Entry, error) {
	names, err := s.Names(dir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, name := range names {
		path := RecordPath(dir, name)
		records, err := s.ReadRecordFile(path)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping unreadable metadata file", "metadata_skipped",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "record is missing from listings until the file is fixed"),
			)
			continue
		}
		for _, raw := range records {
			out = append(out, Entry{Name: name, Raw: raw})
		}
	}
	return out, nil
}

// ReadRecordFile reads one record file. A file holding a JSON list yields
// each element; an object yields itself.
func (s *Store) ReadRecordFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if metacodec.IsEmpty(data) {
		return nil, nil
	}
	var raw json.RawMessage
	if err := metacodec.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, services.Wrap(services.ErrMetadataCorrupt, component, "read", path, err)
		}
		return list, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, services.Wrap(services.ErrMetadataCorrupt, component, "read", path+": expected object or list", nil)
	}
	return []json.RawMessage{raw}, nil
}

// ReadJSON decodes the file at path into out. A missing or empty file leaves
// out untouched and returns nil.
func (s *Store) ReadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := metacodec.Decode(data, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// WriteJSON writes v to path atomically as indented JSON.
func (s *Store) WriteJSON(path string, v any) error {
	data, err := metacodec.MarshalIndent(v)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Debug("metadata written", logging.String("path", path), logging.Int("bytes", len(data)))
	return nil
}

// Exists reports whether a record file exists.
func (s *Store) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}

// Remove deletes path. A missing file is reported as fs.ErrNotExist.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return err
	}
	return nil
}

// Clear removes every record file in dir and returns how many were removed.
func (s *Store) Clear(dir string) (int, error) {
	names, err := s.Names(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		if err := os.Remove(RecordPath(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// CopySection copies the record files of src into dst. A missing src copies
// nothing.
func (s *Store) CopySection(src, dst string) (int, error) {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return 0, nil
	}
	names, err := s.Names(src)
	if err != nil || len(names) == 0 {
		return 0, err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	copied := 0
	for _, name := range names {
		if err := fileutil.CopyFile(RecordPath(src, name), RecordPath(dst, name)); err != nil {
			return copied, fmt.Errorf("copy %s: %w", name, err)
		}
		copied++
	}
	return copied, nil
}

// ReadSideFile returns the trimmed content of a small text file with any NUL
// padding removed. A missing file reads as empty.
func (s *Store) ReadSideFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(metacodec.Strip(data)), nil
}

// WriteSideFile replaces the content of a small text file. An empty value
// truncates it.
func (s *Store) WriteSideFile(path, value string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
