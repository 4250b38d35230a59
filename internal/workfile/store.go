package workfile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"zbridge/internal/config"
	"zbridge/internal/history"
	"zbridge/internal/logging"
	"zbridge/internal/metacodec"
	"zbridge/internal/metastore"
	"zbridge/internal/services"
	"zbridge/internal/workdir"
	"zbridge/internal/zscript"
)

const (
	component = "workfile"

	// BlockContext is the host memory block holding the pipeline context.
	BlockContext = "context"
	// BlockCreateContext is the host memory block holding creator state.
	BlockCreateContext = "create_context"

	contextFile = "context.json"
)

// History records workfile events and recalls the last workfile of a context.
type History interface {
	Record(ctx context.Context, kind history.Kind, c workdir.Context, path string) (*history.Event, error)
	Last(ctx context.Context, c workdir.Context) (string, bool, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, component)
			s.files = metastore.New(logger)
		}
	}
}

// WithHistory records opens and saves into h.
func WithHistory(h History) Option {
	return func(s *Store) {
		s.history = h
	}
}

// WithResolver replaces the work directory resolver.
func WithResolver(r *workdir.Resolver) Option {
	return func(s *Store) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithDefaultContext replaces the environment as the source of the context
// used when host memory holds none.
func WithDefaultContext(c workdir.Context) Option {
	return func(s *Store) {
		s.defaults = func() workdir.Context { return c }
	}
}

// Store owns the pipeline context of one host session and the per-scene
// metadata derived from it. Context and creator state live in host memory;
// instances, the current-file side file and a context mirror live on disk.
type Store struct {
	host       zscript.Host
	memory     *zscript.Memory
	resolver   *workdir.Resolver
	files      *metastore.Store
	history    History
	logger     *slog.Logger
	extension  string
	reopenLast bool
	defaults   func() workdir.Context

	mu      sync.Mutex
	state   State
	context workdir.Context
}

// New constructs a Store bound to host.
func New(cfg *config.Config, host zscript.Host, opts ...Option) *Store {
	s := &Store{
		host:       host,
		memory:     zscript.NewMemory(host, cfg.Host.MemoryBlockSize, filepath.Join(cfg.Paths.StateDir, "tmp")),
		resolver:   workdir.NewResolver(cfg),
		files:      metastore.New(nil),
		logger:     logging.NewComponentLogger(logging.NewNop(), component),
		extension:  cfg.Host.WorkfileExtension,
		reopenLast: cfg.Workfile.ReopenLast,
		defaults:   workdir.ContextFromEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Context returns the current pipeline context.
func (s *Store) Context() workdir.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// Resolver returns the work directory resolver in use.
func (s *Store) Resolver() *workdir.Resolver {
	return s.resolver
}

// Files returns the metadata file store in use.
func (s *Store) Files() *metastore.Store {
	return s.files
}

// Launch initializes a fresh host session: the context is read from host
// memory (seeded from the environment when absent) and the current-file side
// file is cleared because no workfile is open yet.
func (s *Store) Launch(ctx context.Context) error {
	c, err := s.readContext(ctx)
	if err != nil {
		return err
	}
	s.setLoaded(c, StateLoaded)

	side, err := s.resolver.CurrentFilePath(c)
	if err != nil {
		return err
	}
	if err := s.files.WriteSideFile(side, ""); err != nil {
		return services.Wrap(services.ErrWorkdirResolutionFailed, component, "launch", "reset current file", err)
	}
	s.logger.Info("host session launched", logging.String("context", c.String()))

	if !s.reopenLast || s.history == nil {
		return nil
	}
	last, ok, err := s.history.Last(ctx, c)
	if err != nil {
		logging.WarnWithContext(s.logger, "workfile history unavailable", "history_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "last workfile was not reopened"),
			logging.String(logging.FieldErrorHint, "check workfile.history and the state directory"),
		)
		return nil
	}
	if !ok {
		return nil
	}
	return s.Open(ctx, last)
}

// Load attaches to a running host session without resetting the side file.
func (s *Store) Load(ctx context.Context) error {
	c, err := s.readContext(ctx)
	if err != nil {
		return err
	}
	state := StateLoaded
	s.setLoaded(c, state)
	if current, err := s.CurrentWorkfile(ctx); err == nil && current != "" {
		state = StateSaved
		s.setLoaded(c, state)
	}
	return nil
}

// SetContext replaces the session context in host memory.
func (s *Store) SetContext(ctx context.Context, c workdir.Context) error {
	if !c.Complete() {
		return services.Wrap(services.ErrValidation, component, "set context",
			fmt.Sprintf("context %s is incomplete", c), nil)
	}
	if err := s.writeContext(ctx, c); err != nil {
		return err
	}
	s.mu.Lock()
	s.context = c
	if s.state == StateUninitialized {
		s.state = StateLoaded
	}
	s.mu.Unlock()
	return nil
}

// Save stores the context, carries the current scene's containers over to the
// target scene, records the target as the current workfile and asks the host
// to save there. An empty path saves over the current workfile.
func (s *Store) Save(ctx context.Context, path string) (string, error) {
	c, err := s.requireLoaded("save")
	if err != nil {
		return "", err
	}
	previous, err := s.CurrentWorkfile(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		path = previous
	}
	target, err := s.normalizeWorkfile(path)
	if err != nil {
		return "", err
	}

	if err := s.writeContext(ctx, c); err != nil {
		return "", err
	}

	fromScene := workdir.SceneName(previous)
	toScene := workdir.SceneName(target)
	sceneDir, err := s.resolver.SceneDir(c, toScene)
	if err != nil {
		return "", err
	}
	unlock, err := s.files.Lock(ctx, sceneDir)
	if err != nil {
		return "", err
	}
	copied, err := s.copyContainers(c, fromScene, toScene)
	if err == nil {
		err = s.files.WriteJSON(filepath.Join(sceneDir, workdir.SectionContext, contextFile), c)
	}
	unlock()
	if err != nil {
		return "", err
	}

	if err := s.setCurrentWorkfile(c, target); err != nil {
		return "", err
	}
	script := zscript.New().Add(
		zscript.SetNextFileName{Path: target},
		zscript.Press{Action: zscript.ActionFileSaveAs},
	)
	if err := s.host.Run(ctx, script); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.state = StateSaved
	s.mu.Unlock()
	s.record(ctx, history.KindSave, c, target)
	s.logger.Info("workfile saved",
		logging.String("path", target),
		logging.String(logging.FieldScene, toScene),
		logging.Int("containers_copied", copied),
	)
	return target, nil
}

// Open asks the host to open path and makes it the current workfile. When the
// scene carries a saved context it becomes the session context.
func (s *Store) Open(ctx context.Context, path string) error {
	c, err := s.requireLoaded("open")
	if err != nil {
		return err
	}
	target, err := s.normalizeWorkfile(path)
	if err != nil {
		return err
	}
	script := zscript.New().Add(
		zscript.SetNextFileName{Path: target},
		zscript.Press{Action: zscript.ActionFileOpen},
	)
	if err := s.host.Run(ctx, script); err != nil {
		return err
	}

	scene := workdir.SceneName(target)
	if saved, ok := s.sceneContext(target); ok && saved != c {
		if err := s.SetContext(ctx, saved); err != nil {
			return err
		}
		c = saved
	}
	if err := s.setCurrentWorkfile(c, target); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateSaved
	s.mu.Unlock()
	s.record(ctx, history.KindOpen, c, target)
	s.logger.Info("workfile opened", logging.String("path", target), logging.String(logging.FieldScene, scene))
	return nil
}

// CurrentWorkfile returns the path recorded by the last open or save. An
// empty string means the scene was never saved.
func (s *Store) CurrentWorkfile(ctx context.Context) (string, error) {
	side, err := s.resolver.CurrentFilePath(s.Context())
	if err != nil {
		return "", err
	}
	return s.files.ReadSideFile(side)
}

// Scene returns the basename of the current workfile, or workdir.UntitledScene.
func (s *Store) Scene(ctx context.Context) (string, error) {
	current, err := s.CurrentWorkfile(ctx)
	if err != nil {
		return "", err
	}
	return workdir.SceneName(current), nil
}

// SectionDir returns the current scene's directory for section.
func (s *Store) SectionDir(ctx context.Context, section string) (string, error) {
	scene, err := s.Scene(ctx)
	if err != nil {
		return "", err
	}
	return s.resolver.SectionDir(s.Context(), scene, section)
}

// SceneSectionDir returns the directory for section of an explicit scene.
func (s *Store) SceneSectionDir(scene, section string) (string, error) {
	return s.resolver.SectionDir(s.Context(), scene, section)
}

// SceneDir returns the current scene's metadata directory.
func (s *Store) SceneDir(ctx context.Context) (string, error) {
	scene, err := s.Scene(ctx)
	if err != nil {
		return "", err
	}
	return s.resolver.SceneDir(s.Context(), scene)
}

// WorkDir returns the work directory of the current context.
func (s *Store) WorkDir() (string, error) {
	return s.resolver.WorkDir(s.Context())
}

// ContextData returns the creator state kept in host memory. Corrupt content
// reads as an empty mapping.
func (s *Store) ContextData(ctx context.Context) (map[string]any, error) {
	def, err := metacodec.Encode(map[string]any{})
	if err != nil {
		return nil, err
	}
	raw, err := s.memory.Read(ctx, BlockCreateContext, def)
	if err != nil {
		return nil, err
	}
	data, err := metacodec.DecodeOr(raw, map[string]any{})
	if err != nil {
		logging.WarnWithContext(s.logger, "create context unreadable", "metadata_corrupt",
			logging.Error(err),
			logging.String(logging.FieldImpact, "creator state reset to empty"),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// UpdateContextData replaces the creator state in host memory.
func (s *Store) UpdateContextData(ctx context.Context, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	lit, err := metacodec.Encode(data)
	if err != nil {
		return err
	}
	return s.memory.Write(ctx, BlockCreateContext, lit)
}

func (s *Store) readContext(ctx context.Context) (workdir.Context, error) {
	fallback := s.defaults()
	def, err := metacodec.Encode(fallback.Map())
	if err != nil {
		return workdir.Context{}, err
	}
	raw, err := s.memory.Read(ctx, BlockContext, def)
	if err != nil {
		return workdir.Context{}, err
	}
	stored := map[string]any{}
	if err := metacodec.Decode(raw, &stored); err != nil {
		return workdir.Context{}, err
	}
	c := workdir.ContextFromMap(stored)
	if c.IsZero() {
		c = fallback
	}
	return c, nil
}

func (s *Store) writeContext(ctx context.Context, c workdir.Context) error {
	lit, err := metacodec.Encode(c.Map())
	if err != nil {
		return err
	}
	return s.memory.Write(ctx, BlockContext, lit)
}

func (s *Store) setLoaded(c workdir.Context, state State) {
	s.mu.Lock()
	s.context = c
	s.state = state
	s.mu.Unlock()
}

func (s *Store) requireLoaded(op string) (workdir.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUninitialized {
		return workdir.Context{}, services.Wrap(services.ErrValidation, component, op,
			"session not loaded (call Launch or Load first)", nil)
	}
	return s.context, nil
}

func (s *Store) normalizeWorkfile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", services.Wrap(services.ErrValidation, component, "workfile", "no workfile path and no current workfile", nil)
	}
	path = filepath.FromSlash(strings.ReplaceAll(path, "\\", "/"))
	if filepath.Ext(path) == "" && s.extension != "" {
		path += s.extension
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, component, "workfile", "resolve "+path, err)
	}
	return filepath.ToSlash(abs), nil
}

func (s *Store) setCurrentWorkfile(c workdir.Context, path string) error {
	side, err := s.resolver.CurrentFilePath(c)
	if err != nil {
		return err
	}
	return s.files.WriteSideFile(side, path)
}

func (s *Store) copyContainers(c workdir.Context, fromScene, toScene string) (int, error) {
	if fromScene == toScene {
		return 0, nil
	}
	src, err := s.resolver.SectionDir(c, fromScene, workdir.SectionContainers)
	if err != nil {
		return 0, err
	}
	dst, err := s.resolver.SectionDir(c, toScene, workdir.SectionContainers)
	if err != nil {
		return 0, err
	}
	return s.files.CopySection(src, dst)
}

// sceneContext reads the context saved alongside workfile, wherever it lives.
func (s *Store) sceneContext(workfile string) (workdir.Context, bool) {
	dir := s.resolver.WorkfileSectionDir(workfile, workdir.SectionContext)
	var saved workdir.Context
	if err := s.files.ReadJSON(filepath.Join(dir, contextFile), &saved); err != nil {
		s.logger.Debug("scene context unreadable", logging.String("path", workfile), logging.Error(err))
		return workdir.Context{}, false
	}
	return saved, saved.Complete()
}

func (s *Store) record(ctx context.Context, kind history.Kind, c workdir.Context, path string) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(ctx, kind, c, path); err != nil {
		logging.WarnWithContext(s.logger, "workfile history not recorded", "history_write_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "reopen-last may pick an older workfile"),
			logging.String(logging.FieldErrorHint, "check the history database in the state directory"),
		)
	}
}
