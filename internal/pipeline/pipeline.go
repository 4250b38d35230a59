package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"zbridge/internal/config"
	"zbridge/internal/history"
	"zbridge/internal/logging"
	"zbridge/internal/registry"
	"zbridge/internal/services"
	"zbridge/internal/workdir"
	"zbridge/internal/workfile"
	"zbridge/internal/zscript"
)

const component = "pipeline"

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	host     zscript.Host
	history  workfile.History
	defaults *workdir.Context
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHost uses host instead of launching the configured executable.
func WithHost(host zscript.Host) Option {
	return func(o *options) { o.host = host }
}

// WithHistory uses h instead of opening the configured history database.
func WithHistory(h workfile.History) Option {
	return func(o *options) { o.history = h }
}

// WithDefaultContext replaces the environment as the context fallback.
func WithDefaultContext(c workdir.Context) Option {
	return func(o *options) { o.defaults = &c }
}

// Pipeline is the facade over one host session.
type Pipeline struct {
	cfg        *config.Config
	host       zscript.Host
	workfiles  *workfile.Store
	containers *registry.Registry
	history    *history.Store
	logger     *slog.Logger
}

// NewHost builds the configured host runner. When host.retry_attempts is
// above one the runner is wrapped in a retry host.
func NewHost(cfg *config.Config, logger *slog.Logger) (zscript.Host, error) {
	ph, err := zscript.NewProcessHost(cfg.Host.Executable, cfg.ScriptTimeout(),
		zscript.WithLogger(logger),
		zscript.WithTempDir(filepath.Join(cfg.Paths.StateDir, "tmp")),
	)
	if err != nil {
		return nil, err
	}
	return zscript.NewRetryHost(ph, cfg.Host.RetryAttempts, cfg.RetryDelay(), logger), nil
}

// New wires a facade from configuration. Call Close when done.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires configuration")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{cfg: cfg, logger: logging.NewComponentLogger(o.logger, component)}
	p.host = o.host
	if p.host == nil {
		host, err := NewHost(cfg, o.logger)
		if err != nil {
			return nil, err
		}
		p.host = host
	}

	storeOpts := []workfile.Option{workfile.WithLogger(o.logger)}
	if o.defaults != nil {
		storeOpts = append(storeOpts, workfile.WithDefaultContext(*o.defaults))
	}
	switch {
	case o.history != nil:
		storeOpts = append(storeOpts, workfile.WithHistory(o.history))
	case cfg.Workfile.History:
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		h, err := history.Open(cfg)
		if err != nil {
			logging.WarnWithContext(p.logger, "workfile history disabled", "history_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "opens and saves are not recorded"),
				logging.String(logging.FieldErrorHint, "check the state directory or set workfile.history = false"),
			)
		} else {
			p.history = h
			storeOpts = append(storeOpts, workfile.WithHistory(h))
		}
	}

	p.workfiles = workfile.New(cfg, p.host, storeOpts...)
	p.containers = registry.New(cfg, p.workfiles, registry.WithLogger(o.logger))
	return p, nil
}

// Close releases the history database when the facade opened it.
func (p *Pipeline) Close() error {
	if p.history == nil {
		return nil
	}
	return p.history.Close()
}

// Host returns the script host in use.
func (p *Pipeline) Host() zscript.Host { return p.host }

// Workfiles returns the workfile store.
func (p *Pipeline) Workfiles() *workfile.Store { return p.workfiles }

// Containers returns the container registry.
func (p *Pipeline) Containers() *registry.Registry { return p.containers }

// Install attaches to a running host session.
func (p *Pipeline) Install(ctx context.Context) error {
	return p.workfiles.Load(ctx)
}

// Launched initializes a freshly started host session.
func (p *Pipeline) Launched(ctx context.Context) error {
	return p.workfiles.Launch(ctx)
}

// Exit drops the containers recorded against the untitled scene, which no
// saved workfile can reference.
func (p *Pipeline) Exit(ctx context.Context) (int, error) {
	removed, err := p.containers.Clear(ctx, workdir.UntitledScene)
	if err != nil {
		return removed, err
	}
	p.logger.Info("host session closed", logging.Int("untitled_containers_removed", removed))
	return removed, nil
}

// OpenWorkfile opens path in the host.
func (p *Pipeline) OpenWorkfile(ctx context.Context, path string) error {
	return p.workfiles.Open(ctx, path)
}

// SaveWorkfile saves the scene to path, or to the current workfile when path
// is empty, and returns the saved path.
func (p *Pipeline) SaveWorkfile(ctx context.Context, path string) (string, error) {
	return p.workfiles.Save(ctx, path)
}

// WorkRoot returns the work directory of the current context.
func (p *Pipeline) WorkRoot() (string, error) {
	return p.workfiles.WorkDir()
}

// CurrentWorkfile returns the open workfile path, or "" when untitled.
func (p *Pipeline) CurrentWorkfile(ctx context.Context) (string, error) {
	return p.workfiles.CurrentWorkfile(ctx)
}

// HasUnsavedChanges always reports false: the host exposes no dirty flag.
func (p *Pipeline) HasUnsavedChanges() bool {
	return false
}

// WorkfileExtensions returns the extensions the host saves workfiles with.
func (p *Pipeline) WorkfileExtensions() []string {
	ext := strings.TrimSpace(p.cfg.Host.WorkfileExtension)
	if ext == "" {
		return nil
	}
	return []string{ext}
}

// ListInstances returns the instances of the current scene.
func (p *Pipeline) ListInstances(ctx context.Context) ([]workfile.Instance, error) {
	return p.workfiles.ListInstances(ctx)
}

// WriteInstances replaces the instances of the current scene.
func (p *Pipeline) WriteInstances(ctx context.Context, instances []workfile.Instance) error {
	return p.workfiles.WriteInstances(ctx, instances)
}

// GetContainers returns the containers of the current scene.
func (p *Pipeline) GetContainers(ctx context.Context) ([]registry.Container, error) {
	return p.containers.List(ctx)
}

// Containerise records a loaded representation.
func (p *Pipeline) Containerise(ctx context.Context, name, namespace, representation, loader string) (registry.Container, error) {
	return p.containers.Containerise(ctx, name, namespace, representation, loader)
}

// RemoveContainerData deletes the container record called name.
func (p *Pipeline) RemoveContainerData(ctx context.Context, name string) error {
	return p.containers.Remove(ctx, name)
}

// Imprint points the container whose host object is objectName at a new
// representation.
func (p *Pipeline) Imprint(ctx context.Context, objectName, representation string) (registry.Container, error) {
	containers, err := p.containers.List(ctx)
	if err != nil {
		return registry.Container{}, err
	}
	for _, c := range containers {
		if c.ObjectName != objectName {
			continue
		}
		return p.containers.Update(ctx, c.Name, registry.Changes{Representation: &representation})
	}
	return registry.Container{}, services.Wrap(services.ErrContainerNotFound, component, "imprint",
		fmt.Sprintf("no container for object %q", objectName), nil)
}

// ContextData returns the creator state kept in host memory.
func (p *Pipeline) ContextData(ctx context.Context) (map[string]any, error) {
	return p.workfiles.ContextData(ctx)
}

// UpdateContextData replaces the creator state kept in host memory.
func (p *Pipeline) UpdateContextData(ctx context.Context, data map[string]any) error {
	return p.workfiles.UpdateContextData(ctx, data)
}
