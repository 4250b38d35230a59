package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"zbridge/internal/config"
	"zbridge/internal/logging"
	"zbridge/internal/metacodec"
	"zbridge/internal/metastore"
	"zbridge/internal/services"
	"zbridge/internal/workdir"
)

const component = "registry"

// Scope resolves where the current scene keeps its metadata. The workfile
// store satisfies it.
type Scope interface {
	SceneDir(ctx context.Context) (string, error)
	SectionDir(ctx context.Context, section string) (string, error)
	SceneSectionDir(scene, section string) (string, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, component)
			r.files = metastore.New(logger)
		}
	}
}

// Registry tracks the containers loaded into the current scene, one JSON
// file per container under the scene's containers section.
type Registry struct {
	scope     Scope
	files     *metastore.Store
	overwrite bool
	logger    *slog.Logger
}

// New constructs a Registry.
func New(cfg *config.Config, scope Scope, opts ...Option) *Registry {
	r := &Registry{
		scope:     scope,
		files:     metastore.New(nil),
		overwrite: cfg.Registry.OverwriteExisting,
		logger:    logging.NewComponentLogger(logging.NewNop(), component),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the containers directory of the current scene.
func (r *Registry) Dir(ctx context.Context) (string, error) {
	return r.scope.SectionDir(ctx, workdir.SectionContainers)
}

// List returns every container of the current scene in file-name order. A
// missing directory yields an empty list; unparseable files are skipped.
func (r *Registry) List(ctx context.Context) ([]Container, error) {
	dir, err := r.Dir(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := r.files.ReadRecords(dir)
	if err != nil {
		logging.WarnWithContext(r.logger, "container directory unreadable", "metadata_read_failed",
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "containers read as empty"),
		)
		return []Container{}, nil
	}
	out := make([]Container, 0, len(entries))
	for _, entry := range entries {
		var c Container
		if err := json.Unmarshal(entry.Raw, &c); err != nil {
			logging.WarnWithContext(r.logger, "skipping malformed container", "metadata_corrupt",
				logging.String("file", entry.Name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "container hidden from listings"),
				logging.String(logging.FieldErrorHint, "inspect or delete the container file"),
			)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Get returns the container stored under name.
func (r *Registry) Get(ctx context.Context, name string) (Container, error) {
	if err := validateName(name); err != nil {
		return Container{}, err
	}
	dir, err := r.Dir(ctx)
	if err != nil {
		return Container{}, err
	}
	records, err := r.files.ReadRecordFile(metastore.RecordPath(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Container{}, notFound("get", name)
		}
		return Container{}, err
	}
	for _, raw := range records {
		var c Container
		if err := json.Unmarshal(raw, &c); err != nil {
			return Container{}, services.Wrap(services.ErrMetadataCorrupt, component, "get", name, err)
		}
		if c.Name == name || len(records) == 1 {
			return c, nil
		}
	}
	return Container{}, notFound("get", name)
}

// Add writes c as a new container file named after c.Name.
func (r *Registry) Add(ctx context.Context, c Container) (Container, error) {
	if err := validateName(c.Name); err != nil {
		return Container{}, err
	}
	c.Schema = Schema
	c.ID = ContainerID

	sceneDir, err := r.scope.SceneDir(ctx)
	if err != nil {
		return Container{}, err
	}
	unlock, err := r.files.Lock(ctx, sceneDir)
	if err != nil {
		return Container{}, err
	}
	defer unlock()

	path := metastore.RecordPath(filepath.Join(sceneDir, workdir.SectionContainers), c.Name)
	exists, err := r.files.Exists(path)
	if err != nil {
		return Container{}, err
	}
	if exists {
		if !r.overwrite {
			return Container{}, services.Wrap(services.ErrDuplicateContainer, component, "add",
				fmt.Sprintf("container %q already exists", c.Name), nil)
		}
		logging.WarnWithContext(r.logger, "overwriting existing container", "container_overwritten",
			logging.String("name", c.Name),
			logging.String(logging.FieldImpact, "previous container record replaced"),
			logging.String(logging.FieldErrorHint, "disable registry.overwrite_existing to refuse duplicates"),
		)
	}
	if err := r.files.WriteJSON(path, c); err != nil {
		return Container{}, err
	}
	r.sceneLogger(ctx, sceneDir).Info("container added",
		logging.String("name", c.Name),
		logging.String("loader", c.Loader),
		logging.String("representation", c.Representation),
	)
	return c, nil
}

// Containerise builds a container record for a freshly loaded asset and adds it.
func (r *Registry) Containerise(ctx context.Context, name, namespace, representation, loader string) (Container, error) {
	return r.Add(ctx, Container{
		Name:           name,
		Namespace:      namespace,
		Loader:         loader,
		Representation: representation,
	})
}

// Update rewrites the changed fields of container name. Every other field
// keeps its stored value.
func (r *Registry) Update(ctx context.Context, name string, changes Changes) (Container, error) {
	if err := validateName(name); err != nil {
		return Container{}, err
	}
	sceneDir, err := r.scope.SceneDir(ctx)
	if err != nil {
		return Container{}, err
	}
	unlock, err := r.files.Lock(ctx, sceneDir)
	if err != nil {
		return Container{}, err
	}
	defer unlock()

	path := metastore.RecordPath(filepath.Join(sceneDir, workdir.SectionContainers), name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Container{}, notFound("update", name)
		}
		return Container{}, fmt.Errorf("read %s: %w", path, err)
	}

	var doc json.RawMessage
	if err := metacodec.Decode(data, &doc); err != nil {
		return Container{}, err
	}
	updated, err := patchDocument(doc, name, changes)
	if err != nil {
		return Container{}, err
	}
	if err := r.files.WriteJSON(path, updated.doc); err != nil {
		return Container{}, err
	}
	r.sceneLogger(ctx, sceneDir).Info("container updated", logging.String("name", name))
	return updated.container, nil
}

// Remove deletes container name. An unknown name is reported with
// ErrContainerNotFound and leaves the directory untouched.
func (r *Registry) Remove(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	dir, err := r.Dir(ctx)
	if err != nil {
		return err
	}
	if err := r.files.Remove(metastore.RecordPath(dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound("remove", name)
		}
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	r.logger.Info("container removed", logging.String("name", name))
	return nil
}

// Clear removes every container file of scene and returns how many were
// removed. It is used to drop the untitled scene's containers on exit.
func (r *Registry) Clear(ctx context.Context, scene string) (int, error) {
	dir, err := r.scope.SceneSectionDir(scene, workdir.SectionContainers)
	if err != nil {
		return 0, err
	}
	removed, err := r.files.Clear(dir)
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		r.logger.Info("containers cleared", logging.String(logging.FieldScene, scene), logging.Int("count", removed))
	}
	return removed, nil
}

type patched struct {
	doc       any
	container Container
}

// patchDocument applies changes to the record object inside doc, which is a
// single object or a legacy list of objects.
func patchDocument(doc json.RawMessage, name string, changes Changes) (patched, error) {
	trimmed := strings.TrimSpace(string(doc))
	if strings.HasPrefix(trimmed, "[") {
		var list []map[string]json.RawMessage
		if err := json.Unmarshal(doc, &list); err != nil {
			return patched{}, services.Wrap(services.ErrMetadataCorrupt, component, "update", name, err)
		}
		for i, fields := range list {
			current, err := decodeName(fields["name"])
			if err != nil || (current != name && len(list) > 1) {
				continue
			}
			c, err := patchFields(fields, changes)
			if err != nil {
				return patched{}, err
			}
			list[i] = fields
			return patched{doc: list, container: c}, nil
		}
		return patched{}, notFound("update", name)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return patched{}, services.Wrap(services.ErrMetadataCorrupt, component, "update", name, err)
	}
	c, err := patchFields(fields, changes)
	if err != nil {
		return patched{}, err
	}
	return patched{doc: fields, container: c}, nil
}

func patchFields(fields map[string]json.RawMessage, changes Changes) (Container, error) {
	set := func(key string, value *string) error {
		if value == nil {
			return nil
		}
		raw, err := json.Marshal(*value)
		if err != nil {
			return err
		}
		fields[key] = raw
		return nil
	}
	if err := set("namespace", changes.Namespace); err != nil {
		return Container{}, err
	}
	if err := set("loader", changes.Loader); err != nil {
		return Container{}, err
	}
	if err := set("representation", changes.Representation); err != nil {
		return Container{}, err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return Container{}, err
	}
	var c Container
	if err := json.Unmarshal(data, &c); err != nil {
		return Container{}, services.Wrap(services.ErrMetadataCorrupt, component, "update", "decode patched record", err)
	}
	return c, nil
}

// sceneLogger annotates the registry logger with the scene owning sceneDir.
func (r *Registry) sceneLogger(ctx context.Context, sceneDir string) *slog.Logger {
	ctx = services.WithSection(services.WithScene(ctx, filepath.Base(sceneDir)), workdir.SectionContainers)
	return logging.WithContext(ctx, r.logger)
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return services.Wrap(services.ErrValidation, component, "name", "container name is empty", nil)
	case strings.ContainsAny(name, `/\`) || name == "." || name == ".." || strings.ContainsRune(name, 0):
		return services.Wrap(services.ErrValidation, component, "name",
			fmt.Sprintf("container name %q is not a valid file name", name), nil)
	}
	return nil
}

func notFound(op, name string) error {
	return services.Wrap(services.ErrContainerNotFound, component, op, fmt.Sprintf("container %q", name), nil)
}
