package workfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"

	"zbridge/internal/logging"
	"zbridge/internal/metacodec"
	"zbridge/internal/services"
	"zbridge/internal/workdir"
)

const (
	instancesFile = "instances.json"

	// InstanceIDKey identifies an instance within the scene.
	InstanceIDKey = "instance_id"
)

// Instance is a publishable item as written by creator plugins. Fields other
// than instance_id are opaque to the bridge.
type Instance map[string]any

// ID returns the instance identifier, or "" when unset.
func (i Instance) ID() string {
	id, _ := i[InstanceIDKey].(string)
	return id
}

// ListInstances returns the instances of the current scene in stored order.
// A missing or unreadable file reads as no instances.
func (s *Store) ListInstances(ctx context.Context) ([]Instance, error) {
	path, err := s.instancesPath(ctx)
	if err != nil {
		return nil, err
	}
	return s.readInstances(path), nil
}

// WriteInstances replaces the instance list of the current scene. Instances
// without an id are assigned one.
func (s *Store) WriteInstances(ctx context.Context, instances []Instance) error {
	return s.mutateInstances(ctx, "write instances", func([]Instance) ([]Instance, error) {
		return instances, nil
	})
}

// UpdateInstance merges changes into the instance with id. A nil value in
// changes deletes that key.
func (s *Store) UpdateInstance(ctx context.Context, id string, changes map[string]any) error {
	return s.mutateInstances(ctx, "update instance", func(current []Instance) ([]Instance, error) {
		for _, inst := range current {
			if inst.ID() != id {
				continue
			}
			for key, value := range changes {
				if key == InstanceIDKey {
					continue
				}
				if value == nil {
					delete(inst, key)
					continue
				}
				inst[key] = value
			}
			return current, nil
		}
		return nil, services.Wrap(services.ErrValidation, component, "update instance",
			fmt.Sprintf("instance %q not found", id), nil)
	})
}

// RemoveInstances drops the instances with the given ids and returns how many
// were removed.
func (s *Store) RemoveInstances(ctx context.Context, ids ...string) (int, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	removed := 0
	err := s.mutateInstances(ctx, "remove instances", func(current []Instance) ([]Instance, error) {
		kept := current[:0]
		for _, inst := range current {
			if _, ok := drop[inst.ID()]; ok {
				removed++
				continue
			}
			kept = append(kept, inst)
		}
		return kept, nil
	})
	return removed, err
}

func (s *Store) mutateInstances(ctx context.Context, op string, mutate func([]Instance) ([]Instance, error)) error {
	if _, err := s.requireLoaded(op); err != nil {
		return err
	}
	sceneDir, err := s.SceneDir(ctx)
	if err != nil {
		return err
	}
	unlock, err := s.files.Lock(ctx, sceneDir)
	if err != nil {
		return err
	}
	defer unlock()

	path := filepath.Join(sceneDir, workdir.SectionInstances, instancesFile)
	next, err := mutate(s.readInstances(path))
	if err != nil {
		return err
	}
	if next == nil {
		next = []Instance{}
	}
	for i, inst := range next {
		if inst == nil {
			inst = Instance{}
			next[i] = inst
		}
		if inst.ID() == "" {
			inst[InstanceIDKey] = uuid.NewString()
		}
	}
	return s.files.WriteJSON(path, next)
}

func (s *Store) instancesPath(ctx context.Context) (string, error) {
	dir, err := s.SectionDir(ctx, workdir.SectionInstances)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, instancesFile), nil
}

func (s *Store) readInstances(path string) []Instance {
	records, err := s.files.ReadRecordFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(s.logger, "instance list unreadable", "metadata_corrupt",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "instances read as empty"),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
			)
		}
		return []Instance{}
	}
	out := make([]Instance, 0, len(records))
	for _, raw := range records {
		var inst Instance
		if err := metacodec.Decode(raw, &inst); err != nil || inst == nil {
			continue
		}
		out = append(out, inst)
	}
	return out
}
