package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"zbridge/internal/logging"
	"zbridge/internal/registry"
	"zbridge/internal/services"
	"zbridge/internal/zscript"
)

// MeshLoader is the loader name recorded on containers created by LoadMesh.
const MeshLoader = "MeshLoader"

// MeshExtensions lists the file types the host import action accepts.
var MeshExtensions = []string{".abc", ".fbx", ".obj", ".ma"}

// MeshRequest describes a representation file to import.
type MeshRequest struct {
	Path           string
	Name           string
	Namespace      string
	Representation string
}

// LoadMesh imports the file into the active tool and records a container for
// it. The container is only written after the host import succeeded.
func (p *Pipeline) LoadMesh(ctx context.Context, req MeshRequest) (registry.Container, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return registry.Container{}, services.Wrap(services.ErrValidation, component, "load mesh", "file path is empty", nil)
	}
	if !supportedMesh(path) {
		return registry.Container{}, services.Wrap(services.ErrValidation, component, "load mesh",
			fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return registry.Container{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	abs = strings.ReplaceAll(abs, `\`, "/")

	script := zscript.New().Add(
		zscript.SetNextFileName{Path: abs},
		zscript.Press{Action: zscript.ActionToolImport},
	)
	if err := p.host.Run(ctx, script); err != nil {
		return registry.Container{}, err
	}
	p.logger.Info("mesh imported", logging.String("path", abs), logging.String("name", req.Name))

	return p.containers.Containerise(ctx, req.Name, req.Namespace, req.Representation, MeshLoader)
}

func supportedMesh(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range MeshExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}
