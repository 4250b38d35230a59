package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"zbridge/internal/config"
	"zbridge/internal/services"
)

const (
	component = "workdir"

	// EnvWorkdir overrides template resolution with a fixed directory.
	EnvWorkdir = "AVALON_WORKDIR"
	// UntitledScene is the scene directory used before the first save. Saved
	// scene names never start with a dot, so no workfile can map onto it.
	UntitledScene = ".untitled"
	// CurrentFileName is the side file recording the open workfile.
	CurrentFileName = "current_file.txt"
)

// Section names used under a scene's metadata directory.
const (
	SectionContainers = "containers"
	SectionInstances  = "instances"
	SectionContext    = "context"
)

// Resolver maps a context to its work directory and metadata layout.
type Resolver struct {
	root        string
	template    string
	metadataDir string
	getenv      func(string) string
}

// NewResolver builds a resolver from configuration.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		root:        cfg.Workdir.Root,
		template:    cfg.Workdir.Template,
		metadataDir: cfg.Workdir.MetadataDir,
		getenv:      os.Getenv,
	}
}

// WithEnv replaces the environment lookup. Used by tests.
func (r *Resolver) WithEnv(getenv func(string) string) *Resolver {
	clone := *r
	if getenv != nil {
		clone.getenv = getenv
	}
	return &clone
}

// WorkDir returns the work directory for c. AVALON_WORKDIR wins when set, as
// the launcher already resolved it for the session.
func (r *Resolver) WorkDir(c Context) (string, error) {
	if override := strings.TrimSpace(r.getenv(EnvWorkdir)); override != "" {
		return filepath.Clean(override), nil
	}
	if !c.Complete() {
		return "", services.Wrap(services.ErrWorkdirResolutionFailed, component, "resolve",
			fmt.Sprintf("incomplete context %s", c), nil)
	}
	if strings.Contains(r.template, "{root}") && strings.TrimSpace(r.root) == "" {
		return "", services.Wrap(services.ErrWorkdirResolutionFailed, component, "resolve",
			"workdir.root is empty and AVALON_WORKDIR is not set", nil)
	}
	replacer := strings.NewReplacer(
		"{root}", r.root,
		"{project}", c.Project,
		"{asset}", c.Asset,
		"{task}", c.Task,
	)
	resolved := replacer.Replace(r.template)
	if strings.ContainsAny(resolved, "{}") {
		return "", services.Wrap(services.ErrWorkdirResolutionFailed, component, "resolve",
			fmt.Sprintf("unknown placeholder left in %q", resolved), nil)
	}
	return filepath.Clean(resolved), nil
}

// MetadataRoot returns the hidden metadata directory inside the work directory.
func (r *Resolver) MetadataRoot(c Context) (string, error) {
	dir, err := r.WorkDir(c)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, r.metadataDir), nil
}

// SceneDir returns the metadata directory for one scene.
func (r *Resolver) SceneDir(c Context, scene string) (string, error) {
	root, err := r.MetadataRoot(c)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, normalizeScene(scene)), nil
}

// SectionDir returns workdir/<metadata_dir>/<scene>/<section>.
func (r *Resolver) SectionDir(c Context, scene, section string) (string, error) {
	dir, err := r.SceneDir(c, scene)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, section), nil
}

// WorkfileSectionDir returns the section directory of the scene saved at
// workfile, under the metadata directory next to that file. It needs no
// context, so it finds metadata of workfiles from other work directories.
func (r *Resolver) WorkfileSectionDir(workfile, section string) string {
	path := filepath.FromSlash(strings.ReplaceAll(workfile, "\\", "/"))
	return filepath.Join(filepath.Dir(path), r.metadataDir, SceneName(workfile), section)
}

// CurrentFilePath returns the side file that records the open workfile.
func (r *Resolver) CurrentFilePath(c Context) (string, error) {
	root, err := r.MetadataRoot(c)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, CurrentFileName), nil
}

// SceneName returns the scene basename for a workfile path: the file name
// without directory or extension. An empty path yields UntitledScene. A
// basename starting with a dot gets a "_" prefix so it stays clear of the
// reserved names.
func SceneName(path string) string {
	path = strings.TrimSpace(strings.ReplaceAll(path, "\\", "/"))
	if path == "" {
		return UntitledScene
	}
	base := filepath.Base(path)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if strings.HasPrefix(name, ".") {
		name = "_" + name
	}
	return normalizeScene(name)
}

func normalizeScene(scene string) string {
	scene = strings.TrimSpace(scene)
	if scene == "" || scene == "." || scene == "/" {
		return UntitledScene
	}
	return scene
}
