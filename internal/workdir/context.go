package workdir

import (
	"os"
	"strings"
)

// Context identifies the unit of work the host session is bound to.
type Context struct {
	Project string `json:"project_name"`
	Asset   string `json:"asset_name"`
	Task    string `json:"task_name"`
}

// Complete reports whether every field is set.
func (c Context) Complete() bool {
	return c.Project != "" && c.Asset != "" && c.Task != ""
}

// IsZero reports whether no field is set.
func (c Context) IsZero() bool {
	return c == Context{}
}

// String renders the context as project/asset/task.
func (c Context) String() string {
	return strings.Join([]string{orDash(c.Project), orDash(c.Asset), orDash(c.Task)}, "/")
}

// Map returns the context as the mapping stored in host memory.
func (c Context) Map() map[string]string {
	return map[string]string{
		"project_name": c.Project,
		"asset_name":   c.Asset,
		"task_name":    c.Task,
	}
}

// ContextFromMap reads a stored context mapping. The legacy project/asset/task
// keys are accepted when the current keys are absent.
func ContextFromMap(m map[string]any) Context {
	pick := func(keys ...string) string {
		for _, key := range keys {
			if v, ok := m[key].(string); ok && v != "" {
				return v
			}
		}
		return ""
	}
	return Context{
		Project: pick("project_name", "project"),
		Asset:   pick("asset_name", "asset"),
		Task:    pick("task_name", "task"),
	}
}

// ContextFromEnv builds the session default context from the process
// environment.
func ContextFromEnv() Context {
	return contextFromLookup(os.Getenv)
}

func contextFromLookup(getenv func(string) string) Context {
	first := func(keys ...string) string {
		for _, key := range keys {
			if v := strings.TrimSpace(getenv(key)); v != "" {
				return v
			}
		}
		return ""
	}
	return Context{
		Project: first("AVALON_PROJECT", "AYON_PROJECT_NAME"),
		Asset:   first("AVALON_ASSET", "AYON_FOLDER_PATH"),
		Task:    first("AVALON_TASK", "AYON_TASK_NAME"),
	}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
