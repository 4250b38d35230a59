package menu

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"zbridge/internal/config"
	"zbridge/internal/fileutil"
	"zbridge/internal/zscript"
)

const (
	// PaletteName is the host palette the buttons are placed under.
	PaletteName = "Zplugin:ZBridge"
	// FileName is the plugin script written into the host plugin directory.
	FileName = "zbridge_menu.txt"
)

// DefaultTools are offered when the configuration names no tools.
var DefaultTools = []string{"workfiles", "creator", "loader", "publisher", "scene_inventory"}

// Menu describes the palette to render.
type Menu struct {
	Palette string
	Binary  string
	Tools   []string
}

// FromConfig builds a menu for the configured tools. binary is the zbridge
// executable the buttons invoke.
func FromConfig(cfg *config.Config, binary string) Menu {
	tools := cfg.ToolNames()
	if len(tools) == 0 {
		tools = append([]string(nil), DefaultTools...)
	}
	return Menu{Palette: PaletteName, Binary: binary, Tools: tools}
}

// Label turns a tool name such as "scene_inventory" into "Scene Inventory".
func Label(tool string) string {
	words := strings.FieldsFunc(tool, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Render returns the plugin file text: one sub-palette and a button per
// tool. Plugin files are evaluated at host startup, outside any freeze block.
func (m Menu) Render() (string, error) {
	palette := strings.TrimSpace(m.Palette)
	if palette == "" {
		palette = PaletteName
	}
	if strings.TrimSpace(m.Binary) == "" {
		return "", errors.New("menu requires the zbridge executable path")
	}
	if len(m.Tools) == 0 {
		return "", errors.New("menu has no tools")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[ISubPalette, %s]\n", zscript.Quote(palette))
	for _, tool := range m.Tools {
		label := Label(tool)
		command := fmt.Sprintf("%q launch %s", m.Binary, tool)
		fmt.Fprintf(&b, "[IButton, %s, %s, [ShellExecute, %s]]\n",
			zscript.Quote(palette+":"+label),
			zscript.Quote("Open "+label),
			zscript.Quote(command),
		)
	}
	return b.String(), nil
}

// Install writes the palette script into the host plugin directory and
// returns its path.
func Install(cfg *config.Config, binary string) (string, error) {
	dir := strings.TrimSpace(cfg.Host.PluginDir)
	if dir == "" {
		return "", errors.New("host.plugin_dir is not configured")
	}
	text, err := FromConfig(cfg, binary).Render()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create plugin dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := fileutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write menu: %w", err)
	}
	return path, nil
}
