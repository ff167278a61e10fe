// Package paths resolves the project root and derives the canonical locations
// of the vault, the channel list, and the worker scripts beneath it.
//
// Resolution never touches the filesystem; callers use Require at the point of
// first use so a missing script or interpreter surfaces as a NotFound error
// naming the file.
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"ydhouse/internal/config"
	"ydhouse/internal/services"
)

const (
	nativeDirName = "src-tauri"
	appDirName    = "app"
	appMarker     = "/app/"
)

// Resolve derives the project root from a working directory.
func Resolve(cwd string) string {
	cleaned := filepath.Clean(cwd)
	switch filepath.Base(cleaned) {
	case nativeDirName:
		return filepath.Dir(filepath.Dir(cleaned))
	case appDirName:
		return filepath.Dir(cleaned)
	}
	slashed := filepath.ToSlash(cleaned)
	if idx := strings.Index(slashed, appMarker); idx >= 0 {
		return filepath.FromSlash(slashed[:idx])
	}
	return cwd
}

// Layout holds the derived project paths.
type Layout struct {
	Root string
	goos string
}

// New builds a layout rooted at root.
func New(root string) Layout {
	return Layout{Root: root, goos: runtime.GOOS}
}

// NewForOS builds a layout whose interpreter path follows the given GOOS.
func NewForOS(root, goos string) Layout {
	return Layout{Root: root, goos: goos}
}

// FromConfig prefers the configured project root and otherwise resolves cwd.
func FromConfig(cfg *config.Config, cwd string) Layout {
	if cfg != nil && strings.TrimSpace(cfg.Paths.ProjectRoot) != "" {
		return New(cfg.Paths.ProjectRoot)
	}
	return New(Resolve(cwd))
}

func (l Layout) Vault() string        { return filepath.Join(l.Root, "vault") }
func (l Layout) VideosDir() string    { return filepath.Join(l.Vault(), "10_videos") }
func (l Layout) IndicesDir() string   { return filepath.Join(l.Vault(), "90_indices") }
func (l Layout) ChromaDir() string    { return filepath.Join(l.IndicesDir(), "chroma") }
func (l Layout) PromptsDir() string   { return filepath.Join(l.IndicesDir(), "prompts") }
func (l Layout) DownloadsDir() string { return filepath.Join(l.Vault(), "downloads") }
func (l Layout) ChannelsFile() string { return filepath.Join(l.Root, "channels.txt") }
func (l Layout) EnvFile() string      { return filepath.Join(l.Root, ".env") }

func (l Layout) EmbedScript() string     { return filepath.Join(l.IndicesDir(), "embed.py") }
func (l Layout) RAGScript() string       { return filepath.Join(l.IndicesDir(), "rag.py") }
func (l Layout) IntegrityScript() string { return filepath.Join(l.IndicesDir(), "integrity_check.py") }
func (l Layout) PromptScript() string    { return filepath.Join(l.IndicesDir(), "auto_prompt.py") }

// Interpreter returns the virtualenv python executable for the layout's OS.
func (l Layout) Interpreter() string {
	if l.goos == "windows" {
		return filepath.Join(l.Root, "venv", "Scripts", "python.exe")
	}
	return filepath.Join(l.Root, "venv", "bin", "python3")
}

// Rel expresses target relative to the project root using forward slashes.
func (l Layout) Rel(target string) string {
	rel, err := filepath.Rel(l.Root, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

// Require reports NotFound when path does not exist.
func Require(path, what string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrNotFound, "paths", "require", fmt.Sprintf("%s not found at %s", what, path), nil)
	}
	return fmt.Errorf("stat %s: %w", what, err)
}
