package testsupport

import (
	"path/filepath"
	"strings"
	"testing"

	"ydhouse/internal/config"
	"ydhouse/internal/paths"
)

// EchoInterpreter is a stand-in python3 that prints its arguments and the
// worker environment knobs, one per line.
const EchoInterpreter = `echo "ARGS: $*"
echo "PYTHONUNBUFFERED=${PYTHONUNBUFFERED:-}"
echo "YDH_VIDEO_QUALITY=${YDH_VIDEO_QUALITY:-}"
echo "YDH_YTDLP_SOCKET_TIMEOUT=${YDH_YTDLP_SOCKET_TIMEOUT:-}"
echo "YDH_YTDLP_RETRIES=${YDH_YTDLP_RETRIES:-}"
echo "OPENAI_API_KEY=${OPENAI_API_KEY:-}"`

// NewProject lays out a project tree at cfg.Paths.ProjectRoot with an empty
// vault, the worker scripts and a venv interpreter running interpreterBody.
// An empty body installs EchoInterpreter.
func NewProject(t testing.TB, cfg *config.Config, interpreterBody string) paths.Layout {
	t.Helper()

	layout := paths.New(cfg.Paths.ProjectRoot)
	if strings.TrimSpace(interpreterBody) == "" {
		interpreterBody = EchoInterpreter
	}
	WriteScript(t, layout.Interpreter(), interpreterBody)
	for _, script := range []string{layout.EmbedScript(), layout.RAGScript(), layout.IntegrityScript(), layout.PromptScript()} {
		WriteText(t, script, "# worker stub\n")
	}
	WriteText(t, filepath.Join(layout.VideosDir(), ".keep"), "")
	return layout
}

// AddVideo creates a record directory with video.mp4 and, when frontmatter
// is non-empty, a captions.md holding it. It returns the directory.
func AddVideo(t testing.TB, layout paths.Layout, channel, folder, frontmatter string) string {
	t.Helper()

	dir := filepath.Join(layout.VideosDir(), channel, folder)
	WriteFile(t, filepath.Join(dir, "video.mp4"), 128)
	if frontmatter != "" {
		WriteText(t, filepath.Join(dir, "captions.md"), "---\n"+frontmatter+"\n---\n\n본문\n")
	}
	return dir
}
