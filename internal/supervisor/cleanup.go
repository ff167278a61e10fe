package supervisor

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ydhouse/internal/logging"
)

var formatResidue = regexp.MustCompile(`\.f\d+\.(?:mp4|webm)(?:\.part)?$`)

// IsStagingResidue reports whether name is a partial download artifact.
func IsStagingResidue(name string) bool {
	lower := strings.ToLower(name)
	switch filepath.Ext(lower) {
	case ".part", ".ytdl", ".tmp":
		return true
	}
	return formatResidue.MatchString(lower)
}

// CleanStaging removes partial download artifacts under dir. Failures are
// logged and skipped; the removed paths are returned.
func CleanStaging(dir string, logger *slog.Logger) []string {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var removed []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			logger.Debug("staging walk error", logging.String("path", path), logging.Error(err))
			return nil
		}
		if d.IsDir() || !IsStagingResidue(d.Name()) {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.Warn("staging cleanup failed",
				logging.String("path", path),
				logging.Error(rmErr),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
			)
			return nil
		}
		removed = append(removed, path)
		return nil
	})
	if err != nil {
		logger.Debug("staging walk aborted", logging.String("dir", dir), logging.Error(err))
	}
	if len(removed) > 0 {
		logger.Info("staging cleanup removed partial files",
			logging.String("dir", dir),
			logging.Int("count", len(removed)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return removed
}
