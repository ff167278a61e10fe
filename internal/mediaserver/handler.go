package mediaserver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ydhouse/internal/logging"
	"ydhouse/internal/services"
)

const routePrefix = "/video/"

// Handler returns the HTTP handler without binding a port.
func (s *Server) Handler() http.Handler {
	return s
}

// ServeHTTP implements the /video/ resource family. Routing is done on the
// escaped path because http.ServeMux would redirect ".." paths instead of
// rejecting them.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.writeCORS(w, r)

	escaped := r.URL.EscapedPath()
	if !strings.HasPrefix(escaped, routePrefix) {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet, http.MethodHead:
	default:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	full, err := s.resolve(strings.TrimPrefix(escaped, routePrefix))
	if err != nil {
		if errors.Is(err, services.ErrPathEscape) {
			s.logger.Warn("rejected media path",
				logging.String("path", escaped),
				logging.String(logging.FieldEventType, "media_path_escape"),
				logging.String(logging.FieldErrorHint, "request paths must stay inside the vault"),
			)
		}
		http.NotFound(w, r)
		return
	}
	s.serveFile(w, r, full)
}

// resolve maps an escaped request path to a regular file under the vault.
func (s *Server) resolve(escaped string) (string, error) {
	if strings.Contains(escaped, "..") {
		return "", services.Wrap(services.ErrPathEscape, "media-server", "resolve", "literal dot-dot", nil)
	}
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "media-server", "resolve", "undecodable path", err)
	}
	decoded = strings.ReplaceAll(decoded, "\\", "/")
	if strings.Contains(decoded, "\x00") {
		return "", services.Wrap(services.ErrPathEscape, "media-server", "resolve", "nul byte", nil)
	}
	for _, segment := range strings.Split(decoded, "/") {
		if segment == ".." {
			return "", services.Wrap(services.ErrPathEscape, "media-server", "resolve", "dot-dot segment", nil)
		}
	}
	if strings.Contains(decoded, "..") {
		return "", services.Wrap(services.ErrPathEscape, "media-server", "resolve", "decoded dot-dot", nil)
	}
	decoded = strings.TrimLeft(decoded, "/")
	if decoded == "" {
		return "", services.Wrap(services.ErrNotFound, "media-server", "resolve", "empty path", nil)
	}

	root, err := filepath.Abs(s.vaultDir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "media-server", "resolve", "vault path", err)
	}
	full := filepath.Join(root, filepath.FromSlash(decoded))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", services.Wrap(services.ErrPathEscape, "media-server", "resolve", "outside vault", nil)
	}
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrNotFound, "media-server", "resolve", decoded, err)
	}
	return full, nil
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, full string) {
	file, err := os.Open(full)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("open media file failed", logging.String("path", full), logging.Error(err))
		}
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	size := info.Size()

	h := w.Header()
	h.Set("Content-Type", contentType(full))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-cache")

	header := r.Header.Get("Range")
	rng, ranged, satisfiable := parseRange(header, size)
	if size == 0 {
		ranged = false
		satisfiable = true
	}
	if !satisfiable {
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if !ranged || rng.covers(size) {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			s.copyBody(w, file, size, full)
		}
		return
	}

	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, size))
	h.Set("Content-Length", strconv.FormatInt(rng.length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		s.copyBody(w, io.NewSectionReader(file, rng.start, rng.length()), rng.length(), full)
	}
}

func (s *Server) copyBody(w io.Writer, src io.Reader, n int64, path string) {
	if _, err := io.CopyN(w, src, n); err != nil {
		// Players routinely abort streams when seeking.
		s.logger.Debug("media copy ended early", logging.String("path", path), logging.Error(err))
	}
}

func (s *Server) writeCORS(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Add("Vary", "Origin")
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	if _, ok := s.origins[origin]; !ok {
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "content-type, range")
	h.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".mp4" {
		return "video/mp4"
	}
	if guessed := mime.TypeByExtension(ext); guessed != "" {
		return guessed
	}
	return "application/octet-stream"
}
