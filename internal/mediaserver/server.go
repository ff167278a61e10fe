package mediaserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"ydhouse/internal/config"
	"ydhouse/internal/logging"
	"ydhouse/internal/services"
)

const loopbackHost = "127.0.0.1"

// Options configures a media server.
type Options struct {
	AllowedOrigins    []string
	FallbackPortStart int
	FallbackPortEnd   int
}

// OptionsFromConfig reads the [media_server] section.
func OptionsFromConfig(cfg config.MediaServer) Options {
	return Options{
		AllowedOrigins:    append([]string(nil), cfg.AllowedOrigins...),
		FallbackPortStart: cfg.FallbackPortStart,
		FallbackPortEnd:   cfg.FallbackPortEnd,
	}
}

type listenFunc func(network, address string) (net.Listener, error)

// Server owns at most one loopback listener at a time.
type Server struct {
	vaultDir string
	opts     Options
	origins  map[string]struct{}
	logger   *slog.Logger
	listen   listenFunc

	mu   sync.RWMutex
	srv  *http.Server
	port int
	done chan struct{}
}

// New creates a server rooted at vaultDir. It does not listen until Start.
func New(vaultDir string, opts Options, logger *slog.Logger) *Server {
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, origin := range opts.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins[origin] = struct{}{}
		}
	}
	return &Server{
		vaultDir: vaultDir,
		opts:     opts,
		origins:  origins,
		logger:   logging.NewComponentLogger(logger, "media-server"),
		listen:   net.Listen,
	}
}

// Start binds a loopback port and serves in the background. Calling Start
// while running returns the existing port.
func (s *Server) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return s.port, nil
	}

	listener, err := s.bind()
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "media server bind failed", "media_bind_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "free a port in the fallback range or widen it in config"),
		)
		return 0, err
	}
	port := listener.Addr().(*net.TCPAddr).Port

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("media server stopped", logging.Error(serveErr))
		}
	}()

	s.srv = srv
	s.port = port
	s.done = done
	s.logger.Info("media server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("vault", s.vaultDir),
		logging.String(logging.FieldEventType, "media_server_started"),
	)
	return port, nil
}

// bind tries an OS-assigned port first, then the configured fallback range.
func (s *Server) bind() (net.Listener, error) {
	listener, err := s.listen("tcp", net.JoinHostPort(loopbackHost, "0"))
	if err == nil {
		return listener, nil
	}
	firstErr := err
	for port := s.opts.FallbackPortStart; port > 0 && port <= s.opts.FallbackPortEnd; port++ {
		listener, err = s.listen("tcp", net.JoinHostPort(loopbackHost, strconv.Itoa(port)))
		if err == nil {
			return listener, nil
		}
	}
	return nil, services.Wrap(services.ErrPortUnavailable, "media-server", "start",
		fmt.Sprintf("no free port (tried :0 and %d-%d)", s.opts.FallbackPortStart, s.opts.FallbackPortEnd), firstErr)
}

// Stop shuts the server down and clears the slot. Stopping an idle server
// is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.port, s.done = nil, 0, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	if err != nil {
		// Open media streams can outlive the caller's deadline.
		_ = srv.Close()
	}
	<-done
	s.logger.Info("media server stopped", logging.String(logging.FieldEventType, "media_server_stopped"))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Status returns the bound port, if running.
func (s *Server) Status() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port, s.srv != nil
}

// URL builds the media URL for a record's video_path. A leading "vault/"
// segment is dropped and the rest is percent-encoded per segment.
func (s *Server) URL(videoPath string) (string, error) {
	port, running := s.Status()
	if !running {
		return "", services.Wrap(services.ErrNotFound, "media-server", "url", "media server is not running; start it first", nil)
	}
	return BuildURL(port, videoPath), nil
}

// BuildURL composes http://127.0.0.1:<port>/video/<encoded path>.
func BuildURL(port int, videoPath string) string {
	clean := strings.ReplaceAll(videoPath, "\\", "/")
	clean = strings.TrimLeft(clean, "/")
	clean = strings.TrimPrefix(clean, "vault/")
	segments := strings.Split(clean, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("http://%s/video/%s", net.JoinHostPort(loopbackHost, strconv.Itoa(port)), strings.Join(segments, "/"))
}
