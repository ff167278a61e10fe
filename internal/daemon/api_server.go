package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ydhouse/internal/api"
	"ydhouse/internal/config"
	"ydhouse/internal/events"
	"ydhouse/internal/history"
	"ydhouse/internal/jobs"
	"ydhouse/internal/logging"
	"ydhouse/internal/services"
	"ydhouse/internal/supervisor"
	"ydhouse/internal/vault"
)

const (
	maxBodyBytes      = 1 << 20
	defaultHistory    = 50
	defaultLogLimit   = 200
	heartbeatInterval = 15 * time.Second
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	mux    *http.ServeMux

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		mux:    http.NewServeMux(),
	}

	srv.mux.HandleFunc("/api/videos", srv.method(http.MethodGet, srv.handleVideos))
	srv.mux.HandleFunc("/api/videos/grouped", srv.method(http.MethodGet, srv.handleGroupedVideos))
	srv.mux.HandleFunc("/api/channels", srv.handleChannels)
	srv.mux.HandleFunc("/api/channels/toggle", srv.method(http.MethodPost, srv.handleToggleChannel))
	srv.mux.HandleFunc("/api/download", srv.method(http.MethodPost, srv.handleDownload))
	srv.mux.HandleFunc("/api/download/ingest", srv.method(http.MethodPost, srv.handleIngest))
	srv.mux.HandleFunc("/api/download/cancel", srv.method(http.MethodPost, srv.cancelHandler(jobs.TagDownload)))
	srv.mux.HandleFunc("/api/embedding/channels", srv.method(http.MethodGet, srv.handleEmbeddableChannels))
	srv.mux.HandleFunc("/api/embedding", srv.method(http.MethodPost, srv.handleEmbedding))
	srv.mux.HandleFunc("/api/embedding/cancel", srv.method(http.MethodPost, srv.cancelHandler(jobs.TagEmbedding)))
	srv.mux.HandleFunc("/api/search", srv.method(http.MethodPost, srv.handleSearch))
	srv.mux.HandleFunc("/api/rag", srv.method(http.MethodPost, srv.handleRAG))
	srv.mux.HandleFunc("/api/rag/channels", srv.method(http.MethodGet, srv.handleRAGChannels))
	srv.mux.HandleFunc("/api/prompts", srv.handlePrompts)
	srv.mux.HandleFunc("/api/prompts/versions", srv.handlePromptVersions)
	srv.mux.HandleFunc("/api/prompts/activate", srv.method(http.MethodPost, srv.handlePromptActivate))
	srv.mux.HandleFunc("/api/prompts/status", srv.method(http.MethodGet, srv.handlePromptStatus))
	srv.mux.HandleFunc("/api/prompts/generate", srv.method(http.MethodPost, srv.handlePromptGenerate))
	srv.mux.HandleFunc("/api/prompts/analysis", srv.method(http.MethodGet, srv.handlePromptAnalysis))
	srv.mux.HandleFunc("/api/prompts/batch", srv.method(http.MethodPost, srv.handlePromptBatch))
	srv.mux.HandleFunc("/api/integrity", srv.method(http.MethodPost, srv.handleIntegrity))
	srv.mux.HandleFunc("/api/status", srv.method(http.MethodGet, srv.handleStatus))
	srv.mux.HandleFunc("/api/history", srv.method(http.MethodGet, srv.handleHistory))
	srv.mux.HandleFunc("/api/media", srv.method(http.MethodGet, srv.handleMediaStatus))
	srv.mux.HandleFunc("/api/media/start", srv.method(http.MethodPost, srv.handleMediaStart))
	srv.mux.HandleFunc("/api/media/stop", srv.method(http.MethodPost, srv.handleMediaStop))
	srv.mux.HandleFunc("/api/media/url", srv.method(http.MethodGet, srv.handleMediaURL))
	srv.mux.HandleFunc("/api/open", srv.method(http.MethodPost, srv.handleOpen))
	srv.mux.HandleFunc("/api/convert", srv.handleConvert)
	srv.mux.HandleFunc("/api/convert/cancel", srv.method(http.MethodPost, srv.cancelHandler(jobs.TagConversion)))
	srv.mux.HandleFunc("/api/jobs/wait", srv.method(http.MethodGet, srv.handleWait))
	srv.mux.HandleFunc("/api/events", srv.method(http.MethodGet, srv.handleEvents))
	srv.mux.HandleFunc("/api/logs", srv.method(http.MethodGet, srv.handleLogs))
	srv.mux.HandleFunc("/api/daemon", srv.method(http.MethodGet, srv.handleDaemonStatus))
	srv.mux.HandleFunc("/api/daemon/stop", srv.method(http.MethodPost, srv.handleDaemonStop))
	return srv
}

// handler wraps the mux with request correlation.
func (s *apiServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		s.mux.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api listen: paths.api_bind is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server, listener := s.server, s.listener
	s.server, s.listener = nil, nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
		}
	}
	if listener != nil {
		_ = listener.Close()
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) method(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

func (s *apiServer) handleVideos(w http.ResponseWriter, r *http.Request) {
	records, err := s.daemon.scanner.Scan()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if records == nil {
		records = []vault.Record{}
	}
	s.writeJSON(w, http.StatusOK, api.VideosResponse{Videos: records})
}

func (s *apiServer) handleGroupedVideos(w http.ResponseWriter, r *http.Request) {
	records, err := s.daemon.scanner.Scan()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	groups := vault.Group(records)
	if groups == nil {
		groups = []vault.ChannelGroup{}
	}
	s.writeJSON(w, http.StatusOK, api.GroupedVideosResponse{Groups: groups})
}

func (s *apiServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	store := s.daemon.jobs.Channels()
	switch r.Method {
	case http.MethodGet:
		entries, err := store.List()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ChannelsResponse{Channels: entries})
	case http.MethodPost, http.MethodDelete:
		var req api.ChannelRequest
		if !s.decode(w, r, &req) {
			return
		}
		url := strings.TrimSpace(req.URL)
		if url == "" {
			s.fail(w, r, services.Wrap(services.ErrValidation, "api", "channels", "url required", nil))
			return
		}
		var err error
		if r.Method == http.MethodPost {
			err = store.Add(url)
		} else {
			err = store.Remove(url)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleToggleChannel(w http.ResponseWriter, r *http.Request) {
	var req api.ChannelRequest
	if !s.decode(w, r, &req) {
		return
	}
	url := strings.TrimSpace(req.URL)
	enabled, err := s.daemon.jobs.Channels().Toggle(url)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ToggleResponse{URL: url, Enabled: enabled})
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req api.DownloadRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	job, err := s.daemon.jobs.StartDownload(r.Context(), req)
	s.writeJob(w, r, job, events.TopicDownload, err)
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req api.ChannelRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.daemon.jobs.StartIngest(r.Context(), req.URL)
	s.writeJob(w, r, job, events.TopicDownload, err)
}

func (s *apiServer) handleEmbeddableChannels(w http.ResponseWriter, r *http.Request) {
	names, err := s.daemon.jobs.EmbeddableChannels()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.EmbeddableChannelsResponse{Channels: names})
}

func (s *apiServer) handleEmbedding(w http.ResponseWriter, r *http.Request) {
	var req api.EmbedRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	job, err := s.daemon.jobs.StartEmbedding(r.Context(), req.Channels)
	s.writeJob(w, r, job, events.TopicEmbedding, err)
}

func (s *apiServer) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.jobs.StartIntegrityCheck(r.Context())
	s.writeJob(w, r, job, events.TopicIntegrity, err)
}

func (s *apiServer) cancelHandler(tag string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		switch tag {
		case jobs.TagDownload:
			err = s.daemon.jobs.CancelDownload(r.Context())
		case jobs.TagEmbedding:
			err = s.daemon.jobs.CancelEmbedding(r.Context())
		case jobs.TagConversion:
			err = s.daemon.jobs.CancelConversion(r.Context())
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.extendDeadline(w)
	out, err := s.daemon.jobs.VectorSearch(r.Context(), req.Query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SearchResponse{Output: out})
}

func (s *apiServer) handleRAG(w http.ResponseWriter, r *http.Request) {
	var req api.RAGRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.extendDeadline(w)
	answer, err := s.daemon.jobs.AskRAG(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, answer)
}

func (s *apiServer) handleRAGChannels(w http.ResponseWriter, r *http.Request) {
	s.extendDeadline(w)
	list, err := s.daemon.jobs.RAGChannels(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RAGChannelsResponse{Channels: list})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.status.Collect(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultHistory
	}
	runs, err := s.daemon.history.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Runs: runs})
}

func (s *apiServer) handleMediaStatus(w http.ResponseWriter, _ *http.Request) {
	port, running := s.daemon.media.Status()
	s.writeJSON(w, http.StatusOK, api.MediaStatus{Running: running, Port: port})
}

func (s *apiServer) handleMediaStart(w http.ResponseWriter, r *http.Request) {
	port, err := s.daemon.media.Start(s.daemon.lifetime())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MediaStatus{Running: true, Port: port})
}

func (s *apiServer) handleMediaStop(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.media.Stop(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleMediaURL(w http.ResponseWriter, r *http.Request) {
	videoPath := strings.TrimSpace(r.URL.Query().Get("path"))
	if videoPath == "" {
		s.fail(w, r, services.Wrap(services.ErrValidation, "api", "media url", "path required", nil))
		return
	}
	url, err := s.daemon.media.URL(videoPath)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MediaURLResponse{URL: url})
}

func (s *apiServer) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req api.OpenRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.daemon.jobs.OpenInSystemPlayer(r.Context(), req.Path); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, api.ConversionStatus{Running: s.daemon.jobs.ConversionRunning()})
	case http.MethodPost:
		var req api.ConvertRequest
		if !s.decode(w, r, &req) {
			return
		}
		job, err := s.daemon.jobs.StartConversion(r.Context(), req)
		s.writeJob(w, r, job, events.TopicConversion, err)
	default:
		w.Header().Set("Allow", "GET, POST")
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleWait(w http.ResponseWriter, r *http.Request) {
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	if tag == "" {
		s.fail(w, r, services.Wrap(services.ErrValidation, "api", "wait", "tag required", nil))
		return
	}
	s.extendDeadline(w)
	result, err := s.daemon.jobs.Wait(r.Context(), tag)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NewJobResult(result))
}

func (s *apiServer) handleDaemonStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleDaemonStop(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusAccepted, api.StopResponse{Stopped: true})
	s.daemon.RequestStop()
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	topic := strings.TrimSpace(query.Get("topic"))
	if topic != "" && !events.KnownTopic(topic) {
		s.fail(w, r, services.Wrap(services.ErrValidation, "api", "events", fmt.Sprintf("unknown topic %q", topic), nil))
		return
	}
	replay := query.Get("replay") == "1" || strings.EqualFold(query.Get("replay"), "true")

	rc := http.NewResponseController(w)
	s.extendDeadline(w)
	sub := s.daemon.bus.Subscribe(topic, replay)
	defer sub.Close()

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				s.logger.Warn("encode event failed", logging.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Topic, payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.logHub
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []logging.LogEvent{}, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")
	component := strings.TrimSpace(query.Get("component"))
	jobTag := strings.TrimSpace(query.Get("job_tag"))

	var (
		raw  []logging.LogEvent
		next uint64
	)
	if tail && since == 0 && !follow {
		raw, next = hub.Tail(limit)
	} else {
		if follow {
			s.extendDeadline(w)
		}
		var err error
		raw, next, err = hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.fail(w, r, err)
			return
		}
	}

	filtered := make([]logging.LogEvent, 0, len(raw))
	for _, evt := range raw {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if jobTag != "" && !strings.EqualFold(jobTag, evt.JobTag) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

func (s *apiServer) writeJob(w http.ResponseWriter, r *http.Request, job *supervisor.Job, topic string, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Tag: job.Tag(), RunID: job.RunID(), Topic: topic})
}

// extendDeadline lifts the server write timeout for long-running handlers.
func (s *apiServer) extendDeadline(w http.ResponseWriter) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("clear write deadline failed", logging.Error(err))
	}
}

// decode reads a JSON body into v. An empty body is malformed.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.decodeBody(w, r, v, false)
}

// decodeOptional reads a JSON body into v and accepts an empty body.
func (s *apiServer) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.decodeBody(w, r, v, true)
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		s.fail(w, r, services.Wrap(services.ErrMalformed, "api", "decode", "invalid request body", err))
		return false
	}
	return true
}

func (s *apiServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := services.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("api request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeJSON(w, code, api.ErrorResponse{Error: err.Error(), Kind: services.ErrorKind(err)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
