package daemon

import (
	"net/http"
	"strings"

	"ydhouse/internal/api"
	"ydhouse/internal/services"
)

func (s *apiServer) handlePrompts(w http.ResponseWriter, r *http.Request) {
	store := s.daemon.jobs.Prompts()
	switch r.Method {
	case http.MethodGet:
		channel, ok := s.channelParam(w, r)
		if !ok {
			return
		}
		doc, err := store.Active(channel)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.PromptResponse{Channel: channel, Prompt: doc})
	case http.MethodPost:
		var req api.PromptSaveRequest
		if !s.decode(w, r, &req) {
			return
		}
		version, err := store.Save(req.Channel, req.Prompt)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.PromptVersionResponse{Channel: strings.TrimSpace(req.Channel), Version: version})
	default:
		w.Header().Set("Allow", "GET, POST")
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handlePromptVersions(w http.ResponseWriter, r *http.Request) {
	store := s.daemon.jobs.Prompts()
	switch r.Method {
	case http.MethodGet:
		channel, ok := s.channelParam(w, r)
		if !ok {
			return
		}
		versions, err := store.Versions(channel)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.PromptVersionsResponse{Channel: channel, Versions: versions})
	case http.MethodDelete:
		var req api.PromptVersionRequest
		if !s.decode(w, r, &req) {
			return
		}
		if err := store.Delete(req.Channel, req.Version); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handlePromptActivate(w http.ResponseWriter, r *http.Request) {
	var req api.PromptVersionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.daemon.jobs.Prompts().SetActive(req.Channel, req.Version); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handlePromptStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.daemon.jobs.PromptStatus()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *apiServer) handlePromptGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.PromptGenerateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.extendDeadline(w)
	version, err := s.daemon.jobs.GeneratePrompt(r.Context(), req.Channel, req.Force)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PromptVersionResponse{Channel: strings.TrimSpace(req.Channel), Version: version})
}

func (s *apiServer) handlePromptAnalysis(w http.ResponseWriter, r *http.Request) {
	channel, ok := s.channelParam(w, r)
	if !ok {
		return
	}
	s.extendDeadline(w)
	out, err := s.daemon.jobs.AnalyzeChannel(r.Context(), channel)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PromptOutputResponse{Output: out})
}

func (s *apiServer) handlePromptBatch(w http.ResponseWriter, r *http.Request) {
	var req api.PromptBatchRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	s.extendDeadline(w)
	out, err := s.daemon.jobs.BatchGeneratePrompts(r.Context(), req.SkipExisting)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PromptOutputResponse{Output: out})
}

func (s *apiServer) channelParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channel == "" {
		s.fail(w, r, services.Wrap(services.ErrValidation, "api", "prompts", "channel required", nil))
		return "", false
	}
	return channel, true
}
