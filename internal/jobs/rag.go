package jobs

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"ydhouse/internal/events"
	"ydhouse/internal/grammar"
	"ydhouse/internal/logging"
	"ydhouse/internal/services"
)

// RAGRequest is one question for the answering worker.
type RAGRequest struct {
	Query   string `json:"query"`
	Channel string `json:"channel"`
	// Model overrides [rag] default_model.
	Model string `json:"model,omitempty"`
}

// RAGAnswer is the worker's final answer.
type RAGAnswer struct {
	Answer  string `json:"answer"`
	Channel string `json:"channel"`
	Model   string `json:"model,omitempty"`
	RunID   string `json:"run_id"`
}

// VectorSearch runs a similarity search and returns the worker's report.
func (s *Service) VectorSearch(ctx context.Context, query string) (string, error) {
	query, err := requireText(query, "jobs", "search", "query")
	if err != nil {
		return "", err
	}
	script := s.layout.EmbedScript()
	if err := s.requireWorker(script); err != nil {
		return "", err
	}
	inv, err := s.invocation([]string{script, "search", query}, nil)
	if err != nil {
		return "", err
	}
	out, err := s.runner.RunCaptured(ctx, inv, nil)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// RAGChannels lists the channels the answering worker has indexed.
func (s *Service) RAGChannels(ctx context.Context) ([]grammar.RAGChannel, error) {
	script := s.layout.RAGScript()
	if err := s.requireWorker(script); err != nil {
		return nil, err
	}
	inv, err := s.invocation([]string{script, "channels"}, nil)
	if err != nil {
		return nil, err
	}
	out, err := s.runner.RunCaptured(ctx, inv, nil)
	if err != nil {
		return nil, err
	}
	return grammar.ParseRAGChannels(out.Stdout), nil
}

// AskRAG answers query against one channel. Progress steps are published on
// the ai-progress topic while the answer is captured. Only one question is
// answered at a time.
func (s *Service) AskRAG(ctx context.Context, req RAGRequest) (RAGAnswer, error) {
	query, err := requireText(req.Query, "jobs", "ask", "query")
	if err != nil {
		return RAGAnswer{}, err
	}
	channel, err := requireText(req.Channel, "jobs", "ask", "channel")
	if err != nil {
		return RAGAnswer{}, err
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(s.cfg.RAG.DefaultModel)
	}
	script := s.layout.RAGScript()
	if err := s.requireWorker(script); err != nil {
		return RAGAnswer{}, err
	}

	if !s.ragMu.TryLock() {
		return RAGAnswer{}, services.Wrap(services.ErrJobAlreadyRunning, "jobs", "ask", "a question is already being answered", nil)
	}
	defer s.ragMu.Unlock()

	args := []string{script, query, channel, "--progress"}
	if model != "" {
		args = append(args, "--model", model)
	}
	inv, err := s.invocation(args, nil)
	if err != nil {
		return RAGAnswer{}, err
	}

	stream := &ragStream{service: s, runID: uuid.NewString()}
	ctx = services.WithRunID(services.WithJobTag(ctx, TagRAG), stream.runID)
	logger := logging.WithContext(ctx, s.logger)

	stream.emit(events.StatusStarting, 0, "질문 분석", "🤖 질문을 처리합니다: "+query, nil)
	var parser grammar.RAGParser
	_, err = s.runner.RunCaptured(ctx, inv, func(line string) {
		if step, ok := parser.Feed(line); ok {
			stream.emit(events.StatusRunning, step.Progress, step.Step, step.Message, step.Details)
		}
	})
	if err != nil {
		status := events.StatusFailed
		if errors.Is(err, services.ErrCancelled) {
			status = events.StatusCancelled
		}
		stream.emit(status, stream.last, "", "❌ "+err.Error(), nil)
		logger.Warn("question answering failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "rag_failed"),
			logging.String(logging.FieldErrorHint, "check the rag worker output and API keys in .env"),
		)
		return RAGAnswer{}, err
	}

	answer := strings.TrimSpace(parser.Answer())
	stream.emit(events.StatusOK, 100, "완료", "✅ 답변 생성 완료", nil)
	logger.Info("question answered",
		logging.String("channel", channel),
		logging.String("model", model),
		logging.Bool("final_answer", parser.Answered()),
		logging.Int("answer_bytes", len(answer)),
	)
	return RAGAnswer{Answer: answer, Channel: channel, Model: model, RunID: stream.runID}, nil
}

// ragStream numbers the events of one question.
type ragStream struct {
	service *Service
	runID   string
	seq     uint64
	last    float64
}

func (r *ragStream) emit(status events.Status, progress float64, step, message string, details any) {
	if r.service.pub == nil {
		return
	}
	r.seq++
	r.last = progress
	r.service.pub.Publish(events.Event{
		Topic:       events.TopicAI,
		JobTag:      TagRAG,
		RunID:       r.runID,
		Seq:         r.seq,
		Status:      status,
		Progress:    progress,
		CurrentItem: step,
		LogMessage:  message,
		Details:     details,
		Timestamp:   r.service.now(),
	})
}
