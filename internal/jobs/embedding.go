package jobs

import (
	"context"
	"strings"

	"ydhouse/internal/events"
	"ydhouse/internal/grammar"
	"ydhouse/internal/supervisor"
)

// StartEmbedding indexes the named channels, or every channel when none are
// given.
func (s *Service) StartEmbedding(ctx context.Context, channelNames []string) (*supervisor.Job, error) {
	script := s.layout.EmbedScript()
	if err := s.requireWorker(script); err != nil {
		return nil, err
	}

	args := []string{script}
	message := "🧠 전체 채널 임베딩을 시작합니다..."
	var selected []string
	for _, name := range channelNames {
		if name = strings.TrimSpace(name); name != "" {
			selected = append(selected, name)
		}
	}
	if len(selected) > 0 {
		args = append(args, "channels")
		args = append(args, selected...)
		message = "🧠 선택한 채널 임베딩을 시작합니다: " + strings.Join(selected, ", ")
	}

	inv, err := s.invocation(args, nil)
	if err != nil {
		return nil, err
	}
	return s.runner.Spawn(ctx, inv, supervisor.SpawnOptions{
		Topic:        events.TopicEmbedding,
		JobTag:       TagEmbedding,
		Grammar:      grammar.Embedding(),
		StartMessage: message,
		CurrentItem:  "임베딩 준비 중",
	})
}

// CancelEmbedding stops the running embedding job.
func (s *Service) CancelEmbedding(ctx context.Context) error {
	return s.cancel(ctx, TagEmbedding)
}

// StartIntegrityCheck runs the vault integrity checker.
func (s *Service) StartIntegrityCheck(ctx context.Context) (*supervisor.Job, error) {
	script := s.layout.IntegrityScript()
	if err := s.requireWorker(script); err != nil {
		return nil, err
	}
	inv, err := s.invocation([]string{script}, nil)
	if err != nil {
		return nil, err
	}
	return s.runner.Spawn(ctx, inv, supervisor.SpawnOptions{
		Topic:        events.TopicIntegrity,
		JobTag:       TagIntegrity,
		Grammar:      grammar.Integrity(),
		StartMessage: "🔍 무결성 검사를 시작합니다...",
		CurrentItem:  "무결성 검사 준비 중",
	})
}
