package jobs

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"ydhouse/internal/logging"
	"ydhouse/internal/prompts"
	"ydhouse/internal/services"
	"ydhouse/internal/vault"
)

// generatedVersionPattern matches the worker's "v3 생성 완료" line.
var generatedVersionPattern = regexp.MustCompile(`v(\d+) 생성 완료`)

// GeneratePrompt asks the prompt worker to derive a new prompt version for
// channel from its indexed transcripts and returns the active version.
// Without force the worker keeps an existing generated prompt.
func (s *Service) GeneratePrompt(ctx context.Context, channel string, force bool) (int, error) {
	channel, err := requireText(channel, "jobs", "generate prompt", "channel")
	if err != nil {
		return 0, err
	}
	args := []string{"generate", channel}
	if force {
		args = append(args, "--force")
	}
	out, err := s.runPromptWorker(ctx, "generate prompt", args)
	if err != nil {
		return 0, err
	}
	if m := generatedVersionPattern.FindStringSubmatch(out); m != nil {
		if version, convErr := strconv.Atoi(m[1]); convErr == nil {
			return version, nil
		}
	}
	versions, err := s.prompts.Versions(channel)
	if err != nil {
		return 0, err
	}
	for _, v := range versions {
		if v.Active {
			return v.Version, nil
		}
	}
	return 0, services.Wrap(services.ErrNotFound, "jobs", "generate prompt", "worker produced no prompt for "+channel, nil)
}

// AnalyzeChannel returns the prompt worker's analysis report for channel.
func (s *Service) AnalyzeChannel(ctx context.Context, channel string) (string, error) {
	channel, err := requireText(channel, "jobs", "analyze channel", "channel")
	if err != nil {
		return "", err
	}
	return s.runPromptWorker(ctx, "analyze channel", []string{"analyze", channel})
}

// BatchGeneratePrompts generates prompts for every analyzable channel and
// returns the worker's summary.
func (s *Service) BatchGeneratePrompts(ctx context.Context, skipExisting bool) (string, error) {
	args := []string{"batch"}
	if skipExisting {
		args = append(args, "--skip-existing")
	}
	return s.runPromptWorker(ctx, "batch prompts", args)
}

// PromptStatus reports prompt coverage over the vault's channels.
func (s *Service) PromptStatus() (prompts.Report, error) {
	available, err := vault.EmbeddableChannels(s.layout)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return prompts.Report{}, err
	}
	return s.prompts.Status(available)
}

// runPromptWorker runs one auto_prompt.py subcommand. Prompt runs are
// serialized because the worker rewrites the prompt directories.
func (s *Service) runPromptWorker(ctx context.Context, op string, args []string) (string, error) {
	script := s.layout.PromptScript()
	if err := s.requireWorker(script); err != nil {
		return "", err
	}
	if !s.promptMu.TryLock() {
		return "", services.Wrap(services.ErrJobAlreadyRunning, "jobs", op, "a prompt worker is already running", nil)
	}
	defer s.promptMu.Unlock()

	inv, err := s.invocation(append([]string{script}, args...), nil)
	if err != nil {
		return "", err
	}
	out, err := s.runner.RunCaptured(ctx, inv, nil)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "prompt worker failed", "prompt_worker_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check auto_prompt.py output and the chroma index"),
		)
		return "", err
	}
	return out.Stdout, nil
}
