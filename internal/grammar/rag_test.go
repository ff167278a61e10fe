package grammar_test

import (
	"testing"

	"ydhouse/internal/grammar"
)

func TestRAGParserCollectsAnswer(t *testing.T) {
	var p grammar.RAGParser
	lines := []string{
		"loading model",
		`PROGRESS:{"step":"검색","message":"관련 문서 검색 중","progress":30}`,
		"DEBUG_INFO: ignored",
		"PROGRESS:not json",
		"FINAL_ANSWER:",
		"첫 줄",
		"PROGRESS: part of the answer",
		"",
		"마지막 줄",
	}
	var steps []grammar.RAGStep
	for _, line := range lines {
		if step, ok := p.Feed(line); ok {
			steps = append(steps, step)
		}
	}
	if len(steps) != 2 {
		t.Fatalf("steps = %+v, want 2", steps)
	}
	if steps[0].Step != "검색" || steps[0].Progress != 30 {
		t.Fatalf("first step = %+v", steps[0])
	}
	if steps[1].Progress != 100 {
		t.Fatalf("final step = %+v", steps[1])
	}
	want := "첫 줄\nPROGRESS: part of the answer\n\n마지막 줄"
	if got := p.Answer(); got != want {
		t.Fatalf("answer = %q, want %q", got, want)
	}
}

func TestRAGParserPlainOutput(t *testing.T) {
	var p grammar.RAGParser
	p.Feed("plain answer")
	p.Feed("WARN_X: skipped")
	if p.Answered() {
		t.Fatal("no final marker was fed")
	}
	if got := p.Answer(); got != "plain answer" {
		t.Fatalf("answer = %q", got)
	}
}

func TestParseRAGChannels(t *testing.T) {
	output := "📺 사용 가능한 채널:\n  1. 리베라루츠대학 (42개 영상)\n  2. 채널 두번째 (3개 영상) 🆕\nnoise\n"
	got := grammar.ParseRAGChannels(output)
	if len(got) != 2 {
		t.Fatalf("channels = %+v", got)
	}
	if got[0].Name != "리베라루츠대학" || got[0].VideoCount != 42 {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Name != "채널 두번째" || got[1].VideoCount != 3 {
		t.Fatalf("second = %+v", got[1])
	}
}
