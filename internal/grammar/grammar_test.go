package grammar_test

import (
	"math"
	"reflect"
	"testing"

	"ydhouse/internal/grammar"
)

func out(text string) grammar.Line { return grammar.Line{Stream: grammar.Stdout, Text: text} }

func errLine(text string) grammar.Line { return grammar.Line{Stream: grammar.Stderr, Text: text} }

func TestDownloadGrammarCountsTotals(t *testing.T) {
	g := grammar.Download()
	var counters grammar.Counters
	transcript := []grammar.Line{
		out("📺 채널 처리 시작"),
		out("총 3개 영상을 발견했습니다"),
		out("[download]  50.0% of 12.34MiB at 1.23MiB/s ETA 00:10"),
		out("다운로드 완료: 2개 성공"),
	}

	var progresses []float64
	for _, line := range transcript {
		update, ok := g.Apply(&counters, line)
		if !ok {
			t.Fatalf("line %q was ignored", line.Text)
		}
		if update.Log != line.Text {
			t.Fatalf("log = %q, want verbatim %q", update.Log, line.Text)
		}
		progresses = append(progresses, update.Progress)
	}

	if counters.TotalSeen != 3 || counters.TotalCompleted != 2 {
		t.Fatalf("totals = (%d, %d), want (3, 2)", counters.TotalSeen, counters.TotalCompleted)
	}
	want := (2.0/3 + 0.5/3) * 100
	found := false
	for _, p := range progresses {
		if math.Abs(p-want) < 0.1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no progress near %.1f in %v", want, progresses)
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	transcript := []grammar.Line{
		out("총 4개 영상을 발견했습니다"),
		out("[youtube] abc123: First video"),
		out("[download]   10.0% of 1MiB"),
		errLine("WARNING: slow"),
		out("[download] 100% of 1MiB"),
		out("[download] x.mp4 has already been downloaded"),
		errLine("ERROR: unable to download"),
		out(""),
		out("다운로드 완료: 3개 성공"),
	}
	run := func() []grammar.Update {
		g := grammar.Download()
		var counters grammar.Counters
		var updates []grammar.Update
		for _, line := range transcript {
			if update, ok := g.Apply(&counters, line); ok {
				updates = append(updates, update)
			}
		}
		return updates
	}
	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("updates differ between runs:\n%v\n%v", first, second)
	}
	if len(first) != len(transcript)-1 {
		t.Fatalf("expected empty line to be skipped, got %d updates", len(first))
	}
}

func TestEmptyLinesAreIgnored(t *testing.T) {
	g := grammar.Download()
	var counters grammar.Counters
	if _, ok := g.Apply(&counters, out("   ")); ok {
		t.Fatal("expected whitespace line to be ignored")
	}
}

func TestCurrentVideoResetsItemProgress(t *testing.T) {
	g := grammar.Download()
	var counters grammar.Counters
	g.Apply(&counters, out("[download]  75.0% of 3MiB"))
	update, _ := g.Apply(&counters, out("[youtube] dQw4w9WgXcQ: 두 번째 영상"))
	if update.CurrentItem != "두 번째 영상" {
		t.Fatalf("current item = %q", update.CurrentItem)
	}
	if counters.ItemProgress != 0 {
		t.Fatalf("item progress = %v, want reset to 0", counters.ItemProgress)
	}

	update, _ = g.Apply(&counters, out("[youtube] dQw4w9WgXcQ: Downloading webpage"))
	if update.CurrentItem != "두 번째 영상" {
		t.Fatalf("yt-dlp status line replaced label: %q", update.CurrentItem)
	}
}

func TestAlreadyDownloadedReportsComplete(t *testing.T) {
	g := grammar.Download()
	var counters grammar.Counters
	update, _ := g.Apply(&counters, out("[download] vault/x/video.mp4 has already been downloaded"))
	if update.Progress != 100 || update.CurrentItem != grammar.SkippedLabel {
		t.Fatalf("update = %+v", update)
	}
}

func TestStderrErrorsWarnWithPrefix(t *testing.T) {
	g := grammar.Download()
	var counters grammar.Counters

	update, _ := g.Apply(&counters, errLine("ERROR: [youtube] abc: Video unavailable"))
	if !update.Warning {
		t.Fatal("expected warning for stderr error")
	}
	if update.Log != grammar.WarningPrefix+"ERROR: [youtube] abc: Video unavailable" {
		t.Fatalf("log = %q", update.Log)
	}

	update, _ = g.Apply(&counters, out("Failed on stdout is informational"))
	if update.Warning {
		t.Fatal("stdout line must not warn")
	}
}

func TestTranscodeProgressIsCapped(t *testing.T) {
	cases := []struct {
		line string
		want float64
	}{
		{"frame=  500 fps=30 q=28.0 size=1024kB time=00:00:16.66 bitrate=", 1.6},
		{"frame=  500 fps=30 q=28.0 size=1024kB bitrate=", 5},
		{"size=2048kB time=01:00:00.00 bitrate=", grammar.TranscodeCap},
		{"frame=99999", grammar.TranscodeCap},
	}
	for _, tc := range cases {
		g := grammar.Convert()
		var counters grammar.Counters
		update, ok := g.Apply(&counters, errLine(tc.line))
		if !ok {
			t.Fatalf("%q ignored", tc.line)
		}
		if math.Abs(update.Progress-tc.want) > 0.001 {
			t.Fatalf("%q: progress = %v, want %v", tc.line, update.Progress, tc.want)
		}
		if update.Progress > grammar.TranscodeCap {
			t.Fatalf("%q: progress %v above cap", tc.line, update.Progress)
		}
	}
}

func TestComposeWithoutTotal(t *testing.T) {
	if got := grammar.Compose(0, 0, 42); got != 42 {
		t.Fatalf("Compose = %v, want 42", got)
	}
	if got := grammar.Compose(2, 5, 50); got != 100 {
		t.Fatalf("Compose = %v, want capped 100", got)
	}
}

func TestEmbeddingAndIntegrityLabels(t *testing.T) {
	var counters grammar.Counters
	update, _ := grammar.Embedding().Apply(&counters, out("✅ 처리됨: 첫 번째 강의"))
	if update.CurrentItem != "첫 번째 강의" {
		t.Fatalf("embedding label = %q", update.CurrentItem)
	}
	grammar.Embedding().Apply(&counters, out("🎉 완료: 7개 새로 임베딩, 2개 스킵됨"))
	if counters.TotalCompleted != 7 {
		t.Fatalf("completed = %d", counters.TotalCompleted)
	}

	counters = grammar.Counters{}
	update, _ = grammar.Integrity().Apply(&counters, out("  📺 채널: 리베라루츠대학"))
	if update.CurrentItem != "리베라루츠대학" {
		t.Fatalf("integrity label = %q", update.CurrentItem)
	}
}
