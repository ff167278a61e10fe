package prompts_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ydhouse/internal/prompts"
	"ydhouse/internal/services"
)

func newStore(t *testing.T) *prompts.Store {
	t.Helper()
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return prompts.NewStore(filepath.Join(t.TempDir(), "prompts")).WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
}

func TestSanitize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"리베라 루츠 대학", "리베라_루츠_대학"},
		{"  @chan/name?! ", "chan_name"},
		{"a__b--c", "a_b--c"},
		{"!!!", "unknown_channel"},
		{strings.Repeat("가", 60), strings.Repeat("가", 50)},
	}
	for _, tc := range cases {
		if got := prompts.Sanitize(tc.in); got != tc.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestActiveWithoutPromptIsEmpty(t *testing.T) {
	store := newStore(t)
	doc, err := store.Active("없는 채널")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("expected empty document, got %v", doc)
	}
}

func TestSaveCreatesVersionsAndActivates(t *testing.T) {
	store := newStore(t)
	v1, err := store.Save("채널 A", prompts.Document{"persona": "첫 번째", "auto_generated": true})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	v2, err := store.Save("채널 A", prompts.Document{"persona": "두 번째"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if v1 != 1 || v2 != 2 {
		t.Fatalf("versions = %d, %d", v1, v2)
	}

	dir := filepath.Join(store.Dir(), "채널_A")
	active, err := os.ReadFile(filepath.Join(dir, "active.txt"))
	if err != nil || string(active) != "2" {
		t.Fatalf("active.txt = %q err = %v", active, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "prompt_v1.json")); err != nil {
		t.Fatalf("v1 missing: %v", err)
	}

	doc, err := store.Active("채널 A")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if doc["persona"] != "두 번째" || doc["channel_name"] != "채널 A" || doc["version"] != float64(2) {
		t.Fatalf("unexpected active document %v", doc)
	}
	if doc["created_at"] == "" {
		t.Fatal("expected created_at stamp")
	}

	versions, err := store.Versions("채널 A")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 2 || !versions[0].Active || versions[1].Active {
		t.Fatalf("unexpected versions %+v", versions)
	}
	if !versions[1].AutoGenerated || versions[1].Persona != "첫 번째" {
		t.Fatalf("unexpected v1 summary %+v", versions[1])
	}
}

func TestSaveRequiresChannel(t *testing.T) {
	store := newStore(t)
	if _, err := store.Save("  ", prompts.Document{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetActiveAndDelete(t *testing.T) {
	store := newStore(t)
	for i := 0; i < 3; i++ {
		if _, err := store.Save("c", prompts.Document{"persona": "p"}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := store.SetActive("c", 9); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.SetActive("c", 1); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if doc, _ := store.Active("c"); doc["version"] != float64(1) {
		t.Fatalf("active version = %v", doc["version"])
	}

	if err := store.Delete("c", 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if doc, _ := store.Active("c"); doc["version"] != float64(3) {
		t.Fatalf("expected highest remaining version active, got %v", doc["version"])
	}
	if err := store.Delete("c", 1); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	for _, v := range []int{2, 3} {
		if err := store.Delete("c", v); err != nil {
			t.Fatalf("Delete(%d): %v", v, err)
		}
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "c", "active.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected active marker removed, got %v", err)
	}
}

func TestStatusReportsCoverage(t *testing.T) {
	store := newStore(t)
	if _, err := store.Save("alpha", prompts.Document{"persona": "a", "expertise_keywords": []any{"k1", "k2", "k3", "k4"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save("beta 채널", prompts.Document{"persona": "b"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(store.Dir(), "empty"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	report, err := store.Status([]string{"alpha", "beta 채널", "gamma"})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if report.Available != 3 || len(report.WithPrompts) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.WithPrompts[0].Name != "beta 채널" {
		t.Fatalf("expected most recent first, got %+v", report.WithPrompts)
	}
	if got := report.WithPrompts[1].Expertise; len(got) != 3 {
		t.Fatalf("expected expertise capped at 3, got %v", got)
	}
	if len(report.Missing) != 1 || report.Missing[0] != "gamma" {
		t.Fatalf("unexpected missing %v", report.Missing)
	}
	if report.CoverageRate < 0.66 || report.CoverageRate > 0.67 {
		t.Fatalf("coverage = %v", report.CoverageRate)
	}
}
