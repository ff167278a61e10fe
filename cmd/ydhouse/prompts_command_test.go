package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"ydhouse/internal/prompts"
	"ydhouse/internal/testsupport"
)

func TestPromptsSaveShowVersions(t *testing.T) {
	env := setupCLITestEnv(t)
	promptFile := filepath.Join(env.baseDir, "prompt.json")
	testsupport.WriteText(t, promptFile, `{"persona": "투자 멘토", "expertise_keywords": ["주식", "ETF"]}`)

	out, _, err := runCLI(t, []string{"prompts", "save", "채널A", "--file", promptFile}, env.configPath)
	if err != nil {
		t.Fatalf("prompts save: %v", err)
	}
	requireContains(t, out, "Saved 채널A prompt v1")
	if _, _, err := runCLI(t, []string{"prompts", "save", "채널A", "-f", promptFile}, env.configPath); err != nil {
		t.Fatalf("prompts save again: %v", err)
	}

	out, _, err = runCLI(t, []string{"prompts", "show", "채널A"}, env.configPath)
	if err != nil {
		t.Fatalf("prompts show: %v", err)
	}
	var doc prompts.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode show output %q: %v", out, err)
	}
	if doc["persona"] != "투자 멘토" || doc["version"] != float64(2) {
		t.Fatalf("unexpected prompt %v", doc)
	}

	if _, _, err := runCLI(t, []string{"prompts", "activate", "채널A", "v1"}, env.configPath); err != nil {
		t.Fatalf("prompts activate: %v", err)
	}
	out, _, err = runCLI(t, []string{"prompts", "versions", "채널A", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("prompts versions: %v", err)
	}
	var versions []prompts.Version
	if err := json.Unmarshal([]byte(out), &versions); err != nil {
		t.Fatalf("decode versions %q: %v", out, err)
	}
	if len(versions) != 2 || !versions[1].Active || versions[1].Version != 1 {
		t.Fatalf("unexpected versions %+v", versions)
	}

	if _, _, err := runCLI(t, []string{"prompts", "delete", "채널A", "2"}, env.configPath); err != nil {
		t.Fatalf("prompts delete: %v", err)
	}
	out, _, err = runCLI(t, []string{"prompts", "versions", "채널A"}, env.configPath)
	if err != nil {
		t.Fatalf("prompts versions table: %v", err)
	}
	requireContains(t, out, "v1")
	requireContains(t, out, "투자 멘토")
}

func TestPromptsStatusAndWorkers(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.AddVideo(t, env.layout, "alpha", "v1", "")
	testsupport.AddVideo(t, env.layout, "beta", "v1", "")

	out, _, err := runCLI(t, []string{"prompts", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("prompts status: %v", err)
	}
	requireContains(t, out, "Analyzable channels: 2")
	requireContains(t, out, "Missing prompts: alpha, beta")

	out, _, err = runCLI(t, []string{"prompts", "analyze", "alpha"}, env.configPath)
	if err != nil {
		t.Fatalf("prompts analyze: %v", err)
	}
	requireContains(t, out, "auto_prompt.py analyze alpha")

	out, _, err = runCLI(t, []string{"prompts", "batch", "--skip-existing"}, env.configPath)
	if err != nil {
		t.Fatalf("prompts batch: %v", err)
	}
	requireContains(t, out, "auto_prompt.py batch --skip-existing")
}

func TestPromptsRejectBadInput(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := filepath.Join(env.baseDir, "bad.json")
	testsupport.WriteText(t, bad, "not json")

	if _, _, err := runCLI(t, []string{"prompts", "save", "c", "--file", bad}, env.configPath); err == nil {
		t.Fatal("expected invalid JSON to fail")
	}
	if _, _, err := runCLI(t, []string{"prompts", "activate", "c", "zero"}, env.configPath); err == nil {
		t.Fatal("expected invalid version to fail")
	}
	if _, _, err := runCLI(t, []string{"prompts", "generate", "c"}, env.configPath); err == nil {
		t.Fatal("expected generate without any prompt to fail")
	}
}
