package main

import (
	"encoding/json"
	"testing"

	"ydhouse/internal/testsupport"
	"ydhouse/internal/vault"
)

func TestVideosCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.AddVideo(t, env.layout, "chanA", "20240101_first", "title: \"First\"\nchannel: \"chanA\"")
	testsupport.AddVideo(t, env.layout, "chanB", "20240202_second", "title: \"Second\"")

	out, _, err := runCLI(t, []string{"videos"}, env.configPath)
	if err != nil {
		t.Fatalf("videos: %v", err)
	}
	requireContains(t, out, "First")
	requireContains(t, out, "Second")

	out, _, err = runCLI(t, []string{"videos", "--json", "--channel", "chanB"}, env.configPath)
	if err != nil {
		t.Fatalf("videos --json: %v", err)
	}
	var records []vault.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode videos: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Second" {
		t.Fatalf("unexpected filtered videos %+v", records)
	}

	out, _, err = runCLI(t, []string{"videos", "--grouped"}, env.configPath)
	if err != nil {
		t.Fatalf("videos --grouped: %v", err)
	}
	requireContains(t, out, "chanA")
	requireContains(t, out, "chanB")
}

func TestVideosCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"videos"}, env.configPath)
	if err != nil {
		t.Fatalf("videos: %v", err)
	}
	requireContains(t, out, "No videos found")
}
