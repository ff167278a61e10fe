package api

import (
	"context"
	"net/http"
	"net/url"

	"ydhouse/internal/prompts"
)

// PromptResponse carries the active prompt of one channel.
type PromptResponse struct {
	Channel string           `json:"channel"`
	Prompt  prompts.Document `json:"prompt"`
}

// PromptSaveRequest stores a new prompt version.
type PromptSaveRequest struct {
	Channel string           `json:"channel"`
	Prompt  prompts.Document `json:"prompt"`
}

// PromptVersionResponse names the version a save or generation produced.
type PromptVersionResponse struct {
	Channel string `json:"channel"`
	Version int    `json:"version"`
}

// PromptVersionsResponse lists a channel's versions, newest first.
type PromptVersionsResponse struct {
	Channel  string            `json:"channel"`
	Versions []prompts.Version `json:"versions"`
}

// PromptVersionRequest addresses one stored version.
type PromptVersionRequest struct {
	Channel string `json:"channel"`
	Version int    `json:"version"`
}

// PromptGenerateRequest asks the worker for a generated prompt.
type PromptGenerateRequest struct {
	Channel string `json:"channel"`
	Force   bool   `json:"force,omitempty"`
}

// PromptBatchRequest generates prompts for every analyzable channel.
type PromptBatchRequest struct {
	SkipExisting bool `json:"skip_existing,omitempty"`
}

// PromptStatusResponse is the prompt coverage report.
type PromptStatusResponse = prompts.Report

// PromptOutputResponse carries a prompt worker's report.
type PromptOutputResponse struct {
	Output string `json:"output"`
}

// Prompt returns the active prompt of channel; empty when none exists.
func (c *Client) Prompt(ctx context.Context, channel string) (PromptResponse, error) {
	var resp PromptResponse
	err := c.do(ctx, http.MethodGet, "/api/prompts", url.Values{"channel": {channel}}, nil, &resp)
	return resp, err
}

// SavePrompt stores prompt as the next active version of channel.
func (c *Client) SavePrompt(ctx context.Context, channel string, prompt prompts.Document) (int, error) {
	var resp PromptVersionResponse
	err := c.do(ctx, http.MethodPost, "/api/prompts", nil, PromptSaveRequest{Channel: channel, Prompt: prompt}, &resp)
	return resp.Version, err
}

// PromptVersions lists the stored versions of channel.
func (c *Client) PromptVersions(ctx context.Context, channel string) ([]prompts.Version, error) {
	var resp PromptVersionsResponse
	err := c.do(ctx, http.MethodGet, "/api/prompts/versions", url.Values{"channel": {channel}}, nil, &resp)
	return resp.Versions, err
}

// ActivatePrompt points channel at an existing version.
func (c *Client) ActivatePrompt(ctx context.Context, channel string, version int) error {
	return c.do(ctx, http.MethodPost, "/api/prompts/activate", nil, PromptVersionRequest{Channel: channel, Version: version}, nil)
}

// DeletePrompt removes one stored version.
func (c *Client) DeletePrompt(ctx context.Context, channel string, version int) error {
	return c.do(ctx, http.MethodDelete, "/api/prompts/versions", nil, PromptVersionRequest{Channel: channel, Version: version}, nil)
}

// PromptStatus reports prompt coverage over the vault's channels.
func (c *Client) PromptStatus(ctx context.Context) (PromptStatusResponse, error) {
	var resp PromptStatusResponse
	err := c.do(ctx, http.MethodGet, "/api/prompts/status", nil, nil, &resp)
	return resp, err
}

// GeneratePrompt runs the prompt worker for one channel.
func (c *Client) GeneratePrompt(ctx context.Context, channel string, force bool) (int, error) {
	var resp PromptVersionResponse
	err := c.do(ctx, http.MethodPost, "/api/prompts/generate", nil, PromptGenerateRequest{Channel: channel, Force: force}, &resp)
	return resp.Version, err
}

// AnalyzeChannel returns the prompt worker's channel analysis.
func (c *Client) AnalyzeChannel(ctx context.Context, channel string) (string, error) {
	var resp PromptOutputResponse
	err := c.do(ctx, http.MethodGet, "/api/prompts/analysis", url.Values{"channel": {channel}}, nil, &resp)
	return resp.Output, err
}

// BatchGeneratePrompts generates prompts for every analyzable channel.
func (c *Client) BatchGeneratePrompts(ctx context.Context, skipExisting bool) (string, error) {
	var resp PromptOutputResponse
	err := c.do(ctx, http.MethodPost, "/api/prompts/batch", nil, PromptBatchRequest{SkipExisting: skipExisting}, &resp)
	return resp.Output, err
}
