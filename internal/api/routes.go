package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"ydhouse/internal/channels"
	"ydhouse/internal/grammar"
	"ydhouse/internal/history"
	"ydhouse/internal/vault"
)

// Videos lists every media record.
func (c *Client) Videos(ctx context.Context) ([]vault.Record, error) {
	var resp VideosResponse
	err := c.do(ctx, http.MethodGet, "/api/videos", nil, nil, &resp)
	return resp.Videos, err
}

// GroupedVideos lists records grouped by channel.
func (c *Client) GroupedVideos(ctx context.Context) ([]vault.ChannelGroup, error) {
	var resp GroupedVideosResponse
	err := c.do(ctx, http.MethodGet, "/api/videos/grouped", nil, nil, &resp)
	return resp.Groups, err
}

// Channels lists channel entries.
func (c *Client) Channels(ctx context.Context) ([]channels.Entry, error) {
	var resp ChannelsResponse
	err := c.do(ctx, http.MethodGet, "/api/channels", nil, nil, &resp)
	return resp.Channels, err
}

// AddChannel appends a channel URL.
func (c *Client) AddChannel(ctx context.Context, channelURL string) error {
	return c.do(ctx, http.MethodPost, "/api/channels", nil, ChannelRequest{URL: channelURL}, nil)
}

// RemoveChannel deletes a channel URL.
func (c *Client) RemoveChannel(ctx context.Context, channelURL string) error {
	return c.do(ctx, http.MethodDelete, "/api/channels", nil, ChannelRequest{URL: channelURL}, nil)
}

// ToggleChannel flips a channel's enabled state.
func (c *Client) ToggleChannel(ctx context.Context, channelURL string) (ToggleResponse, error) {
	var resp ToggleResponse
	err := c.do(ctx, http.MethodPost, "/api/channels/toggle", nil, ChannelRequest{URL: channelURL}, &resp)
	return resp, err
}

// StartDownload launches the batch downloader.
func (c *Client) StartDownload(ctx context.Context, req DownloadRequest) (JobResponse, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/download", nil, req, &resp)
	return resp, err
}

// StartIngest downloads one channel URL.
func (c *Client) StartIngest(ctx context.Context, channelURL string) (JobResponse, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/download/ingest", nil, ChannelRequest{URL: channelURL}, &resp)
	return resp, err
}

// CancelDownload stops the running download.
func (c *Client) CancelDownload(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/download/cancel", nil, nil, nil)
}

// EmbeddableChannels lists channel directories in the vault.
func (c *Client) EmbeddableChannels(ctx context.Context) ([]string, error) {
	var resp EmbeddableChannelsResponse
	err := c.do(ctx, http.MethodGet, "/api/embedding/channels", nil, nil, &resp)
	return resp.Channels, err
}

// StartEmbedding indexes the named channels, or all when empty.
func (c *Client) StartEmbedding(ctx context.Context, names []string) (JobResponse, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/embedding", nil, EmbedRequest{Channels: names}, &resp)
	return resp, err
}

// CancelEmbedding stops the running embedding job.
func (c *Client) CancelEmbedding(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/embedding/cancel", nil, nil, nil)
}

// Search runs a vector search.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	var resp SearchResponse
	err := c.do(ctx, http.MethodPost, "/api/search", nil, SearchRequest{Query: query}, &resp)
	return resp.Output, err
}

// AskRAG asks a question against one channel.
func (c *Client) AskRAG(ctx context.Context, req RAGRequest) (RAGResponse, error) {
	var resp RAGResponse
	err := c.do(ctx, http.MethodPost, "/api/rag", nil, req, &resp)
	return resp, err
}

// RAGChannels lists channels indexed for question answering.
func (c *Client) RAGChannels(ctx context.Context) ([]grammar.RAGChannel, error) {
	var resp RAGChannelsResponse
	err := c.do(ctx, http.MethodGet, "/api/rag/channels", nil, nil, &resp)
	return resp.Channels, err
}

// StartIntegrityCheck runs the vault integrity checker.
func (c *Client) StartIntegrityCheck(ctx context.Context) (JobResponse, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/integrity", nil, nil, &resp)
	return resp, err
}

// Status returns the dashboard summary.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp)
	return resp, err
}

// History lists recent job runs.
func (c *Client) History(ctx context.Context, limit int) ([]history.Run, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp HistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/history", query, nil, &resp)
	return resp.Runs, err
}

// StartMedia starts the range media server.
func (c *Client) StartMedia(ctx context.Context) (MediaStatus, error) {
	var resp MediaStatus
	err := c.do(ctx, http.MethodPost, "/api/media/start", nil, nil, &resp)
	return resp, err
}

// StopMedia stops the range media server.
func (c *Client) StopMedia(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/media/stop", nil, nil, nil)
}

// MediaStatus reports the range media server state.
func (c *Client) MediaStatus(ctx context.Context) (MediaStatus, error) {
	var resp MediaStatus
	err := c.do(ctx, http.MethodGet, "/api/media", nil, nil, &resp)
	return resp, err
}

// MediaURL returns the playable URL for a root-relative video path.
func (c *Client) MediaURL(ctx context.Context, videoPath string) (string, error) {
	var resp MediaURLResponse
	err := c.do(ctx, http.MethodGet, "/api/media/url", url.Values{"path": {videoPath}}, nil, &resp)
	return resp.URL, err
}

// Open hands a video to the desktop's default player.
func (c *Client) Open(ctx context.Context, videoPath string) error {
	return c.do(ctx, http.MethodPost, "/api/open", nil, OpenRequest{Path: videoPath}, nil)
}

// Convert starts a transcode.
func (c *Client) Convert(ctx context.Context, req ConvertRequest) (JobResponse, error) {
	var resp JobResponse
	err := c.do(ctx, http.MethodPost, "/api/convert", nil, req, &resp)
	return resp, err
}

// CancelConversion stops the running conversion.
func (c *Client) CancelConversion(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/convert/cancel", nil, nil, nil)
}

// ConversionStatus reports whether a conversion is running.
func (c *Client) ConversionStatus(ctx context.Context) (bool, error) {
	var resp ConversionStatus
	err := c.do(ctx, http.MethodGet, "/api/convert", nil, nil, &resp)
	return resp.Running, err
}

// Wait blocks until the job tagged tag finishes.
func (c *Client) Wait(ctx context.Context, tag string) (JobResult, error) {
	var resp JobResult
	err := c.do(ctx, http.MethodGet, "/api/jobs/wait", url.Values{"tag": {tag}}, nil, &resp)
	return resp, err
}

// DaemonStatus reports daemon runtime information.
func (c *Client) DaemonStatus(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/daemon", nil, nil, &resp)
	return resp, err
}

// StopDaemon asks the daemon to shut down.
func (c *Client) StopDaemon(ctx context.Context) (StopResponse, error) {
	var resp StopResponse
	err := c.do(ctx, http.MethodPost, "/api/daemon/stop", nil, nil, &resp)
	return resp, err
}
