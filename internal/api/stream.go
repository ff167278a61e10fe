package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// LogQuery selects a page of daemon log events.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	JobTag    string
}

// Logs fetches daemon log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if strings.TrimSpace(q.Component) != "" {
		values.Set("component", q.Component)
	}
	if strings.TrimSpace(q.JobTag) != "" {
		values.Set("job_tag", q.JobTag)
	}
	var resp LogStreamResponse
	err := c.do(ctx, http.MethodGet, "/api/logs", values, nil, &resp)
	return resp, err
}

// EventHandler receives streamed events. Returning an error stops the stream.
type EventHandler func(Event) error

// Events streams progress events for topic (all topics when empty) until ctx
// ends, the daemon closes the stream or handle returns an error. With replay
// set, the last terminal event of the topic is delivered first.
func (c *Client) Events(ctx context.Context, topic string, replay bool, handle EventHandler) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	values := url.Values{}
	if topic != "" {
		values.Set("topic", topic)
	}
	if replay {
		values.Set("replay", "1")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/events", values), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(http.MethodGet, "/api/events", resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var evt Event
			if err := json.Unmarshal([]byte(data.String()), &evt); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			data.Reset()
			if err := handle(evt); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}
