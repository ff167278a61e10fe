package vault

import (
	"bufio"
	"strconv"
	"strings"

	"ydhouse/internal/services"
)

const frontmatterDelimiter = "---"

// Metadata holds the recognized caption frontmatter keys.
type Metadata struct {
	Title           string
	Channel         string
	UploadDate      string
	Duration        string
	DurationSeconds *int64
	ViewCount       *int64
	Topics          []string
	VideoID         string
	SourceURL       string
	Excerpt         string
}

// ParseMarkdownMetadata extracts frontmatter fields from a captions.md body.
// Content without a leading "---" line yields empty metadata and no error; an
// unterminated block yields empty metadata and an ErrMalformed error that
// callers may treat as non-fatal.
func ParseMarkdownMetadata(content string) (Metadata, error) {
	var meta Metadata
	block, ok, err := frontmatterBlock(content)
	if err != nil || !ok {
		return meta, err
	}

	seen := make(map[string]bool)
	for _, line := range block {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if seen[key] {
			continue
		}
		seen[key] = true
		value = strings.TrimSpace(value)

		switch key {
		case "title":
			meta.Title = unquote(value)
		case "channel":
			meta.Channel = unquote(value)
		case "upload":
			meta.UploadDate = unquote(value)
		case "duration":
			meta.Duration = unquote(value)
		case "duration_seconds":
			meta.DurationSeconds = parseCount(unquote(value))
		case "view_count":
			meta.ViewCount = parseCount(unquote(value))
		case "video_id":
			meta.VideoID = unquote(value)
		case "source_url":
			meta.SourceURL = unquote(value)
		case "excerpt":
			meta.Excerpt = unquote(value)
		case "topic":
			meta.Topics = parseInlineArray(value)
		}
	}
	return meta, nil
}

func frontmatterBlock(content string) ([]string, bool, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() || strings.TrimRight(scanner.Text(), "\r") != frontmatterDelimiter {
		return nil, false, nil
	}
	var block []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == frontmatterDelimiter {
			return block, true, nil
		}
		block = append(block, line)
	}
	return nil, false, services.Wrap(services.ErrMalformed, "vault", "frontmatter", "missing closing delimiter", scanner.Err())
}

func unquote(value string) string {
	value = strings.Trim(value, `"`)
	return strings.Trim(value, `'`)
}

func parseCount(value string) *int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func parseInlineArray(value string) []string {
	if !strings.HasPrefix(value, "[") || !strings.HasSuffix(value, "]") || len(value) < 2 {
		return nil
	}
	var items []string
	for _, part := range strings.Split(value[1:len(value)-1], ",") {
		if item := unquote(strings.TrimSpace(part)); item != "" {
			items = append(items, item)
		}
	}
	return items
}
