package channels

import (
	"strings"
	"unicode"
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineComment
	lineEnabled
	lineDisabled
)

const disabledPrefix = "# "

type line struct {
	kind lineKind
	raw  string
	url  string
	// dirty lines were changed by the current mutation and render canonically.
	dirty bool
}

func (l line) render() string {
	if !l.dirty {
		return l.raw
	}
	switch l.kind {
	case lineEnabled:
		return l.url
	case lineDisabled:
		return disabledPrefix + l.url
	default:
		return l.raw
	}
}

func parseLines(content string) []line {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	parts := strings.Split(content, "\n")
	out := make([]line, 0, len(parts))
	for _, raw := range parts {
		raw = strings.TrimSuffix(raw, "\r")
		out = append(out, classify(raw))
	}
	return out
}

func classify(raw string) line {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return line{kind: lineBlank, raw: raw}
	case strings.HasPrefix(trimmed, disabledPrefix) && isURL(trimmed[len(disabledPrefix):]):
		return line{kind: lineDisabled, raw: raw, url: trimmed[len(disabledPrefix):]}
	case strings.HasPrefix(trimmed, "#"):
		return line{kind: lineComment, raw: raw}
	default:
		return line{kind: lineEnabled, raw: raw, url: trimmed}
	}
}

// isURL accepts a single http(s) token; other "# ..." lines stay comments.
func isURL(value string) bool {
	if value == "" || strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return false
	}
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func serialize(lines []line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.render())
		b.WriteByte('\n')
	}
	return b.String()
}
