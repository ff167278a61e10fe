// Package names decodes percent-encoded channel names taken from channel URLs
// and vault directory components.
package names

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Decode percent-decodes raw and normalizes the result to NFC. Decoding is
// lossy-on-failure: malformed escapes or invalid UTF-8 return raw unchanged.
func Decode(raw string) string {
	if !strings.Contains(raw, "%") {
		return norm.NFC.String(raw)
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil || !utf8.ValidString(decoded) {
		return raw
	}
	return norm.NFC.String(decoded)
}

// ChannelFromURL derives a display name from the text after the last '@', or
// failing that the last '/', of a channel URL.
func ChannelFromURL(rawURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if idx := strings.LastIndex(trimmed, "@"); idx >= 0 {
		return Decode(trimmed[idx+1:])
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return Decode(trimmed[idx+1:])
	}
	return Decode(trimmed)
}
