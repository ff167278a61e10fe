package mediaserver

import (
	"strconv"
	"strings"
)

// byteRange is an inclusive slice of a file.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

// parseRange interprets a "bytes=START-END" header for a file of size bytes.
// ok is false when the header is absent or not a single byte range, in which
// case the whole file is served. satisfiable is false when the range starts
// past the end of the file or after its own end.
func parseRange(header string, size int64) (r byteRange, ok bool, satisfiable bool) {
	full := byteRange{start: 0, end: size - 1}
	value, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found || strings.Contains(value, ",") {
		return full, false, true
	}
	startStr, endStr, found := strings.Cut(value, "-")
	if !found {
		return full, false, true
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		start = 0
	}
	end := size - 1
	if endStr != "" {
		if parsed, err := strconv.ParseInt(endStr, 10, 64); err == nil && parsed >= 0 {
			end = min(parsed, size-1)
		}
	}
	r = byteRange{start: start, end: end}
	if size == 0 || start >= size || start > end {
		return r, true, false
	}
	return r, true, true
}

// covers reports whether r spans the whole file.
func (r byteRange) covers(size int64) bool {
	return r.start == 0 && r.end == size-1
}
