// Package mediaserver streams vault media to the UI over loopback HTTP.
//
// Requests take the form GET /video/<percent-encoded path relative to the
// vault>. Paths containing ".." are answered with 404 before any file is
// opened. Byte ranges follow the worker UI's expectations: a missing start
// means 0, a missing end means the last byte, and the end is clamped to the
// file size.
package mediaserver
