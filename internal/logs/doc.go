// Package logs reads the daemon's log file directly. The CLI uses it when
// the daemon API is down, or when asked with `ydhouse logs --file`, so the
// output of a crashed daemon stays inspectable.
//
// Last reads the final lines with bounded memory. Follow polls for appended
// lines and restarts from the top when the file shrinks under it.
package logs
