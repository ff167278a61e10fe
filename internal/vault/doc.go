// Package vault scans the on-disk media tree and parses caption metadata.
//
// A record is any directory beneath vault/10_videos that holds a video.mp4.
// Caption frontmatter is read with a deliberately small line-oriented parser
// (ParseMarkdownMetadata); it understands "key: value" pairs and inline
// "[a, b]" arrays and nothing else. Swapping in a full YAML decoder only
// requires changing that entry point.
package vault
