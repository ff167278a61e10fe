// Package prompts stores versioned per-channel answering prompts.
//
// Each channel owns a directory under vault/90_indices/prompts named by
// Sanitize. Versions are immutable prompt_v{N}.json documents; active.txt
// holds the number of the version the answering worker loads.
package prompts
