// Package timeout defines centralized timeout constants for AI operations.
package timeout

import "time"

const (
	// CompletionTimeout is the default bound on a single completion call.
	CompletionTimeout = 60 * time.Second

	// JobTimeout bounds one orchestrator job: context assembly, completion and persistence.
	JobTimeout = 2 * time.Minute

	// PopulateTimeout is the hard ceiling on one auto-populate run.
	PopulateTimeout = 30 * time.Minute

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)

// Truncate shortens s to MaxTruncateLength runes for log output.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTruncateLength {
		return s
	}
	return string(runes[:MaxTruncateLength]) + "..."
}
