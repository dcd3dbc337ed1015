package scbox

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// IsIgnored reports whether basename matches any of patterns. Matching is
// against the basename only, never the full path. Malformed patterns never
// match (doublestar.Match only errors on malformed patterns, which are
// treated as "doesn't match" rather than surfaced as an error — the ignore
// matcher has no error return in its contract).
func IsIgnored(basename string, patterns []string) bool {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, basename)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// isDotOrDotDot reports whether name is "." or "..". The reconciler filters
// these itself rather than routing them through the ignore matcher.
func isDotOrDotDot(name string) bool {
	return name == "." || name == ".."
}

// sanitizeBasename strips any directory components a remote listing might
// (maliciously or accidentally) include in a basename, so a crafted "../x"
// entry can never escape the destination directory it's joined against.
func sanitizeBasename(name string) string {
	return filepath.Base(name)
}
