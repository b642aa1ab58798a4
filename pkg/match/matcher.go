// Package match provides glob-based scoping for sync operations using
// doublestar semantics over slash-separated keys.
package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides which keys a sync run covers.
//
// A Matcher is configured with include and exclude patterns:
//   - Include patterns: key must match at least one (empty means all)
//   - Exclude patterns: key must not match any
//
// Hidden files (any path segment starting with '.') are excluded unless
// IncludeHidden is set; a site tree full of editor droppings and .DS_Store
// files should not end up in the bucket by default.
//
// The Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes      []string
	excludes      []string
	includeHidden bool
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns that keys must match (at least one).
	// Empty means every key is included.
	Includes []string

	// Excludes are glob patterns that keys must not match (any).
	Excludes []string

	// IncludeHidden controls whether hidden files are matched.
	// Default: false (hidden files are excluded).
	IncludeHidden bool
}

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New creates a new Matcher from the given configuration.
//
// Returns an error if any pattern is invalid (cannot be compiled).
func New(cfg Config) (*Matcher, error) {
	for _, raw := range append(append([]string{}, cfg.Includes...), cfg.Excludes...) {
		if !doublestar.ValidatePattern(raw) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
	}

	return &Matcher{
		includes:      append([]string{}, cfg.Includes...),
		excludes:      append([]string{}, cfg.Excludes...),
		includeHidden: cfg.IncludeHidden,
	}, nil
}

// Match returns true if the key is in scope.
//
// A key matches if:
//  1. It is not hidden (unless IncludeHidden is true)
//  2. It matches at least one include pattern (or includes are empty)
//  3. It does not match any exclude pattern
func (m *Matcher) Match(key string) bool {
	if !m.includeHidden && IsHidden(key) {
		return false
	}

	if len(m.includes) > 0 {
		matched := false
		for _, inc := range m.includes {
			if doublestar.MatchUnvalidated(inc, key) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, exc := range m.excludes {
		if doublestar.MatchUnvalidated(exc, key) {
			return false
		}
	}

	return true
}

// ExcludePatterns returns the raw exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return append([]string{}, m.excludes...)
}

// IsHidden reports whether any path segment of the key starts with a dot.
func IsHidden(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}
