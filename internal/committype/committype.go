// Package committype holds the Conventional Commit type catalogue.
package committype

import (
	"regexp"
	"strings"
)

// Default is the type assigned to a freshly staged file.
const Default = "feat"

// known lists the selectable commit types in display order.
var known = []string{
	"feat",
	"fix",
	"chore",
	"refactor",
	"docs",
	"style",
	"test",
	"perf",
	"build",
	"ci",
	"revert",
}

// precedence decides the headline type of a mixed batch. Anything not
// listed collapses to chore.
var precedence = []string{"feat", "fix"}

// Pre-compiled pattern for a "type(scope): description" subject line.
var subjectRegex = regexp.MustCompile(`^([a-zA-Z]+)(?:\(([^)]*)\))?:\s*(.*)$`)

// All returns the supported commit types in display order.
func All() []string {
	out := make([]string, len(known))
	copy(out, known)
	return out
}

// IsValid reports whether t is a known commit type (case-insensitive).
func IsValid(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	for _, k := range known {
		if k == t {
			return true
		}
	}
	return false
}

// Normalize lower-cases and trims t. Unknown types are returned unchanged
// apart from the normalisation; callers decide whether to reject them.
func Normalize(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// Primary returns feat if any type is feat, else fix if any is fix, else chore.
func Primary(types []string) string {
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		seen[t] = struct{}{}
	}
	for _, p := range precedence {
		if _, ok := seen[p]; ok {
			return p
		}
	}
	return "chore"
}

// ParseSubject splits "type(scope): description". ok is false when the line
// has no type prefix.
func ParseSubject(line string) (commitType, scope, description string, ok bool) {
	m := subjectRegex.FindStringSubmatch(strings.TrimSpace(line))
	if len(m) < 4 {
		return "", "", "", false
	}
	return strings.ToLower(m[1]), m[2], m[3], true
}
