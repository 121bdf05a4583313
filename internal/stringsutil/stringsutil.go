package stringsutil

import "strings"

// ShortSHALen is the abbreviation length used when printing object ids.
const ShortSHALen = 7

// SplitNonEmpty splits s by sep and returns only non-empty parts.
func SplitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// ShortSHA abbreviates an object id for display. Returns fallback if sha is empty.
func ShortSHA(sha, fallback string) string {
	if sha == "" {
		return fallback
	}
	if len(sha) > ShortSHALen {
		return sha[:ShortSHALen]
	}
	return sha
}

// FirstLine returns s up to its first newline.
func FirstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

// UniqueStrings returns a new slice with duplicates removed, preserving first-seen order.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	return unique
}
