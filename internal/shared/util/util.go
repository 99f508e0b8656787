package util

import (
	"path"
	"sort"
	"strings"
)

// NormalizePatternPath cleans and normalizes paths for matcher/prefix usage.
func NormalizePatternPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// HasPathPrefix returns true when path equals prefix or is contained within prefix.
func HasPathPrefix(path, prefix string) bool {
	path = NormalizePatternPath(path)
	prefix = NormalizePatternPath(prefix)
	if path == "" || prefix == "" {
		return path == prefix
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// RelativeSegments splits path relative to root into normalized segments.
// Returns nil when path does not live under root, and an empty slice when
// path is root itself.
func RelativeSegments(p, root string) []string {
	p = NormalizePatternPath(p)
	root = NormalizePatternPath(root)
	if !HasPathPrefix(p, root) {
		return nil
	}
	rel := strings.TrimPrefix(p, root)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return []string{}
	}
	return strings.Split(rel, "/")
}

// NormalizeRoot cleans a project-root path while preserving absoluteness.
func NormalizeRoot(root string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(root, "\\", "/"))
	if trimmed == "" {
		return ""
	}
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return clean
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SortedSet returns the set's members in sorted order.
func SortedSet(set map[string]bool) []string {
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	sort.Strings(members)
	return members
}
