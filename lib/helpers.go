package svn

// Small helper functions.

import (
	"strings"
)

// IndexFunc returns the first index i satisfying f(s[i]), or -1 if none do.
func IndexFunc[E any](s []E, f func(E) bool) int {
	for i, v := range s {
		if f(v) {
			return i
		}
	}
	return -1
}

// Index returns the first index of the slice satisfying s[i] == e, or -1 if
// none do.
func Index[E comparable](s []E, e E) int {
	return IndexFunc(s, func(x E) bool { return x == e })
}

// MatchPathPrefix returns true if path begins with the same path *components*
// as prefix: "foo/bar" matches prefix "foo" and "foo/bar" but not "foo/ba".
// Always false for an empty or "/" prefix.
func MatchPathPrefix(path, prefix string) bool {
	path = strings.Trim(path, "/")
	prefix = strings.Trim(prefix, "/")

	if prefix == "" {
		return false
	}
	if len(path) < len(prefix) {
		return false
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	return path[len(prefix)] == '/'
}
