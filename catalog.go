package main

import (
	"sort"
	"strings"

	svn "github.com/svn-tools/svn2git/lib"
)

// fileVersion is one recorded state of a path: its content (a slice of the
// mapped dump) and the properties it carried. A nil-content version with
// deleted set is a tombstone.
type fileVersion struct {
	rev     int
	content []byte
	props   *svn.Properties
	deleted bool
}

// catalog tracks the content history of every file the dump has shown, so
// copy operations — which dumps describe only as "copy path@rev" — can be
// expanded into real file additions. Versions per path are appended in
// revision order; lookups find the latest version at or before a revision.
type catalog struct {
	files map[string][]fileVersion
}

func newCatalog() *catalog {
	return &catalog{files: make(map[string][]fileVersion)}
}

func (c *catalog) put(path string, rev int, content []byte, props *svn.Properties) {
	c.files[path] = append(c.files[path], fileVersion{rev: rev, content: content, props: props})
}

// remove tombstones the exact path and everything beneath it.
func (c *catalog) remove(path string, rev int) {
	for p := range c.files {
		if p == path || strings.HasPrefix(p, path+"/") {
			c.files[p] = append(c.files[p], fileVersion{rev: rev, deleted: true})
		}
	}
}

// get returns the state of path as of rev, or nil if the path did not exist
// (or was deleted) at that revision.
func (c *catalog) get(path string, rev int) *fileVersion {
	versions := c.files[path]
	// First version newer than rev; the one before it is the state at rev.
	idx := sort.Search(len(versions), func(i int) bool { return versions[i].rev > rev })
	if idx == 0 {
		return nil
	}
	v := &versions[idx-1]
	if v.deleted {
		return nil
	}
	return v
}

// copied is one file produced by expanding a directory copy.
type copied struct {
	path    string // destination path
	version *fileVersion
}

// copyDir expands a "copy dir@rev to dest" into the files that existed under
// dir at that revision, with their destination paths.
func (c *catalog) copyDir(from string, rev int, to string) []copied {
	prefix := from + "/"
	var out []copied
	for p := range c.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if v := c.get(p, rev); v != nil {
			out = append(out, copied{path: to + "/" + p[len(prefix):], version: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}
