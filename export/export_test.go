package export

import (
	"bufio"
	"bytes"
	"os"
	"testing"
)

// newTestRepository builds a repository whose fast-import stream is captured
// in a buffer instead of a child process. No disk access happens.
func newTestRepository(name string, opts *Options, incremental bool) (*Repository, *bytes.Buffer) {
	if opts == nil {
		opts = &Options{}
	}
	r := &Repository{
		name:            name,
		opts:            opts,
		incremental:     incremental,
		nextFileMark:    maxMark,
		branches:        make(map[string]*Branch),
		annotatedTags:   make(map[string]*annotatedTag),
		resetBranches:   make(map[string]string),
		deletedBranches: make(map[string]string),
	}
	r.branch("refs/heads/master").created = 1

	buf := &bytes.Buffer{}
	r.fastImport = &fastImport{
		repoName: name,
		out:      bufio.NewWriter(buf),
		running:  true,
	}
	r.processHasStarted = true
	return r, buf
}

// seedBranch records existing history on a ref without emitting anything.
func seedBranch(r *Repository, ref string, commits, marks []int) {
	br := r.branch(ref)
	if br.created == 0 {
		br.created = commits[0]
	}
	br.commits = append(br.commits, commits...)
	br.marks = append(br.marks, marks...)
	if r.lastCommitMark < marks[len(marks)-1] {
		r.lastCommitMark = marks[len(marks)-1]
	}
}

func flushed(t *testing.T, r *Repository, buf *bytes.Buffer) string {
	t.Helper()
	if err := r.fastImport.flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return buf.String()
}

// inTempDir runs the test from a fresh temporary working directory, since
// log and marks files use paths relative to the conversion root.
func inTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}
