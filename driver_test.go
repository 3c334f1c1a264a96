package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/svn-tools/svn2git/export"
	svn "github.com/svn-tools/svn2git/lib"
)

func props(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "K %d\n%s\nV %d\n%s\n", len(pairs[i]), pairs[i], len(pairs[i+1]), pairs[i+1])
	}
	b.WriteString("PROPS-END\n")
	return b.String()
}

func revision(number int, log string) string {
	p := props(
		svn.PropAuthor, "alice",
		svn.PropDate, fmt.Sprintf("2023-01-01T00:00:%02d.000000Z", number),
		svn.PropLog, log,
	)
	return fmt.Sprintf("Revision-number: %d\nProp-content-length: %d\nContent-length: %d\n\n%s\n",
		number, len(p), len(p), p)
}

func dirAdd(path string) string {
	return fmt.Sprintf("Node-path: %s\nNode-kind: dir\nNode-action: add\n\n\n", path)
}

func dirCopy(path, from string, fromRev int) string {
	return fmt.Sprintf("Node-path: %s\nNode-kind: dir\nNode-action: add\n"+
		"Node-copyfrom-rev: %d\nNode-copyfrom-path: %s\n\n\n", path, fromRev, from)
}

func fileAdd(path, content string) string {
	return fmt.Sprintf("Node-path: %s\nNode-kind: file\nNode-action: add\n"+
		"Text-content-length: %d\nContent-length: %d\n\n%s\n\n",
		path, len(content), len(content), content)
}

func nodeDelete(path string) string {
	return fmt.Sprintf("Node-path: %s\nNode-action: delete\n\n", path)
}

func testDumpBytes() string {
	r0p := props(svn.PropDate, "2023-01-01T00:00:00.000000Z")
	return "SVN-fs-dump-format-version: 2\n\n" +
		"UUID: 12345678-1234-1234-1234-123456789012\n\n" +
		fmt.Sprintf("Revision-number: 0\nProp-content-length: %d\nContent-length: %d\n\n%s\n", len(r0p), len(r0p), r0p) +
		revision(1, "initial import\n") +
		dirAdd("trunk") +
		fileAdd("trunk/README", "hello") +
		revision(2, "fix things\n") +
		fileAdd("trunk/main.c", "int main() {}\n") +
		revision(3, "branch off\n") +
		dirCopy("branches/b1", "trunk", 2) +
		revision(4, "tag it\n") +
		dirCopy("tags/v1.0", "branches/b1", 3) +
		revision(5, "drop the branch\n") +
		nodeDelete("branches/b1")
}

func inTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func testConverter(t *testing.T) *Converter {
	t.Helper()
	inTempDir(t)

	require.NoError(t, os.WriteFile("svn.dump", []byte(testDumpBytes()), 0o644))
	rules, err := NewRuleset(writeRules(t, testRules))
	require.NoError(t, err)

	converter, err := NewConverter(rules, &export.Options{DryRun: true},
		map[string]string{"alice": "Alice <alice@example.com>"}, false, zap.NewNop().Sugar())
	require.NoError(t, err)
	return converter
}

func TestConvertDryRunEndToEnd(t *testing.T) {
	converter := testConverter(t)
	defer converter.Close()

	require.NoError(t, converter.Run([]string{"svn.dump"}, 0, 0))

	stats := converter.repositories["project"].BranchStats()
	byRef := make(map[string]export.BranchStat, len(stats))
	for _, s := range stats {
		byRef[s.Ref] = s
	}

	master := byRef["refs/heads/master"]
	assert.Equal(t, 2, master.Commits, "r1 and r2 commit on master")
	assert.NotZero(t, master.TipMark)

	b1 := byRef["refs/heads/b1"]
	assert.Equal(t, 2, b1.Commits, "created at r3, tombstoned at r5")
	assert.Zero(t, b1.TipMark, "the branch ends deleted")

	tag := byRef["refs/tags/v1.0"]
	assert.Equal(t, 4, tag.Created)
	assert.NotZero(t, tag.TipMark)
}

func TestConvertStopsAtMaxRev(t *testing.T) {
	converter := testConverter(t)
	defer converter.Close()

	require.NoError(t, converter.Run([]string{"svn.dump"}, 0, 2))

	stats := converter.repositories["project"].BranchStats()
	for _, s := range stats {
		if s.Ref == "refs/heads/b1" {
			assert.Zero(t, s.Commits, "r3 was never converted")
		}
	}
}

func TestConvertExpandsDirCopies(t *testing.T) {
	converter := testConverter(t)
	defer converter.Close()
	require.NoError(t, converter.Run([]string{"svn.dump"}, 0, 0))

	// The catalog saw the branch copy: branches/b1 inherited trunk's files.
	v := converter.files.get("branches/b1/README", 3)
	require.NotNil(t, v)
	assert.Equal(t, "hello", string(v.content))

	v = converter.files.get("tags/v1.0/main.c", 4)
	require.NotNil(t, v)
	assert.Equal(t, "int main() {}\n", string(v.content))

	// After the delete at r5 the files are gone.
	assert.Nil(t, converter.files.get("branches/b1/README", 5))
}

func TestConvertReport(t *testing.T) {
	converter := testConverter(t)
	defer converter.Close()
	require.NoError(t, converter.Run([]string{"svn.dump"}, 0, 0))

	require.NoError(t, writeReport("report.yml", converter))
	data, err := os.ReadFile("report.yml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "refs/heads/master")
	assert.Contains(t, string(data), "project:")
}

func TestCatalog(t *testing.T) {
	c := newCatalog()
	c.put("trunk/a", 1, []byte("one"), nil)
	c.put("trunk/a", 3, []byte("three"), nil)
	c.put("trunk/b", 2, []byte("bee"), nil)

	require.NotNil(t, c.get("trunk/a", 1))
	assert.Equal(t, "one", string(c.get("trunk/a", 2).content))
	assert.Equal(t, "three", string(c.get("trunk/a", 3).content))
	assert.Nil(t, c.get("trunk/a", 0))
	assert.Nil(t, c.get("missing", 9))

	copies := c.copyDir("trunk", 2, "branches/x")
	require.Len(t, copies, 2)
	assert.Equal(t, "branches/x/a", copies[0].path)
	assert.Equal(t, "one", string(copies[0].version.content))

	c.remove("trunk", 4)
	assert.Nil(t, c.get("trunk/a", 4))
	assert.Equal(t, "three", string(c.get("trunk/a", 3).content), "history survives a tombstone")
	assert.Empty(t, c.copyDir("trunk", 4, "y"))
}

func TestIdentityFallsBackToUUID(t *testing.T) {
	converter := testConverter(t)
	defer converter.Close()
	require.NoError(t, converter.Run([]string{"svn.dump"}, 0, 1))

	assert.Equal(t, "Alice <alice@example.com>", converter.identity("alice"))
	assert.Equal(t, "bob <bob@12345678-1234-1234-1234-123456789012>", converter.identity("bob"))
	assert.Equal(t, "nobody <nobody@localhost>", converter.identity(""))
}

func TestRunRejectsMissingDump(t *testing.T) {
	converter := testConverter(t)
	defer converter.Close()
	err := converter.Run([]string{filepath.Join("nope", "missing.dump")}, 0, 0)
	require.Error(t, err)
}
