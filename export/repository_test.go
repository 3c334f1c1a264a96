package export

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBranchFromExisting(t *testing.T) {
	r, buf := newTestRepository("R", nil, false)
	seedBranch(r, "refs/heads/master", []int{1}, []int{1})

	require.NoError(t, r.CreateBranch("refs/heads/topic", 2, "refs/heads/master", 1))

	want := "reset refs/heads/topic\nfrom :1\n\n" +
		"progress SVN r2 branch refs/heads/topic = :1 # from branch refs/heads/master at r1\n\n"
	assert.Equal(t, want, r.resetBranches["refs/heads/topic"])
	assert.Empty(t, buf.String(), "nothing is emitted until the pending resets flush")

	require.NoError(t, r.Commit())
	assert.Equal(t, want, buf.String())
	assert.Empty(t, r.resetBranches)

	// The new branch inherits the source position.
	br := r.branch("refs/heads/topic")
	assert.Equal(t, 2, br.created)
	assert.Equal(t, 1, br.tipMark())
}

func TestCreateBranchFromNothingFails(t *testing.T) {
	r, _ := newTestRepository("R", nil, false)
	err := r.CreateBranch("refs/heads/topic", 2, "refs/heads/ghost", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't exist")
}

func TestCreateBranchFromEmptySource(t *testing.T) {
	r, buf := newTestRepository("R", nil, false)
	seedBranch(r, "refs/heads/master", []int{5}, []int{1})

	// master exists but had no commit by r2: an empty branch against the
	// symbolic ref, not a mark.
	require.NoError(t, r.CreateBranch("refs/heads/early", 2, "refs/heads/master", 2))
	require.NoError(t, r.Commit())

	out := buf.String()
	assert.Contains(t, out, "reset refs/heads/early\nfrom refs/heads/master\n\n")
	assert.Contains(t, out, "= :0 # from branch refs/heads/master, deleted/unknown")
}

func TestCreateThenDeleteCollapses(t *testing.T) {
	r, buf := newTestRepository("R", nil, false)
	seedBranch(r, "refs/heads/master", []int{1}, []int{1})

	require.NoError(t, r.CreateBranch("refs/heads/topic", 5, "refs/heads/master", 1))
	require.NoError(t, r.DeleteBranch("refs/heads/topic", 5))

	require.NoError(t, r.Commit())
	assert.Empty(t, buf.String(), "a create followed by a delete in one revision is a no-op")
	assert.Empty(t, r.resetBranches)
	assert.Empty(t, r.deletedBranches)
}

func TestDeleteThenRecreateKeepsTombstone(t *testing.T) {
	r, buf := newTestRepository("R", nil, false)
	seedBranch(r, "refs/heads/master", []int{1, 4}, []int{1, 2})
	seedBranch(r, "refs/heads/topic", []int{2}, []int{1})

	require.NoError(t, r.DeleteBranch("refs/heads/topic", 5))
	require.NoError(t, r.CreateBranch("refs/heads/topic", 5, "refs/heads/master", 4))
	require.NoError(t, r.Commit())

	out := buf.String()
	del := strings.Index(out, "from "+strings.Repeat("0", 40))
	reset := strings.Index(out, "reset refs/heads/topic\nfrom :2\n")
	require.NotEqual(t, -1, del)
	require.NotEqual(t, -1, reset)
	assert.Less(t, del, reset, "the tombstone flushes before the re-creation")
}

func TestDeleteMasterIsNoop(t *testing.T) {
	r, buf := newTestRepository("R", nil, false)
	require.NoError(t, r.DeleteBranch("refs/heads/master", 3))
	require.NoError(t, r.Commit())
	assert.Empty(t, buf.String())
}

func TestDeletedHeadIsBackedUpAsTag(t *testing.T) {
	r, buf := newTestRepository("R", nil, false)
	seedBranch(r, "refs/heads/topic", []int{2}, []int{1})

	require.NoError(t, r.DeleteBranch("refs/heads/topic", 7))
	require.NoError(t, r.Commit())

	out := buf.String()
	assert.Contains(t, out, "reset refs/tags/backups/topic@7\nfrom refs/heads/topic\n\n")
	assert.Contains(t, out, "reset refs/heads/topic\nfrom "+strings.Repeat("0", 40)+"\n\n")
	assert.Contains(t, out, "progress SVN r7 branch refs/heads/topic = :0 # delete\n\n")
}

func TestResetBackupUsesBackupNamespace(t *testing.T) {
	r, buf := newTestRepository("R", nil, false)
	seedBranch(r, "refs/heads/master", []int{1}, []int{1})
	seedBranch(r, "refs/tags/v1", []int{3}, []int{2})

	// Re-creating an existing tag branch at a later revision backs the old
	// position up under refs/backups/.
	require.NoError(t, r.CreateBranch("refs/tags/v1", 8, "refs/heads/master", 1))
	require.NoError(t, r.Commit())

	assert.Contains(t, buf.String(), "reset refs/backups/r8/tags/v1\nfrom refs/tags/v1\n\n")
}

func TestCommitFlushesDeletionsBeforeResets(t *testing.T) {
	r, buf := newTestRepository("R", nil, false)
	seedBranch(r, "refs/heads/master", []int{1}, []int{1})
	seedBranch(r, "refs/heads/old", []int{2}, []int{1})

	require.NoError(t, r.CreateBranch("refs/heads/new", 9, "refs/heads/master", 1))
	require.NoError(t, r.DeleteBranch("refs/heads/old", 9))
	require.NoError(t, r.Commit())

	out := buf.String()
	del := strings.Index(out, "branch refs/heads/old")
	reset := strings.Index(out, "branch refs/heads/new")
	require.NotEqual(t, -1, del)
	require.NotEqual(t, -1, reset)
	assert.Less(t, del, reset)
}

func TestReloadBranches(t *testing.T) {
	r, buf := newTestRepository("R", &Options{AddMetadataNotes: true}, false)
	seedBranch(r, "refs/heads/master", []int{1, 3}, []int{1, 2})
	seedBranch(r, "refs/heads/empty", []int{4}, []int{0})

	require.NoError(t, r.reloadBranches())
	out := flushed(t, r, buf)

	assert.Contains(t, out, "reset refs/heads/master\nfrom :2\n\nprogress Branch refs/heads/master reloaded\n")
	assert.NotContains(t, out, "refs/heads/empty", "tombstoned branches are not reloaded")
	assert.Contains(t, out, fmt.Sprintf("reset refs/notes/commits\nfrom :%d\n", maxMark+1))
}

func TestCheckpointEveryCommitInterval(t *testing.T) {
	r, buf := newTestRepository("R", &Options{CommitInterval: 2}, false)

	for i := 1; i <= 4; i++ {
		txn, err := r.NewTransaction("refs/heads/master", "trunk", i)
		require.NoError(t, err)
		txn.Close()
	}
	out := flushed(t, r, buf)
	assert.Equal(t, 2, strings.Count(out, "checkpoint\n"))
}

func TestCloseWithOutstandingTransactionsPanics(t *testing.T) {
	r, _ := newTestRepository("R", &Options{DryRun: true}, false)
	_, err := r.NewTransaction("refs/heads/master", "trunk", 1)
	require.NoError(t, err)
	assert.Panics(t, func() { r.Close() })
}

func TestProcessCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := &processCache{lru: arraylist.New()}

	repos := make([]*Repository, 0, maxSimultaneousProcesses+1)
	handles := make([]*fastImport, 0, maxSimultaneousProcesses+1)
	bufs := make([]*bytes.Buffer, 0, maxSimultaneousProcesses+1)
	for i := 0; i < maxSimultaneousProcesses+1; i++ {
		r, buf := newTestRepository(fmt.Sprintf("repo%d", i), nil, false)
		repos = append(repos, r)
		handles = append(handles, r.fastImport)
		bufs = append(bufs, buf)
		require.NoError(t, cache.touch(r))
	}

	assert.Equal(t, maxSimultaneousProcesses, cache.lru.Size())
	assert.False(t, handles[0].running, "the least recently used child is closed")
	assert.Contains(t, bufs[0].String(), "checkpoint\n")
	assert.Nil(t, repos[0].fastImport)
	assert.True(t, handles[1].running)

	// Touching an evicted repository re-admits it.
	require.NoError(t, cache.touch(repos[0]))
	assert.False(t, handles[1].running, "repo1 becomes the eviction victim")
}

func TestProcessCacheTouchRefreshesRecency(t *testing.T) {
	cache := &processCache{lru: arraylist.New()}

	var first *Repository
	for i := 0; i < maxSimultaneousProcesses; i++ {
		r, _ := newTestRepository(fmt.Sprintf("repo%d", i), nil, false)
		if i == 0 {
			first = r
		}
		require.NoError(t, cache.touch(r))
	}

	// Refresh repo0, then overflow: repo1 gets evicted, repo0 survives.
	require.NoError(t, cache.touch(first))
	extra, _ := newTestRepository("extra", nil, false)
	require.NoError(t, cache.touch(extra))

	assert.NotNil(t, first.fastImport)
	assert.True(t, first.fastImport.running)
}

func TestSubmoduleChangeNotifiesParent(t *testing.T) {
	parent, _ := newTestRepository("parent", nil, false)
	child, _ := newTestRepository("child", nil, false)
	child.submoduleInRepo = parent
	child.submodulePath = "libs/child"

	// The default hook is a no-op; the wiring just must not blow up.
	seedBranch(child, "refs/heads/master", []int{1}, []int{1})
	require.NoError(t, child.DeleteBranch("refs/heads/other", 2))
}

func TestCloseIsIdempotent(t *testing.T) {
	r, _ := newTestRepository("R", nil, false)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}
