package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkAllocation(t *testing.T) {
	r, _ := newTestRepository("repo", nil, false)

	assert.Equal(t, 1, r.allocCommitMark())
	assert.Equal(t, 2, r.allocCommitMark())
	assert.Equal(t, maxMark, r.allocBlobMark())
	assert.Equal(t, maxMark-1, r.allocBlobMark())

	// The two counters never hand out the same value.
	assert.Less(t, r.lastCommitMark+1, r.nextFileMark)
}

func TestMarkCollisionPanics(t *testing.T) {
	r, _ := newTestRepository("repo", nil, false)
	r.lastCommitMark = 500
	r.nextFileMark = 502

	assert.Panics(t, func() { r.allocCommitMark() })

	r.lastCommitMark = 500
	r.nextFileMark = 501
	assert.Panics(t, func() { r.allocBlobMark() })
}

func TestBlobMarksRecycleWhenIdle(t *testing.T) {
	r, _ := newTestRepository("repo", &Options{DryRun: true}, false)

	txn, err := r.NewTransaction("refs/heads/master", "trunk", 1)
	require.NoError(t, err)
	if _, err := txn.AddFile("a", 0o644, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := txn.AddFile("b", 0o644, 1); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, maxMark-2, r.nextFileMark)

	txn.Close()
	assert.Equal(t, 0, r.outstandingTransactions)
	assert.Equal(t, maxMark, r.nextFileMark)
}

func TestNoteMarkStaysReserved(t *testing.T) {
	// The note mark sits one above the blob range; allocation can never
	// reach it.
	assert.Equal(t, maxMark+1, noteMark)
	r, _ := newTestRepository("repo", nil, false)
	assert.Equal(t, maxMark, r.allocBlobMark())
}
