package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkFrom(t *testing.T) {
	r, _ := newTestRepository("repo", nil, false)
	seedBranch(r, "refs/heads/trunk", []int{2, 5, 9}, []int{1, 2, 3})

	tests := []struct {
		name string
		rev  int
		want int
	}{
		{"before first commit", 1, 0},
		{"exactly first", 2, 1},
		{"between commits", 4, 1},
		{"exactly middle", 5, 2},
		{"between middle and last", 7, 2},
		{"exactly last", 9, 3},
		{"after last", 100, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.markFrom("refs/heads/trunk", tt.rev, nil))
		})
	}
}

func TestMarkFromUnknownBranch(t *testing.T) {
	r, _ := newTestRepository("repo", nil, false)

	// Never mentioned at all.
	assert.Equal(t, -1, r.markFrom("refs/heads/nothing", 5, nil))

	// Declared but never populated.
	r.branch("refs/heads/empty").created = 0
	assert.Equal(t, -1, r.markFrom("refs/heads/empty", 5, nil))

	// Created flag set but no commits recorded.
	r.branch("refs/heads/bare").created = 3
	assert.Equal(t, -1, r.markFrom("refs/heads/bare", 5, nil))
}

func TestMarkFromDescAnnotation(t *testing.T) {
	r, _ := newTestRepository("repo", nil, false)
	seedBranch(r, "refs/heads/trunk", []int{2, 5}, []int{1, 2})

	desc := "from branch refs/heads/trunk"
	mark := r.markFrom("refs/heads/trunk", 4, &desc)
	assert.Equal(t, 1, mark)
	assert.Equal(t, "from branch refs/heads/trunk at r4 => r2", desc)

	// An exact hit on the tip annotates without the "=> rM" correction.
	desc = "from branch refs/heads/trunk"
	mark = r.markFrom("refs/heads/trunk", 5, &desc)
	assert.Equal(t, 2, mark)
	assert.Equal(t, "from branch refs/heads/trunk at r5", desc)
}

func TestMarkFromRejectsUnqualifiedRef(t *testing.T) {
	r, _ := newTestRepository("repo", nil, false)
	assert.Panics(t, func() { r.markFrom("trunk", 1, nil) })
}

func TestBranchInvariants(t *testing.T) {
	r, _ := newTestRepository("repo", nil, false)
	seedBranch(r, "refs/heads/a", []int{1, 4, 9}, []int{1, 2, 0})

	br := r.branch("refs/heads/a")
	require.Len(t, br.marks, len(br.commits))
	for i := 1; i < len(br.commits); i++ {
		assert.Greater(t, br.commits[i], br.commits[i-1])
	}

	// A trailing zero mark is a tombstone.
	assert.Equal(t, 0, br.tipMark())
}

func TestBranchStats(t *testing.T) {
	r, _ := newTestRepository("repo", nil, false)
	seedBranch(r, "refs/heads/trunk", []int{2, 5}, []int{1, 2})

	stats := r.BranchStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "refs/heads/master", stats[0].Ref)
	assert.Equal(t, BranchStat{Ref: "refs/heads/trunk", Created: 2, Commits: 2, TipMark: 2}, stats[1])
}
