package export

import (
	"fmt"
	"sort"
	"strings"
)

// Branch is the per-ref history record: the revision the ref was first
// established at, parallel revision/mark sequences for every commit, reset or
// tombstone recorded on it, and the Git note currently attached to its tip.
//
// commits is strictly ascending and always the same length as marks. A mark
// of 0 is a deletion tombstone; the record survives so the ref can be reborn.
type Branch struct {
	created int
	commits []int
	marks   []int
	note    string
}

// tipMark is the mark of the last recorded commit, or 0 for an empty or
// tombstoned branch.
func (b *Branch) tipMark() int {
	if len(b.marks) == 0 {
		return 0
	}
	return b.marks[len(b.marks)-1]
}

// annotate extends a non-empty description with the revision looked up and,
// when they differ, the commit the lookup actually landed on.
func annotate(desc *string, revnum, closest int) {
	if desc == nil || *desc == "" {
		return
	}
	*desc += fmt.Sprintf(" at r%d", revnum)
	if closest != revnum {
		*desc += fmt.Sprintf(" => r%d", closest)
	}
}

func mustBeQualified(ref string) {
	if !strings.HasPrefix(ref, "refs/") {
		panic(fmt.Sprintf("unqualified ref name: %q", ref))
	}
}

// branch returns the record for ref, creating an empty one if the ref has
// never been seen (created == 0 marks it as declared but unpopulated).
func (r *Repository) branch(ref string) *Branch {
	br, ok := r.branches[ref]
	if !ok {
		br = &Branch{}
		r.branches[ref] = br
	}
	return br
}

// markFrom resolves the commit mark of the latest commit on branchFrom at or
// before revnum. Returns -1 if the branch does not exist or was never
// populated, and 0 if it exists but had no commit by that revision. When a
// commit is found and desc is non-nil and non-empty, desc is annotated with
// the revision looked up and, if different, the commit actually found; desc
// is left unchanged when the result is 0 or -1.
func (r *Repository) markFrom(branchFrom string, revnum int, desc *string) int {
	mustBeQualified(branchFrom)

	br := r.branch(branchFrom)
	if br.created == 0 {
		return -1
	}
	if len(br.commits) == 0 {
		return -1
	}
	if revnum == br.commits[len(br.commits)-1] {
		annotate(desc, revnum, revnum)
		return br.tipMark()
	}

	// First entry greater than revnum; everything before it is <= revnum.
	idx := sort.SearchInts(br.commits, revnum+1)
	if idx == 0 {
		return 0
	}

	annotate(desc, revnum, br.commits[idx-1])
	return br.marks[idx-1]
}

// BranchStat is a read-only summary of one branch record, for reporting.
type BranchStat struct {
	Ref     string `yaml:"ref"`
	Created int    `yaml:"created"`
	Commits int    `yaml:"commits"`
	TipMark int    `yaml:"tip-mark"`
}

// BranchStats returns a summary of every branch the repository knows about,
// sorted by ref name.
func (r *Repository) BranchStats() []BranchStat {
	stats := make([]BranchStat, 0, len(r.branches))
	for ref, br := range r.branches {
		stats = append(stats, BranchStat{
			Ref:     ref,
			Created: br.created,
			Commits: len(br.commits),
			TipMark: br.tipMark(),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Ref < stats[j].Ref })
	return stats
}
