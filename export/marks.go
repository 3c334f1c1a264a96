package export

import "fmt"

// Some versions of git fast-import are buggy for larger values of maxMark.
const maxMark = (1 << 20) - 2

// noteMark is reserved for the rolling commit on refs/notes/commits.
const noteMark = maxMark + 1

// Commit marks count up from 1 and blob marks count down from maxMark, so
// both live in one numeric space without a translation table. The counters
// meeting means the repository ran out of marks mid-transaction, which is a
// programmer error: blob marks are recycled whenever no transaction is open.

func (r *Repository) allocCommitMark() int {
	r.lastCommitMark++
	if r.lastCommitMark+1 >= r.nextFileMark {
		panic(fmt.Sprintf("repository %s: commit mark %d collides with blob mark %d",
			r.name, r.lastCommitMark, r.nextFileMark))
	}
	return r.lastCommitMark
}

func (r *Repository) allocBlobMark() int {
	mark := r.nextFileMark
	r.nextFileMark--
	if mark <= r.lastCommitMark+1 {
		panic(fmt.Sprintf("repository %s: blob mark %d collides with commit mark %d",
			r.name, mark, r.lastCommitMark))
	}
	return mark
}

// forgetTransaction retires one outstanding transaction; when none remain the
// descending blob-mark counter is recycled. Blob marks are never referenced
// after the commit that consumed them flushes, so this is safe.
func (r *Repository) forgetTransaction() {
	r.outstandingTransactions--
	if r.outstandingTransactions == 0 {
		r.nextFileMark = maxMark
	}
}
