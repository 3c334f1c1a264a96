package svn

import (
	"fmt"
)

// Repos is the loaded model of a Subversion repository, possibly assembled
// from several consecutive dump files.
type Repos struct {
	DumpFormat int    // Dump format version - must be consistent across files.
	UUID       string // UUID of the repository - must be consistent across files.

	Revisions []*Revision // All revisions, indexed position == revision number.
	DumpFiles []*DumpFile // The dump files backing them.
}

func NewRepos() *Repos {
	return &Repos{}
}

// GetHead returns the highest loaded revision number, or -1 when empty.
func (r *Repos) GetHead() int {
	return len(r.Revisions) - 1
}

// Close releases every dump file backing the model.
func (r *Repos) Close() error {
	for _, df := range r.DumpFiles {
		if err := df.Close(); err != nil {
			return err
		}
	}
	r.DumpFiles = nil
	r.Revisions = nil
	return nil
}

// AddDumpFile loads all revisions of a dump into the model. Dumps must be
// presented in revision order; the first revision of each dump has to
// continue exactly where the previous dump stopped, and every dump must
// describe the same repository.
func (r *Repos) AddDumpFile(dump *DumpFile) error {
	if err := dump.LoadRevisions(); err != nil {
		return err
	}

	if len(r.DumpFiles) == 0 {
		r.DumpFormat = dump.DumpHeader.Format
		r.UUID = dump.DumpHeader.ReposUUID
	} else {
		if dump.DumpHeader.Format != r.DumpFormat {
			return fmt.Errorf("%s: dump format %d does not match %d",
				dump.Path, dump.DumpHeader.Format, r.DumpFormat)
		}
		if dump.DumpHeader.ReposUUID != r.UUID {
			return fmt.Errorf("%s: repository UUID %s does not match %s",
				dump.Path, dump.DumpHeader.ReposUUID, r.UUID)
		}
	}

	for _, rev := range dump.Revisions {
		if rev.Number != len(r.Revisions) {
			return fmt.Errorf("%s: %w: expected r%d, got r%d",
				dump.Path, ErrOutOfSequence, len(r.Revisions), rev.Number)
		}
		r.Revisions = append(r.Revisions, rev)
	}

	r.DumpFiles = append(r.DumpFiles, dump)
	return nil
}
