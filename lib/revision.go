package svn

import (
	"fmt"
	"io"
	"time"
)

// Revision is one revision record: its number, its properties (author, date,
// log and any custom properties) and the node changes it carries.
type Revision struct {
	Number     int
	Properties *Properties
	Nodes      []*Node

	StartOffset int
	EndOffset   int
}

// NewRevision parses the revision at the cursor, including all of its nodes.
// Returns io.EOF when the reader is exhausted.
func NewRevision(r *DumpReader) (rev *Revision, err error) {
	if r.AtEOF() {
		return nil, io.EOF
	}

	rev = &Revision{StartOffset: r.Offset()}

	if rev.Number, err = r.IntAfter(RevisionNumberHeader, true); err != nil {
		return nil, err
	}

	propLength, err := r.IntAfter(PropContentLengthHeader, true)
	if err != nil {
		return nil, fmt.Errorf("r%d: %w", rev.Number, err)
	}
	if _, err = r.IntAfter(ContentLengthHeader, true); err != nil {
		return nil, fmt.Errorf("r%d: %w", rev.Number, err)
	}
	if !r.Newline() {
		return nil, fmt.Errorf("r%d: %w after revision headers", rev.Number, ErrMissingNewline)
	}

	if rev.Properties, err = NewProperties(r, propLength); err != nil {
		return nil, fmt.Errorf("r%d: properties: %w", rev.Number, err)
	}
	r.SkipNewlines()

	// Nodes follow until the next revision header or end of dump.
	for r.HasPrefix(NodePathHeader + ": ") {
		node, err := NewNode(r)
		if err != nil {
			return nil, fmt.Errorf("r%d: %w", rev.Number, err)
		}
		if node == nil {
			break
		}
		rev.Nodes = append(rev.Nodes, node)
	}

	rev.EndOffset = r.Offset()
	return rev, nil
}

// Author returns the svn:author property, or the empty string for authorless
// revisions (r0, or commits by anonymous users).
func (rev *Revision) Author() string {
	author, _ := rev.Properties.Get(PropAuthor)
	return author
}

// Log returns the svn:log property.
func (rev *Revision) Log() string {
	log, _ := rev.Properties.Get(PropLog)
	return log
}

// Time parses the svn:date property. SVN writes UTC timestamps with
// microsecond precision.
func (rev *Revision) Time() (time.Time, error) {
	date, ok := rev.Properties.Get(PropDate)
	if !ok {
		return time.Time{}, fmt.Errorf("r%d: %w: %s", rev.Number, ErrMissingField, PropDate)
	}
	t, err := time.Parse("2006-01-02T15:04:05.000000Z", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("r%d: invalid %s: %w", rev.Number, PropDate, err)
	}
	return t, nil
}
