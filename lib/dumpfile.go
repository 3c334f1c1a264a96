package svn

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// DumpFile is one svnadmin dump mapped into memory. Revisions reference the
// mapped bytes directly, so they are only valid until Close.
type DumpFile struct {
	Path       string
	DumpHeader *DumpHeader
	Revisions  []*Revision

	Data mmap.MMap

	reader *DumpReader
}

// checkValidSource tests that a mapped file looks like an actual svn dump.
// Also checks that the dump was written with "svnadmin dump -F": redirecting
// console output on windows inserts CRLF line endings, which silently breaks
// every byte count in the file.
func checkValidSource(source []byte) error {
	if !bytes.HasPrefix(source, []byte(VersionStringHeader+":")) {
		return fmt.Errorf("%w: missing dump format header", ErrNotADump)
	}

	head := source
	if len(head) > len(VersionStringHeader)*2 {
		head = head[:len(VersionStringHeader)*2]
	}
	lf := bytes.IndexByte(head, '\n')
	if lf < len(VersionStringHeader) {
		return fmt.Errorf("%w: unrecognized dump file format", ErrNotADump)
	}

	if cr := bytes.IndexByte(source[:lf], '\r'); cr != -1 {
		return fmt.Errorf("%w: windows line-ending translations detected, use `svnadmin dump -F filename` rather than redirecting output", ErrNotADump)
	}

	return nil
}

// NewDumpFile maps the file at path into memory and parses its preamble.
func NewDumpFile(path string) (dump *DumpFile, err error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}

	if err := checkValidSource(data); err != nil {
		data.Unmap()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dump = &DumpFile{Path: path, Data: data}
	dump.reader = NewDumpReader(data)
	if dump.DumpHeader, err = NewDumpHeader(dump.reader); err != nil {
		dump.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dump.reader.SkipNewlines()

	return dump, nil
}

// NewDumpFileFromBytes parses an in-memory dump. Used by tests and by
// callers that already hold the bytes.
func NewDumpFileFromBytes(name string, data []byte) (dump *DumpFile, err error) {
	if err := checkValidSource(data); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	dump = &DumpFile{Path: name}
	dump.reader = NewDumpReader(data)
	if dump.DumpHeader, err = NewDumpHeader(dump.reader); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	dump.reader.SkipNewlines()
	return dump, nil
}

// Close releases resources held by the dump. This invalidates any slices
// referencing the data, since it releases the mmap.
func (df *DumpFile) Close() error {
	df.reader.Close()
	df.Revisions = nil
	if df.Data != nil {
		data := df.Data
		df.Data = nil
		return data.Unmap()
	}
	return nil
}

// GetHead returns the highest revision number loaded from the dump, or -1
// when nothing was loaded.
func (df *DumpFile) GetHead() int {
	if len(df.Revisions) == 0 {
		return -1
	}
	return df.Revisions[len(df.Revisions)-1].Number
}

// NextRevision reads the next revision, or io.EOF at the end of the dump.
func (df *DumpFile) NextRevision() (*Revision, error) {
	if df.reader.AtEOF() {
		return nil, io.EOF
	}

	rev, err := NewRevision(df.reader)
	if err != nil {
		return nil, err
	}

	df.Revisions = append(df.Revisions, rev)
	return rev, nil
}

// LoadRevisions reads every revision in the dump, verifying the numbering is
// contiguous with whatever was already loaded.
func (df *DumpFile) LoadRevisions() error {
	for {
		rev, err := df.NextRevision()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", df.Path, err)
		}
		if len(df.Revisions) > 1 {
			prev := df.Revisions[len(df.Revisions)-2]
			if rev.Number != prev.Number+1 {
				return fmt.Errorf("%s: %w: expected r%d, got r%d",
					df.Path, ErrOutOfSequence, prev.Number+1, rev.Number)
			}
		}
	}
}
