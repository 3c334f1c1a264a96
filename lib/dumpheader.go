package svn

import (
	"fmt"
)

// DumpHeader is the preamble of a dump: the format version and, from format
// 2 on, the repository UUID.
type DumpHeader struct {
	Format    int
	ReposUUID string
}

// NewDumpHeader parses the preamble at the cursor.
func NewDumpHeader(r *DumpReader) (h *DumpHeader, err error) {
	h = &DumpHeader{}

	//g: FormatHeader  <- FormatVersion Newline [UUID Newline]? Newline
	//g: FormatVersion <- SVN-fs-dump-format-version: <digits>
	if h.Format, err = r.IntAfter(VersionStringHeader, true); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotADump, err)
	}
	if !r.Newline() {
		return nil, fmt.Errorf("%w after %s header", ErrMissingNewline, VersionStringHeader)
	}

	//g: UUID <- UUID: <uuid>
	if h.Format >= 2 {
		if uuid, ok := r.LineAfter(UUIDHeader + ": "); ok {
			h.ReposUUID = uuid
			if !r.Newline() {
				return nil, fmt.Errorf("%w after %s header", ErrMissingNewline, UUIDHeader)
			}
		}
	}

	return h, nil
}
