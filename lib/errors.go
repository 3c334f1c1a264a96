package svn

import "errors"

var (
	ErrMissingField   = errors.New("missing required field")
	ErrMissingNewline = errors.New("missing newline")
	ErrInvalidHeader  = errors.New("invalid header value")
	ErrNotADump       = errors.New("not an svnadmin dump file")
	ErrDeltaDump      = errors.New("dump contains text deltas, re-create it without --deltas")
	ErrOutOfSequence  = errors.New("out-of-sequence revision")
)
