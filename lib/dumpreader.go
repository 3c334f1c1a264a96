package svn

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// DumpReader is a cursor over the raw bytes of a dump file, with helpers for
// the line-oriented header syntax. All reads are zero-copy slices into the
// underlying (usually memory-mapped) buffer.
type DumpReader struct {
	buffer []byte
	length int
}

// NewDumpReader allocates a DumpReader over the given byte slice.
func NewDumpReader(source []byte) *DumpReader {
	return &DumpReader{buffer: source, length: len(source)}
}

// Close releases the reference to the buffer.
func (r *DumpReader) Close() {
	r.buffer = nil
	r.length = -1
}

// Offset returns the position of the cursor relative to the beginning of the
// original slice.
func (r *DumpReader) Offset() int {
	return r.length - len(r.buffer)
}

// Newline consumes a single newline at the cursor, reporting whether there
// was one.
func (r *DumpReader) Newline() bool {
	if len(r.buffer) > 0 && r.buffer[0] == '\n' {
		r.buffer = r.buffer[1:]
		return true
	}
	return false
}

// SkipNewlines consumes any run of newlines at the cursor and returns how
// many were consumed.
func (r *DumpReader) SkipNewlines() (n int) {
	for r.Newline() {
		n++
	}
	return n
}

// HasPrefix reports whether the bytes at the cursor begin with prefix.
func (r *DumpReader) HasPrefix(prefix string) bool {
	return bytes.HasPrefix(r.buffer, []byte(prefix))
}

// LineAfter checks whether the current line starts with prefix; if so it
// consumes the whole line and returns the portion between prefix and the
// newline. Otherwise the reader is left unchanged.
func (r *DumpReader) LineAfter(prefix string) (line string, ok bool) {
	if !bytes.HasPrefix(r.buffer, []byte(prefix)) {
		return "", false
	}
	rest := r.buffer[len(prefix):]
	if newline := bytes.IndexByte(rest, '\n'); newline != -1 {
		line, r.buffer = string(rest[:newline]), rest[newline+1:]
	} else {
		line, r.buffer = string(rest), rest[len(rest):]
	}
	return line, true
}

// IntAfter consumes a "<key>: <number>" line and returns the number. When the
// key is absent and required is false, returns 0 without error; when
// required, ErrMissingField.
func (r *DumpReader) IntAfter(key string, required bool) (int, error) {
	str, present := r.LineAfter(key + ": ")
	if !present {
		if !required {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s; got: %s", ErrMissingField, key, r.Peek(32))
	}
	value, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s", ErrInvalidHeader, key, str)
	}
	return value, nil
}

// Read consumes exactly length bytes and returns them as a slice of the
// underlying buffer.
func (r *DumpReader) Read(length int) (data []byte, err error) {
	if length > len(r.buffer) {
		return nil, io.ErrUnexpectedEOF
	}
	data, r.buffer = r.buffer[:length], r.buffer[length:]
	return data, nil
}

// Discard drops length bytes from the front of the reader.
func (r *DumpReader) Discard(length int) error {
	if length > len(r.buffer) {
		r.buffer = r.buffer[len(r.buffer):]
		return io.ErrUnexpectedEOF
	}
	r.buffer = r.buffer[length:]
	return nil
}

// ReadSized reads a pascal-sized labelled value: the prefix rune, the ascii
// length, a newline, length bytes of data and a trailing newline. E.g.
//
//	K 10<LF>
//	svn:ignore<LF>
func (r *DumpReader) ReadSized(prefix rune) (value []byte, err error) {
	sizeStr, ok := r.LineAfter(string(prefix) + " ")
	if !ok {
		return nil, fmt.Errorf("expected '%c' prefix; got: %s", prefix, r.Peek(48))
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid '%c' size: %w", prefix, err)
	}
	if value, err = r.Read(size); err != nil {
		return nil, err
	}
	if !r.Newline() {
		return nil, fmt.Errorf("%w: after sized %c data: %s", ErrMissingNewline, prefix, string(value))
	}
	return value, nil
}

// AtEOF returns true when no data is left.
func (r *DumpReader) AtEOF() bool {
	return len(r.buffer) == 0
}

// Peek returns up to length bytes from the cursor without consuming them.
func (r *DumpReader) Peek(length int) []byte {
	if length >= len(r.buffer) {
		return r.buffer
	}
	return r.buffer[:length]
}
