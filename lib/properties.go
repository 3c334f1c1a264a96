package svn

import (
	"fmt"
)

// Properties is a parsed svn property block: an ordered list of keys and
// their values. Values are strings; svn property values are utf-8 except for
// a handful of binary-capable properties nothing here consumes.
type Properties struct {
	index []string
	table map[string]string
}

// NewProperties parses a property block of exactly length bytes from the
// reader. A zero length yields an empty, valid table.
func NewProperties(r *DumpReader, length int) (*Properties, error) {
	p := &Properties{table: make(map[string]string)}
	if length == 0 {
		return p, nil
	}

	end := r.Offset() + length
	for r.Offset() < end {
		if _, ok := r.LineAfter(PropsEnd); ok {
			break
		}
		// Deleted properties (format 3) carry a key and no value.
		if r.HasPrefix("D ") {
			if _, err := r.ReadSized('D'); err != nil {
				return nil, err
			}
			continue
		}
		key, err := r.ReadSized('K')
		if err != nil {
			return nil, err
		}
		value, err := r.ReadSized('V')
		if err != nil {
			return nil, err
		}
		keyStr := string(key)
		if _, ok := p.table[keyStr]; ok {
			return nil, fmt.Errorf("duplicate property: %s", keyStr)
		}
		p.index = append(p.index, keyStr)
		p.table[keyStr] = string(value)
	}

	if r.Offset() > end {
		return nil, fmt.Errorf("property block overran its %d declared bytes", length)
	}
	return p, nil
}

// Get returns the value for key and whether it was present.
func (p *Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	value, ok := p.table[key]
	return value, ok
}

// Has reports whether key is present.
func (p *Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Remove deletes key from the table and the order index.
func (p *Properties) Remove(key string) {
	if p == nil {
		return
	}
	delete(p.table, key)
	if idx := Index(p.index, key); idx != -1 {
		p.index = append(p.index[:idx], p.index[idx+1:]...)
	}
}

// Len returns the number of properties in the table.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.index)
}
