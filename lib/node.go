package svn

import (
	"fmt"
	"strconv"
)

// Node is one file or directory change within a revision. Text content is a
// zero-copy slice of the dump's mapped bytes; it stays valid until the
// DumpFile closes.
type Node struct {
	Path   string
	Kind   NodeKind
	Action NodeAction

	// Copy history, when the node was copied from elsewhere.
	FromRev  int
	FromPath string

	Properties *Properties

	// HasText distinguishes "empty file" (a Text-content-length of 0) from
	// "no text at all" (a property-only change).
	HasText    bool
	TextLength int
	text       []byte
}

// Content returns the node's text content, empty for directories and
// property-only changes.
func (n *Node) Content() []byte {
	return n.text
}

// NewNode parses one node block, or returns (nil, nil) if the cursor is not
// at a node.
func NewNode(r *DumpReader) (*Node, error) {
	node := &Node{}
	var ok bool
	if node.Path, ok = r.LineAfter(NodePathHeader + ": "); !ok {
		return nil, nil
	}

	nodeKind, haveKind := r.LineAfter(NodeKindHeader + ": ")
	if haveKind {
		var err error
		if node.Kind, err = GetNodeKind(nodeKind); err != nil {
			return nil, fmt.Errorf("%s: %w", node.Path, err)
		}
	}

	nodeAction, ok := r.LineAfter(NodeActionHeader + ": ")
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", node.Path, ErrMissingField, NodeActionHeader)
	}
	var err error
	if node.Action, err = GetNodeAction(nodeAction); err != nil {
		return nil, fmt.Errorf("%s: %w", node.Path, err)
	}
	if node.Action != NodeActionDelete && !haveKind {
		return nil, fmt.Errorf("%s: %w: %s", node.Path, ErrMissingField, NodeKindHeader)
	}

	label := node.Path + ":" + nodeAction

	if fromRev, ok := r.LineAfter(NodeCopyfromRevHeader + ": "); ok {
		if node.FromRev, err = strconv.Atoi(fromRev); err != nil {
			return nil, fmt.Errorf("%s: invalid %s: %s", label, NodeCopyfromRevHeader, fromRev)
		}
		if node.FromPath, ok = r.LineAfter(NodeCopyfromPathHeader + ": "); !ok {
			return nil, fmt.Errorf("%s: %w: %s", label, ErrMissingField, NodeCopyfromPathHeader)
		}
	}

	if node.Action == NodeActionDelete {
		r.SkipNewlines()
		return node, nil
	}

	// Checksum and copy-source hash headers are irrelevant here.
	r.LineAfter("Text-copy-source-md5: ")
	r.LineAfter("Text-copy-source-sha1: ")
	r.LineAfter("Text-content-md5: ")
	r.LineAfter("Text-content-sha1: ")

	if delta, ok := r.LineAfter(TextDeltaHeader + ": "); ok && delta == "true" {
		return nil, fmt.Errorf("%s: %w", label, ErrDeltaDump)
	}
	if delta, ok := r.LineAfter("Prop-delta: "); ok && delta == "true" {
		return nil, fmt.Errorf("%s: %w", label, ErrDeltaDump)
	}

	propLength, err := r.IntAfter(PropContentLengthHeader, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	if str, ok := r.LineAfter(TextContentLengthHeader + ": "); ok {
		node.HasText = true
		if node.TextLength, err = strconv.Atoi(str); err != nil {
			return nil, fmt.Errorf("%s: %w: %s: %s", label, ErrInvalidHeader, TextContentLengthHeader, str)
		}
	}
	if _, err = r.IntAfter(ContentLengthHeader, false); err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	// Some svnadmin versions emit the checksums after the lengths.
	r.LineAfter("Text-content-md5: ")
	r.LineAfter("Text-content-sha1: ")
	if !r.Newline() {
		return nil, fmt.Errorf("%s: %w after node headers", label, ErrMissingNewline)
	}

	if propLength > 0 {
		if node.Properties, err = NewProperties(r, propLength); err != nil {
			return nil, fmt.Errorf("%s: properties: %w", label, err)
		}
	}
	if node.TextLength > 0 {
		if node.text, err = r.Read(node.TextLength); err != nil {
			return nil, fmt.Errorf("%s: content: %w", label, err)
		}
	}

	r.SkipNewlines()
	return node, nil
}
