package model

import (
	"fmt"
	"time"
)

// Node is one entry of a backing hierarchy
type Node struct {
	ID       string            `json:"id" yaml:"id"`
	Title    string            `json:"title" yaml:"title"`
	Kind     Kind              `json:"kind" yaml:"kind"`
	Size     int64             `json:"size,omitempty" yaml:"size,omitempty"`
	ModTime  time.Time         `json:"mod_time,omitzero" yaml:"mod_time,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Children []*Node           `json:"children,omitempty" yaml:"children,omitempty"`
}

// Clone creates a deep copy of the node and its subtree
func (n Node) Clone() Node {
	clone := n

	if n.Attrs != nil {
		clone.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			clone.Attrs[k] = v
		}
	}

	if n.Children != nil {
		clone.Children = make([]*Node, len(n.Children))
		for idx, child := range n.Children {
			if child != nil {
				v := child.Clone()
				clone.Children[idx] = &v
			}
		}
	}

	return clone
}

// Validate checks if the node data is logically valid
func (n *Node) Validate() error {
	if n.Title == "" {
		return fmt.Errorf("node title cannot be empty")
	}
	if !n.Kind.IsValid() {
		return fmt.Errorf("invalid node kind: %q", n.Kind)
	}
	if n.Size < 0 {
		return fmt.Errorf("size (%d) cannot be negative", n.Size)
	}
	for i, child := range n.Children {
		if child == nil {
			return fmt.Errorf("child %d of %q is nil", i, n.Title)
		}
	}
	return nil
}

// Kind categorizes a node for display
type Kind string

const (
	KindGroup  Kind = "group"
	KindDir    Kind = "dir"
	KindFile   Kind = "file"
	KindValue  Kind = "value"
	KindRecord Kind = "record"
)

// IsValid returns true if the kind is non-empty.
// Unknown kinds are accepted so databases can carry their own categories;
// they render with the default icon.
func (k Kind) IsValid() bool {
	return k != ""
}

// IsKnown returns true if the kind is one of the built-in kinds.
func (k Kind) IsKnown() bool {
	switch k {
	case KindGroup, KindDir, KindFile, KindValue, KindRecord:
		return true
	}
	return false
}

// Icon returns the glyph used for the kind in tree rows and exports
func (k Kind) Icon() string {
	switch k {
	case KindGroup:
		return "◆"
	case KindDir:
		return "▣"
	case KindFile:
		return "▤"
	case KindValue:
		return "•"
	case KindRecord:
		return "◇"
	default:
		return "○"
	}
}

// Row is the item handle sources produce for one visible row.
type Row struct {
	Path        []int  `json:"path"`
	Depth       int    `json:"depth"`
	Title       string `json:"title"`
	Kind        Kind   `json:"kind"`
	Leaf        bool   `json:"leaf"`     // no children currently shown
	Expanded    bool   `json:"expanded"` // children currently shown
	HasChildren bool   `json:"has_children"`
}

// NewRow builds a row for the node at path. leaf reports whether the
// index currently shows no children below it.
func NewRow(path []int, n *Node, leaf bool) *Row {
	return &Row{
		Path:        append([]int(nil), path...),
		Depth:       len(path) - 1,
		Title:       n.Title,
		Kind:        n.Kind,
		Leaf:        leaf,
		Expanded:    !leaf,
		HasChildren: len(n.Children) > 0,
	}
}

// Collapsible reports whether toggling the row would change the view
func (r *Row) Collapsible() bool {
	return r.HasChildren || r.Expanded
}
