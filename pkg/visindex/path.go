// Package visindex maps a lazily expanded hierarchy onto flat, pre-order row
// numbers. Only the expanded part of the backing model is mirrored; every
// mirrored node caches how many rows its subtree contributes, and a single
// cursor translates between row numbers and paths by stepping from the last
// resolved position.
package visindex

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Path locates a node by sibling indices from the root. The empty path is the
// root, which is never a visible row.
type Path []int

// Clone returns a copy that does not share storage with p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	return slices.Clone(p)
}

// Parent returns the path of p's parent. The parent of a top-level path is
// the root (empty path).
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1 : len(p)-1]
}

// Last returns the sibling index of the node p addresses.
func (p Path) Last() int {
	return p[len(p)-1]
}

// Child returns a new path addressing child i of p.
func (p Path) Child(i int) Path {
	c := make(Path, len(p)+1)
	copy(c, p)
	c[len(p)] = i
	return c
}

// Compare orders paths lexicographically, which is pre-order rank order:
// an ancestor sorts before its descendants.
func (p Path) Compare(q Path) int {
	return slices.Compare(p, q)
}

// Equal reports whether p and q address the same node.
func (p Path) Equal(q Path) bool {
	return slices.Equal(p, q)
}

// HasPrefix reports whether q is p or one of p's ancestors.
func (p Path) HasPrefix(q Path) bool {
	return len(q) <= len(p) && slices.Equal(p[:len(q)], q)
}

// String renders the path as slash separated indices, e.g. "0/2/1".
// The root renders as "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "/")
}

// ParsePath is the inverse of Path.String.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, "/")
	p := make(Path, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: bad path component %q", ErrInvalidArgument, part)
		}
		p[i] = v
	}
	return p, nil
}
