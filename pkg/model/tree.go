package model

import (
	"fmt"
	"strings"
)

// Tree is an in-memory hierarchy addressed by sibling-index paths.
type Tree struct {
	Roots []*Node `json:"roots" yaml:"roots"`
}

// At returns the node at path, or an error if the path leaves the tree.
func (t *Tree) At(path []int) (*Node, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("empty path has no node")
	}
	list := t.Roots
	var node *Node
	for depth, i := range path {
		if i < 0 || i >= len(list) {
			return nil, fmt.Errorf("path %v: index %d out of range at depth %d", path, i, depth)
		}
		node = list[i]
		list = node.Children
	}
	return node, nil
}

// ChildCount returns the number of children at path; the empty path counts
// the roots.
func (t *Tree) ChildCount(path []int) (int, error) {
	if len(path) == 0 {
		return len(t.Roots), nil
	}
	node, err := t.At(path)
	if err != nil {
		return 0, err
	}
	return len(node.Children), nil
}

// siblings returns a pointer to the slice holding the node at path.
func (t *Tree) siblings(path []int) (*[]*Node, error) {
	if len(path) <= 1 {
		return &t.Roots, nil
	}
	parent, err := t.At(path[:len(path)-1])
	if err != nil {
		return nil, err
	}
	return &parent.Children, nil
}

// Insert places node at path, shifting later siblings. The last path
// component may equal the current sibling count to append.
func (t *Tree) Insert(path []int, node *Node) error {
	if len(path) == 0 {
		return fmt.Errorf("cannot insert at the root")
	}
	list, err := t.siblings(path)
	if err != nil {
		return err
	}
	i := path[len(path)-1]
	if i < 0 || i > len(*list) {
		return fmt.Errorf("path %v: insert position %d out of range", path, i)
	}
	*list = append(*list, nil)
	copy((*list)[i+1:], (*list)[i:])
	(*list)[i] = node
	return nil
}

// Remove detaches and returns the node at path.
func (t *Tree) Remove(path []int) (*Node, error) {
	node, err := t.At(path)
	if err != nil {
		return nil, err
	}
	list, _ := t.siblings(path)
	i := path[len(path)-1]
	*list = append((*list)[:i], (*list)[i+1:]...)
	return node, nil
}

// Len counts every node in the tree.
func (t *Tree) Len() int {
	var count func([]*Node) int
	count = func(nodes []*Node) int {
		total := len(nodes)
		for _, n := range nodes {
			total += count(n.Children)
		}
		return total
	}
	return count(t.Roots)
}

// Find returns the path of the first node, in pre-order, whose title path
// matches names (e.g. ["src", "main.go"]).
func (t *Tree) Find(names ...string) ([]int, bool) {
	var path []int
	list := t.Roots
	for _, name := range names {
		found := -1
		for i, n := range list {
			if strings.EqualFold(n.Title, name) {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, false
		}
		path = append(path, found)
		list = list[found].Children
	}
	return path, len(path) > 0
}
