package source

import (
	"github.com/vanderheijden86/flatree/pkg/model"
	"github.com/vanderheijden86/flatree/pkg/visindex"
)

// MemSource serves a model.Tree held in memory.
type MemSource struct {
	rows
	tree *model.Tree
	name string
	file string // document the tree was loaded from, if any
}

// NewMemSource wraps tree. The tree is shared, not copied.
func NewMemSource(name string, tree *model.Tree) *MemSource {
	if tree == nil {
		tree = &model.Tree{}
	}
	return &MemSource{tree: tree, name: name}
}

// OpenDocument loads a YAML or JSON document into a MemSource that can
// reload it from disk.
func OpenDocument(path string) (*MemSource, error) {
	tree, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	s := NewMemSource(path, tree)
	s.file = path
	return s, nil
}

func (s *MemSource) Name() string      { return s.name }
func (s *MemSource) Tree() *model.Tree { return s.tree }
func (s *MemSource) Close() error      { return nil }

// ChildCount implements visindex.Provider.
func (s *MemSource) ChildCount(p visindex.Path) (int, error) {
	return s.tree.ChildCount(p)
}

// Item implements visindex.Provider.
func (s *MemSource) Item(p visindex.Path, leaf bool) (visindex.Item, error) {
	n, err := s.tree.At(p)
	if err != nil {
		return nil, err
	}
	return s.produce(model.NewRow(p, n, leaf)), nil
}

// Recycle implements visindex.Provider.
func (s *MemSource) Recycle(p visindex.Path, item visindex.Item) error {
	return s.recycle(p, item)
}

// Insert adds n at p. The caller notifies the index with the same path.
func (s *MemSource) Insert(p visindex.Path, n *model.Node) error {
	return s.tree.Insert(p, n)
}

// Remove deletes the node at p. The caller notifies the index with the
// same path.
func (s *MemSource) Remove(p visindex.Path) (*model.Node, error) {
	return s.tree.Remove(p)
}

// Reload re-reads the source document. Trees built in memory have nothing
// to reload.
func (s *MemSource) Reload() error {
	if s.file == "" {
		return nil
	}
	tree, err := LoadDocument(s.file)
	if err != nil {
		return err
	}
	s.Replace(tree)
	return nil
}

// Replace swaps in a tree parsed elsewhere, keeping the *model.Tree pointer
// callers already hold. The caller must reset the index.
func (s *MemSource) Replace(tree *model.Tree) {
	if tree == nil {
		tree = &model.Tree{}
	}
	*s.tree = *tree
}

// File is the document the tree was loaded from, empty for built trees.
func (s *MemSource) File() string { return s.file }
