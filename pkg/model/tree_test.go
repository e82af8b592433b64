package model

import "testing"

func sampleTree() *Tree {
	return &Tree{Roots: []*Node{
		{Title: "src", Kind: KindDir, Children: []*Node{
			{Title: "main.go", Kind: KindFile},
			{Title: "util.go", Kind: KindFile},
		}},
		{Title: "README.md", Kind: KindFile},
	}}
}

func TestTreeAtAndChildCount(t *testing.T) {
	tree := sampleTree()

	n, err := tree.At([]int{0, 1})
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if n.Title != "util.go" {
		t.Errorf("expected util.go, got %s", n.Title)
	}

	if c, _ := tree.ChildCount(nil); c != 2 {
		t.Errorf("expected 2 roots, got %d", c)
	}
	if c, _ := tree.ChildCount([]int{0}); c != 2 {
		t.Errorf("expected 2 children of src, got %d", c)
	}
	if _, err := tree.At([]int{0, 5}); err == nil {
		t.Error("expected error for out of range path")
	}
	if _, err := tree.At(nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestTreeInsertRemove(t *testing.T) {
	tree := sampleTree()

	if err := tree.Insert([]int{0, 0}, &Node{Title: "a.go", Kind: KindFile}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Insert([]int{2}, &Node{Title: "LICENSE", Kind: KindFile}); err != nil {
		t.Fatalf("Insert append: %v", err)
	}
	if tree.Len() != 6 {
		t.Errorf("expected 6 nodes, got %d", tree.Len())
	}
	if n, _ := tree.At([]int{0, 1}); n.Title != "main.go" {
		t.Errorf("expected main.go shifted to 0/1, got %s", n.Title)
	}

	removed, err := tree.Remove([]int{0})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.Title != "src" {
		t.Errorf("expected to remove src, got %s", removed.Title)
	}
	if tree.Len() != 2 {
		t.Errorf("expected 2 nodes left, got %d", tree.Len())
	}
	if err := tree.Insert([]int{9}, &Node{Title: "x", Kind: KindFile}); err == nil {
		t.Error("expected error inserting past the end")
	}
}

func TestTreeFind(t *testing.T) {
	tree := sampleTree()
	p, ok := tree.Find("src", "util.go")
	if !ok || len(p) != 2 || p[0] != 0 || p[1] != 1 {
		t.Errorf("expected [0 1], got %v (%v)", p, ok)
	}
	if _, ok := tree.Find("src", "missing"); ok {
		t.Error("expected missing name not to be found")
	}
}
