package visindex

import (
	"errors"
	"fmt"
)

// fakeNode is a plain in-memory backing tree used by the package tests.
type fakeNode struct {
	children []*fakeNode
}

func n(children ...*fakeNode) *fakeNode {
	return &fakeNode{children: children}
}

// leaves returns k childless nodes.
func leaves(k int) []*fakeNode {
	out := make([]*fakeNode, k)
	for i := range out {
		out[i] = n()
	}
	return out
}

type fakeProvider struct {
	root     *fakeNode
	live     int
	queries  int
	lastLeaf bool
	fail     error
}

func newFake(top ...*fakeNode) *fakeProvider {
	return &fakeProvider{root: n(top...)}
}

func (f *fakeProvider) at(p Path) (*fakeNode, error) {
	cur := f.root
	for _, c := range p {
		if c < 0 || c >= len(cur.children) {
			return nil, fmt.Errorf("no node at %s", p)
		}
		cur = cur.children[c]
	}
	return cur, nil
}

func (f *fakeProvider) ChildCount(p Path) (int, error) {
	f.queries++
	if f.fail != nil {
		return 0, f.fail
	}
	node, err := f.at(p)
	if err != nil {
		return 0, err
	}
	return len(node.children), nil
}

func (f *fakeProvider) Item(p Path, leaf bool) (Item, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if _, err := f.at(p); err != nil {
		return nil, err
	}
	f.live++
	f.lastLeaf = leaf
	return p.String(), nil
}

func (f *fakeProvider) Recycle(p Path, item Item) error {
	if f.fail != nil {
		return f.fail
	}
	if item != p.String() {
		return fmt.Errorf("recycled %v at %s", item, p)
	}
	f.live--
	return nil
}

// insert adds a leaf to the backing tree at p.
func (f *fakeProvider) insert(p Path) {
	parent, err := f.at(p.Parent())
	if err != nil {
		panic(err)
	}
	i := p.Last()
	parent.children = append(parent.children, nil)
	copy(parent.children[i+1:], parent.children[i:])
	parent.children[i] = n()
}

// remove deletes the node at p and its subtree from the backing tree.
func (f *fakeProvider) remove(p Path) {
	parent, err := f.at(p.Parent())
	if err != nil {
		panic(err)
	}
	i := p.Last()
	parent.children = append(parent.children[:i], parent.children[i+1:]...)
}

type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

// checkIndex verifies the mirror against its own invariants and against the
// backing tree, then checks the cursor is consistent with its row.
func checkIndex(t tb, ix *Index, f *fakeProvider) {
	t.Helper()

	var walk func(id nodeID, back *fakeNode, p Path) int
	walk = func(id nodeID, back *fakeNode, p Path) int {
		nd := ix.arena.nodes[id]
		if !nd.expanded {
			if len(nd.children) != 0 || nd.size != 0 {
				t.Fatalf("unexpanded node %s has %d children, size %d", p, len(nd.children), nd.size)
			}
			return 0
		}
		if id != rootID && len(nd.children) == 0 {
			t.Fatalf("expanded node %s has no children", p)
		}
		if len(nd.children) != len(back.children) {
			t.Fatalf("node %s mirrors %d children, backing has %d", p, len(nd.children), len(back.children))
		}
		rows := 0
		for i, c := range nd.children {
			if ix.arena.nodes[c].parent != id {
				t.Fatalf("child %d of %s has wrong parent link", i, p)
			}
			rows += 1 + walk(c, back.children[i], p.Child(i))
		}
		if rows != nd.size {
			t.Fatalf("node %s size %d, counted %d", p, nd.size, rows)
		}
		return rows
	}

	if !ix.arena.nodes[rootID].expanded {
		return
	}
	total := walk(rootID, f.root, Path{})

	count, err := ix.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != total {
		t.Fatalf("expected count %d, got %d", total, count)
	}

	if ix.cur.flat == count {
		want := Path{len(ix.arena.nodes[rootID].children)}
		if !ix.cur.path.Equal(want) {
			t.Fatalf("cursor at end row %d but path %s, want %s", count, ix.cur.path, want)
		}
	} else {
		rank, err := ix.RankOf(ix.cur.path)
		if err != nil {
			t.Fatalf("cursor path %s: %v", ix.cur.path, err)
		}
		if rank != ix.cur.flat {
			t.Fatalf("cursor path %s has rank %d but cursor row is %d", ix.cur.path, rank, ix.cur.flat)
		}
	}
	if len(ix.cur.stack) != len(ix.cur.path) || ix.cur.stack[0] != rootID {
		t.Fatalf("cursor stack %v does not match path %s", ix.cur.stack, ix.cur.path)
	}
}

var errBackend = errors.New("backend down")
