package visindex

// nodeID addresses a node in the arena. IDs are stable for the lifetime of
// the node and recycled through the free list once it is detached.
type nodeID int32

const (
	noNode nodeID = -1
	rootID nodeID = 0
)

// mirrorNode is one observed backing-model node.
//
// children is only meaningful when expanded is set. size counts the rows of
// the subtree, not the node's own row:
//
//	size == Σ (1 + size(c)) over children, and 0 when not expanded.
type mirrorNode struct {
	parent   nodeID
	expanded bool
	children []nodeID
	size     int
}

// arena owns every mirrored node. Slot 0 is always the root.
type arena struct {
	nodes []mirrorNode
	free  []nodeID
}

func newArena() arena {
	var a arena
	a.reset()
	return a
}

// reset drops every node and leaves a single never-visited root.
func (a *arena) reset() {
	clear(a.nodes)
	a.nodes = append(a.nodes[:0], mirrorNode{parent: noNode})
	a.free = a.free[:0]
}

func (a *arena) alloc(parent nodeID) nodeID {
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		a.nodes[id] = mirrorNode{parent: parent}
		return id
	}
	a.nodes = append(a.nodes, mirrorNode{parent: parent})
	return nodeID(len(a.nodes) - 1)
}

// release returns id and its whole subtree to the free list.
func (a *arena) release(id nodeID) {
	stack := []nodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, a.nodes[cur].children...)
		a.nodes[cur] = mirrorNode{parent: noNode}
		a.free = append(a.free, cur)
	}
}

// expand gives id k fresh unexpanded children. The caller adjusts ancestors.
func (a *arena) expand(id nodeID, k int) {
	children := make([]nodeID, k)
	for i := range children {
		children[i] = a.alloc(id)
	}
	n := &a.nodes[id]
	n.expanded = true
	n.children = children
	n.size = k
}

// collapse releases id's children and returns how many rows they occupied.
func (a *arena) collapse(id nodeID) int {
	removed := a.nodes[id].size
	children := a.nodes[id].children
	for _, c := range children {
		a.release(c)
	}
	n := &a.nodes[id]
	n.expanded = false
	n.children = nil
	n.size = 0
	return removed
}

// insert places a new unexpanded child at position i of parent.
func (a *arena) insert(parent nodeID, i int) nodeID {
	id := a.alloc(parent)
	n := &a.nodes[parent]
	n.children = append(n.children, noNode)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = id
	return id
}

// detach removes child i of parent and releases its subtree.
func (a *arena) detach(parent nodeID, i int) {
	n := &a.nodes[parent]
	id := n.children[i]
	n.children = append(n.children[:i], n.children[i+1:]...)
	a.release(id)
}

// addToAncestors adds delta to the size of every strict ancestor of id.
func (a *arena) addToAncestors(id nodeID, delta int) {
	for p := a.nodes[id].parent; p != noNode; p = a.nodes[p].parent {
		a.nodes[p].size += delta
	}
}

// resolve walks p from the root. Every node along the way except the last
// must be expanded.
func (a *arena) resolve(p Path) (nodeID, bool) {
	id := rootID
	for _, c := range p {
		n := &a.nodes[id]
		if !n.expanded || c < 0 || c >= len(n.children) {
			return noNode, false
		}
		id = n.children[c]
	}
	return id, true
}

// live counts nodes currently attached to the tree, root included.
func (a *arena) live() int {
	return len(a.nodes) - len(a.free)
}
