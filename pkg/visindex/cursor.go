package visindex

// cursor is the single cached (path, row) pair used to translate between row
// numbers and paths.
//
// stack[i] is the node whose children list path[i] indexes into, so
// stack[0] is always the root. The position may be one past the last
// top-level child, the end position, whose row equals the total count.
type cursor struct {
	path  Path
	stack []nodeID
	flat  int
}

func (c *cursor) reset() {
	c.path = append(c.path[:0], 0)
	c.stack = append(c.stack[:0], rootID)
	c.flat = 0
}

// node returns the node the cursor points at, or noNode at the end position.
func (c *cursor) node(a *arena) nodeID {
	last := len(c.path) - 1
	siblings := a.nodes[c.stack[last]].children
	if c.path[last] >= len(siblings) {
		return noNode
	}
	return siblings[c.path[last]]
}

// rebuild repositions the cursor on p, recomputing the ancestor stack. It is
// how every structural edit repairs the cursor once its path has been
// corrected.
func (c *cursor) rebuild(a *arena, p Path) {
	c.path = append(c.path[:0], p...)
	c.stack = c.stack[:0]
	id := rootID
	for i, v := range c.path {
		c.stack = append(c.stack, id)
		if i == len(c.path)-1 {
			break
		}
		id = a.nodes[id].children[v]
	}
}

// forward moves to the pre-order successor.
func (c *cursor) forward(a *arena) {
	if cur := c.node(a); cur != noNode {
		if n := &a.nodes[cur]; n.expanded && len(n.children) > 0 {
			c.stack = append(c.stack, cur)
			c.path = append(c.path, 0)
			return
		}
	}
	for {
		last := len(c.path) - 1
		c.path[last]++
		if last == 0 || c.path[last] < len(a.nodes[c.stack[last]].children) {
			return
		}
		c.path = c.path[:last]
		c.stack = c.stack[:last]
	}
}

// backward moves to the pre-order predecessor. The caller guarantees the
// cursor is not on row 0.
func (c *cursor) backward(a *arena) {
	last := len(c.path) - 1
	if c.path[last] == 0 {
		c.path = c.path[:last]
		c.stack = c.stack[:last]
		return
	}
	c.path[last]--
	for {
		cur := c.node(a)
		n := &a.nodes[cur]
		if !n.expanded || len(n.children) == 0 {
			return
		}
		c.stack = append(c.stack, cur)
		c.path = append(c.path, len(n.children)-1)
	}
}

// seek steps the cursor to row flat. Each step is O(1) amortized, so a call
// costs O(|flat - c.flat|).
func (c *cursor) seek(a *arena, flat int) {
	for c.flat < flat {
		c.forward(a)
		c.flat++
	}
	for c.flat > flat {
		c.backward(a)
		c.flat--
	}
}

// retreatTo walks backward until the cursor sits on p. p must be at or before
// the cursor.
func (c *cursor) retreatTo(a *arena, p Path) {
	for !c.path.Equal(p) {
		c.backward(a)
		c.flat--
	}
}
