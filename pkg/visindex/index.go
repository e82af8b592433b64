package visindex

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Item is an opaque handle produced by the backing model for one row.
type Item any

// Provider is the backing hierarchical model the index mirrors.
type Provider interface {
	// ChildCount returns the number of direct children at p. It must be
	// cheap and free of side effects; p is empty for the top level.
	ChildCount(p Path) (int, error)

	// Item produces the row item for p. leaf is true when the index holds
	// no visible children for the row, either because the backing node has
	// none or because it is collapsed.
	Item(p Path, leaf bool) (Item, error)

	// Recycle reclaims an item previously produced for p.
	Recycle(p Path, item Item) error
}

// Index is the visible-item index: the expanded part of a Provider's tree,
// flattened into pre-order rows.
//
// An Index is not safe for concurrent use. Every call runs to completion
// before the next one starts, and change handlers run synchronously after the
// mutation that raised them.
type Index struct {
	provider Provider
	arena    arena
	cur      cursor

	onViewChanged func()
	onDataChanged func()

	log zerolog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithViewChanged registers the full-refresh handler.
func WithViewChanged(fn func()) Option {
	return func(ix *Index) { ix.onViewChanged = fn }
}

// WithDataChanged registers the incremental-change handler.
func WithDataChanged(fn func()) Option {
	return func(ix *Index) { ix.onDataChanged = fn }
}

// WithLogger sets the logger used for debug tracing of structural edits.
func WithLogger(l zerolog.Logger) Option {
	return func(ix *Index) { ix.log = l }
}

// New creates an index over p. Nothing is queried until the first Count.
func New(p Provider, opts ...Option) *Index {
	ix := &Index{
		provider: p,
		arena:    newArena(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.cur.reset()
	return ix
}

// OnViewChanged replaces the full-refresh handler.
func (ix *Index) OnViewChanged(fn func()) { ix.onViewChanged = fn }

// OnDataChanged replaces the incremental-change handler.
func (ix *Index) OnDataChanged(fn func()) { ix.onDataChanged = fn }

func (ix *Index) viewChanged() {
	if ix.onViewChanged != nil {
		ix.onViewChanged()
	}
}

func (ix *Index) dataChanged() {
	if ix.onDataChanged != nil {
		ix.onDataChanged()
	}
}

// Count returns the number of visible rows. The first call after creation or
// NotifyDataSetChanged populates the top level from the provider.
func (ix *Index) Count() (int, error) {
	root := &ix.arena.nodes[rootID]
	if !root.expanded {
		k, err := ix.provider.ChildCount(Path{})
		if err != nil {
			return 0, backingErr("child count", Path{}, err)
		}
		if k < 0 {
			return 0, backingErr("child count", Path{}, fmt.Errorf("negative count %d", k))
		}
		ix.arena.expand(rootID, k)
		ix.cur.reset()
		ix.log.Debug().Int("rows", k).Msg("visindex: populated top level")
	}
	return ix.arena.nodes[rootID].size, nil
}

// seek moves the cursor to row flat and returns the node there.
func (ix *Index) seek(flat int) (nodeID, error) {
	n, err := ix.Count()
	if err != nil {
		return noNode, err
	}
	if flat < 0 || flat >= n {
		return noNode, fmt.Errorf("%w: row %d out of range [0, %d)", ErrInvalidArgument, flat, n)
	}
	ix.cur.seek(&ix.arena, flat)
	return ix.cur.node(&ix.arena), nil
}

// PathFor translates a row number into a path. Sequential access is O(1)
// amortized; a jump costs time proportional to its distance from the last
// resolved row.
func (ix *Index) PathFor(flat int) (Path, error) {
	if _, err := ix.seek(flat); err != nil {
		return nil, err
	}
	return ix.cur.path.Clone(), nil
}

// Item returns the provider's item for row flat.
func (ix *Index) Item(flat int) (Item, error) {
	id, err := ix.seek(flat)
	if err != nil {
		return nil, err
	}
	p := ix.cur.path.Clone()
	item, err := ix.provider.Item(p, !ix.arena.nodes[id].expanded)
	if err != nil {
		return nil, backingErr("item", p, err)
	}
	return item, nil
}

// Recycle hands an item for row flat back to the provider.
func (ix *Index) Recycle(flat int, item Item) error {
	if _, err := ix.seek(flat); err != nil {
		return err
	}
	p := ix.cur.path.Clone()
	if err := ix.provider.Recycle(p, item); err != nil {
		return backingErr("recycle", p, err)
	}
	return nil
}

// RankOf translates a path into its row number without moving the cursor.
// It costs O(depth × siblings) using the cached subtree sizes.
func (ix *Index) RankOf(p Path) (int, error) {
	if len(p) == 0 {
		return 0, invalidPath(p, "the root has no row")
	}
	rank := len(p) - 1
	id := rootID
	for _, c := range p {
		n := &ix.arena.nodes[id]
		if !n.expanded || c < 0 || c >= len(n.children) {
			return 0, invalidPath(p, "not in the expanded tree")
		}
		for _, sib := range n.children[:c] {
			rank += 1 + ix.arena.nodes[sib].size
		}
		id = n.children[c]
	}
	return rank, nil
}

// IsExpanded reports whether the node at p currently shows its children.
func (ix *Index) IsExpanded(p Path) (bool, error) {
	id, ok := ix.arena.resolve(p)
	if !ok {
		return false, invalidPath(p, "not in the expanded tree")
	}
	return ix.arena.nodes[id].expanded, nil
}

// SubtreeSize returns the number of rows below p, excluding p's own row.
// The empty path returns the total row count of the mirror.
func (ix *Index) SubtreeSize(p Path) (int, error) {
	id, ok := ix.arena.resolve(p)
	if !ok {
		return 0, invalidPath(p, "not in the expanded tree")
	}
	return ix.arena.nodes[id].size, nil
}

// ChildCount returns the number of children the mirror holds for p: the
// backing count when p is expanded, zero otherwise.
func (ix *Index) ChildCount(p Path) (int, error) {
	if len(p) == 0 {
		if _, err := ix.Count(); err != nil {
			return 0, err
		}
	}
	id, ok := ix.arena.resolve(p)
	if !ok {
		return 0, invalidPath(p, "not in the expanded tree")
	}
	return len(ix.arena.nodes[id].children), nil
}

// Depth returns the nesting level of row flat; top-level rows are depth 0.
func (ix *Index) Depth(flat int) (int, error) {
	if _, err := ix.seek(flat); err != nil {
		return 0, err
	}
	return len(ix.cur.path) - 1, nil
}

// ExpandedPaths lists the expanded nodes in pre-order, parents first.
func (ix *Index) ExpandedPaths() []Path {
	var out []Path
	var walk func(id nodeID, p Path)
	walk = func(id nodeID, p Path) {
		for i, c := range ix.arena.nodes[id].children {
			if !ix.arena.nodes[c].expanded {
				continue
			}
			cp := p.Child(i)
			out = append(out, cp)
			walk(c, cp)
		}
	}
	walk(rootID, Path{})
	return out
}

// NotifyDataSetChanged discards the whole mirror. The backing model is
// queried again lazily on the next Count or Item.
func (ix *Index) NotifyDataSetChanged() {
	ix.arena.reset()
	ix.cur.reset()
	ix.log.Debug().Msg("visindex: data set changed")
	ix.viewChanged()
}

// Collapse hides the children of the expanded node at p. The node's own row
// stays visible.
func (ix *Index) Collapse(p Path) error {
	if len(p) == 0 {
		return invalidPath(p, "the root cannot be collapsed")
	}
	id, ok := ix.arena.resolve(p)
	if !ok {
		return invalidPath(p, "not in the expanded tree")
	}
	if !ix.arena.nodes[id].expanded {
		return invalidPath(p, "not expanded")
	}
	removed := ix.arena.nodes[id].size

	if ix.cur.path.Compare(p) > 0 {
		next := p.Clone()
		next[len(next)-1]++
		if ix.cur.path.Compare(next) < 0 {
			ix.cur.retreatTo(&ix.arena, p)
		} else {
			ix.cur.flat -= removed
		}
	}
	at := ix.cur.path.Clone()

	ix.arena.collapse(id)
	ix.arena.addToAncestors(id, -removed)
	ix.cur.rebuild(&ix.arena, at)

	ix.log.Debug().Stringer("path", p).Int("removed", removed).Msg("visindex: collapse")
	ix.viewChanged()
	return nil
}

// Uncollapse reveals the children of the node at p. It is a no-op when the
// node is already expanded or the backing model reports no children.
func (ix *Index) Uncollapse(p Path) error {
	if len(p) == 0 {
		return invalidPath(p, "the root cannot be uncollapsed")
	}
	id, ok := ix.arena.resolve(p)
	if !ok {
		return invalidPath(p, "not in the expanded tree")
	}
	if ix.arena.nodes[id].expanded {
		return nil
	}
	k, err := ix.provider.ChildCount(p.Clone())
	if err != nil {
		return backingErr("child count", p, err)
	}
	if k <= 0 {
		return nil
	}

	if ix.cur.path.Compare(p) > 0 {
		ix.cur.flat += k
	}
	at := ix.cur.path.Clone()

	ix.arena.expand(id, k)
	ix.arena.addToAncestors(id, k)
	ix.cur.rebuild(&ix.arena, at)

	ix.log.Debug().Stringer("path", p).Int("added", k).Msg("visindex: uncollapse")
	ix.viewChanged()
	return nil
}

// NotifyItemAdded records that the backing model gained a node at p.
// Insertions under a parent the index has not expanded only raise a full
// refresh, since there is nothing mirrored to update.
func (ix *Index) NotifyItemAdded(p Path) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: cannot add the root", ErrInvalidArgument)
	}
	parent, ok := ix.arena.resolve(p.Parent())
	if !ok {
		return invalidPath(p, "parent not in the expanded tree")
	}
	pn := &ix.arena.nodes[parent]
	if !pn.expanded {
		ix.viewChanged()
		return nil
	}
	pos := p.Last()
	if pos < 0 || pos > len(pn.children) {
		return invalidPath(p, "insert position out of range")
	}

	at := ix.cur.path.Clone()
	if at.Compare(p) >= 0 {
		ix.cur.flat++
	}

	id := ix.arena.insert(parent, pos)
	ix.arena.addToAncestors(id, 1)

	shiftForInsert(at, p)
	ix.cur.rebuild(&ix.arena, at)

	ix.log.Debug().Stringer("path", p).Msg("visindex: item added")
	ix.dataChanged()
	return nil
}

// NotifyItemRemoved records that the backing model lost the node at p along
// with its subtree. Removals outside the mirrored tree raise a full refresh.
func (ix *Index) NotifyItemRemoved(p Path) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: cannot remove the root", ErrInvalidArgument)
	}
	id, ok := ix.arena.resolve(p)
	if !ok {
		ix.viewChanged()
		return nil
	}
	parent := ix.arena.nodes[id].parent
	removed := 1 + ix.arena.nodes[id].size

	if ix.cur.path.Compare(p) >= 0 {
		next := p.Clone()
		next[len(next)-1]++
		if ix.cur.path.Compare(next) < 0 {
			ix.cur.retreatTo(&ix.arena, p)
		} else {
			ix.cur.flat -= removed
		}
	}
	at := ix.cur.path.Clone()

	ix.arena.addToAncestors(id, -removed)
	ix.arena.detach(parent, p.Last())
	if pn := &ix.arena.nodes[parent]; parent != rootID && len(pn.children) == 0 {
		pn.expanded = false
		pn.children = nil
	}

	at = shiftForRemove(at, p)
	at = ix.climbPastEnd(at)
	ix.cur.rebuild(&ix.arena, at)

	ix.log.Debug().Stringer("path", p).Int("removed", removed).Msg("visindex: item removed")
	ix.dataChanged()
	return nil
}

// shiftForInsert corrects cursor path at after a sibling was inserted at p.
// Only the component at p's last level can move, and only when at shares
// p's ancestors.
func shiftForInsert(at, p Path) {
	last := len(p) - 1
	for i := 0; i < len(at) && i < len(p); i++ {
		if at[i] != p[i] {
			if i == last && at[i] > p[i] {
				at[i]++
			}
			return
		}
		if i == last {
			at[i]++
			return
		}
	}
}

// shiftForRemove is the removal counterpart of shiftForInsert. A cursor that
// sat on the removed node takes over its path, now naming the next sibling.
func shiftForRemove(at, p Path) Path {
	last := len(p) - 1
	for i := 0; i < len(at) && i < len(p); i++ {
		if at[i] != p[i] {
			if i == last && at[i] > p[i] {
				at[i]--
			}
			return at
		}
		if i == last {
			return p.Clone()
		}
	}
	return at
}

// climbPastEnd turns a path one past the last child of a nested parent into
// the next pre-order position, repeating up the tree. The top level keeps its
// past-the-end form, which is the cursor's end position.
func (ix *Index) climbPastEnd(at Path) Path {
	for len(at) > 1 {
		parent, _ := ix.arena.resolve(at.Parent())
		if at.Last() != len(ix.arena.nodes[parent].children) {
			break
		}
		at = at[:len(at)-1]
		at[len(at)-1]++
	}
	return at
}
