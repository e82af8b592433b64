// tree.go - Scrolling tree view over a source, backed by the visible-item index
package ui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"

	"github.com/vanderheijden86/flatree/pkg/listview"
	"github.com/vanderheijden86/flatree/pkg/model"
	"github.com/vanderheijden86/flatree/pkg/source"
	"github.com/vanderheijden86/flatree/pkg/visindex"
	"github.com/vanderheijden86/flatree/pkg/watcher"
)

// TreeState represents the persistent state of the tree view.
// This is saved to .ft/tree-state.json to preserve expanded nodes across
// sessions.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "sources": {
//	    "/home/me/notes": ["0", "0/2", "3"]
//	  }
//	}
//
// Paths are listed parents first, the order Uncollapse needs. Paths that no
// longer exist are skipped on load. A corrupted or missing file means
// nothing is restored.
type TreeState struct {
	Version int                 `json:"version"`
	Sources map[string][]string `json:"sources"` // source name -> expanded paths
}

// TreeStateVersion is the current schema version for tree persistence
const TreeStateVersion = 1

// DefaultTreeState returns an empty TreeState
func DefaultTreeState() *TreeState {
	return &TreeState{
		Version: TreeStateVersion,
		Sources: make(map[string][]string),
	}
}

// treeStateFileName is the filename for persisted tree state
const treeStateFileName = "tree-state.json"

// TreeStatePath returns the path to the tree state file inside stateDir.
func TreeStatePath(stateDir string) string {
	return filepath.Join(stateDir, treeStateFileName)
}

// TreeOption configures a TreeModel.
type TreeOption func(*TreeModel)

// WithStateDir enables saving expanded nodes to dir/tree-state.json.
func WithStateDir(dir string) TreeOption {
	return func(t *TreeModel) { t.stateDir = dir }
}

// WithExpandDepth opens this many levels on Init when no state is saved.
func WithExpandDepth(depth int) TreeOption {
	return func(t *TreeModel) { t.expandDepth = depth }
}

// WithMaxExpandRows bounds bulk expansion.
func WithMaxExpandRows(n int) TreeOption {
	return func(t *TreeModel) { t.maxExpandRows = n }
}

// WithTreeLogger sets the logger.
func WithTreeLogger(l zerolog.Logger) TreeOption {
	return func(t *TreeModel) { t.log = l }
}

// TreeModel manages the tree view: a listview window over the index of
// src, with the selection kept on the same node across expand, collapse
// and live changes.
type TreeModel struct {
	src   source.Source
	index *visindex.Index
	list  *listview.List
	theme Theme
	log   zerolog.Logger

	width  int
	height int

	expandDepth   int
	maxExpandRows int
	stateDir      string

	built bool
	err   error // last error, shown in the status bar
}

// NewTreeModel creates a tree model over src. Nothing is read until Init.
func NewTreeModel(src source.Source, theme Theme, opts ...TreeOption) TreeModel {
	t := TreeModel{
		src:           src,
		theme:         theme,
		log:           zerolog.Nop(),
		maxExpandRows: 10000,
	}
	for _, opt := range opts {
		opt(&t)
	}
	t.index = visindex.New(src, visindex.WithLogger(t.log))
	t.list = listview.New(t.index, listview.WithLogger(t.log))
	return t
}

// Init populates the top level, restores saved state (or expands to the
// configured depth) and selects the first row.
func (t *TreeModel) Init() error {
	if _, err := t.index.Count(); err != nil {
		t.err = err
		return err
	}
	err := t.list.Mutate(func() error {
		if t.loadState() {
			return nil
		}
		return t.expandTo(t.expandDepth)
	})
	t.built = true
	if n := t.NodeCount(); n > 0 {
		t.selectRow(0)
	}
	t.note(err)
	return err
}

// Source returns the backing source.
func (t *TreeModel) Source() source.Source { return t.src }

// Index returns the visible-item index.
func (t *TreeModel) Index() *visindex.Index { return t.index }

// List returns the scrolling window.
func (t *TreeModel) List() *listview.List { return t.list }

// Err returns the last error hit while serving a key, or nil.
func (t *TreeModel) Err() error { return t.err }

// IsBuilt returns whether Init has run.
func (t *TreeModel) IsBuilt() bool { return t.built }

// SetSize updates the available dimensions for the tree view
func (t *TreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.note(t.list.SetHeight(height))
	if sel, ok := t.list.Selected(); ok {
		t.note(t.list.EnsureVisible(sel))
	}
}

// note records err for the status bar.
func (t *TreeModel) note(err error) {
	if err != nil {
		t.log.Warn().Err(err).Msg("tree view")
	}
	t.err = err
}

// NodeCount returns the number of visible rows.
func (t *TreeModel) NodeCount() int {
	n, err := t.index.Count()
	if err != nil {
		t.note(err)
		return 0
	}
	return n
}

// View renders the rows inside the window.
func (t *TreeModel) View() string {
	if !t.built || t.NodeCount() == 0 {
		return t.renderEmptyState()
	}

	items, err := t.list.Rows()
	if err != nil {
		t.note(err)
		return t.theme.Error.Render(err.Error())
	}
	sel, hasSel := t.list.Selected()
	counts := make(map[string]int)

	var sb strings.Builder
	for i, item := range items {
		row, ok := item.(*model.Row)
		if !ok {
			continue
		}
		line := t.renderRow(row, counts)
		if hasSel && t.list.First()+i == sel {
			line = t.theme.Selected.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderEmptyState renders the view when the source has no rows.
func (t *TreeModel) renderEmptyState() string {
	r := t.theme.Renderer

	titleStyle := r.NewStyle().
		Foreground(t.theme.Primary).
		Bold(true)

	mutedStyle := r.NewStyle().
		Foreground(t.theme.Muted)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(t.src.Name()))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("Nothing to display."))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("Press r to reload or q to quit."))

	return sb.String()
}

// renderRow renders a single row with tree characters and styling.
func (t *TreeModel) renderRow(row *model.Row, counts map[string]int) string {
	r := t.theme.Renderer
	var sb strings.Builder

	prefix := t.buildTreePrefix(visindex.Path(row.Path), counts)
	sb.WriteString(prefix)

	indicatorStyle := r.NewStyle().Foreground(t.theme.Secondary)
	sb.WriteString(indicatorStyle.Render(expandIndicator(row)))
	sb.WriteString(" ")

	icon, iconColor := t.theme.KindIcon(row.Kind)
	sb.WriteString(r.NewStyle().Foreground(iconColor).Render(icon))
	sb.WriteString(" ")

	// Use lipgloss.Width for proper display width (handles ANSI codes + Unicode)
	maxTitleLen := t.width - lipgloss.Width(prefix) - 4
	if maxTitleLen < 10 {
		maxTitleLen = 10
	}
	sb.WriteString(truncateTitle(row.Title, maxTitleLen))

	return sb.String()
}

// buildTreePrefix builds the indentation and branch characters for the
// node at p. counts caches child counts by parent path for one render.
func (t *TreeModel) buildTreePrefix(p visindex.Path, counts map[string]int) string {
	if len(p) <= 1 {
		return "" // Top-level rows have no prefix
	}

	var sb strings.Builder
	// Ancestors below the top level draw a rail while they have siblings
	// further down.
	for depth := 2; depth < len(p); depth++ {
		if t.hasSiblingsBelow(p[:depth], counts) {
			sb.WriteString("│   ")
		} else {
			sb.WriteString("    ")
		}
	}
	if t.hasSiblingsBelow(p, counts) {
		sb.WriteString("├── ")
	} else {
		sb.WriteString("└── ")
	}

	return t.theme.Renderer.NewStyle().Foreground(t.theme.Muted).Render(sb.String())
}

// hasSiblingsBelow reports whether the node at p is not its parent's last
// child. The parent of a visible row is expanded, so the index holds its
// full child count.
func (t *TreeModel) hasSiblingsBelow(p visindex.Path, counts map[string]int) bool {
	parent := p.Parent()
	key := parent.String()
	n, ok := counts[key]
	if !ok {
		var err error
		n, err = t.index.ChildCount(parent)
		if err != nil {
			n = 0
		}
		counts[key] = n
	}
	return p.Last() < n-1
}

// expandIndicator returns the expand/collapse indicator for a row.
func expandIndicator(row *model.Row) string {
	switch {
	case row.Expanded:
		return "▾"
	case row.HasChildren:
		return "▸"
	default:
		return "•"
	}
}

// truncateTitle truncates a title to the given display width with an
// ellipsis.
func truncateTitle(title string, maxWidth int) string {
	if maxWidth <= 1 {
		return "…"
	}
	return runewidth.Truncate(title, maxWidth, "…")
}

// SelectedRow returns the selected row, or nil if none.
func (t *TreeModel) SelectedRow() *model.Row {
	sel, ok := t.list.Selected()
	if !ok {
		return nil
	}
	if _, err := t.list.Rows(); err != nil {
		t.note(err)
		return nil
	}
	item, ok := t.list.ItemAt(sel)
	if !ok {
		return nil
	}
	row, _ := item.(*model.Row)
	return row
}

// SelectedPath returns the path of the selected row, or nil if none.
func (t *TreeModel) SelectedPath() visindex.Path {
	sel, ok := t.list.Selected()
	if !ok {
		return nil
	}
	p, err := t.index.PathFor(sel)
	if err != nil {
		return nil
	}
	return p
}

// SelectPath moves the selection to the node at p, or to its nearest
// visible ancestor. Returns true if p itself was selected.
func (t *TreeModel) SelectPath(p visindex.Path) bool {
	for q := p; len(q) > 0; q = q.Parent() {
		if flat, err := t.index.RankOf(q); err == nil {
			t.selectRow(flat)
			return len(q) == len(p)
		}
	}
	if t.NodeCount() > 0 {
		t.selectRow(0)
	}
	return false
}

func (t *TreeModel) selectRow(flat int) {
	if err := t.list.Select(flat); err != nil {
		t.note(err)
		return
	}
	t.note(t.list.EnsureVisible(flat))
}

// mutate runs fn with the window released and keeps the selection on the
// node selected before, shifted by adjust when fn moves it.
func (t *TreeModel) mutate(fn func() error, adjust func(visindex.Path) visindex.Path) error {
	sel := t.SelectedPath()
	err := t.list.Mutate(fn)
	if adjust != nil && sel != nil {
		sel = adjust(sel)
	}
	if sel != nil {
		t.SelectPath(sel)
	} else if t.NodeCount() > 0 {
		t.selectRow(0)
	}
	t.note(err)
	return err
}

// MoveDown moves the cursor down one row.
func (t *TreeModel) MoveDown() {
	if sel, ok := t.list.Selected(); ok && sel < t.NodeCount()-1 {
		t.selectRow(sel + 1)
	}
}

// MoveUp moves the cursor up one row.
func (t *TreeModel) MoveUp() {
	if sel, ok := t.list.Selected(); ok && sel > 0 {
		t.selectRow(sel - 1)
	}
}

// PageDown moves cursor down by half a viewport.
func (t *TreeModel) PageDown() {
	t.moveBy(t.pageSize())
}

// PageUp moves cursor up by half a viewport.
func (t *TreeModel) PageUp() {
	t.moveBy(-t.pageSize())
}

func (t *TreeModel) pageSize() int {
	pageSize := t.height / 2
	if pageSize < 1 {
		pageSize = 5
	}
	return pageSize
}

func (t *TreeModel) moveBy(delta int) {
	n := t.NodeCount()
	if n == 0 {
		return
	}
	sel, _ := t.list.Selected()
	t.selectRow(max(min(sel+delta, n-1), 0))
}

// JumpToTop moves cursor to the first row.
func (t *TreeModel) JumpToTop() {
	if t.NodeCount() > 0 {
		t.selectRow(0)
	}
}

// JumpToBottom moves cursor to the last row.
func (t *TreeModel) JumpToBottom() {
	if n := t.NodeCount(); n > 0 {
		t.selectRow(n - 1)
	}
}

// JumpToParent moves cursor to the parent of the selected row. Top-level
// rows have no parent row.
func (t *TreeModel) JumpToParent() {
	p := t.SelectedPath()
	if len(p) <= 1 {
		return
	}
	t.SelectPath(p.Parent())
}

// ToggleExpand expands or collapses the selected row.
func (t *TreeModel) ToggleExpand() {
	p := t.SelectedPath()
	if p == nil {
		return
	}
	expanded, err := t.index.IsExpanded(p)
	if err != nil {
		t.note(err)
		return
	}
	if expanded {
		t.collapse(p)
	} else {
		t.expand(p)
	}
}

func (t *TreeModel) expand(p visindex.Path) {
	if t.mutate(func() error { return t.index.Uncollapse(p) }, nil) == nil {
		t.saveState()
	}
}

func (t *TreeModel) collapse(p visindex.Path) {
	if t.mutate(func() error { return t.index.Collapse(p) }, nil) == nil {
		t.saveState()
	}
}

// ExpandOrMoveToChild handles the → / l key:
// - If the row is collapsed: expand it
// - If the row is expanded: move to its first child
// - If the node has no children: do nothing
func (t *TreeModel) ExpandOrMoveToChild() {
	row := t.SelectedRow()
	if row == nil {
		return
	}
	p := visindex.Path(row.Path).Clone()
	switch {
	case row.Expanded:
		t.SelectPath(p.Child(0))
	case row.HasChildren:
		t.expand(p)
	}
}

// CollapseOrJumpToParent handles the ← / h key:
// - If the row is expanded: collapse it
// - Otherwise: jump to the parent row
func (t *TreeModel) CollapseOrJumpToParent() {
	row := t.SelectedRow()
	if row == nil {
		return
	}
	if row.Expanded {
		t.collapse(visindex.Path(row.Path).Clone())
		return
	}
	t.JumpToParent()
}

// ExpandAll expands every node until MaxExpandRows rows are visible.
func (t *TreeModel) ExpandAll() {
	if t.mutate(func() error { return t.expandTo(-1) }, nil) == nil {
		t.saveState()
	}
}

// CollapseAll collapses every top-level node.
func (t *TreeModel) CollapseAll() {
	err := t.mutate(func() error {
		for _, p := range t.index.ExpandedPaths() {
			if len(p) != 1 {
				continue
			}
			if err := t.index.Collapse(p); err != nil {
				return err
			}
		}
		return nil
	}, func(sel visindex.Path) visindex.Path { return sel[:1] })
	if err == nil {
		t.saveState()
	}
}

// expandTo uncollapses every row whose path is at most depth long, or every
// row when depth is negative, in row order. It stops once maxExpandRows rows
// are visible. The caller must hold the list released.
func (t *TreeModel) expandTo(depth int) error {
	if depth == 0 {
		return nil
	}
	n, err := t.index.Count()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if t.maxExpandRows > 0 && n >= t.maxExpandRows {
			t.log.Info().Int("rows", n).Msg("expansion stopped at row limit")
			return nil
		}
		p, err := t.index.PathFor(i)
		if err != nil {
			return err
		}
		if depth > 0 && len(p) > depth {
			continue
		}
		if err := t.index.Uncollapse(p); err != nil {
			return err
		}
		if n, err = t.index.Count(); err != nil {
			return err
		}
	}
	return nil
}

// restore re-expands paths, parents first, skipping those that no longer
// resolve. The caller must hold the list released.
func (t *TreeModel) restore(paths []visindex.Path) error {
	if _, err := t.index.Count(); err != nil {
		return err
	}
	for _, p := range paths {
		err := t.index.Uncollapse(p)
		if errors.Is(err, visindex.ErrInvalidPath) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Reload re-reads the source and restores the expanded nodes that still
// exist.
func (t *TreeModel) Reload() error {
	expanded := t.index.ExpandedPaths()
	return t.mutate(func() error {
		if err := t.src.Reload(); err != nil {
			return err
		}
		t.index.NotifyDataSetChanged()
		return t.restore(expanded)
	}, nil)
}

// ReplaceTree swaps in a freshly parsed document for a document source.
func (t *TreeModel) ReplaceTree(tree *model.Tree) error {
	mem, ok := t.src.(*source.MemSource)
	if !ok {
		return fmt.Errorf("%s is not a document source", t.src.Name())
	}
	expanded := t.index.ExpandedPaths()
	return t.mutate(func() error {
		mem.Replace(tree)
		t.index.NotifyDataSetChanged()
		return t.restore(expanded)
	}, nil)
}

// ApplyEvents turns watcher events into incremental index updates for a
// directory source. Events for entries the view has never listed change
// nothing.
func (t *TreeModel) ApplyEvents(events []watcher.Event) error {
	ds, ok := t.src.(*source.DirSource)
	if !ok {
		return nil
	}
	sel := t.SelectedPath()
	err := t.list.Mutate(func() error {
		for _, ev := range events {
			switch ev.Op {
			case watcher.Created:
				p, ok := ds.Added(ev.Path)
				if !ok {
					continue
				}
				if err := ignoreUnmirrored(t.index.NotifyItemAdded(p)); err != nil {
					return err
				}
				sel = shiftedForInsert(sel, p)
			case watcher.Removed:
				p, ok := ds.Removed(ev.Path)
				if !ok {
					continue
				}
				if err := ignoreUnmirrored(t.index.NotifyItemRemoved(p)); err != nil {
					return err
				}
				sel = shiftedForRemove(sel, p)
			}
		}
		return nil
	})
	if sel != nil {
		t.SelectPath(sel)
	} else if t.NodeCount() > 0 {
		t.selectRow(0)
	}
	t.note(err)
	return err
}

// ignoreUnmirrored drops errors for changes below collapsed nodes: the
// source has recorded them and they show up on the next expand.
func ignoreUnmirrored(err error) error {
	if errors.Is(err, visindex.ErrInvalidPath) {
		return nil
	}
	return err
}

// shiftedForInsert returns sel adjusted for a node inserted at p.
func shiftedForInsert(sel, p visindex.Path) visindex.Path {
	d := len(p) - 1
	if len(sel) <= d || !sel[:d].Equal(p.Parent()) || sel[d] < p[d] {
		return sel
	}
	sel = sel.Clone()
	sel[d]++
	return sel
}

// shiftedForRemove returns sel adjusted for the node at p being removed. A
// selection inside the removed subtree lands on the node that took its
// place, or on the parent when p was the last child.
func shiftedForRemove(sel, p visindex.Path) visindex.Path {
	d := len(p) - 1
	if len(sel) <= d || !sel[:d].Equal(p.Parent()) || sel[d] < p[d] {
		return sel
	}
	if sel[d] == p[d] {
		return sel[:d+1].Clone()
	}
	sel = sel.Clone()
	sel[d]--
	return sel
}

// Breadcrumb describes the selected node: its filesystem path for directory
// sources, otherwise the titles from the top level down.
func (t *TreeModel) Breadcrumb() string {
	p := t.SelectedPath()
	if p == nil {
		return ""
	}
	if ds, ok := t.src.(*source.DirSource); ok {
		fsPath, err := ds.FSPath(p)
		if err == nil {
			return fsPath
		}
	}
	titles := make([]string, 0, len(p))
	for depth := 1; depth <= len(p); depth++ {
		title, err := t.titleAt(p[:depth])
		if err != nil {
			t.note(err)
			return p.String()
		}
		titles = append(titles, title)
	}
	return strings.Join(titles, " / ")
}

// titleAt fetches and immediately recycles the row at p.
func (t *TreeModel) titleAt(p visindex.Path) (string, error) {
	flat, err := t.index.RankOf(p)
	if err != nil {
		return "", err
	}
	item, err := t.index.Item(flat)
	if err != nil {
		return "", err
	}
	defer func() { _ = t.index.Recycle(flat, item) }()
	row, ok := item.(*model.Row)
	if !ok {
		return "", fmt.Errorf("unexpected item %T", item)
	}
	return row.Title, nil
}

// Close releases the window and saves state.
func (t *TreeModel) Close() error {
	t.saveState()
	return t.list.Release()
}

// saveState persists the expanded nodes of this source. Errors are logged
// but do not interrupt the user experience.
func (t *TreeModel) saveState() {
	if t.stateDir == "" {
		return
	}
	path := TreeStatePath(t.stateDir)

	state := readTreeState(path)
	if state == nil {
		state = DefaultTreeState()
	}
	var expanded []string
	for _, p := range t.index.ExpandedPaths() {
		expanded = append(expanded, p.String())
	}
	if len(expanded) == 0 {
		delete(state.Sources, t.src.Name())
	} else {
		state.Sources[t.src.Name()] = expanded
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		t.log.Warn().Err(err).Msg("failed to marshal tree state")
		return
	}
	if err := os.MkdirAll(t.stateDir, 0o755); err != nil {
		t.log.Warn().Err(err).Str("dir", t.stateDir).Msg("failed to create state directory")
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.log.Warn().Err(err).Str("path", path).Msg("failed to write tree state")
	}
}

// readTreeState reads the state file, returning nil if it is missing or
// unreadable.
func readTreeState(path string) *TreeState {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var state TreeState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil
	}
	if state.Sources == nil {
		state.Sources = make(map[string][]string)
	}
	return &state
}

// loadState restores expanded nodes from disk and reports whether any
// state was found for this source. The caller must hold the list released.
func (t *TreeModel) loadState() bool {
	if t.stateDir == "" {
		return false
	}
	path := TreeStatePath(t.stateDir)
	state := readTreeState(path)
	if state == nil {
		if _, err := os.Stat(path); err == nil {
			t.log.Warn().Str("path", path).Msg("invalid tree state file, using defaults")
		}
		return false
	}
	saved, ok := state.Sources[t.src.Name()]
	if !ok {
		return false
	}
	paths := make([]visindex.Path, 0, len(saved))
	for _, s := range saved {
		p, err := visindex.ParsePath(s)
		if err != nil || len(p) == 0 {
			continue // stale or hand-edited entry
		}
		paths = append(paths, p)
	}
	if err := t.restore(paths); err != nil {
		t.log.Warn().Err(err).Msg("restoring tree state")
	}
	return true
}
