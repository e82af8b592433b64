package source

import (
	"database/sql"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/flatree/pkg/model"
	"github.com/vanderheijden86/flatree/pkg/visindex"
)

// ErrCyclic is returned when the parent relation of a nodes table loops.
var ErrCyclic = errors.New("nodes table parent relation has a cycle")

const nodesSchema = `CREATE TABLE IF NOT EXISTS nodes (
	id        INTEGER PRIMARY KEY,
	parent_id INTEGER NULL REFERENCES nodes(id),
	position  INTEGER NOT NULL,
	title     TEXT NOT NULL,
	kind      TEXT NOT NULL DEFAULT 'record'
);
CREATE INDEX IF NOT EXISTS nodes_parent ON nodes(parent_id, position);`

// Positions are renumbered 0..n-1 per parent so a path component is a
// position.
const renumberPositions = `UPDATE nodes SET position = r.rn FROM (
	SELECT id, ROW_NUMBER() OVER (PARTITION BY parent_id ORDER BY position, id) - 1 AS rn
	FROM nodes
) AS r WHERE r.id = nodes.id AND nodes.position != r.rn`

// SQLSource serves an adjacency-list table in a SQLite database.
type SQLSource struct {
	rows
	db   *sql.DB
	path string
}

// OpenSQL opens (or creates) the database at path, checks the parent
// relation is a forest and normalizes sibling positions.
func OpenSQL(path string) (*SQLSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLSource{db: db, path: path}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLSource) init() error {
	if _, err := s.db.Exec(nodesSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if _, err := s.db.Exec(renumberPositions); err != nil {
		return fmt.Errorf("normalize positions: %w", err)
	}
	return nil
}

func (s *SQLSource) Name() string { return s.path }
func (s *SQLSource) Close() error { return s.db.Close() }

// Reload renormalizes positions after outside edits.
func (s *SQLSource) Reload() error { return s.init() }

// Validate checks every parent exists and the parent relation has no
// cycles.
func (s *SQLSource) Validate() error {
	rows, err := s.db.Query("SELECT id, parent_id FROM nodes")
	if err != nil {
		return fmt.Errorf("query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	g := simple.NewDirectedGraph()
	parents := make(map[int64]int64)
	for rows.Next() {
		var id int64
		var parent sql.NullInt64
		if err := rows.Scan(&id, &parent); err != nil {
			return fmt.Errorf("scan node: %w", err)
		}
		if g.Node(id) == nil {
			g.AddNode(simple.Node(id))
		}
		if parent.Valid {
			if parent.Int64 == id {
				return fmt.Errorf("%w: node %d is its own parent", ErrCyclic, id)
			}
			parents[id] = parent.Int64
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for id, parent := range parents {
		if g.Node(parent) == nil {
			return fmt.Errorf("node %d: parent %d does not exist", id, parent)
		}
		g.SetEdge(g.NewEdge(g.Node(parent), g.Node(id)))
	}
	if _, err := topo.Sort(g); err != nil {
		return fmt.Errorf("%w: %v", ErrCyclic, err)
	}
	return nil
}

// idAt resolves p to a row id. The empty path is the NULL parent.
func (s *SQLSource) idAt(p visindex.Path) (sql.NullInt64, error) {
	var id sql.NullInt64
	for depth, i := range p {
		var next int64
		err := s.db.QueryRow(
			"SELECT id FROM nodes WHERE parent_id IS ? AND position = ?", id, i,
		).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return id, fmt.Errorf("path %s: no node at depth %d", p, depth)
		}
		if err != nil {
			return id, fmt.Errorf("resolve %s: %w", p, err)
		}
		id = sql.NullInt64{Int64: next, Valid: true}
	}
	return id, nil
}

func (s *SQLSource) countChildren(parent sql.NullInt64) (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM nodes WHERE parent_id IS ?", parent).Scan(&n); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

// ChildCount implements visindex.Provider.
func (s *SQLSource) ChildCount(p visindex.Path) (int, error) {
	id, err := s.idAt(p)
	if err != nil {
		return 0, err
	}
	return s.countChildren(id)
}

// Item implements visindex.Provider.
func (s *SQLSource) Item(p visindex.Path, leaf bool) (visindex.Item, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("the root has no row")
	}
	id, err := s.idAt(p)
	if err != nil {
		return nil, err
	}
	var title, kind string
	if err := s.db.QueryRow("SELECT title, kind FROM nodes WHERE id = ?", id).Scan(&title, &kind); err != nil {
		return nil, fmt.Errorf("load node %d: %w", id.Int64, err)
	}
	n, err := s.countChildren(id)
	if err != nil {
		return nil, err
	}
	row := &model.Row{
		Path:        append([]int(nil), p...),
		Depth:       len(p) - 1,
		Title:       title,
		Kind:        model.Kind(kind),
		Leaf:        leaf,
		Expanded:    !leaf,
		HasChildren: n > 0,
	}
	return s.produce(row), nil
}

// Recycle implements visindex.Provider.
func (s *SQLSource) Recycle(p visindex.Path, item visindex.Item) error {
	return s.recycle(p, item)
}

// Seed appends the nodes of tree under the top level.
func (s *SQLSource) Seed(tree *model.Tree) error {
	start, err := s.countChildren(sql.NullInt64{})
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for i, n := range tree.Roots {
		if err := seedNode(tx, sql.NullInt64{}, start+i, n); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func seedNode(tx *sql.Tx, parent sql.NullInt64, pos int, n *model.Node) error {
	kind := n.Kind
	if kind == "" {
		kind = model.KindRecord
	}
	res, err := tx.Exec("INSERT INTO nodes (parent_id, position, title, kind) VALUES (?, ?, ?, ?)",
		parent, pos, n.Title, string(kind))
	if err != nil {
		return fmt.Errorf("insert %q: %w", n.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i, c := range n.Children {
		if err := seedNode(tx, sql.NullInt64{Int64: id, Valid: true}, i, c); err != nil {
			return err
		}
	}
	return nil
}

// InsertAt adds a childless node at p, shifting later siblings. The caller
// notifies the index with the same path.
func (s *SQLSource) InsertAt(p visindex.Path, title string, kind model.Kind) error {
	if len(p) == 0 {
		return fmt.Errorf("cannot insert at the root")
	}
	parent, err := s.idAt(p.Parent())
	if err != nil {
		return err
	}
	n, err := s.countChildren(parent)
	if err != nil {
		return err
	}
	pos := p.Last()
	if pos < 0 || pos > n {
		return fmt.Errorf("path %s: insert position %d out of range", p, pos)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec("UPDATE nodes SET position = position + 1 WHERE parent_id IS ? AND position >= ?", parent, pos); err != nil {
		return fmt.Errorf("shift siblings: %w", err)
	}
	if err := seedNode(tx, parent, pos, &model.Node{Title: title, Kind: kind}); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveAt deletes the node at p with its subtree. The caller notifies the
// index with the same path.
func (s *SQLSource) RemoveAt(p visindex.Path) error {
	if len(p) == 0 {
		return fmt.Errorf("cannot remove the root")
	}
	id, err := s.idAt(p)
	if err != nil {
		return err
	}
	parent, err := s.idAt(p.Parent())
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.Exec(`WITH RECURSIVE sub(id) AS (
		SELECT ? UNION ALL SELECT n.id FROM nodes n JOIN sub ON n.parent_id = sub.id
	) DELETE FROM nodes WHERE id IN (SELECT id FROM sub)`, id)
	if err != nil {
		return fmt.Errorf("delete subtree: %w", err)
	}
	if _, err := tx.Exec("UPDATE nodes SET position = position - 1 WHERE parent_id IS ? AND position > ?", parent, p.Last()); err != nil {
		return fmt.Errorf("shift siblings: %w", err)
	}
	return tx.Commit()
}
