// Package source provides backing models for the visible-item index: an
// in-memory tree, YAML and JSON documents, a directory on disk and a SQLite
// adjacency table. Every source hands out *model.Row items and keeps count of
// the rows that are out and not yet recycled.
package source

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vanderheijden86/flatree/pkg/model"
	"github.com/vanderheijden86/flatree/pkg/visindex"
)

var (
	// ErrForeignItem is returned when Recycle receives an item the source did
	// not produce for that path.
	ErrForeignItem = errors.New("item not produced by this source")

	// ErrUnsupported is returned by Open for paths no source can read.
	ErrUnsupported = errors.New("unsupported source")
)

// Source is a backing model the index and the UI can drive.
type Source interface {
	visindex.Provider

	// Name is a short label for headers and exports.
	Name() string
	// Live is the number of items handed out and not yet recycled.
	Live() int
	// Reload re-reads the underlying data. The caller must reset the index.
	Reload() error
	Close() error
}

// rows tracks handed-out rows.
type rows struct {
	live int
}

func (r *rows) produce(row *model.Row) visindex.Item {
	r.live++
	return row
}

func (r *rows) recycle(p visindex.Path, item visindex.Item) error {
	row, ok := item.(*model.Row)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignItem, item)
	}
	if !slices.Equal(row.Path, p) {
		return fmt.Errorf("%w: row %v returned at %s", ErrForeignItem, row.Path, p)
	}
	r.live--
	return nil
}

// Live is the number of rows handed out and not yet recycled.
func (r *rows) Live() int { return r.live }
