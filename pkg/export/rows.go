// Package export renders the visible rows of a tree as markdown, SVG or
// PNG outlines.
package export

import (
	"fmt"

	"github.com/vanderheijden86/flatree/pkg/model"
	"github.com/vanderheijden86/flatree/pkg/visindex"
)

// RowSource is the part of the index an export reads. *visindex.Index
// satisfies it.
type RowSource interface {
	Count() (int, error)
	Item(flat int) (visindex.Item, error)
	Recycle(flat int, item visindex.Item) error
}

// CollectRows copies the visible rows in order, recycling each item as
// soon as it is copied. Items must be *model.Row.
func CollectRows(src RowSource) ([]model.Row, error) {
	n, err := src.Count()
	if err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	rows := make([]model.Row, 0, n)
	for i := 0; i < n; i++ {
		item, err := src.Item(i)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		row, ok := item.(*model.Row)
		if !ok {
			_ = src.Recycle(i, item)
			return nil, fmt.Errorf("row %d: unexpected item type %T", i, item)
		}
		rows = append(rows, *row)
		if err := src.Recycle(i, item); err != nil {
			return nil, fmt.Errorf("recycling row %d: %w", i, err)
		}
	}
	return rows, nil
}

// Summary counts what an outline shows.
type Summary struct {
	Rows      int `json:"rows"`
	Expanded  int `json:"expanded"`  // rows showing their children
	Collapsed int `json:"collapsed"` // rows hiding children
	MaxDepth  int `json:"max_depth"`
}

// Summarize computes the summary for rows.
func Summarize(rows []model.Row) Summary {
	s := Summary{Rows: len(rows)}
	for _, r := range rows {
		switch {
		case r.HasChildren && r.Expanded:
			s.Expanded++
		case r.HasChildren:
			s.Collapsed++
		}
		if r.Depth > s.MaxDepth {
			s.MaxDepth = r.Depth
		}
	}
	return s
}
