package export

import (
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/flatree/pkg/model"
)

// Outline geometry in pixels. Text metrics follow basicfont.Face7x13 so the
// SVG and PNG renderings line up.
const (
	margin      = 16
	titleHeight = 28
	rowHeight   = 20
	indentWidth = 18
	charWidth   = 7
	markerSize  = 4
	textGap     = 10
	minWidth    = 240
)

// placedRow is a row with its marker position. ParentX and ParentY locate
// the parent's marker; HasParent is false for top-level rows.
type placedRow struct {
	Row       model.Row
	X, Y      int
	ParentX   int
	ParentY   int
	HasParent bool
}

// TextX returns where the title starts.
func (p placedRow) TextX() int { return p.X + markerSize + textGap }

// Baseline returns the text baseline for the row.
func (p placedRow) Baseline() int { return p.Y + 4 }

type layout struct {
	Width  int
	Height int
	Title  string
	Rows   []placedRow
}

// computeLayout places one row per line, indented by depth, with a
// connector back to the nearest shallower row above it.
func computeLayout(rows []model.Row, title string) layout {
	l := layout{
		Width:  max(minWidth, 2*margin+runewidth.StringWidth(title)*charWidth),
		Height: 2*margin + titleHeight + len(rows)*rowHeight,
		Title:  title,
		Rows:   make([]placedRow, 0, len(rows)),
	}

	var parents []placedRow // parents[d] is the last row seen at depth d
	for i, r := range rows {
		p := placedRow{
			Row: r,
			X:   margin + markerSize + r.Depth*indentWidth,
			Y:   margin + titleHeight + i*rowHeight + rowHeight/2,
		}
		if r.Depth > 0 && r.Depth <= len(parents) {
			parent := parents[r.Depth-1]
			p.ParentX, p.ParentY, p.HasParent = parent.X, parent.Y, true
		}
		if r.Depth < len(parents) {
			parents = parents[:r.Depth]
		}
		parents = append(parents, p)

		right := p.TextX() + runewidth.StringWidth(r.Title)*charWidth + margin
		if right > l.Width {
			l.Width = right
		}
		l.Rows = append(l.Rows, p)
	}
	return l
}

// kindColor returns the marker fill for a node kind.
func kindColor(k model.Kind) string {
	switch k {
	case model.KindGroup, model.KindDir:
		return "#7D56F4"
	case model.KindRecord:
		return "#1F77B4"
	case model.KindValue:
		return "#2CA02C"
	case model.KindFile:
		return "#FF7F0E"
	default:
		return "#888888"
	}
}

const (
	backgroundColor = "#FFFFFF"
	textColor       = "#222222"
	connectorColor  = "#BBBBBB"
)
