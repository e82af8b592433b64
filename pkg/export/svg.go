package export

import (
	"fmt"
	"io"
	"os"

	svg "github.com/ajstarks/svgo"

	"github.com/vanderheijden86/flatree/pkg/model"
)

// GenerateSVG draws rows as an indented outline with connectors and a
// marker per row: squares for rows with children (hollow when collapsed),
// dots for leaves.
func GenerateSVG(w io.Writer, rows []model.Row, title string) error {
	l := computeLayout(rows, title)

	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, "fill:"+backgroundColor)
	canvas.Text(margin, margin+14, l.Title,
		fmt.Sprintf("font-family:monospace;font-size:14px;font-weight:bold;fill:%s", textColor))

	connector := fmt.Sprintf("stroke:%s;stroke-width:1", connectorColor)
	for _, p := range l.Rows {
		if p.HasParent {
			canvas.Line(p.ParentX, p.ParentY, p.ParentX, p.Y, connector)
			canvas.Line(p.ParentX, p.Y, p.X-markerSize, p.Y, connector)
		}
	}

	for _, p := range l.Rows {
		color := kindColor(p.Row.Kind)
		switch {
		case p.Row.HasChildren && p.Row.Expanded:
			canvas.Rect(p.X-markerSize, p.Y-markerSize, 2*markerSize, 2*markerSize, "fill:"+color)
		case p.Row.HasChildren:
			canvas.Rect(p.X-markerSize, p.Y-markerSize, 2*markerSize, 2*markerSize,
				fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.5", backgroundColor, color))
		default:
			canvas.Circle(p.X, p.Y, markerSize-1, "fill:"+color)
		}
		canvas.Text(p.TextX(), p.Baseline(), p.Row.Title,
			fmt.Sprintf("font-family:monospace;font-size:12px;fill:%s", textColor))
	}

	canvas.End()
	return nil
}

// SaveSVGToFile writes the SVG outline to filename.
func SaveSVGToFile(rows []model.Row, title, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := GenerateSVG(f, rows, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
