package export

import (
	"fmt"
	"io"
	"os"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/flatree/pkg/model"
)

// GeneratePNG draws the same outline as GenerateSVG into a PNG image.
// Titles use the built-in 7x13 bitmap font, so glyphs outside ASCII
// render as boxes.
func GeneratePNG(w io.Writer, rows []model.Row, title string) error {
	l := computeLayout(rows, title)

	dc := gg.NewContext(l.Width, l.Height)
	dc.SetHexColor(backgroundColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetHexColor(textColor)
	dc.DrawString(l.Title, margin, margin+14)

	dc.SetHexColor(connectorColor)
	dc.SetLineWidth(1)
	for _, p := range l.Rows {
		if p.HasParent {
			dc.DrawLine(float64(p.ParentX), float64(p.ParentY), float64(p.ParentX), float64(p.Y))
			dc.DrawLine(float64(p.ParentX), float64(p.Y), float64(p.X-markerSize), float64(p.Y))
		}
	}
	dc.Stroke()

	for _, p := range l.Rows {
		x, y, s := float64(p.X), float64(p.Y), float64(markerSize)
		dc.SetHexColor(kindColor(p.Row.Kind))
		switch {
		case p.Row.HasChildren && p.Row.Expanded:
			dc.DrawRectangle(x-s, y-s, 2*s, 2*s)
			dc.Fill()
		case p.Row.HasChildren:
			dc.SetLineWidth(1.5)
			dc.DrawRectangle(x-s, y-s, 2*s, 2*s)
			dc.Stroke()
		default:
			dc.DrawCircle(x, y, s-1)
			dc.Fill()
		}

		dc.SetHexColor(textColor)
		dc.DrawString(p.Row.Title, float64(p.TextX()), float64(p.Baseline()))
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// SavePNGToFile writes the PNG outline to filename.
func SavePNGToFile(rows []model.Row, title, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := GeneratePNG(f, rows, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
