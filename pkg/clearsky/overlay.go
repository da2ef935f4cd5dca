package clearsky

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultBoxColor is the detection box colour (yellow).
var DefaultBoxColor = color.NRGBA{R: 255, G: 255, B: 0, A: 255}

// ParseBoxColor parses a "#rrggbb" colour for detection boxes.
func ParseBoxColor(hex string) (color.NRGBA, error) {
	if hex == "" {
		return DefaultBoxColor, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid box colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Annotate returns a copy of src with a 1px box per detection and a star
// count caption in the top-left corner. The copy is rebased to (0, 0), the
// origin detection boxes are expressed in.
func Annotate(src image.Image, detections []Detection, boxColor color.NRGBA) *image.NRGBA {
	img := imaging.Clone(src)
	for _, d := range detections {
		drawBox(img, d.Box, boxColor)
	}

	caption := fmt.Sprintf("stars: %d", len(detections))
	face := basicfont.Face7x13
	advance := font.MeasureString(face, caption).Round()
	bg := image.Rect(0, 0, advance+8, 18)
	draw.Draw(img, bg, image.NewUniform(color.NRGBA{A: 160}), image.Point{}, draw.Over)
	drawText(img, face, caption, bg.Min.X+4, bg.Min.Y+13, boxColor)
	return img
}

// drawBox draws the outline of r, inclusive of its Max corner, matching the
// (x, y)-(x+w, y+h) rectangle convention of the detection boxes.
func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	drawLine(img, r.Min.X, r.Min.Y, r.Max.X, r.Min.Y, c)
	drawLine(img, r.Max.X, r.Min.Y, r.Max.X, r.Max.Y, c)
	drawLine(img, r.Max.X, r.Max.Y, r.Min.X, r.Max.Y, c)
	drawLine(img, r.Min.X, r.Max.Y, r.Min.X, r.Min.Y, c)
}

// drawText draws a string at (x, y) using the given font face.
func drawText(img draw.Image, face font.Face, s string, x, y int, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawLine draws a 1px line between two points using Bresenham's algorithm.
// Points outside the image are clipped by Set.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := intAbs(x1 - x0)
	dy := -intAbs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		img.SetNRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
