package clearsky

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBoxColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"", DefaultBoxColor, false},
		{"#ffff00", DefaultBoxColor, false},
		{"#00ff80", color.NRGBA{G: 255, B: 128, A: 255}, false},
		{"#f00", color.NRGBA{R: 255, A: 255}, false},
		{"yellow", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBoxColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnnotate_DrawsBoxes(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 96, 64))
	boxColor := color.NRGBA{R: 10, G: 200, B: 30, A: 255}
	detections := []Detection{
		{Position: image.Pt(40, 30), Box: image.Rect(40, 30, 45, 35)},
		{Position: image.Pt(80, 50), Box: image.Rect(80, 50, 85, 55)},
	}

	out := Annotate(src, detections, boxColor)
	require.Equal(t, src.Bounds(), out.Bounds())

	for _, p := range []image.Point{{40, 30}, {45, 30}, {45, 35}, {40, 35}, {42, 30}, {40, 33}, {80, 50}, {85, 55}} {
		assert.Equal(t, boxColor, out.NRGBAAt(p.X, p.Y), "edge pixel %v", p)
	}
	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(42, 32), "box interior untouched")

	// Source is not modified.
	assert.Equal(t, uint8(0), src.GrayAt(40, 30).Y)
}

func TestAnnotate_BoxesClippedAtEdges(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 40, 40))
	detections := []Detection{{Position: image.Pt(36, 36), Box: image.Rect(36, 36, 41, 41)}}

	out := Annotate(src, detections, DefaultBoxColor)
	assert.Equal(t, DefaultBoxColor, out.NRGBAAt(36, 36))
	assert.Equal(t, DefaultBoxColor, out.NRGBAAt(39, 36))
}

func TestAnnotate_Caption(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 120, 40))
	out := Annotate(src, nil, DefaultBoxColor)

	found := false
	for y := 0; y < 18 && !found; y++ {
		for x := 0; x < 80; x++ {
			if out.NRGBAAt(x, y) == DefaultBoxColor {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "caption text drawn in the box colour")
	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(110, 35))
}
