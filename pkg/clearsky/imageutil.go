/*
Extracted from HocusFocus plugin by George Hilios.
Original Copyright © 2021 George Hilios <ghilios+NINA@googlemail.com>
Licensed under Mozilla Public License 2.0.
Ported to Go.
*/

package clearsky

import (
	"image"
	"math"
)

// ToFloat32Mat converts a uint16 pixel array to a CV_32F Mat normalized to [0, 1].
func ToFloat32Mat(pixels []uint16, bpp, width, height int) Mat {
	data := NewMatWithSize(height, width)
	dest := data.DataFloat32()
	scalingRatio := float32(uint32(1) << uint(bpp))
	numPixels := width * height
	for i := 0; i < numPixels; i++ {
		dest[i] = float32(pixels[i]) / scalingRatio
	}
	return data
}

// GrayToMat converts an 8-bit grayscale image to a CV_32F Mat in [0, 1].
func GrayToMat(g *image.Gray) Mat {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	m := NewMatWithSize(h, w)
	dest := m.DataFloat32()
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			dest[y*w+x] = float32(v) / 255
		}
	}
	return m
}

// MatToGray renders a float Mat as 8-bit grayscale, linearly stretching
// [min, max] to [0, 255]. Used to annotate frames that have no colour source.
func MatToGray(m Mat) *image.Gray {
	w, h := m.Cols(), m.Rows()
	g := image.NewGray(image.Rect(0, 0, w, h))
	data := m.DataFloat32()
	n := w * h
	if n == 0 {
		return g
	}

	lo, hi := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, v := range data[:n] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}
	for i, v := range data[:n] {
		g.Pix[(i/w)*g.Stride+i%w] = uint8(math.Round(float64((v - lo) / span * 255)))
	}
	return g
}

// matMeanStdDev returns the mean and population standard deviation of m.
func matMeanStdDev(m Mat) (float64, float64) {
	data := m.DataFloat32()
	n := m.Rows() * m.Cols()
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(data[i])
	}
	mean := sum / float64(n)
	var sse float64
	for i := 0; i < n; i++ {
		d := float64(data[i]) - mean
		sse += d * d
	}
	return mean, math.Sqrt(sse / float64(n))
}
