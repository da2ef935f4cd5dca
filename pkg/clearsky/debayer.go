package clearsky

// debayerRGGB interpolates a raw RGGB mosaic bilinearly and returns the
// luminance (R + G + B) / 3 per pixel.
//
// RGGB layout (row-major, 0-indexed):
//
//	(even row, even col) = R
//	(even row, odd  col) = G  (Gr)
//	(odd  row, even col) = G  (Gb)
//	(odd  row, odd  col) = B
//
// Edge pixels replicate their nearest neighbour.
func debayerRGGB(raw []float32, width, height int) []float32 {
	out := make([]float32, width*height)

	at := func(x, y int) float32 {
		x = min(max(x, 0), width-1)
		y = min(max(y, 0), height-1)
		return raw[y*width+x]
	}
	cross := func(x, y int) float32 {
		return (at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1)) / 4
	}
	diag := func(x, y int) float32 {
		return (at(x-1, y-1) + at(x+1, y-1) + at(x-1, y+1) + at(x+1, y+1)) / 4
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var r, g, b float32
			switch {
			case y%2 == 0 && x%2 == 0:
				r, g, b = at(x, y), cross(x, y), diag(x, y)
			case y%2 == 0:
				r = (at(x-1, y) + at(x+1, y)) / 2
				g = at(x, y)
				b = (at(x, y-1) + at(x, y+1)) / 2
			case x%2 == 0:
				r = (at(x, y-1) + at(x, y+1)) / 2
				g = at(x, y)
				b = (at(x-1, y) + at(x+1, y)) / 2
			default:
				r, g, b = diag(x, y), cross(x, y), at(x, y)
			}
			out[y*width+x] = (r + g + b) / 3
		}
	}
	return out
}

// debayerToMat converts raw RGGB pixels to a luminance Mat in [0, 1].
func debayerToMat(pixels []uint16, bitDepth, width, height int) Mat {
	maxVal := float32(uint64(1)<<uint(bitDepth) - 1)
	raw := make([]float32, len(pixels))
	for i, p := range pixels {
		raw[i] = float32(p) / maxVal
	}
	m := NewMatWithSize(height, width)
	copy(m.DataFloat32(), debayerRGGB(raw, width, height))
	return m
}
