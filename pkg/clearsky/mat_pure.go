//go:build purego || js

package clearsky

import (
	"fmt"
	"math"
)

// Backend names the template matching implementation: pure Go.
const Backend = "purego"

// Mat is a pure Go 2D float32 matrix.
type Mat struct {
	data []float32
	rows int
	cols int
}

func NewMatWithSize(rows, cols int) Mat {
	return Mat{
		data: make([]float32, rows*cols),
		rows: rows,
		cols: cols,
	}
}

func (m Mat) Rows() int   { return m.rows }
func (m Mat) Cols() int   { return m.cols }
func (m Mat) Empty() bool { return m.data == nil || m.rows == 0 || m.cols == 0 }

func (m Mat) Clone() Mat {
	newData := make([]float32, len(m.data))
	copy(newData, m.data)
	return Mat{data: newData, rows: m.rows, cols: m.cols}
}

func (m *Mat) Close() {
	m.data = nil
	m.rows = 0
	m.cols = 0
}

// DataFloat32 returns the backing float32 slice.
func (m Mat) DataFloat32() []float32 {
	return m.data
}

// --- Pure Go CV operations ---

// integralSums builds (rows+1) x (cols+1) summed-area tables of the pixel
// values and their squares.
func integralSums(src Mat) ([]float64, []float64) {
	stride := src.cols + 1
	sum := make([]float64, (src.rows+1)*stride)
	sq := make([]float64, (src.rows+1)*stride)
	for r := 0; r < src.rows; r++ {
		var rowSum, rowSq float64
		rowOff := r * src.cols
		for c := 0; c < src.cols; c++ {
			v := float64(src.data[rowOff+c])
			rowSum += v
			rowSq += v * v
			sum[(r+1)*stride+c+1] = sum[r*stride+c+1] + rowSum
			sq[(r+1)*stride+c+1] = sq[r*stride+c+1] + rowSq
		}
	}
	return sum, sq
}

func windowSum(table []float64, stride, x, y, w, h int) float64 {
	return table[(y+h)*stride+x+w] - table[y*stride+x+w] - table[(y+h)*stride+x] + table[y*stride+x]
}

// matchTemplateCCoeffNormed mirrors OpenCV's TM_CCOEFF_NORMED, including its
// handling of near-zero-variance windows.
func matchTemplateCCoeffNormed(img, tmpl Mat) (Mat, error) {
	th, tw := tmpl.rows, tmpl.cols
	rows := img.rows - th + 1
	cols := img.cols - tw + 1
	if rows <= 0 || cols <= 0 {
		return Mat{}, fmt.Errorf("template %dx%d does not fit image %dx%d", tw, th, img.cols, img.rows)
	}

	n := float64(th * tw)
	var tSum float64
	for _, v := range tmpl.data[:th*tw] {
		tSum += float64(v)
	}
	tMean := tSum / n
	tCentered := make([]float64, th*tw)
	var tNorm2 float64
	for i, v := range tmpl.data[:th*tw] {
		d := float64(v) - tMean
		tCentered[i] = d
		tNorm2 += d * d
	}
	tNorm := math.Sqrt(tNorm2)

	sum, sq := integralSums(img)
	stride := img.cols + 1

	out := NewMatWithSize(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			// sum(T') == 0, so correlating against the raw window equals
			// correlating against the mean-subtracted one.
			var num float64
			for ty := 0; ty < th; ty++ {
				row := img.data[(y+ty)*img.cols+x : (y+ty)*img.cols+x+tw]
				trow := tCentered[ty*tw : ty*tw+tw]
				for tx, v := range row {
					num += trow[tx] * float64(v)
				}
			}

			s := windowSum(sum, stride, x, y, tw, th)
			s2 := windowSum(sq, stride, x, y, tw, th)
			t := math.Sqrt(math.Max(s2-s*s/n, 0)) * tNorm

			switch {
			case math.Abs(num) < t:
				num /= t
			case math.Abs(num) < t*1.125:
				if num > 0 {
					num = 1
				} else {
					num = -1
				}
			default:
				num = 0
			}
			out.data[y*cols+x] = float32(num)
		}
	}
	return out, nil
}
