//go:build !purego && !js

package clearsky

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Backend names the template matching implementation: OpenCV through gocv.
const Backend = "gocv"

// Mat wraps gocv.Mat for the native OpenCV backend.
type Mat struct {
	m  gocv.Mat
	ok bool
}

func NewMatWithSize(rows, cols int) Mat {
	return Mat{m: gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F), ok: true}
}

func (mat Mat) Rows() int   { return mat.m.Rows() }
func (mat Mat) Cols() int   { return mat.m.Cols() }
func (mat Mat) Empty() bool { return !mat.ok || mat.m.Empty() }
func (mat Mat) Clone() Mat  { return Mat{m: mat.m.Clone(), ok: mat.ok} }

func (mat *Mat) Close() {
	if mat.ok {
		mat.m.Close()
		mat.ok = false
	}
}

func (mat Mat) DataFloat32() []float32 {
	data, _ := mat.m.DataPtrFloat32()
	return data
}

// --- CV operations ---

// matchTemplateCCoeffNormed scores every window of img against tmpl with
// OpenCV's TM_CCOEFF_NORMED. The result is (rows-th+1) x (cols-tw+1).
func matchTemplateCCoeffNormed(img, tmpl Mat) (Mat, error) {
	result := gocv.NewMat()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(img.m, tmpl.m, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		result.Close()
		return Mat{}, fmt.Errorf("opencv returned an empty score matrix")
	}
	if result.Type() != gocv.MatTypeCV32F {
		converted := gocv.NewMat()
		result.ConvertTo(&converted, gocv.MatTypeCV32F)
		result.Close()
		result = converted
	}
	return Mat{m: result, ok: true}, nil
}
