package clearsky

import (
	"fmt"
	"image"
)

// Template is the reference star pattern. It is loaded once and shared
// read-only by every detection run.
type Template struct {
	Mat    Mat
	Width  int
	Height int
}

// NewTemplate wraps m as a Template. The Template takes ownership of m.
func NewTemplate(m Mat) (*Template, error) {
	if m.Empty() {
		return nil, fmt.Errorf("%w: template is empty", ErrDecode)
	}
	return &Template{Mat: m, Width: m.Cols(), Height: m.Rows()}, nil
}

// Size returns the template dimensions as (w, h).
func (t *Template) Size() image.Point { return image.Pt(t.Width, t.Height) }

func (t *Template) Close() { t.Mat.Close() }

// Match computes the normalized cross-correlation (TM_CCOEFF_NORMED) of
// tmpl against every window of img. The score map is
// (img.Cols-tmpl.Width+1) x (img.Rows-tmpl.Height+1).
func Match(img Mat, tmpl *Template) (*ScoreMap, error) {
	if tmpl == nil || tmpl.Mat.Empty() {
		return nil, fmt.Errorf("%w: template is empty", ErrDecode)
	}
	if img.Empty() {
		return nil, fmt.Errorf("%w: image is empty", ErrDecode)
	}
	if img.Cols() < tmpl.Width || img.Rows() < tmpl.Height {
		return nil, fmt.Errorf("%w: image %dx%d, template %dx%d",
			ErrDimension, img.Cols(), img.Rows(), tmpl.Width, tmpl.Height)
	}

	result, err := matchTemplateCCoeffNormed(img, tmpl.Mat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMatch, err)
	}
	defer result.Close()

	w := img.Cols() - tmpl.Width + 1
	h := img.Rows() - tmpl.Height + 1
	if result.Cols() != w || result.Rows() != h {
		return nil, fmt.Errorf("%w: score map is %dx%d, expected %dx%d",
			ErrMatch, result.Cols(), result.Rows(), w, h)
	}

	scores := NewScoreMap(w, h)
	copy(scores.Scores, result.DataFloat32())
	return scores, nil
}
