package clearsky

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
)

// Frame is one decoded sky-camera capture.
type Frame struct {
	// Name identifies the capture, usually its path.
	Name string
	// Gray is the grayscale intensity Mat the template is matched against.
	Gray Mat
	// Source is the decoded image used for annotation. For FITS captures it
	// is a stretched rendering of Gray.
	Source image.Image
	// Exposure is the capture's exposure time, zero when unknown.
	Exposure time.Duration
}

func (f *Frame) Close() { f.Gray.Close() }

// LoadFrame decodes the capture at path. FITS files (.fits, .fit, .fts) go
// through the FITS reader; everything else through imaging, with EXIF
// orientation applied. Decode failures wrap ErrDecode.
func LoadFrame(path string) (*Frame, error) {
	if isFitsPath(path) {
		return loadFitsFrame(path)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return FrameFromImage(path, img), nil
}

// FrameFromImage builds a Frame from an already decoded image.
func FrameFromImage(name string, img image.Image) *Frame {
	return &Frame{Name: name, Gray: GrayToMat(toGray(img)), Source: img}
}

// LoadTemplate decodes the template image at path as grayscale.
func LoadTemplate(path string) (*Template, error) {
	frame, err := LoadFrame(path)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	tmpl, err := NewTemplate(frame.Gray)
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", path, err)
	}
	return tmpl, nil
}

// TemplateFromImage builds a Template from an already decoded image.
func TemplateFromImage(img image.Image) (*Template, error) {
	return NewTemplate(GrayToMat(toGray(img)))
}

// toGray converts img to 8-bit luminance with BT.601 weights, the same
// weighting OpenCV uses for BGR2GRAY.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	filter := gift.New(gift.Grayscale())
	dst := image.NewGray(filter.Bounds(img.Bounds()))
	filter.Draw(dst, img)
	return dst
}

func isFitsPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		return true
	}
	return false
}

func loadFitsFrame(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	defer f.Close()

	fits, err := readFits(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}

	gray := fitsToMat(fits)
	frame := &Frame{Name: path, Gray: gray, Source: MatToGray(gray)}
	if secs, ok := fits.Header.exposure(); ok {
		frame.Exposure = time.Duration(secs * float64(time.Second))
	}
	return frame, nil
}
