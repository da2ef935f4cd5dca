package clearsky

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// dotImage returns a black image with a single full-intensity pixel at
// each center.
func dotImage(w, h int, centers ...image.Point) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for _, c := range centers {
		img.SetGray(c.X, c.Y, color.Gray{Y: 255})
	}
	return img
}

// dotTemplate is a 5x5 template with a single bright center pixel.
func dotTemplate(t *testing.T) *Template {
	t.Helper()
	tmpl, err := TemplateFromImage(dotImage(5, 5, image.Pt(2, 2)))
	require.NoError(t, err)
	t.Cleanup(tmpl.Close)
	return tmpl
}

func dotFrame(t *testing.T, name string, w, h int, centers ...image.Point) *Frame {
	t.Helper()
	f := FrameFromImage(name, dotImage(w, h, centers...))
	t.Cleanup(f.Close)
	return f
}

// matFromValues builds a rows x cols Mat from row-major values.
func matFromValues(t *testing.T, cols, rows int, values []float32) Mat {
	t.Helper()
	require.Len(t, values, cols*rows)
	m := NewMatWithSize(rows, cols)
	copy(m.DataFloat32(), values)
	t.Cleanup(m.Close)
	return m
}

// scoreMapWith returns a w x h map that is zero except at pts, which score v.
func scoreMapWith(w, h int, v float32, pts ...image.Point) *ScoreMap {
	s := NewScoreMap(w, h)
	for _, p := range pts {
		s.Set(p.X, p.Y, v)
	}
	return s
}

type fakeTransport struct {
	mu      sync.Mutex
	alerts  []Alert
	receipt AlertReceipt
	err     error
}

func (f *fakeTransport) SendAlert(_ context.Context, a Alert) (AlertReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.receipt, f.err
}

func (f *fakeTransport) calls() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Alert(nil), f.alerts...)
}

type fakeSink struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (f *fakeSink) WriteAnnotated(_ context.Context, name string, _ image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return f.err
}

var errBoom = errors.New("boom")
