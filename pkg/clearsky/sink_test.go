package clearsky

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_Path(t *testing.T) {
	s := NewFileSink("/data/detected", "detected_")

	tests := []struct {
		name string
		want string
	}{
		{"/data/capture/2024-03-14/image-001.jpg", "/data/detected/detected_image-001.jpg"},
		{"frame.png", "/data/detected/detected_frame.png"},
		{"/captures/light_0001.fits", "/data/detected/detected_light_0001.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Path(tt.name), tt.name)
	}
}

func TestFileSink_WriteAnnotated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	s := NewFileSink(dir, "detected_")

	img := Annotate(image.NewGray(image.Rect(0, 0, 32, 24)), nil, DefaultBoxColor)
	require.NoError(t, s.WriteAnnotated(context.Background(), "/captures/cam.jpg", img))

	written, err := imaging.Open(filepath.Join(dir, "detected_cam.jpg"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), written.Bounds())
}

func TestFileSink_Errors(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewFileSink(t.TempDir(), "d_").WriteAnnotated(ctx, "a.jpg", img)
	assert.ErrorIs(t, err, ErrSinkWrite)
	assert.ErrorIs(t, err, context.Canceled)

	// A regular file where the directory should be.
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	err = NewFileSink(blocker, "d_").WriteAnnotated(context.Background(), "a.jpg", img)
	assert.ErrorIs(t, err, ErrSinkWrite)
	assert.False(t, IsRunFatal(err))
}
