package clearsky

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noiseValues(seed int64, n int) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()
	}
	return out
}

func cropValues(values []float32, stride int, r image.Rectangle) []float32 {
	out := make([]float32, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		out = append(out, values[y*stride+r.Min.X:y*stride+r.Max.X]...)
	}
	return out
}

func TestMatch_ScoreMapDimensions(t *testing.T) {
	frame := dotFrame(t, "dims", 40, 30)
	scores, err := Match(frame.Gray, dotTemplate(t))
	require.NoError(t, err)
	assert.Equal(t, 36, scores.Width)
	assert.Equal(t, 26, scores.Height)
	assert.Len(t, scores.Scores, 36*26)
}

func TestMatch_PeakAtTemplatePosition(t *testing.T) {
	const w, h = 48, 32
	values := noiseValues(7, w*h)
	at := image.Pt(21, 9)
	tmplMat := matFromValues(t, 7, 7, cropValues(values, w, image.Rect(at.X, at.Y, at.X+7, at.Y+7)))
	tmpl, err := NewTemplate(tmplMat.Clone())
	require.NoError(t, err)
	defer tmpl.Close()

	scores, err := Match(matFromValues(t, w, h, values), tmpl)
	require.NoError(t, err)

	best, pos := scores.Max()
	assert.Equal(t, at, pos)
	assert.InDelta(t, 1.0, best, 1e-4)
}

func TestMatch_InvariantToBrightnessAndContrast(t *testing.T) {
	const w, h = 48, 32
	values := noiseValues(11, w*h)
	at := image.Pt(5, 17)
	tmpl, err := NewTemplate(matFromValues(t, 6, 6, cropValues(values, w, image.Rect(at.X, at.Y, at.X+6, at.Y+6))).Clone())
	require.NoError(t, err)
	defer tmpl.Close()

	scaled := make([]float32, len(values))
	for i, v := range values {
		scaled[i] = 0.4*v + 0.3
	}

	base, err := Match(matFromValues(t, w, h, values), tmpl)
	require.NoError(t, err)
	adjusted, err := Match(matFromValues(t, w, h, scaled), tmpl)
	require.NoError(t, err)

	_, basePos := base.Max()
	best, adjustedPos := adjusted.Max()
	assert.Equal(t, at, basePos)
	assert.Equal(t, at, adjustedPos)
	assert.InDelta(t, 1.0, best, 1e-3)
	for i := range base.Scores {
		assert.InDelta(t, base.Scores[i], adjusted.Scores[i], 1e-3, "score %d", i)
	}
}

func TestMatch_FlatImageScoresZero(t *testing.T) {
	values := make([]float32, 20*20)
	for i := range values {
		values[i] = 0.5
	}
	scores, err := Match(matFromValues(t, 20, 20, values), dotTemplate(t))
	require.NoError(t, err)
	for _, v := range scores.Scores {
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestMatch_DotScores(t *testing.T) {
	frame := dotFrame(t, "dots", 32, 32, image.Pt(10, 10), image.Pt(25, 20))
	scores, err := Match(frame.Gray, dotTemplate(t))
	require.NoError(t, err)

	// A lone dot in the window center is a perfect match.
	assert.InDelta(t, 1.0, scores.At(8, 8), 1e-4)
	assert.InDelta(t, 1.0, scores.At(23, 18), 1e-4)
	// Off-center dots correlate slightly negatively; empty windows score 0.
	assert.InDelta(t, -1.0/24, scores.At(9, 8), 1e-4)
	assert.InDelta(t, 0, scores.At(0, 20), 1e-6)
}

func TestMatch_ImageSmallerThanTemplate(t *testing.T) {
	frame := dotFrame(t, "small", 4, 12)
	_, err := Match(frame.Gray, dotTemplate(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimension)
	assert.True(t, IsRunFatal(err))
}

func TestMatch_EmptyInputs(t *testing.T) {
	frame := dotFrame(t, "ok", 10, 10)

	_, err := Match(Mat{}, dotTemplate(t))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Match(frame.Gray, nil)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = NewTemplate(Mat{})
	assert.ErrorIs(t, err, ErrDecode)
}
