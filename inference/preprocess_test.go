package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPadToSquare(t *testing.T) {
	t.Run("square image is returned unchanged", func(t *testing.T) {
		img := uniformImage(8, 8, color.RGBA{10, 20, 30, 255})
		assert.Equal(t, img, PadToSquare(img))
	})

	t.Run("landscape image gets vertical bands", func(t *testing.T) {
		img := uniformImage(8, 4, color.RGBA{200, 0, 0, 255})
		padded := PadToSquare(img)

		bounds := padded.Bounds()
		require.Equal(t, 8, bounds.Dx())
		require.Equal(t, 8, bounds.Dy())

		// Top band is fill, center rows are image content.
		r, g, b, _ := padded.At(4, 0).RGBA()
		assert.Equal(t, uint32(padFill.R), r>>8)
		assert.Equal(t, uint32(padFill.G), g>>8)
		assert.Equal(t, uint32(padFill.B), b>>8)

		r, _, _, _ = padded.At(4, 4).RGBA()
		assert.Equal(t, uint32(200), r>>8)
	})

	t.Run("portrait image gets horizontal bands", func(t *testing.T) {
		img := uniformImage(4, 8, color.RGBA{0, 0, 200, 255})
		padded := PadToSquare(img)

		require.Equal(t, 8, padded.Bounds().Dx())
		require.Equal(t, 8, padded.Bounds().Dy())

		r, _, _, _ := padded.At(0, 4).RGBA()
		assert.Equal(t, uint32(padFill.R), r>>8)

		_, _, b, _ := padded.At(4, 4).RGBA()
		assert.Equal(t, uint32(200), b>>8)
	})
}

func TestPrepareInput(t *testing.T) {
	const size = 8
	img := uniformImage(size, size, color.RGBA{255, 0, 128, 255})

	dst := make([]float32, 3*size*size)
	require.NoError(t, PrepareInput(img, size, dst))

	channel := size * size
	for i := 0; i < channel; i++ {
		assert.InDelta(t, 1.0, dst[i], 0.01, "red at %d", i)
		assert.InDelta(t, 0.0, dst[channel+i], 0.01, "green at %d", i)
		assert.InDelta(t, 0.5, dst[2*channel+i], 0.01, "blue at %d", i)
	}
}

func TestPrepareInputBufferTooSmall(t *testing.T) {
	img := uniformImage(4, 4, color.RGBA{})
	err := PrepareInput(img, 8, make([]float32, 10))
	assert.Error(t, err)
}
