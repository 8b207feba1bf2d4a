package inference

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
)

// padFill is the gray the letterbox bands are filled with.
var padFill = color.RGBA{114, 114, 114, 255}

// PadToSquare centers an image on a square canvas whose edge is the longer
// of the two image dimensions, filling the leftover bands with neutral
// gray. Aspect ratio is preserved; box coordinates move according to
// images.Box.ApplyPadding.
func PadToSquare(img image.Image) image.Image {
	bounds := img.Bounds().Canon()
	w, h := bounds.Dx(), bounds.Dy()
	if w == h {
		return img
	}

	side := w
	if h > side {
		side = h
	}
	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(padFill), image.Point{}, draw.Src)

	offset := image.Pt((side-w)/2, (side-h)/2)
	draw.Draw(canvas, bounds.Sub(bounds.Min).Add(offset), img, bounds.Min, draw.Src)
	return canvas
}

// PrepareInput fills a CHW float32 buffer with a model-ready rendition of
// the image: pad to square, Lanczos3 resize to the input edge length, and
// scale channels to [0, 1].
//
// Arguments:
//   - img: The image to prepare.
//   - inputSize: The square model input edge length in pixels.
//   - dst: The destination buffer to populate, at least 3*inputSize^2 long.
//
// Returns:
//   - error: An error if the buffer is too small.
func PrepareInput(img image.Image, inputSize int, dst []float32) error {
	channelSize := inputSize * inputSize
	if len(dst) < channelSize*3 {
		return fmt.Errorf("destination buffer only holds %d floats, needs "+
			"%d (make sure it's the right shape!)", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	img = PadToSquare(img)
	img = resize.Resize(uint(inputSize), uint(inputSize), img, resize.Lanczos3)

	i := 0
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}
