// Package visualize - Rendering evaluation boxes onto test images.
package visualize

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-hiereval/images"
)

// LabeledBox is one box to draw, in absolute coordinates of the target
// image.
type LabeledBox struct {
	Box   images.Box
	Label string
	// Score is appended to the label when non-negative.
	Score float32
}

// rankColor assigns the j-th of n boxes a color on a red-anchored ramp,
// so higher-ranked boxes stand apart from lower-ranked ones.
func rankColor(j, n int) color.RGBA {
	if n <= 0 {
		n = 1
	}
	step := uint8(j * 255 / n)
	return color.RGBA{R: 255, G: 255 - step, B: step, A: 0}
}

// clampToImage restricts a box to the image extent, reporting whether it
// had to move.
func clampToImage(b images.Box, width, height int) (images.Box, bool) {
	clamped := b.Clamp(float32(width), float32(height))
	return clamped, clamped != b
}

// DrawBoxes renders labeled boxes onto a Mat. Boxes reaching outside the
// image are logged and clamped rather than dropped; the label text sits
// just below each box.
//
// Arguments:
//   - mat: The target image.
//   - boxes: The boxes to draw, best first.
func DrawBoxes(mat *gocv.Mat, boxes []LabeledBox) {
	width := mat.Cols()
	height := mat.Rows()

	for j, lb := range boxes {
		box, moved := clampToImage(lb.Box, width, height)
		if moved {
			log.Printf("Box for %q (%.1f, %.1f, %.1f, %.1f) reaches outside the %dx%d image, clamping",
				lb.Label, lb.Box.X1, lb.Box.Y1, lb.Box.X2, lb.Box.Y2, width, height)
		}

		c := rankColor(j, len(boxes))
		rect := image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2))
		gocv.Rectangle(mat, rect, c, 2)

		label := lb.Label
		if lb.Score >= 0 {
			label = fmt.Sprintf("%s %.2f", lb.Label, lb.Score)
		}
		gocv.PutText(mat, label, image.Pt(rect.Min.X, rect.Max.Y+14),
			gocv.FontHersheyPlain, 0.9, c, 1)
	}
}

// letterboxBorders computes the centered padding that grows a fitted
// image to the square render size.
func letterboxBorders(width, height, size int) (top, bottom, left, right int) {
	top = (size - height) / 2
	bottom = size - height - top
	left = (size - width) / 2
	right = size - width - left
	return top, bottom, left, right
}

// RenderToFile draws boxes over an encoded image and writes the result.
// The image goes through the same pad-to-square-and-resize the model
// input does, so boxes in absolute input coordinates land where the
// network saw them.
//
// Arguments:
//   - imageBytes: The encoded source image.
//   - format: The source encoding.
//   - inputSize: The square edge length the boxes are expressed in.
//   - boxes: The boxes to draw, best first.
//   - outPath: Destination file, parent directories created as needed.
//
// Returns:
//   - error: An error if decoding, drawing, or writing fails.
func RenderToFile(imageBytes []byte, format images.ImageFormat, inputSize int, boxes []LabeledBox, outPath string) error {
	// vips downscales the image to fit within the square, keeping the
	// aspect ratio; the leftover becomes the centered letterbox bands.
	fitted, err := images.ResizeToMat(imageBytes, inputSize, inputSize, format)
	if err != nil {
		return err
	}
	defer fitted.Close()

	top, bottom, left, right := letterboxBorders(fitted.Cols(), fitted.Rows(), inputSize)
	mat := gocv.NewMat()
	defer mat.Close()
	gocv.CopyMakeBorder(fitted, &mat, top, bottom, left, right,
		gocv.BorderConstant, color.RGBA{R: 114, G: 114, B: 114, A: 0})

	DrawBoxes(&mat, boxes)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if !gocv.IMWrite(outPath, mat) {
		return fmt.Errorf("failed to write annotated image to %s", outPath)
	}
	return nil
}
