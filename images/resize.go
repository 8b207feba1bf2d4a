package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/cshum/vipsgen/vips"
	"gocv.io/x/gocv"
)

// ImageFormat represents supported test-image formats.
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota
	FormatWebP
	FormatPNG
)

// FormatForPath determines the image format from a file extension.
//
// Arguments:
//   - path: The image file path.
//
// Returns:
//   - ImageFormat: The detected format.
//   - error: An error for unsupported extensions.
func FormatForPath(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".webp":
		return FormatWebP, nil
	case ".png":
		return FormatPNG, nil
	default:
		return 0, fmt.Errorf("unsupported image extension %q", filepath.Ext(path))
	}
}

// DecodeImage decodes an encoded image buffer into a Go-native image.Image.
//
// Arguments:
//   - b: The encoded image bytes.
//   - format: The buffer's encoding.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if decoding fails.
func DecodeImage(b []byte, format ImageFormat) (image.Image, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	switch format {
	case FormatJPEG:
		return jpeg.Decode(bytes.NewReader(b))
	case FormatWebP:
		return webp.Decode(bytes.NewReader(b))
	case FormatPNG:
		return png.Decode(bytes.NewReader(b))
	default:
		return nil, fmt.Errorf("unsupported image format: %d", format)
	}
}

// LoadImage reads an image file and decodes it, detecting the format from
// the file extension.
func LoadImage(path string) (image.Image, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	img, err := DecodeImage(b, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// ResizeToImage resizes an encoded image buffer to fit within the given
// bounds, preserving the aspect ratio, and returns a Go-native
// image.Image. Resizing runs through libvips and the result is re-encoded
// in the source format before the final decode.
//
// Arguments:
//   - imageBytes: The encoded image bytes.
//   - width: The width to resize the image to.
//   - height: The height to resize the image to.
//   - format: The buffer's encoding.
//
// Returns:
//   - image.Image: The resized image.
//   - error: An error if the image fails to resize.
func ResizeToImage(imageBytes []byte, width, height int, format ImageFormat) (image.Image, error) {
	if len(imageBytes) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}

	resized, err := resizeBuffer(imageBytes, width, height, format)
	if err != nil {
		return nil, err
	}
	return DecodeImage(resized, format)
}

// ResizeToMat resizes an encoded image buffer to fit within the given
// bounds, preserving the aspect ratio, and decodes it into a gocv.Mat for
// OpenCV-based rendering.
func ResizeToMat(imageBytes []byte, width, height int, format ImageFormat) (gocv.Mat, error) {
	resized, err := resizeBuffer(imageBytes, width, height, format)
	if err != nil {
		return gocv.NewMat(), err
	}
	mat, err := gocv.IMDecode(resized, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		return gocv.NewMat(), fmt.Errorf("failed to decode resized image")
	}
	return mat, nil
}

// resizeBuffer runs the vips thumbnail pipeline and re-encodes in the
// source format.
func resizeBuffer(imageBytes []byte, width, height int, format ImageFormat) ([]byte, error) {
	img, err := vips.NewImageFromBuffer(imageBytes, &vips.LoadOptions{
		Access: vips.AccessSequential,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	defer img.Close()

	err = img.ThumbnailImage(width, &vips.ThumbnailImageOptions{
		Height: height,
		FailOn: vips.FailOnError,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}

	var resized []byte
	switch format {
	case FormatJPEG:
		resized, err = img.JpegsaveBuffer(&vips.JpegsaveBufferOptions{})
	case FormatWebP:
		resized, err = img.WebpsaveBuffer(&vips.WebpsaveBufferOptions{})
	case FormatPNG:
		resized, err = img.PngsaveBuffer(&vips.PngsaveBufferOptions{})
	default:
		return nil, fmt.Errorf("unsupported image format: %d", format)
	}
	if err != nil || len(resized) == 0 {
		return nil, fmt.Errorf("failed to encode resized image")
	}
	return resized, nil
}
