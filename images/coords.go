package images

import "github.com/chewxy/math32"

// Box is a bounding box in corner form. Coordinates may be relative
// (fractions of an image dimension) or absolute pixels; the conversion
// helpers below say which they expect.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// CenterBox is a bounding box in center form: center point plus width and
// height. Region proposals come off the network in this form.
type CenterBox struct {
	CX, CY, W, H float32
}

// ToCorners converts a center-form box to corner form.
func (c CenterBox) ToCorners() Box {
	return Box{
		X1: c.CX - c.W/2,
		Y1: c.CY - c.H/2,
		X2: c.CX + c.W/2,
		Y2: c.CY + c.H/2,
	}
}

// ToCenter converts a corner-form box to center form.
func (b Box) ToCenter() CenterBox {
	return CenterBox{
		CX: (b.X1 + b.X2) / 2,
		CY: (b.Y1 + b.Y2) / 2,
		W:  b.X2 - b.X1,
		H:  b.Y2 - b.Y1,
	}
}

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float32 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Scale multiplies all coordinates by a factor, e.g. to move a relative
// box into an absolute resolution.
func (b Box) Scale(factor float32) Box {
	return Box{b.X1 * factor, b.Y1 * factor, b.X2 * factor, b.Y2 * factor}
}

// Normalize divides absolute pixel coordinates by the image dimensions,
// yielding relative coordinates in [0, 1].
func (b Box) Normalize(width, height float32) Box {
	return Box{b.X1 / width, b.Y1 / height, b.X2 / width, b.Y2 / height}
}

// Denormalize multiplies relative coordinates back into absolute pixels.
func (b Box) Denormalize(width, height float32) Box {
	return Box{b.X1 * width, b.Y1 * height, b.X2 * width, b.Y2 * height}
}

// Clamp restricts the box to [0, width] x [0, height].
func (b Box) Clamp(width, height float32) Box {
	return Box{
		X1: math32.Min(math32.Max(b.X1, 0), width),
		Y1: math32.Min(math32.Max(b.Y1, 0), height),
		X2: math32.Min(math32.Max(b.X2, 0), width),
		Y2: math32.Min(math32.Max(b.Y2, 0), height),
	}
}

// Inside reports whether the box lies entirely within [0, width] x [0, height].
func (b Box) Inside(width, height float32) bool {
	return b.X1 >= 0 && b.Y1 >= 0 && b.X2 <= width && b.Y2 <= height
}

// ApplyPadding maps relative coordinates of the original image into
// relative coordinates of its pad-to-square version. Padding centers the
// image along its shorter axis, so that axis is compressed by the aspect
// ratio and shifted by half the leftover.
//
// Arguments:
//   - width, height: The original image dimensions in pixels.
//
// Returns:
//   - Box: The box in relative coordinates of the padded square image.
func (b Box) ApplyPadding(width, height float32) Box {
	switch {
	case width > height:
		r := height / width
		off := (1 - r) / 2
		return Box{b.X1, b.Y1*r + off, b.X2, b.Y2*r + off}
	case height > width:
		r := width / height
		off := (1 - r) / 2
		return Box{b.X1*r + off, b.Y1, b.X2*r + off, b.Y2}
	default:
		return b
	}
}

// RemovePadding is the inverse of ApplyPadding: it maps relative
// coordinates of the padded square image back onto the original image.
func (b Box) RemovePadding(width, height float32) Box {
	switch {
	case width > height:
		r := height / width
		off := (1 - r) / 2
		return Box{b.X1, (b.Y1 - off) / r, b.X2, (b.Y2 - off) / r}
	case height > width:
		r := width / height
		off := (1 - r) / 2
		return Box{(b.X1 - off) / r, b.Y1, (b.X2 - off) / r, b.Y2}
	default:
		return b
	}
}

// ToInputCoordinates converts a relative corner box on the original image
// into absolute pixel coordinates of the square model input. This is the
// transform ground-truth annotations go through before they can be
// compared against network proposals.
//
// Arguments:
//   - width, height: The original image dimensions in pixels.
//   - inputSize: The square model input edge length in pixels.
//
// Returns:
//   - Box: The box in absolute model-input coordinates.
func (b Box) ToInputCoordinates(width, height, inputSize float32) Box {
	return b.ApplyPadding(width, height).Scale(inputSize)
}

// FromInputCoordinates converts absolute model-input coordinates back to
// relative coordinates on the original image.
func (b Box) FromInputCoordinates(width, height, inputSize float32) Box {
	return b.Scale(1 / inputSize).RemovePadding(width, height)
}

// BoxIoU computes the intersection-over-union of two corner-form boxes.
// Degenerate or disjoint boxes score zero.
func BoxIoU(a, b Box) float32 {
	ix1 := math32.Max(a.X1, b.X1)
	iy1 := math32.Max(a.Y1, b.Y1)
	ix2 := math32.Min(a.X2, b.X2)
	iy2 := math32.Min(a.Y2, b.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
