package inference

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-hiereval/images"
)

// RegressROI applies one set of box regression deltas (dx, dy, dw, dh) to
// a proposal. Deltas shift the center relative to the proposal size and
// scale the extent exponentially, the standard Faster R-CNN transform.
func RegressROI(roi images.Box, deltas [4]float32) images.Box {
	c := roi.ToCenter()
	return images.CenterBox{
		CX: deltas[0]*c.W + c.CX,
		CY: deltas[1]*c.H + c.CY,
		W:  math32.Exp(deltas[2]) * c.W,
		H:  math32.Exp(deltas[3]) * c.H,
	}.ToCorners()
}

// RegressROIs refines every proposal using the delta set of its assigned
// class, clamping results to the model input. Proposals assigned to the
// background class pass through unchanged.
//
// Arguments:
//   - out: One image's network outputs.
//   - labels: Per-proposal raw class indices, background = 0.
//   - inputSize: The square model input edge length in pixels.
//
// Returns:
//   - []images.Box: The refined proposal boxes.
//   - error: An error if a label has no delta set in the regression row.
func RegressROIs(out *RawOutputs, labels []int, inputSize float32) ([]images.Box, error) {
	n := out.NumProposals()
	if len(labels) != n {
		return nil, fmt.Errorf("have %d labels for %d proposals", len(labels), n)
	}

	boxes := make([]images.Box, n)
	for i := 0; i < n; i++ {
		roi, err := out.ROIBox(i)
		if err != nil {
			return nil, err
		}
		if labels[i] == 0 {
			boxes[i] = roi
			continue
		}

		row, err := out.RegressionRow(i)
		if err != nil {
			return nil, err
		}
		base := labels[i] * 4
		if base+4 > len(row) {
			return nil, fmt.Errorf("proposal %d: label %d has no regression deltas (row length %d)",
				i, labels[i], len(row))
		}

		var deltas [4]float32
		copy(deltas[:], row[base:base+4])
		boxes[i] = RegressROI(roi, deltas).Clamp(inputSize, inputSize)
	}
	return boxes, nil
}
