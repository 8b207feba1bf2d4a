package eval

import (
	"fmt"

	"github.com/nvr-ai/go-hiereval/hierarchy"
)

// PredictionAssembler turns raw per-ROI network outputs into per-class
// detection lists ready for AP scoring.
type PredictionAssembler struct {
	helper *hierarchy.Helper
	mapper *hierarchy.OutputMapper
}

// NewPredictionAssembler creates an assembler for one hierarchy.
func NewPredictionAssembler(helper *hierarchy.Helper) *PredictionAssembler {
	return &PredictionAssembler{
		helper: helper,
		mapper: helper.Mapper(),
	}
}

// Assemble decodes every ROI's raw score vector top-down, reduces it to
// the class space, and files one detection per class with a non-zero
// score. The background entry never produces detections. Every class
// keeps one (possibly empty) list per image.
//
// A reduced vector whose length disagrees with the configured class count
// indicates a layout mismatch between model and hierarchy and is returned
// as an error; the caller must treat it as fatal.
//
// Arguments:
//   - perImage: One ImagePredictions per test image.
//
// Returns:
//   - PerClassDetections: Detections grouped class-major, image-major.
//   - error: An error on score/ROI count mismatch or vector length
//     mismatch.
func (a *PredictionAssembler) Assemble(perImage []ImagePredictions) (PerClassDetections, error) {
	classes := a.mapper.AllClasses()
	numClasses := a.mapper.NumClasses()

	out := make(PerClassDetections, len(classes)-1)
	for _, class := range classes[1:] {
		out[class] = make([][]Detection, len(perImage))
		for i := range out[class] {
			out[class][i] = []Detection{}
		}
	}

	for imgIdx, preds := range perImage {
		if len(preds.Scores) != len(preds.ROIs) {
			return nil, fmt.Errorf("image %d: %d score vectors for %d proposals",
				imgIdx, len(preds.Scores), len(preds.ROIs))
		}

		for roiIdx, raw := range preds.Scores {
			decoded, err := a.helper.TopDownDecode(raw)
			if err != nil {
				return nil, fmt.Errorf("image %d proposal %d: %w", imgIdx, roiIdx, err)
			}
			reduced, err := a.mapper.ReduceVector(decoded)
			if err != nil {
				return nil, fmt.Errorf("image %d proposal %d: %w", imgIdx, roiIdx, err)
			}
			if len(reduced) != numClasses {
				return nil, fmt.Errorf("image %d proposal %d: reduced vector has %d entries, expected %d classes",
					imgIdx, roiIdx, len(reduced), numClasses)
			}

			for classIdx := 1; classIdx < numClasses; classIdx++ {
				score := reduced[classIdx]
				if score == 0 {
					continue
				}
				class := classes[classIdx]
				out[class][imgIdx] = append(out[class][imgIdx], Detection{
					Box:   preds.ROIs[roiIdx],
					Score: score,
				})
			}
		}
	}
	return out, nil
}
