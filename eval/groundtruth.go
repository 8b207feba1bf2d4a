package eval

import (
	"fmt"

	"github.com/nvr-ai/go-hiereval/dataset"
	"github.com/nvr-ai/go-hiereval/hierarchy"
)

// GroundTruthExpander turns per-image dataset annotations into per-class
// ground truth, crediting every annotation to its own class and to all of
// that class's ancestors in the hierarchy.
type GroundTruthExpander struct {
	helper *hierarchy.Helper
	mapper *hierarchy.OutputMapper
}

// NewGroundTruthExpander creates an expander for one hierarchy.
func NewGroundTruthExpander(helper *hierarchy.Helper) *GroundTruthExpander {
	return &GroundTruthExpander{
		helper: helper,
		mapper: helper.Mapper(),
	}
}

// Expand builds the per-class ground truth for a run. Every class gets a
// record for every image, empty where the class does not appear, so
// per-image indices stay aligned across classes. Derived ancestor boxes
// share their annotation's coordinates and are never difficult.
//
// An annotation whose expansion does not contain its own class indicates
// a corrupt hierarchy and is returned as an error; the caller must treat
// it as fatal.
//
// Arguments:
//   - perImage: One annotation list per test image, background rows
//     already filtered.
//
// Returns:
//   - PerClassGroundTruth: Expanded ground truth, background excluded.
//   - error: An error on out-of-range labels or a broken expansion.
func (e *GroundTruthExpander) Expand(perImage [][]dataset.Annotation) (PerClassGroundTruth, error) {
	classes := e.mapper.AllClasses()

	out := make(PerClassGroundTruth, len(classes)-1)
	for _, class := range classes[1:] {
		records := make([]*GroundTruthRecord, len(perImage))
		for i := range records {
			records[i] = &GroundTruthRecord{}
		}
		out[class] = records
	}

	for imgIdx, annotations := range perImage {
		for _, ann := range annotations {
			expanded, err := e.mapper.ExpandLabel(e.helper, ann.Label)
			if err != nil {
				return nil, fmt.Errorf("image %d: %w", imgIdx, err)
			}

			name, err := e.helper.OriginalClassName(ann.Label)
			if err != nil {
				return nil, fmt.Errorf("image %d: %w", imgIdx, err)
			}
			own, err := e.mapper.ClassIndex(name)
			if err != nil {
				return nil, fmt.Errorf("image %d: %w", imgIdx, err)
			}
			if !containsIndex(expanded, own) {
				return nil, fmt.Errorf("image %d: expansion of label %d (%s) does not contain the class itself",
					imgIdx, ann.Label, name)
			}

			for _, classIdx := range expanded {
				class, err := e.mapper.ClassName(classIdx)
				if err != nil {
					return nil, fmt.Errorf("image %d: %w", imgIdx, err)
				}
				rec := out[class][imgIdx]
				rec.Boxes = append(rec.Boxes, ann.Box)
				rec.Difficult = append(rec.Difficult, false)
				rec.Detected = append(rec.Detected, false)
			}
		}
	}
	return out, nil
}

func containsIndex(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
