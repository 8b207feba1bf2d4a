// Package eval - Hierarchical detection evaluation: ground-truth
// expansion, prediction assembly, and per-class average precision.
package eval

import "github.com/nvr-ai/go-hiereval/images"

// Detection is one scored box for a single class on a single image.
type Detection struct {
	Box   images.Box
	Score float32
}

// PerClassDetections holds detections grouped class-major, image-major:
// one (possibly empty) list per test image for every class. Images with
// no detections keep their empty slot so per-image indices line up with
// the ground truth.
type PerClassDetections map[string][][]Detection

// GroundTruthRecord is one class's ground truth on one image. The three
// slices run in parallel, one entry per box.
type GroundTruthRecord struct {
	Boxes []images.Box
	// Difficult marks boxes excluded from the positive count. The
	// hierarchy expansion never produces difficult boxes, but the AP
	// matcher honors the flag.
	Difficult []bool
	// Detected tracks greedy matching state during AP computation.
	Detected []bool
}

// PerClassGroundTruth holds expanded ground truth grouped class-major,
// image-major, mirroring PerClassDetections.
type PerClassGroundTruth map[string][]*GroundTruthRecord

// ImagePredictions is one image's network output in evaluation form: the
// raw class score vector and the proposal box for each ROI, boxes in
// absolute model-input coordinates.
type ImagePredictions struct {
	Scores [][]float32
	ROIs   []images.Box
}
