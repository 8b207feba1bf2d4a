package eval

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-hiereval/images"
)

// EvaluateDetections computes one class's average precision from its
// detections and ground truth, both indexed per image.
//
// Detections are matched greedily in descending score order: a detection
// is a true positive when its best-overlapping unclaimed ground-truth box
// meets the IoU threshold, a false positive otherwise. Each ground-truth
// box is claimed at most once. Difficult boxes neither count as positives
// nor penalize the detections matching them.
//
// Classes without ground truth score NaN, which the mean skips.
//
// Arguments:
//   - dets: Per-image detection lists for the class.
//   - gts: Per-image ground-truth records for the class.
//   - iouThreshold: Minimum IoU for a match, typically 0.5.
//   - use07Metric: Use the 11-point interpolated metric instead of the
//     continuous one.
//
// Returns:
//   - float32: The average precision, NaN when the class has no ground
//     truth.
//   - error: An error if the per-image indices do not line up.
func EvaluateDetections(
	dets [][]Detection,
	gts []*GroundTruthRecord,
	iouThreshold float32,
	use07Metric bool,
) (float32, error) {
	if len(dets) != len(gts) {
		return 0, fmt.Errorf("detections cover %d images, ground truth covers %d", len(dets), len(gts))
	}

	npos := 0
	claimed := make([][]bool, len(gts))
	for i, rec := range gts {
		if len(rec.Boxes) != len(rec.Difficult) || len(rec.Boxes) != len(rec.Detected) {
			return 0, fmt.Errorf("image %d: ragged ground-truth record", i)
		}
		for _, diff := range rec.Difficult {
			if !diff {
				npos++
			}
		}
		// Matching state is kept local so repeated evaluations of the same
		// records give the same answer.
		claimed[i] = make([]bool, len(rec.Boxes))
	}
	if npos == 0 {
		return math32.NaN(), nil
	}

	type flatDet struct {
		img   int
		box   images.Box
		score float32
	}
	var flat []flatDet
	for img, list := range dets {
		for _, d := range list {
			flat = append(flat, flatDet{img: img, box: d.Box, score: d.Score})
		}
	}
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].score > flat[j].score
	})

	tp := make([]float32, len(flat))
	fp := make([]float32, len(flat))
	for i, d := range flat {
		rec := gts[d.img]

		best := float32(-1)
		bestIdx := -1
		for g, gtBox := range rec.Boxes {
			if iou := images.BoxIoU(d.box, gtBox); iou > best {
				best = iou
				bestIdx = g
			}
		}

		if bestIdx < 0 || best < iouThreshold {
			fp[i] = 1
			continue
		}
		if rec.Difficult[bestIdx] {
			continue
		}
		if claimed[d.img][bestIdx] {
			fp[i] = 1
			continue
		}
		claimed[d.img][bestIdx] = true
		rec.Detected[bestIdx] = true
		tp[i] = 1
	}

	recall := make([]float32, len(flat))
	precision := make([]float32, len(flat))
	var tpSum, fpSum float32
	for i := range flat {
		tpSum += tp[i]
		fpSum += fp[i]
		recall[i] = tpSum / float32(npos)
		precision[i] = tpSum / math32.Max(tpSum+fpSum, 1e-8)
	}

	if use07Metric {
		return elevenPointAP(recall, precision), nil
	}
	return continuousAP(recall, precision), nil
}

// elevenPointAP interpolates precision at the eleven recall thresholds
// 0.0, 0.1, ..., 1.0 and averages them.
func elevenPointAP(recall, precision []float32) float32 {
	var ap float32
	for t := float32(0); t <= 1.0001; t += 0.1 {
		var p float32
		for i := range recall {
			if recall[i] >= t && precision[i] > p {
				p = precision[i]
			}
		}
		ap += p / 11
	}
	return ap
}

// continuousAP integrates the monotone precision envelope over recall.
func continuousAP(recall, precision []float32) float32 {
	// Sentinels close the curve at both ends.
	r := make([]float32, 0, len(recall)+2)
	p := make([]float32, 0, len(precision)+2)
	r = append(r, 0)
	r = append(r, recall...)
	r = append(r, 1)
	p = append(p, 0)
	p = append(p, precision...)
	p = append(p, 0)

	for i := len(p) - 2; i >= 0; i-- {
		p[i] = math32.Max(p[i], p[i+1])
	}

	var ap float32
	for i := 1; i < len(r); i++ {
		if r[i] != r[i-1] {
			ap += (r[i] - r[i-1]) * p[i]
		}
	}
	return ap
}

// MeanAP averages per-class APs, skipping NaN entries. All-NaN input
// yields NaN.
func MeanAP(aps map[string]float32) float32 {
	var sum float32
	n := 0
	for _, ap := range aps {
		if math32.IsNaN(ap) {
			continue
		}
		sum += ap
		n++
	}
	if n == 0 {
		return math32.NaN()
	}
	return sum / float32(n)
}
