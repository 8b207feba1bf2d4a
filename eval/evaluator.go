package eval

import (
	"fmt"
	"image"
	"log"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/nvr-ai/go-hiereval/dataset"
	"github.com/nvr-ai/go-hiereval/hierarchy"
	"github.com/nvr-ai/go-hiereval/images"
	"github.com/nvr-ai/go-hiereval/inference"
)

// Model runs the detection network over one decoded image.
type Model interface {
	Run(img image.Image) (*inference.RawOutputs, error)
}

// Config configures an evaluation run.
type Config struct {
	// ImageDir is the test-set directory.
	ImageDir string
	// NumTestImages limits the run to the first N images, 0 for all.
	NumTestImages int
	// InputSize is the square model input edge length in pixels.
	InputSize int
	// IoUThreshold is the match threshold for AP, 0 for the default 0.5.
	IoUThreshold float32
	// Use07Metric selects the 11-point AP metric over the continuous one.
	Use07Metric bool
	// ApplyRegression refines proposals with the model's box deltas
	// before scoring. Off by default; raw proposals evaluate directly.
	ApplyRegression bool
	// ShowProgress renders a progress bar during the image loop.
	ShowProgress bool
}

// Evaluator drives a full evaluation run: inference over the test set,
// ground-truth expansion, prediction assembly, and per-class AP.
type Evaluator struct {
	config    Config
	helper    *hierarchy.Helper
	model     Model
	expander  *GroundTruthExpander
	assembler *PredictionAssembler
}

// Report is the outcome of an evaluation run.
type Report struct {
	// Classes lists the evaluated classes in hierarchy order,
	// background excluded.
	Classes []string
	// PerClassAP maps each class to its average precision; NaN marks
	// classes absent from the ground truth.
	PerClassAP map[string]float32
	// MeanAP is the NaN-skipping mean over PerClassAP.
	MeanAP float32
	// Detections holds the assembled detections the APs were computed
	// from, for rendering or inspection. Image indices follow the
	// test-set order.
	Detections PerClassDetections
}

// NewEvaluator validates the configuration and assembles a run.
//
// Arguments:
//   - config: The run configuration.
//   - helper: The label hierarchy the model was trained with.
//   - model: The inference backend.
//
// Returns:
//   - *Evaluator: The ready evaluator.
//   - error: An error on invalid configuration.
func NewEvaluator(config Config, helper *hierarchy.Helper, model Model) (*Evaluator, error) {
	if helper == nil {
		return nil, fmt.Errorf("evaluator requires a hierarchy")
	}
	if model == nil {
		return nil, fmt.Errorf("evaluator requires a model")
	}
	if config.InputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d", config.InputSize)
	}
	if config.IoUThreshold == 0 {
		config.IoUThreshold = 0.5
	}
	if config.IoUThreshold < 0 || config.IoUThreshold > 1 {
		return nil, fmt.Errorf("invalid IoU threshold %f", config.IoUThreshold)
	}

	return &Evaluator{
		config:    config,
		helper:    helper,
		model:     model,
		expander:  NewGroundTruthExpander(helper),
		assembler: NewPredictionAssembler(helper),
	}, nil
}

// Run evaluates the model over the test set and computes the AP report.
// Images are processed sequentially; ground truth and outputs for the
// whole run are held in memory until scoring.
func (e *Evaluator) Run() (*Report, error) {
	set, err := dataset.LoadTestSet(e.config.ImageDir, e.config.NumTestImages)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no test images found in %s", e.config.ImageDir)
	}
	log.Printf("Evaluating %d images from %s", len(set), e.config.ImageDir)

	var bar *progressbar.ProgressBar
	if e.config.ShowProgress {
		bar = progressbar.Default(int64(len(set)), "evaluating")
	}

	groundTruth := make([][]dataset.Annotation, 0, len(set))
	predictions := make([]ImagePredictions, 0, len(set))
	inputSize := float32(e.config.InputSize)

	for _, testImage := range set {
		img, err := images.LoadImage(testImage.Path)
		if err != nil {
			return nil, err
		}
		bounds := img.Bounds().Canon()
		width := float32(bounds.Dx())
		height := float32(bounds.Dy())

		outputs, err := e.model.Run(img)
		if err != nil {
			return nil, fmt.Errorf("inference failed on %s: %w", testImage.Path, err)
		}

		// Ground truth moves into absolute model-input coordinates so it
		// can meet the proposals.
		annotations := make([]dataset.Annotation, len(testImage.Annotations))
		for i, ann := range testImage.Annotations {
			annotations[i] = dataset.Annotation{
				Box:   ann.Box.ToInputCoordinates(width, height, inputSize),
				Label: ann.Label,
			}
		}
		groundTruth = append(groundTruth, annotations)

		preds, err := e.collectPredictions(outputs, inputSize)
		if err != nil {
			return nil, fmt.Errorf("bad outputs for %s: %w", testImage.Path, err)
		}
		predictions = append(predictions, preds)

		if bar != nil {
			bar.Add(1)
		}
	}

	allGT, err := e.expander.Expand(groundTruth)
	if err != nil {
		return nil, err
	}
	allDetections, err := e.assembler.Assemble(predictions)
	if err != nil {
		return nil, err
	}

	classes := e.helper.Mapper().AllClasses()[1:]
	aps := make(map[string]float32, len(classes))
	for _, class := range classes {
		ap, err := EvaluateDetections(
			allDetections[class], allGT[class],
			e.config.IoUThreshold, e.config.Use07Metric)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", class, err)
		}
		aps[class] = ap
	}

	return &Report{
		Classes:    classes,
		PerClassAP: aps,
		MeanAP:     MeanAP(aps),
		Detections: allDetections,
	}, nil
}

// collectPredictions snapshots one image's outputs into evaluation form,
// optionally refining proposals with the model's regression deltas.
func (e *Evaluator) collectPredictions(outputs *inference.RawOutputs, inputSize float32) (ImagePredictions, error) {
	n := outputs.NumProposals()
	scores := make([][]float32, n)
	rois := make([]images.Box, n)

	for i := 0; i < n; i++ {
		vec, err := outputs.ScoreVector(i)
		if err != nil {
			return ImagePredictions{}, err
		}
		scores[i] = vec

		roi, err := outputs.ROIBox(i)
		if err != nil {
			return ImagePredictions{}, err
		}
		rois[i] = roi
	}

	if e.config.ApplyRegression {
		labels := make([]int, n)
		for i := 0; i < n; i++ {
			labels[i] = argmax(scores[i])
		}
		refined, err := inference.RegressROIs(outputs, labels, inputSize)
		if err != nil {
			return ImagePredictions{}, err
		}
		rois = refined
	}

	return ImagePredictions{Scores: scores, ROIs: rois}, nil
}

func argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Print writes the per-class AP table and the mean to standard output.
func (r *Report) Print() {
	for _, class := range r.Classes {
		color.Cyan("AP for %15s = %.6f", class, r.PerClassAP[class])
	}
	color.Green("Mean AP = %.6f", r.MeanAP)
}
