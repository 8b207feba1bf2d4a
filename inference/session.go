// Package inference - ONNX evaluation sessions for hierarchical Faster R-CNN.
package inference

import (
	"fmt"
	"image"

	"github.com/nvr-ai/go-hiereval/images"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Names of the model's graph nodes. Outputs are always fetched by these
// names; a model missing any of them is rejected at session construction.
const (
	InputName     = "image"
	OutputClsPred = "cls_pred"
	OutputROIs    = "rpn_rois"
	OutputRegr    = "bbox_regr"
)

// Config configures an evaluation session for one exported model.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// InputSize is the square input edge length in pixels.
	InputSize int
	// NumProposals is the number of region proposals the model emits per
	// image.
	NumProposals int
	// RawVectorLength is the length of the raw per-proposal class score
	// vector, local background entries included.
	RawVectorLength int
}

// RawOutputs holds one image's network outputs as dense tensors.
type RawOutputs struct {
	// ClsPred is the raw class score matrix, one row per proposal.
	ClsPred *tensor.Dense
	// ROIs is the proposal matrix, one x1 y1 x2 y2 row per proposal in
	// absolute model-input coordinates.
	ROIs *tensor.Dense
	// BBoxRegr is the per-class box regression delta matrix, four entries
	// per class per proposal.
	BBoxRegr *tensor.Dense
}

// NumProposals returns the number of proposal rows in the outputs.
func (r *RawOutputs) NumProposals() int {
	return r.ClsPred.Shape()[0]
}

// ScoreVector returns proposal i's raw class score row.
func (r *RawOutputs) ScoreVector(i int) ([]float32, error) {
	return matrixRow(r.ClsPred, i)
}

// ROIBox returns proposal i's box in absolute model-input coordinates.
func (r *RawOutputs) ROIBox(i int) (images.Box, error) {
	d, err := matrixRow(r.ROIs, i)
	if err != nil {
		return images.Box{}, err
	}
	return images.Box{X1: d[0], Y1: d[1], X2: d[2], Y2: d[3]}, nil
}

// RegressionRow returns proposal i's per-class box delta row.
func (r *RawOutputs) RegressionRow(i int) ([]float32, error) {
	return matrixRow(r.BBoxRegr, i)
}

// matrixRow indexes a row of a contiguous float32 matrix. Views are
// avoided on purpose so callers always get the exact row extent.
func matrixRow(m *tensor.Dense, i int) ([]float32, error) {
	shape := m.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("expected a matrix, got shape %v", shape)
	}
	rows, cols := shape[0], shape[1]
	if i < 0 || i >= rows {
		return nil, fmt.Errorf("row %d out of range [0, %d)", i, rows)
	}
	data := m.Data().([]float32)
	return data[i*cols : (i+1)*cols], nil
}

// Session runs a hierarchical Faster R-CNN model over prepared images.
type Session struct {
	config   Config
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	clsPred  *ort.Tensor[float32]
	rois     *ort.Tensor[float32]
	bboxRegr *ort.Tensor[float32]
}

// NewSession creates an evaluation session for the given model.
//
// The model's declared inputs and outputs are inspected first and the
// expected names must all be present; positional fallbacks are not
// attempted.
//
// Arguments:
//   - config: The session configuration.
//
// Returns:
//   - *Session: The ready session.
//   - error: An error if the model is missing an expected graph node or
//     session construction fails.
func NewSession(config Config) (*Session, error) {
	if config.InputSize <= 0 || config.NumProposals <= 0 || config.RawVectorLength <= 0 {
		return nil, fmt.Errorf("invalid session config: %+v", config)
	}

	if err := checkGraphNames(config.ModelPath); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](
		ort.NewShape(1, 3, int64(config.InputSize), int64(config.InputSize)))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	clsPred, err := ort.NewEmptyTensor[float32](
		ort.NewShape(int64(config.NumProposals), int64(config.RawVectorLength)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating cls_pred tensor: %w", err)
	}
	rois, err := ort.NewEmptyTensor[float32](
		ort.NewShape(int64(config.NumProposals), 4))
	if err != nil {
		input.Destroy()
		clsPred.Destroy()
		return nil, fmt.Errorf("error creating rpn_rois tensor: %w", err)
	}
	bboxRegr, err := ort.NewEmptyTensor[float32](
		ort.NewShape(int64(config.NumProposals), int64(config.RawVectorLength)*4))
	if err != nil {
		input.Destroy()
		clsPred.Destroy()
		rois.Destroy()
		return nil, fmt.Errorf("error creating bbox_regr tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		clsPred.Destroy()
		rois.Destroy()
		bboxRegr.Destroy()
		return nil, fmt.Errorf("error creating ORT session options: %w", err)
	}
	defer options.Destroy()
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		config.ModelPath,
		[]string{InputName},
		[]string{OutputClsPred, OutputROIs, OutputRegr},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{clsPred, rois, bboxRegr},
		options,
	)
	if err != nil {
		input.Destroy()
		clsPred.Destroy()
		rois.Destroy()
		bboxRegr.Destroy()
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}

	return &Session{
		config:   config,
		session:  session,
		input:    input,
		clsPred:  clsPred,
		rois:     rois,
		bboxRegr: bboxRegr,
	}, nil
}

// checkGraphNames verifies the model declares the expected input and
// output node names.
func checkGraphNames(modelPath string) error {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("error reading model graph info: %w", err)
	}

	found := map[string]bool{}
	for _, in := range inputs {
		found[in.Name] = true
	}
	for _, out := range outputs {
		found[out.Name] = true
	}
	for _, want := range []string{InputName, OutputClsPred, OutputROIs, OutputRegr} {
		if !found[want] {
			return fmt.Errorf("model %s has no graph node named %q", modelPath, want)
		}
	}
	return nil
}

// Run prepares one image and executes the model over it.
//
// Arguments:
//   - img: The decoded test image.
//
// Returns:
//   - *RawOutputs: Copies of the network outputs as dense tensors.
//   - error: An error if preparation or execution fails.
func (s *Session) Run(img image.Image) (*RawOutputs, error) {
	if err := PrepareInput(img, s.config.InputSize, s.input.GetData()); err != nil {
		return nil, err
	}
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("error running ORT session: %w", err)
	}

	n := s.config.NumProposals
	c := s.config.RawVectorLength
	return &RawOutputs{
		ClsPred:  denseCopy(s.clsPred.GetData(), n, c),
		ROIs:     denseCopy(s.rois.GetData(), n, 4),
		BBoxRegr: denseCopy(s.bboxRegr.GetData(), n, c*4),
	}, nil
}

// denseCopy snapshots an output buffer into a freshly backed matrix, so
// the result stays valid across subsequent Run calls.
func denseCopy(data []float32, rows, cols int) *tensor.Dense {
	backing := make([]float32, rows*cols)
	copy(backing, data)
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

// Close releases the resources associated with the Session.
func (s *Session) Close() {
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.clsPred != nil {
		s.clsPred.Destroy()
		s.clsPred = nil
	}
	if s.rois != nil {
		s.rois.Destroy()
		s.rois = nil
	}
	if s.bboxRegr != nil {
		s.bboxRegr.Destroy()
		s.bboxRegr = nil
	}
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
}
