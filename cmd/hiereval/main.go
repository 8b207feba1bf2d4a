// Command hiereval evaluates a hierarchical Faster R-CNN model over a
// test set and reports per-class and mean average precision.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/nvr-ai/go-hiereval/dataset"
	"github.com/nvr-ai/go-hiereval/eval"
	"github.com/nvr-ai/go-hiereval/hierarchy"
	"github.com/nvr-ai/go-hiereval/images"
	"github.com/nvr-ai/go-hiereval/inference"
	"github.com/nvr-ai/go-hiereval/visualize"
)

func main() {
	var (
		modelPath       string
		imageDir        string
		datasetName     string
		treePath        string
		numImages       int
		inputSize       int
		numProposals    int
		metric          string
		iouThreshold    float64
		applyRegression bool
		visualizeDir    string
		drawThreshold   float64
		onnxLibPath     string
	)
	flag.StringVar(&modelPath, "model", "", "Path to the ONNX model file")
	flag.StringVar(&imageDir, "images", "", "Test image directory")
	flag.StringVar(&datasetName, "dataset", "grocery", "Built-in dataset hierarchy to use")
	flag.StringVar(&treePath, "tree", "", "Path to a class tree file (overrides -dataset)")
	flag.IntVar(&numImages, "num-images", 0, "Evaluate only the first N images (0 = all)")
	flag.IntVar(&inputSize, "input-size", 850, "Square model input edge length in pixels")
	flag.IntVar(&numProposals, "proposals", 500, "Region proposals the model emits per image")
	flag.StringVar(&metric, "metric", "continuous", "AP metric: continuous or 07")
	flag.Float64Var(&iouThreshold, "iou", 0.5, "IoU threshold for AP matching")
	flag.BoolVar(&applyRegression, "apply-regression", false, "Refine proposals with the model's box deltas")
	flag.StringVar(&visualizeDir, "visualize", "", "Write annotated images to this directory")
	flag.Float64Var(&drawThreshold, "draw-threshold", 0.5, "Minimum score for drawn detections")
	flag.StringVar(&onnxLibPath, "onnx-lib", "", "Path to the onnxruntime shared library")
	flag.Parse()

	if modelPath == "" || imageDir == "" {
		flag.Usage()
		log.Fatal("both -model and -images are required")
	}

	use07 := false
	switch metric {
	case "07":
		use07 = true
	case "continuous":
	default:
		log.Fatalf("unknown metric %q (want continuous or 07)", metric)
	}

	treeText, err := loadTree(treePath, datasetName)
	if err != nil {
		log.Fatal(err)
	}
	helper, err := hierarchy.NewHelper(treeText)
	if err != nil {
		log.Fatalf("failed to build hierarchy: %v", err)
	}

	fmt.Printf("\n🚀 Hierarchical Detection Evaluation\n")
	fmt.Printf("=====================================\n")
	fmt.Printf("⚙️  Configuration:\n")
	fmt.Printf("   🎯 Model: %s\n", modelPath)
	fmt.Printf("   🖼️  Images: %s\n", imageDir)
	fmt.Printf("   🌳 Hierarchy: %d classes (%d leaf)\n",
		helper.Mapper().NumClasses()-1, len(helper.OriginalClasses())-1)
	fmt.Printf("   📐 Input size: %dx%d\n", inputSize, inputSize)
	fmt.Printf("   📊 Metric: %s (IoU >= %.2f)\n", metric, iouThreshold)
	fmt.Printf("   🔧 Apply regression: %t\n", applyRegression)
	fmt.Printf("=====================================\n\n")
	fmt.Print(helper.TreeString())

	if err := inference.InitRuntime(onnxLibPath); err != nil {
		log.Fatal(err)
	}
	defer inference.DestroyRuntime()

	session, err := inference.NewSession(inference.Config{
		ModelPath:       modelPath,
		InputSize:       inputSize,
		NumProposals:    numProposals,
		RawVectorLength: helper.RawVectorLength(),
	})
	if err != nil {
		log.Fatalf("failed to create inference session: %v", err)
	}
	defer session.Close()

	evaluator, err := eval.NewEvaluator(eval.Config{
		ImageDir:        imageDir,
		NumTestImages:   numImages,
		InputSize:       inputSize,
		IoUThreshold:    float32(iouThreshold),
		Use07Metric:     use07,
		ApplyRegression: applyRegression,
		ShowProgress:    true,
	}, helper, session)
	if err != nil {
		log.Fatal(err)
	}

	report, err := evaluator.Run()
	if err != nil {
		log.Fatal(err)
	}
	report.Print()

	if visualizeDir != "" {
		if err := renderDetections(report, imageDir, numImages, inputSize, float32(drawThreshold), visualizeDir); err != nil {
			log.Fatalf("visualization failed: %v", err)
		}
		log.Printf("Annotated images written to %s", visualizeDir)
	}
}

// loadTree reads the class tree from a file or falls back to a built-in
// dataset hierarchy.
func loadTree(treePath, datasetName string) (string, error) {
	if treePath != "" {
		b, err := os.ReadFile(treePath)
		if err != nil {
			return "", fmt.Errorf("failed to read tree file: %w", err)
		}
		return string(b), nil
	}
	return hierarchy.TreeForDataset(datasetName)
}

// renderDetections draws each image's detections above the score
// threshold, best first, into the output directory.
func renderDetections(report *eval.Report, imageDir string, numImages, inputSize int, threshold float32, outDir string) error {
	set, err := dataset.LoadTestSet(imageDir, numImages)
	if err != nil {
		return err
	}

	for imgIdx, testImage := range set {
		format, err := images.FormatForPath(testImage.Path)
		if err != nil {
			return err
		}

		var boxes []visualize.LabeledBox
		for _, class := range report.Classes {
			for _, det := range report.Detections[class][imgIdx] {
				if det.Score < threshold {
					continue
				}
				boxes = append(boxes, visualize.LabeledBox{
					Box:   det.Box,
					Label: class,
					Score: det.Score,
				})
			}
		}
		sort.SliceStable(boxes, func(i, j int) bool {
			return boxes[i].Score > boxes[j].Score
		})

		outPath := filepath.Join(outDir, filepath.Base(testImage.Path))
		if err := visualize.RenderToFile(testImage.Data, format, inputSize, boxes, outPath); err != nil {
			return fmt.Errorf("%s: %w", testImage.Path, err)
		}
	}
	return nil
}
