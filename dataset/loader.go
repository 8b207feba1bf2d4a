// Package dataset - Test-set images and ground-truth annotations.
package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-hiereval/images"
	"github.com/pkg/errors"
)

// Annotation is one ground-truth box on a test image. The box uses
// relative corner coordinates and the label indexes the dataset's
// original class list (0 = background).
type Annotation struct {
	Box   images.Box
	Label int
}

// TestImage represents a test image together with its ground truth.
type TestImage struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Annotations are the image's ground-truth boxes, padded background
	// rows already removed.
	Annotations []Annotation
}

// LoadTestSet reads test images and their annotation files from a
// directory. Each image <name>.<ext> pairs with <name>.<ext>.rois.txt
// holding one "x1 y1 x2 y2 label" row per ground-truth box in relative
// coordinates. Batching pads annotation files with label-0 rows; those
// are dropped here. Images without an annotation file load with empty
// ground truth.
//
// Arguments:
//   - dir: Directory path containing the test images.
//   - limit: Maximum number of images to load, 0 for all.
//
// Returns:
//   - []TestImage: The test images in file-name order.
//   - error: An error if reading or parsing fails.
func LoadTestSet(dir string, limit int) ([]TestImage, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read test image directory %s", dir)
	}

	var set []TestImage
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		switch filepath.Ext(file.Name()) {
		case ".jpg", ".jpeg", ".png", ".webp":
		default:
			continue
		}

		imgPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read image %s", imgPath)
		}

		annotations, err := loadAnnotations(imgPath + ".rois.txt")
		if err != nil {
			return nil, err
		}

		set = append(set, TestImage{
			Path:        imgPath,
			Data:        data,
			Annotations: annotations,
		})
	}

	sort.Slice(set, func(i, j int) bool {
		return set[i].Path < set[j].Path
	})

	if limit > 0 && len(set) > limit {
		set = set[:limit]
	}
	return set, nil
}

// loadAnnotations parses one annotation file, dropping padded background
// rows. A missing file yields no annotations.
func loadAnnotations(path string) ([]Annotation, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read annotation file %s", path)
	}

	var out []Annotation
	for lineNo, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 5 {
			return nil, errors.Errorf("%s:%d: expected 5 fields, got %d", path, lineNo+1, len(fields))
		}

		var coords [4]float32
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(fields[i], 32)
			if err != nil {
				return nil, errors.Wrapf(err, "%s:%d: bad coordinate %q", path, lineNo+1, fields[i])
			}
			coords[i] = float32(v)
		}
		label, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: bad label %q", path, lineNo+1, fields[4])
		}
		if label == 0 {
			// Batch padding row.
			continue
		}

		out = append(out, Annotation{
			Box:   images.Box{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]},
			Label: label,
		})
	}
	return out, nil
}
