package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-hiereval/dataset"
	"github.com/nvr-ai/go-hiereval/hierarchy"
	"github.com/nvr-ai/go-hiereval/images"
)

// Two-level hierarchy shared by the eval tests:
//
//	fruit: apple, orange
//	veggie: carrot
//
// Original labels: apple=1, orange=2, carrot=3.
const testTree = "fruit\n\tapple\n\torange\nveggie\n\tcarrot\n"

func testHelper(t *testing.T) *hierarchy.Helper {
	t.Helper()
	h, err := hierarchy.NewHelper(testTree)
	require.NoError(t, err)
	return h
}

func TestExpandCreditsAncestors(t *testing.T) {
	h := testHelper(t)
	expander := NewGroundTruthExpander(h)

	appleBox := images.Box{X1: 10, Y1: 10, X2: 50, Y2: 50}
	perImage := [][]dataset.Annotation{
		{{Box: appleBox, Label: 1}},
	}

	gt, err := expander.Expand(perImage)
	require.NoError(t, err)

	// An apple annotation yields one box under "apple" and one under
	// "fruit", both with the annotation's coordinates.
	require.Len(t, gt["apple"], 1)
	require.Len(t, gt["apple"][0].Boxes, 1)
	assert.Equal(t, appleBox, gt["apple"][0].Boxes[0])

	require.Len(t, gt["fruit"][0].Boxes, 1)
	assert.Equal(t, appleBox, gt["fruit"][0].Boxes[0])

	// Unrelated classes keep aligned empty records.
	assert.Empty(t, gt["orange"][0].Boxes)
	assert.Empty(t, gt["veggie"][0].Boxes)
	assert.Empty(t, gt["carrot"][0].Boxes)

	// Derived boxes are never difficult and start unmatched.
	assert.Equal(t, []bool{false}, gt["fruit"][0].Difficult)
	assert.Equal(t, []bool{false}, gt["fruit"][0].Detected)
}

func TestExpandPreservesImageAlignment(t *testing.T) {
	h := testHelper(t)
	expander := NewGroundTruthExpander(h)

	// Image 0 and 2 are empty; image 1 has a carrot.
	perImage := [][]dataset.Annotation{
		{},
		{{Box: images.Box{X1: 1, Y1: 1, X2: 2, Y2: 2}, Label: 3}},
		{},
	}

	gt, err := expander.Expand(perImage)
	require.NoError(t, err)

	for _, class := range h.Mapper().AllClasses()[1:] {
		require.Len(t, gt[class], 3, "class %s must keep one record per image", class)
	}
	assert.Empty(t, gt["carrot"][0].Boxes)
	assert.Len(t, gt["carrot"][1].Boxes, 1)
	assert.Empty(t, gt["carrot"][2].Boxes)
	assert.Len(t, gt["veggie"][1].Boxes, 1)
	assert.Empty(t, gt["fruit"][1].Boxes)
}

func TestExpandIsIdempotent(t *testing.T) {
	h := testHelper(t)
	expander := NewGroundTruthExpander(h)

	perImage := [][]dataset.Annotation{
		{{Box: images.Box{X1: 0, Y1: 0, X2: 5, Y2: 5}, Label: 2}},
	}

	first, err := expander.Expand(perImage)
	require.NoError(t, err)
	second, err := expander.Expand(perImage)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExpandRejectsBadLabels(t *testing.T) {
	h := testHelper(t)
	expander := NewGroundTruthExpander(h)

	_, err := expander.Expand([][]dataset.Annotation{
		{{Box: images.Box{}, Label: 42}},
	})
	require.Error(t, err)

	_, err = expander.Expand([][]dataset.Annotation{
		{{Box: images.Box{}, Label: -1}},
	})
	require.Error(t, err)
}
