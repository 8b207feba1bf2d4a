package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Small two-level tree used across the tests:
//
//	fruit
//	  apple
//	  orange
//	veggie
//	  carrot
const fruitTree = "fruit\n\tapple\n\torange\nveggie\n\tcarrot\n"

func TestParseTree(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantErr   bool
		topLevel  int
		leafNames []string
	}{
		{
			name:      "two level tree",
			text:      fruitTree,
			topLevel:  2,
			leafNames: []string{"apple", "orange", "carrot"},
		},
		{
			name:      "flat list",
			text:      "a\nb\nc\n",
			topLevel:  3,
			leafNames: []string{"a", "b", "c"},
		},
		{
			name:    "skipped indentation level",
			text:    "a\n\t\tb\n",
			wantErr: true,
		},
		{
			name:    "blank name after tabs",
			text:    "a\n\t \n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := ParseTree(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, root.Children, tt.topLevel)

			var names []string
			for _, l := range root.Leaves() {
				names = append(names, l.Name)
			}
			assert.Equal(t, tt.leafNames, names)
		})
	}
}

func TestWriteTreeRoundTrip(t *testing.T) {
	root, err := ParseTree(GroceryTree)
	require.NoError(t, err)

	h, err := NewHelper(GroceryTree)
	require.NoError(t, err)

	reparsed, err := ParseTree(h.TreeString())
	require.NoError(t, err)
	assert.Equal(t, len(root.Leaves()), len(reparsed.Leaves()))
	assert.Equal(t, len(root.breadthFirst()), len(reparsed.breadthFirst()))
}

func TestHelperLayout(t *testing.T) {
	h, err := NewHelper(fruitTree)
	require.NoError(t, err)

	// Root group: bg + fruit + veggie. Fruit group: bg + apple + orange.
	// Veggie group: bg + carrot.
	assert.Equal(t, 3+3+2, h.RawVectorLength())

	// Background plus every node, breadth-first.
	assert.Equal(t,
		[]string{BackgroundClass, "fruit", "veggie", "apple", "orange", "carrot"},
		h.Mapper().AllClasses())

	// Original labels number the leaves in preorder.
	assert.Equal(t,
		[]string{BackgroundClass, "apple", "orange", "carrot"},
		h.OriginalClasses())

	name, err := h.OriginalClassName(1)
	require.NoError(t, err)
	assert.Equal(t, "apple", name)

	_, err = h.OriginalClassName(4)
	assert.Error(t, err)
}

func TestVectorsForLabel(t *testing.T) {
	h, err := NewHelper(fruitTree)
	require.NoError(t, err)
	m := h.Mapper()

	tests := []struct {
		name    string
		label   int
		reduced []float32 // expected reduced projection of the train vector
	}{
		{
			name:    "background",
			label:   0,
			reduced: []float32{1, 0, 0, 0, 0, 0},
		},
		{
			name:    "apple marks apple and fruit",
			label:   1,
			reduced: []float32{0, 1, 0, 1, 0, 0},
		},
		{
			name:    "carrot marks carrot and veggie",
			label:   3,
			reduced: []float32{0, 0, 1, 0, 0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, aux, err := h.VectorsForLabel(tt.label)
			require.NoError(t, err)
			require.Len(t, train, h.RawVectorLength())
			require.Len(t, aux, h.RawVectorLength())

			reduced, err := m.ReduceVector(train)
			require.NoError(t, err)
			assert.Equal(t, tt.reduced, reduced)

			// Every marked target entry sits inside an active group.
			for i := range train {
				if train[i] == 1 {
					assert.Equal(t, float32(1), aux[i], "target index %d outside active group", i)
				}
			}
		})
	}

	_, _, err = h.VectorsForLabel(9)
	assert.Error(t, err)
}

func TestExpandLabelContainsOwnClass(t *testing.T) {
	h, err := NewHelper(GroceryTree)
	require.NoError(t, err)
	m := h.Mapper()

	for label := 1; label <= 15; label++ {
		name, err := h.OriginalClassName(label)
		require.NoError(t, err)
		own, err := m.ClassIndex(name)
		require.NoError(t, err)

		expanded, err := m.ExpandLabel(h, label)
		require.NoError(t, err)
		assert.Contains(t, expanded, own, "expansion of %q misses the class itself", name)
	}

	expanded, err := m.ExpandLabel(h, 0)
	require.NoError(t, err)
	assert.Empty(t, expanded)
}

func TestTopDownDecode(t *testing.T) {
	h, err := NewHelper(fruitTree)
	require.NoError(t, err)
	m := h.Mapper()

	// Raw layout: [bg fruit veggie | fruitBg apple orange | veggieBg carrot]
	raw := []float32{0.1, 0.8, 0.1, 0.05, 0.9, 0.05, 0.3, 0.7}

	decoded, err := h.TopDownDecode(raw)
	require.NoError(t, err)

	reduced, err := m.ReduceVector(decoded)
	require.NoError(t, err)

	fruit, _ := m.ClassIndex("fruit")
	apple, _ := m.ClassIndex("apple")
	orange, _ := m.ClassIndex("orange")
	veggie, _ := m.ClassIndex("veggie")
	carrot, _ := m.ClassIndex("carrot")

	assert.InDelta(t, 0.8, reduced[fruit], 1e-6)
	assert.InDelta(t, 0.8*0.9, reduced[apple], 1e-6)
	assert.InDelta(t, 0.8*0.05, reduced[orange], 1e-6)
	assert.InDelta(t, 0.1*0.7, reduced[carrot], 1e-6)

	// A descendant never outscores its ancestor.
	assert.LessOrEqual(t, reduced[apple], reduced[fruit])
	assert.LessOrEqual(t, reduced[orange], reduced[fruit])
	assert.LessOrEqual(t, reduced[carrot], reduced[veggie])

	_, err = h.TopDownDecode(raw[:3])
	assert.Error(t, err)
	_, err = m.ReduceVector(raw[:3])
	assert.Error(t, err)
}

func TestDuplicateClassNamesRejected(t *testing.T) {
	_, err := NewHelper("a\n\tb\nc\n\tb\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestTreeForDataset(t *testing.T) {
	text, err := TreeForDataset("grocery")
	require.NoError(t, err)
	h, err := NewHelper(text)
	require.NoError(t, err)
	assert.Equal(t, 16, len(h.OriginalClasses()))
	assert.Equal(t, 21, h.Mapper().NumClasses())

	_, err = TreeForDataset("imagenet")
	assert.Error(t, err)
}

func TestFlatTree(t *testing.T) {
	h, err := NewHelper(FlatTree([]string{"cat", "dog"}))
	require.NoError(t, err)

	// One softmax group total, so raw and reduced spaces coincide.
	assert.Equal(t, 3, h.RawVectorLength())
	assert.Equal(t, []string{BackgroundClass, "cat", "dog"}, h.Mapper().AllClasses())

	decoded, err := h.TopDownDecode([]float32{0.2, 0.5, 0.3})
	require.NoError(t, err)
	reduced, err := h.Mapper().ReduceVector(decoded)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.2, 0.5, 0.3}, reduced)
}
