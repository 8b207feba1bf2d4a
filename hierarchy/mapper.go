package hierarchy

import "fmt"

// OutputMapper maps raw network output vectors into the reduced class
// space the evaluator works in: index 0 is the global background, followed
// by one entry per tree node in breadth-first order. Local background
// entries of the non-root groups are dropped.
type OutputMapper struct {
	classes []string
	index   map[string]int
	rawPick []int // reduced index -> raw index
	rawLen  int
}

// newOutputMapper derives the reduced class table from a helper's layout.
// The name to index mapping is validated at construction; a duplicate
// class name anywhere in the tree is an error rather than a silent
// overwrite.
func newOutputMapper(h *Helper) (*OutputMapper, error) {
	m := &OutputMapper{
		classes: make([]string, 0, len(h.nodes)+1),
		index:   make(map[string]int, len(h.nodes)+1),
		rawPick: make([]int, 0, len(h.nodes)+1),
		rawLen:  h.rawLen,
	}

	add := func(name string, raw int) error {
		if _, dup := m.index[name]; dup {
			return fmt.Errorf("duplicate class name %q in hierarchy", name)
		}
		m.index[name] = len(m.classes)
		m.classes = append(m.classes, name)
		m.rawPick = append(m.rawPick, raw)
		return nil
	}

	if err := add(BackgroundClass, h.bgRaw); err != nil {
		return nil, err
	}
	for _, n := range h.nodes {
		if err := add(n.Name, h.rawIndex[n]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NumClasses returns the size of the reduced class space, background
// included.
func (m *OutputMapper) NumClasses() int {
	return len(m.classes)
}

// AllClasses returns the reduced class names in index order, background
// first. The returned slice is a copy.
func (m *OutputMapper) AllClasses() []string {
	out := make([]string, len(m.classes))
	copy(out, m.classes)
	return out
}

// ClassIndex resolves a class name to its reduced index.
func (m *OutputMapper) ClassIndex(name string) (int, error) {
	i, ok := m.index[name]
	if !ok {
		return 0, fmt.Errorf("unknown class %q", name)
	}
	return i, nil
}

// ClassName resolves a reduced index to its class name.
func (m *OutputMapper) ClassName(index int) (string, error) {
	if index < 0 || index >= len(m.classes) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", index, len(m.classes))
	}
	return m.classes[index], nil
}

// ReduceVector projects a raw-space vector into the reduced class space,
// dropping the per-group local background entries. Works on raw targets
// and on decoded score vectors alike.
//
// Arguments:
//   - raw: Raw-space vector of length RawVectorLength.
//
// Returns:
//   - []float32: Reduced vector of length NumClasses.
//   - error: An error if the input length disagrees with the layout.
func (m *OutputMapper) ReduceVector(raw []float32) ([]float32, error) {
	if len(raw) != m.rawLen {
		return nil, fmt.Errorf("raw vector length %d does not match hierarchy layout length %d", len(raw), m.rawLen)
	}
	out := make([]float32, len(m.rawPick))
	for i, r := range m.rawPick {
		out[i] = raw[r]
	}
	return out, nil
}

// ExpandLabel lists every reduced class a ground-truth label implies: the
// class itself plus all its ancestors. Background expands to nothing.
//
// Arguments:
//   - h: The helper the mapper was built from.
//   - label: The original dataset label.
//
// Returns:
//   - []int: Reduced indices of the label's class and its ancestors.
//   - error: An error if the label is out of range.
func (m *OutputMapper) ExpandLabel(h *Helper, label int) ([]int, error) {
	train, _, err := h.VectorsForLabel(label)
	if err != nil {
		return nil, err
	}
	reduced, err := m.ReduceVector(train)
	if err != nil {
		return nil, err
	}
	var out []int
	for i := 1; i < len(reduced); i++ {
		if reduced[i] != 0 {
			out = append(out, i)
		}
	}
	return out, nil
}
