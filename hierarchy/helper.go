package hierarchy

import (
	"fmt"
	"strings"
)

// group is one softmax group of the raw network output: the children of a
// single parent node plus a local background entry. The local background
// absorbs "none of these children" mass within the group.
type group struct {
	parent  *Node
	bgIndex int
	members []*Node
}

// Helper owns a parsed class tree and the raw output-vector layout derived
// from it. The raw layout concatenates one group per internal node in
// breadth-first order; each group is a local background entry followed by
// one entry per child. The root group's local background doubles as the
// global background class.
type Helper struct {
	root     *Node
	groups   []group
	nodes    []*Node // breadth-first, root excluded; defines mapped ordering
	leaves   []*Node // preorder; defines original dataset labels
	rawIndex map[*Node]int
	rawLen   int
	bgRaw    int // raw index of the global background entry

	mapper *OutputMapper
}

// NewHelper parses a tree description and precomputes the raw vector
// layout and the reduced output mapping.
//
// Arguments:
//   - treeText: The indented tree description (see ParseTree).
//
// Returns:
//   - *Helper: The configured helper.
//   - error: An error if the tree fails to parse or the derived class
//     table is not a valid bijection.
func NewHelper(treeText string) (*Helper, error) {
	root, err := ParseTree(treeText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hierarchy tree: %w", err)
	}
	if len(root.Children) == 0 {
		return nil, fmt.Errorf("hierarchy tree has no classes")
	}

	h := &Helper{
		root:     root,
		nodes:    root.breadthFirst(),
		leaves:   root.Leaves(),
		rawIndex: make(map[*Node]int),
	}

	// Lay out groups breadth-first so a parent's entry always precedes its
	// children's group.
	internal := []*Node{root}
	for _, n := range h.nodes {
		if !n.IsLeaf() {
			internal = append(internal, n)
		}
	}
	idx := 0
	for _, parent := range internal {
		g := group{parent: parent, bgIndex: idx}
		idx++
		for _, child := range parent.Children {
			h.rawIndex[child] = idx
			g.members = append(g.members, child)
			idx++
		}
		h.groups = append(h.groups, g)
	}
	h.rawLen = idx
	h.bgRaw = h.groups[0].bgIndex

	mapper, err := newOutputMapper(h)
	if err != nil {
		return nil, err
	}
	h.mapper = mapper

	return h, nil
}

// Mapper returns the reduced-space output mapper for this hierarchy.
func (h *Helper) Mapper() *OutputMapper {
	return h.mapper
}

// RawVectorLength returns the length of the raw network output vector the
// layout expects.
func (h *Helper) RawVectorLength() int {
	return h.rawLen
}

// OriginalClasses returns the dataset's own class names: background first,
// then the tree's leaves in preorder. Ground-truth labels index this slice.
func (h *Helper) OriginalClasses() []string {
	out := make([]string, 0, len(h.leaves)+1)
	out = append(out, BackgroundClass)
	for _, l := range h.leaves {
		out = append(out, l.Name)
	}
	return out
}

// OriginalClassName resolves an original dataset label to its class name.
func (h *Helper) OriginalClassName(label int) (string, error) {
	if label == 0 {
		return BackgroundClass, nil
	}
	if label < 0 || label > len(h.leaves) {
		return "", fmt.Errorf("original label %d out of range (have %d leaf classes)", label, len(h.leaves))
	}
	return h.leaves[label-1].Name, nil
}

// VectorsForLabel builds the raw-space training target for an original
// dataset label, together with the group-activation mask used as the
// training loss scale.
//
// The target marks the label's own node and every ancestor up to (but not
// including) the root. The mask marks every entry of every group on that
// path, so only the softmax groups the label passes through contribute.
//
// Arguments:
//   - label: The original dataset label (0 = background).
//
// Returns:
//   - train: Raw-space target vector.
//   - aux: Raw-space group-activation mask.
//   - error: An error if the label is out of range.
func (h *Helper) VectorsForLabel(label int) (train, aux []float32, err error) {
	train = make([]float32, h.rawLen)
	aux = make([]float32, h.rawLen)

	if label == 0 {
		train[h.bgRaw] = 1
		h.markGroup(aux, h.root)
		return train, aux, nil
	}
	if label < 0 || label > len(h.leaves) {
		return nil, nil, fmt.Errorf("original label %d out of range (have %d leaf classes)", label, len(h.leaves))
	}

	for n := h.leaves[label-1]; n != h.root; n = n.parent {
		train[h.rawIndex[n]] = 1
		h.markGroup(aux, n.parent)
	}
	return train, aux, nil
}

// markGroup sets every entry of parent's softmax group to one.
func (h *Helper) markGroup(vec []float32, parent *Node) {
	for _, g := range h.groups {
		if g.parent != parent {
			continue
		}
		vec[g.bgIndex] = 1
		for _, m := range g.members {
			vec[h.rawIndex[m]] = 1
		}
		return
	}
}

// TopDownDecode converts a raw prediction vector into hierarchy-consistent
// scores. Each entry's effective score is its local group score scaled by
// the parent's effective score, with the root fixed at one. A descendant's
// score therefore never exceeds its ancestor's.
//
// Arguments:
//   - raw: Raw network output vector of length RawVectorLength.
//
// Returns:
//   - []float32: Raw-space vector of effective scores.
//   - error: An error if the input length disagrees with the layout.
func (h *Helper) TopDownDecode(raw []float32) ([]float32, error) {
	if len(raw) != h.rawLen {
		return nil, fmt.Errorf("raw vector length %d does not match hierarchy layout length %d", len(raw), h.rawLen)
	}

	out := make([]float32, h.rawLen)
	effective := map[*Node]float32{h.root: 1}

	// Groups are laid out breadth-first, so every parent's effective score
	// is known before its group is visited.
	for _, g := range h.groups {
		pe := effective[g.parent]
		out[g.bgIndex] = raw[g.bgIndex] * pe
		for _, m := range g.members {
			i := h.rawIndex[m]
			out[i] = raw[i] * pe
			effective[m] = out[i]
		}
	}
	return out, nil
}

// TreeString renders the configured hierarchy for logging.
func (h *Helper) TreeString() string {
	var b strings.Builder
	h.root.WriteTree(&b, 0)
	return b.String()
}
