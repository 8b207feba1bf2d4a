// Package hierarchy - Label trees for hierarchical classification.
package hierarchy

import (
	"fmt"
	"strings"
)

// BackgroundClass is the reserved name of the background class. It always
// occupies index 0 of the mapped class space.
const BackgroundClass = "__background__"

// rootName is the synthetic root every parsed tree hangs from.
const rootName = "__root__"

// Node is a single class in the label tree. Leaf nodes are the dataset's
// original classes; internal nodes are the coarser ancestor classes
// (hypernyms) a detection may also be credited with.
type Node struct {
	Name     string
	Children []*Node

	parent *Node
}

// IsLeaf reports whether the node has no child classes.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Parent returns the node's parent, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// ParseTree parses an indented tree description into a class tree.
//
// Each non-empty line names one class; its depth is the number of leading
// tab characters. A line indented one level deeper than the previous line
// becomes that line's child. Top-level lines hang from a synthetic root.
//
// Arguments:
//   - text: The tree description, one class per line.
//
// Returns:
//   - *Node: The synthetic root node of the parsed tree.
//   - error: An error if the indentation is inconsistent or a line is blank
//     after its tabs.
func ParseTree(text string) (*Node, error) {
	root := &Node{Name: rootName}
	stack := []*Node{root}

	for lineNo, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		depth := 0
		for depth < len(line) && line[depth] == '\t' {
			depth++
		}
		name := strings.TrimSpace(line[depth:])
		if name == "" {
			return nil, fmt.Errorf("line %d: empty class name", lineNo+1)
		}

		// depth 0 attaches to the root, so the parent lives at stack[depth].
		if depth+1 > len(stack) {
			return nil, fmt.Errorf("line %d: class %q skips an indentation level", lineNo+1, name)
		}
		stack = stack[:depth+1]
		parent := stack[depth]

		node := &Node{Name: name, parent: parent}
		parent.Children = append(parent.Children, node)
		stack = append(stack, node)
	}

	return root, nil
}

// Leaves returns the tree's leaf nodes in preorder. This ordering defines
// the original dataset label numbering: label 0 is background, label i is
// the i-th leaf.
func (n *Node) Leaves() []*Node {
	var leaves []*Node
	var walk func(node *Node)
	walk = func(node *Node) {
		if node.IsLeaf() && node != n {
			leaves = append(leaves, node)
			return
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(n)
	return leaves
}

// breadthFirst returns every node below n in breadth-first order.
func (n *Node) breadthFirst() []*Node {
	var out []*Node
	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur != n {
			out = append(out, cur)
		}
		queue = append(queue, cur.Children...)
	}
	return out
}

// WriteTree renders the tree as the indented format ParseTree accepts.
// Useful for logging the hierarchy a run was configured with.
func (n *Node) WriteTree(b *strings.Builder, depth int) {
	if n.Name != rootName {
		b.WriteString(strings.Repeat("\t", depth))
		b.WriteString(n.Name)
		b.WriteByte('\n')
		depth++
	}
	for _, c := range n.Children {
		c.WriteTree(b, depth)
	}
}

// GroceryTree is the built-in hierarchy for the grocery test set. Leaf
// classes match the dataset annotations; internal classes are the
// hypernyms detections are additionally scored against.
const GroceryTree = `drinks
	champagne
	orangeJuice
	water
	milk
vegetables
	gerkin
	onion
	pepper
	tomato
fruits
	avocado
	orange
dairy
	butter
	joghurt
condiments
	ketchup
	tabasco
eggBox
`

// FlatTree builds a degenerate single-level tree from a plain class list,
// for models trained without hierarchical labels.
func FlatTree(classes []string) string {
	var b strings.Builder
	for _, c := range classes {
		b.WriteString(c)
		b.WriteByte('\n')
	}
	return b.String()
}

// TreeForDataset returns the built-in tree description for a named dataset.
func TreeForDataset(name string) (string, error) {
	switch name {
	case "grocery", "Grocery":
		return GroceryTree, nil
	default:
		return "", fmt.Errorf("no built-in hierarchy for dataset %q", name)
	}
}
