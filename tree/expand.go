package tree

// ExpandAll expands every loaded level
const ExpandAll = -1

// ExpandToDepth expands the nodes less than depth levels below the root and collapses the others.
// Levels are counted from the root of the tree, not from the platform root.
func ExpandToDepth(t *Tree, depth int) *Tree {
	if t == nil {
		return nil
	}
	rootLevel := t.Root().AbsoluteLevel
	return t.clone(func(n *Node) {
		n.Expanded = depth == ExpandAll || n.AbsoluteLevel-rootLevel < depth
	})
}
