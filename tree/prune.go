package tree

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// Prune keeps the nodes matching the query together with their ancestors.
//
// A node matches when its name or id contains the query, ignoring case. Ancestors kept only
// to reach a match are not matched and are forced expanded. An empty query returns the tree
// with every node matched. Nil is returned when nothing in the tree matches.
func Prune(t *Tree, query string) *Tree {
	if t == nil {
		return nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return t.clone(func(n *Node) { n.Matched = true })
	}

	needle := fold.String(query)
	matched := make([]bool, len(t.nodes))
	keep := make([]bool, len(t.nodes))
	// nodes are stored in pre-order so children always come after their parent
	for i := len(t.nodes) - 1; i >= 0; i-- {
		n := t.nodes[i]
		matched[i] = matches(n.Node, needle)
		if matched[i] {
			keep[i] = true
		}
		if keep[i] && n.parent >= 0 {
			keep[n.parent] = true
		}
	}
	if !keep[0] {
		return nil
	}

	pruned := &Tree{
		nodes: make([]entry, 0, len(t.nodes)),
		index: make(map[uint64]int),
	}
	pruned.copyKept(t, 0, -1, matched, keep)
	return pruned
}

func (t *Tree) copyKept(src *Tree, i, parent int, matched, keep []bool) {
	node := src.nodes[i].Node
	node.Matched = matched[i]
	n := t.add(node, parent)
	for _, c := range src.nodes[i].children {
		if !keep[c] {
			continue
		}
		t.nodes[n].Expanded = true
		t.nodes[n].children = append(t.nodes[n].children, len(t.nodes))
		t.copyKept(src, c, n, matched, keep)
	}
}

func matches(n Node, needle string) bool {
	return strings.Contains(fold.String(n.Name), needle) ||
		strings.Contains(strconv.FormatUint(n.ID, 10), needle)
}
