// Package tree holds the client side view of a referral network: an immutable
// arena built from the nested tree responses, the search pruner and the
// navigation state machine used by the genealogy views.
package tree

import (
	"time"

	"github.com/pkg/errors"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// ErrUnknownNode is returned when merging a subtree whose root is not part of the tree
var ErrUnknownNode = errors.New("node is not part of the tree")

// Node is a read only copy of one node of the tree
type Node struct {
	ID            uint64
	Name          string
	Avatar        string
	AbsoluteLevel int
	JoinDate      time.Time
	Status        model.MemberStatus
	DirectRefs    int64
	NetworkSize   int64
	Earnings      int64
	// HasChildren is reported by the server even when the children were not loaded
	HasChildren bool
	// Loaded is set once the children of the node are part of the tree
	Loaded   bool
	Matched  bool
	Expanded bool
}

type entry struct {
	Node
	parent   int
	children []int
}

// Tree is an arena of nodes stored in pre-order, the root at index 0.
// A Tree is never modified once built, every operation returns a new one.
type Tree struct {
	nodes []entry
	index map[uint64]int
}

// FromNested builds the arena from a network tree response
func FromNested(root *model.NestedNode) *Tree {
	if root == nil {
		return nil
	}
	t := &Tree{
		nodes: make([]entry, 0, root.Count()),
		index: make(map[uint64]int, root.Count()),
	}
	t.addNested(root, -1)
	return t
}

func (t *Tree) addNested(n *model.NestedNode, parent int) int {
	i := t.add(Node{
		ID:            n.ID,
		Name:          n.Name,
		Avatar:        n.Avatar,
		AbsoluteLevel: n.AbsoluteLevel,
		JoinDate:      n.JoinDate,
		Status:        n.Status,
		DirectRefs:    n.DirectRefs,
		NetworkSize:   n.NetworkSize,
		Earnings:      n.Earnings,
		HasChildren:   n.HasChildren,
		Loaded:        n.Children != nil || !n.HasChildren,
	}, parent)
	for _, child := range n.Children {
		c := t.addNested(child, i)
		t.nodes[i].children = append(t.nodes[i].children, c)
	}
	return i
}

func (t *Tree) add(n Node, parent int) int {
	t.nodes = append(t.nodes, entry{Node: n, parent: parent})
	i := len(t.nodes) - 1
	t.index[n.ID] = i
	return i
}

// Root of the tree
func (t *Tree) Root() Node {
	return t.nodes[0].Node
}

// Len returns the number of nodes in the tree
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Get a node by id
func (t *Tree) Get(id uint64) (Node, bool) {
	i, ok := t.index[id]
	if !ok {
		return Node{}, false
	}
	return t.nodes[i].Node, true
}

// Children returns the loaded children of the node in display order
func (t *Tree) Children(id uint64) []Node {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	children := make([]Node, 0, len(t.nodes[i].children))
	for _, c := range t.nodes[i].children {
		children = append(children, t.nodes[c].Node)
	}
	return children
}

// Parent returns the parent of the node inside the tree
func (t *Tree) Parent(id uint64) (Node, bool) {
	i, ok := t.index[id]
	if !ok || t.nodes[i].parent < 0 {
		return Node{}, false
	}
	return t.nodes[t.nodes[i].parent].Node, true
}

// Walk visits the nodes in pre-order. The children of a node are visited only when fn returns true.
func (t *Tree) Walk(fn func(n Node, depth int) bool) {
	t.walk(0, 0, fn)
}

func (t *Tree) walk(i, depth int, fn func(n Node, depth int) bool) {
	if !fn(t.nodes[i].Node, depth) {
		return
	}
	for _, c := range t.nodes[i].children {
		t.walk(c, depth+1, fn)
	}
}

// Frontier returns the nodes that have children on the server which are not loaded yet
func (t *Tree) Frontier() []Node {
	var frontier []Node
	for _, e := range t.nodes {
		if e.HasChildren && !e.Loaded {
			frontier = append(frontier, e.Node)
		}
	}
	return frontier
}

// Merge grafts a drill-down response into the tree.
// The subtree replaces everything previously loaded below its root; the expanded flags of
// nodes present in both trees are kept.
func (t *Tree) Merge(sub *model.NestedNode) (*Tree, error) {
	at, ok := t.index[sub.ID]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "merge %d", sub.ID)
	}
	grafted := FromNested(sub)
	merged := &Tree{
		nodes: make([]entry, 0, len(t.nodes)+grafted.Len()),
		index: make(map[uint64]int, len(t.nodes)+grafted.Len()),
	}
	merged.copyMerging(t, 0, -1, at, grafted)
	return merged, nil
}

func (t *Tree) copyMerging(src *Tree, i, parent, at int, grafted *Tree) {
	if i == at {
		t.copyFrom(grafted, 0, parent, src)
		return
	}
	n := t.add(src.nodes[i].Node, parent)
	for _, c := range src.nodes[i].children {
		t.nodes[n].children = append(t.nodes[n].children, len(t.nodes))
		t.copyMerging(src, c, n, at, grafted)
	}
}

func (t *Tree) copyFrom(src *Tree, i, parent int, previous *Tree) {
	node := src.nodes[i].Node
	if old, ok := previous.Get(node.ID); ok {
		node.Expanded = old.Expanded
		node.Matched = old.Matched
	}
	n := t.add(node, parent)
	for _, c := range src.nodes[i].children {
		t.nodes[n].children = append(t.nodes[n].children, len(t.nodes))
		t.copyFrom(src, c, n, previous)
	}
}

// clone copies the arena, fn may change the copied node
func (t *Tree) clone(fn func(n *Node)) *Tree {
	c := &Tree{
		nodes: make([]entry, len(t.nodes)),
		index: make(map[uint64]int, len(t.nodes)),
	}
	for i, e := range t.nodes {
		children := make([]int, len(e.children))
		copy(children, e.children)
		c.nodes[i] = entry{Node: e.Node, parent: e.parent, children: children}
		fn(&c.nodes[i].Node)
		c.index[e.ID] = i
	}
	return c
}
