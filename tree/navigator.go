package tree

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// Fetcher loads a network tree rooted at rootID, 0 being the caller
type Fetcher interface {
	NetworkTree(ctx context.Context, rootID uint64, depth int) (*model.NestedNode, error)
}

// State of the navigation
type State int

const (
	// StateRoot when the view is rooted at the caller's own node
	StateRoot State = iota
	// StateDrilled when the view was re-rooted at a descendant
	StateDrilled
)

func (s State) String() string {
	if s == StateDrilled {
		return "drilled"
	}
	return "root"
}

// Fetch is one tree request started by a navigation.
// Only the fetch with the latest sequence may change the view.
type Fetch struct {
	Seq    uint64
	RootID uint64
	Depth  int
}

// Navigator keeps the state of the genealogy view: the current root, the breadcrumb stack
// and the last tree rendered.
type Navigator struct {
	lock        sync.Mutex
	fetcher     Fetcher
	depth       int
	home        uint64
	current     uint64
	breadcrumbs []uint64
	seq         uint64
	view        *Tree
	err         error
}

// NewNavigator starts at the home node, 0 meaning the caller
func NewNavigator(fetcher Fetcher, home uint64, depth int) *Navigator {
	return &Navigator{
		fetcher: fetcher,
		depth:   depth,
		home:    home,
		current: home,
	}
}

// State godoc
func (nav *Navigator) State() State {
	nav.lock.Lock()
	defer nav.lock.Unlock()
	if len(nav.breadcrumbs) == 0 {
		return StateRoot
	}
	return StateDrilled
}

// Current returns the id of the node the view is rooted at
func (nav *Navigator) Current() uint64 {
	nav.lock.Lock()
	defer nav.lock.Unlock()
	return nav.current
}

// Breadcrumbs returns the roots visited before the current one, oldest first
func (nav *Navigator) Breadcrumbs() []uint64 {
	nav.lock.Lock()
	defer nav.lock.Unlock()
	breadcrumbs := make([]uint64, len(nav.breadcrumbs))
	copy(breadcrumbs, nav.breadcrumbs)
	return breadcrumbs
}

// View returns the last tree successfully loaded and the error of the last failed fetch, if any
func (nav *Navigator) View() (*Tree, error) {
	nav.lock.Lock()
	defer nav.lock.Unlock()
	return nav.view, nav.err
}

// ViewTree re-roots the view at the node and pushes the current root on the breadcrumbs
func (nav *Navigator) ViewTree(nodeID uint64) Fetch {
	nav.lock.Lock()
	defer nav.lock.Unlock()
	if nodeID != nav.current {
		nav.breadcrumbs = append(nav.breadcrumbs, nav.current)
		nav.current = nodeID
	}
	return nav.begin()
}

// NavigateBack re-roots the view at the breadcrumb with the given index and drops the ones after it
func (nav *Navigator) NavigateBack(index int) (Fetch, error) {
	nav.lock.Lock()
	defer nav.lock.Unlock()
	if index < 0 || index >= len(nav.breadcrumbs) {
		return Fetch{}, errors.Wrapf(model.ErrInvalidParams, "no breadcrumb at %d", index)
	}
	nav.current = nav.breadcrumbs[index]
	nav.breadcrumbs = nav.breadcrumbs[:index]
	return nav.begin(), nil
}

// ReturnToRoot clears the breadcrumbs and re-roots the view at the home node
func (nav *Navigator) ReturnToRoot() Fetch {
	nav.lock.Lock()
	defer nav.lock.Unlock()
	nav.breadcrumbs = nil
	nav.current = nav.home
	return nav.begin()
}

// Refresh reloads the current root
func (nav *Navigator) Refresh() Fetch {
	nav.lock.Lock()
	defer nav.lock.Unlock()
	return nav.begin()
}

func (nav *Navigator) begin() Fetch {
	nav.seq++
	return Fetch{Seq: nav.seq, RootID: nav.current, Depth: nav.depth}
}

// Complete applies the result of a fetch.
//
// Results of a fetch superseded by a newer navigation are discarded with ErrStale. A failed
// fetch keeps the last rendered tree and the error is returned and kept until the next success.
func (nav *Navigator) Complete(fetch Fetch, root *model.NestedNode, err error) error {
	nav.lock.Lock()
	defer nav.lock.Unlock()
	if fetch.Seq != nav.seq {
		return model.ErrStale
	}
	if err != nil {
		nav.err = err
		return err
	}
	nav.view = FromNested(root)
	nav.err = nil
	return nil
}

// Load runs the fetch and applies its result
func (nav *Navigator) Load(ctx context.Context, fetch Fetch) error {
	root, err := nav.fetcher.NetworkTree(ctx, fetch.RootID, fetch.Depth)
	return nav.Complete(fetch, root, err)
}
