package genealogy

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// node fields are immutable once published, except the status, the child list and the counters
type node struct {
	member   model.Member
	status   atomic.Pointer[model.MemberStatus]
	children atomic.Pointer[[]uint64]

	directRefs    atomic.Int64
	networkSize   atomic.Int64
	activeMembers atomic.Int64
	earnings      atomic.Int64
}

func newNode(member model.Member) *node {
	n := &node{member: member}
	status := member.Status
	n.status.Store(&status)
	n.children.Store(&[]uint64{})
	return n
}

func (n *node) childIDs() []uint64 {
	return *n.children.Load()
}

func (n *node) isActive() bool {
	return *n.status.Load() == model.MemberStatusActive
}

func (n *node) snapshot() *model.NetworkMember {
	member := n.member
	member.Status = *n.status.Load()
	member.Path = append([]uint64(nil), n.member.Path...)
	return &model.NetworkMember{
		Member: member,
		RollupSnapshot: model.RollupSnapshot{
			DirectRefs:    n.directRefs.Load(),
			NetworkSize:   n.networkSize.Load(),
			ActiveMembers: n.activeMembers.Load(),
			Earnings:      n.earnings.Load(),
		},
	}
}

// Cache keeps the referral forest in memory.
//
// Writers are serialized by the lock. Readers take no lock: the index is a sync.Map, child lists
// are replaced copy-on-write and the counters are atomics. A member is published to the index
// before it appears in its parent's child list, and the ancestor counters are incremented last,
// so a reader may see a counter lagging behind the edges but never ahead of them.
type Cache struct {
	lock   *sync.Mutex
	nodes  sync.Map // uint64 -> *node
	codes  sync.Map // string -> uint64
	size   atomic.Int64
	lastID uint64
}

// New creates an empty network cache
func New() *Cache {
	return &Cache{lock: &sync.Mutex{}}
}

func (cache *Cache) node(id uint64) (*node, bool) {
	value, ok := cache.nodes.Load(id)
	if !ok {
		return nil, false
	}
	return value.(*node), true
}

// Insert adds the member under the given parent and updates the rollups of the ancestor chain.
// A parentID of 0 creates a root member.
func (cache *Cache) Insert(ctx context.Context, member *model.Member, parentID uint64) (*model.NetworkMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cache.lock.Lock()
	defer cache.lock.Unlock()

	if member.ID != 0 {
		if member.ID == parentID {
			return nil, model.ErrInvalidParent
		}
		if _, ok := cache.node(member.ID); ok {
			return nil, model.ErrDuplicateChild
		}
	}

	var parent *node
	if parentID != 0 {
		var ok bool
		if parent, ok = cache.node(parentID); !ok {
			return nil, model.ErrInvalidParent
		}
	}
	if member.ReferralCode != "" {
		if _, ok := cache.codes.Load(member.ReferralCode); ok {
			return nil, model.ErrDuplicateChild
		}
	}

	record := *member
	if record.ID == 0 {
		record.ID = cache.nextID()
	} else if record.ID > cache.lastID {
		cache.lastID = record.ID
	}
	record.ParentID = parentID
	record.Path = nil
	record.AbsoluteLevel = 0
	if parent != nil {
		record.Path = make([]uint64, 0, len(parent.member.Path)+1)
		record.Path = append(record.Path, parent.member.Path...)
		record.Path = append(record.Path, parent.member.ID)
		record.AbsoluteLevel = parent.member.AbsoluteLevel + 1
	}
	n := newNode(record)

	cache.nodes.Store(record.ID, n)
	cache.size.Add(1)
	if record.ReferralCode != "" {
		cache.codes.Store(record.ReferralCode, record.ID)
	}
	if parent == nil {
		return n.snapshot(), nil
	}
	cache.insertSorted(parent, n)

	// walk the chain from the parent up to the root
	parent.directRefs.Add(1)
	active := n.isActive()
	for _, ancestorID := range record.Chain() {
		ancestor, _ := cache.node(ancestorID)
		ancestor.networkSize.Add(1)
		if active {
			ancestor.activeMembers.Add(1)
		}
	}
	return n.snapshot(), nil
}

// SetStatus changes the status of a member and moves the activeMembers counter of its ancestors
func (cache *Cache) SetStatus(ctx context.Context, id uint64, status model.MemberStatus) (*model.NetworkMember, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	cache.lock.Lock()
	defer cache.lock.Unlock()

	n, ok := cache.node(id)
	if !ok {
		return nil, false, model.ErrNotFound
	}
	if *n.status.Load() == status {
		return n.snapshot(), false, nil
	}
	delta := int64(1)
	if status != model.MemberStatusActive {
		delta = -1
	}
	next := status
	n.status.Store(&next)
	for _, ancestorID := range n.member.Chain() {
		ancestor, _ := cache.node(ancestorID)
		ancestor.activeMembers.Add(delta)
	}
	return n.snapshot(), true, nil
}

// GetMember godoc
func (cache *Cache) GetMember(ctx context.Context, id uint64) (*model.NetworkMember, error) {
	n, ok := cache.node(id)
	if !ok {
		return nil, model.ErrNotFound
	}
	return n.snapshot(), nil
}

// FindByReferralCode godoc
func (cache *Cache) FindByReferralCode(ctx context.Context, code string) (*model.NetworkMember, error) {
	id, ok := cache.codes.Load(code)
	if !ok {
		return nil, model.ErrNotFound
	}
	return cache.GetMember(ctx, id.(uint64))
}

// GetParent returns the parent id of a member, 0 for roots
func (cache *Cache) GetParent(ctx context.Context, id uint64) (uint64, error) {
	n, ok := cache.node(id)
	if !ok {
		return 0, model.ErrNotFound
	}
	return n.member.ParentID, nil
}

// GetChildren returns a page of direct children ordered by join date desc and id asc
func (cache *Cache) GetChildren(ctx context.Context, id uint64, page, limit int) ([]*model.NetworkMember, int64, error) {
	n, ok := cache.node(id)
	if !ok {
		return nil, 0, model.ErrNotFound
	}
	children := n.childIDs()
	return cache.page(children, page, limit), int64(len(children)), nil
}

// GetChildrenOf returns all direct children of the given parents in one pass
func (cache *Cache) GetChildrenOf(ctx context.Context, parentIDs []uint64) (map[uint64][]*model.NetworkMember, error) {
	result := make(map[uint64][]*model.NetworkMember, len(parentIDs))
	for _, parentID := range parentIDs {
		n, ok := cache.node(parentID)
		if !ok {
			continue
		}
		ids := n.childIDs()
		children := make([]*model.NetworkMember, 0, len(ids))
		for _, childID := range ids {
			child, _ := cache.node(childID)
			children = append(children, child.snapshot())
		}
		result[parentID] = children
	}
	return result, nil
}

// GetAncestorPath returns the chain ordered from the root down to the member itself
func (cache *Cache) GetAncestorPath(ctx context.Context, id uint64) ([]*model.NetworkMember, error) {
	n, ok := cache.node(id)
	if !ok {
		return nil, model.ErrNotFound
	}
	path := make([]*model.NetworkMember, 0, len(n.member.Path)+1)
	for _, ancestorID := range n.member.Path {
		ancestor, _ := cache.node(ancestorID)
		path = append(path, ancestor.snapshot())
	}
	return append(path, n.snapshot()), nil
}

// CountByLevel counts the descendants on each relative level from 1 to maxLevel
func (cache *Cache) CountByLevel(ctx context.Context, rootID uint64, maxLevel int) (map[int]int64, error) {
	if _, ok := cache.node(rootID); !ok {
		return nil, model.ErrNotFound
	}
	counts := make(map[int]int64, maxLevel)
	cache.walkLevels(rootID, maxLevel, func(level int, ids []uint64) {
		counts[level] = int64(len(ids))
	})
	return counts, nil
}

// GetMembersByLevel returns a page of the descendants exactly `level` hops below the root
func (cache *Cache) GetMembersByLevel(ctx context.Context, rootID uint64, level, page, limit int) ([]*model.NetworkMember, int64, error) {
	if _, ok := cache.node(rootID); !ok {
		return nil, 0, model.ErrNotFound
	}
	var members []*node
	cache.walkLevels(rootID, level, func(l int, ids []uint64) {
		if l != level {
			return
		}
		for _, id := range ids {
			n, _ := cache.node(id)
			members = append(members, n)
		}
	})
	sort.Slice(members, func(i, j int) bool {
		return less(members[i], members[j])
	})
	ids := make([]uint64, 0, len(members))
	for _, n := range members {
		ids = append(ids, n.member.ID)
	}
	return cache.page(ids, page, limit), int64(len(ids)), nil
}

// ApplyEarnings sets the earnings rollup of every node to the sum of the own amounts of its subtree
// and returns the number of nodes whose earnings changed
func (cache *Cache) ApplyEarnings(ctx context.Context, own map[uint64]int64) (int, error) {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	ordered := make([]*node, 0, cache.size.Load())
	cache.nodes.Range(func(_, value interface{}) bool {
		ordered = append(ordered, value.(*node))
		return true
	})
	// deepest first so every child is summed before its parent
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].member.AbsoluteLevel > ordered[j].member.AbsoluteLevel
	})

	totals := make(map[uint64]int64, len(ordered))
	for _, n := range ordered {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		totals[n.member.ID] += own[n.member.ID]
		if n.member.ParentID != 0 {
			totals[n.member.ParentID] += totals[n.member.ID]
		}
	}
	updated := 0
	for _, n := range ordered {
		if n.earnings.Swap(totals[n.member.ID]) != totals[n.member.ID] {
			updated++
		}
	}
	return updated, nil
}

// Len returns the number of members
func (cache *Cache) Len() int {
	return int(cache.size.Load())
}

func (cache *Cache) walkLevels(rootID uint64, maxLevel int, fn func(level int, ids []uint64)) {
	frontier := []uint64{rootID}
	for level := 1; level <= maxLevel && len(frontier) > 0; level++ {
		next := make([]uint64, 0, len(frontier))
		for _, id := range frontier {
			n, _ := cache.node(id)
			next = append(next, n.childIDs()...)
		}
		if len(next) == 0 {
			return
		}
		fn(level, next)
		frontier = next
	}
}

func (cache *Cache) page(ids []uint64, page, limit int) []*model.NetworkMember {
	offset := (page - 1) * limit
	if offset < 0 || offset >= len(ids) || limit <= 0 {
		return []*model.NetworkMember{}
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	result := make([]*model.NetworkMember, 0, end-offset)
	for _, id := range ids[offset:end] {
		n, _ := cache.node(id)
		result = append(result, n.snapshot())
	}
	return result
}

// insertSorted publishes a new child list of the parent with the node in place, the lock must be held
func (cache *Cache) insertSorted(parent *node, n *node) {
	current := parent.childIDs()
	i := sort.Search(len(current), func(i int) bool {
		sibling, _ := cache.node(current[i])
		return less(n, sibling)
	})
	children := make([]uint64, 0, len(current)+1)
	children = append(children, current[:i]...)
	children = append(children, n.member.ID)
	children = append(children, current[i:]...)
	parent.children.Store(&children)
}

// less orders the newest member first, ties broken by ascending id
func less(a, b *node) bool {
	if !a.member.JoinedAt.Equal(b.member.JoinedAt) {
		return a.member.JoinedAt.After(b.member.JoinedAt)
	}
	return a.member.ID < b.member.ID
}

func (cache *Cache) nextID() uint64 {
	for {
		cache.lastID++
		if _, ok := cache.node(cache.lastID); !ok {
			return cache.lastID
		}
	}
}
