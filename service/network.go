package service

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
	"gitlab.com/paramountdax-exchange/genealogy_api/monitor"
)

// Overview returns the rollup counters of the root and the number of members on each relative level
func (service *Service) Overview(ctx context.Context, viewer Viewer, rootID uint64) (*model.Overview, error) {
	root, err := service.authorize(ctx, viewer, rootID)
	if err != nil {
		return nil, err
	}
	if cached, ok := service.overviews.Get(ctx, root.ID); ok {
		return cached, nil
	}

	// the load is shared by every caller of the same root and must not die with the first one
	loaded := service.loads.DoChan(strconv.FormatUint(root.ID, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), service.overviewLoadTimeout())
		defer cancel()
		return service.loadOverview(loadCtx, root.ID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-loaded:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*model.Overview), nil
	}
}

func (service *Service) loadOverview(ctx context.Context, rootID uint64) (*model.Overview, error) {
	generation := service.generations.current(rootID)

	var member *model.NetworkMember
	var counts map[int]int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		member, err = service.store.GetMember(gctx, rootID)
		return err
	})
	g.Go(func() (err error) {
		counts, err = service.store.CountByLevel(gctx, rootID, service.cfg.MaxSupportedLevel)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	levels := make([]model.LevelCount, 0, service.cfg.MaxSupportedLevel)
	for level := 1; level <= service.cfg.MaxSupportedLevel; level++ {
		levels = append(levels, model.LevelCount{Level: level, ReferralCount: counts[level]})
	}
	overview := &model.Overview{
		DirectRefs:    member.DirectRefs,
		NetworkSize:   member.NetworkSize,
		ActiveMembers: member.ActiveMembers,
		Earnings:      member.Earnings,
		Levels:        levels,
	}
	service.storeOverview(ctx, rootID, generation, overview)
	return overview, nil
}

// storeOverview caches an overview unless a write invalidated the root while it was loading.
// The generation is checked again after the write to the cache, since an invalidation may
// have run in between.
func (service *Service) storeOverview(ctx context.Context, rootID, generation uint64, overview *model.Overview) {
	if service.generations.current(rootID) != generation {
		return
	}
	service.overviews.Set(ctx, rootID, overview)
	if service.generations.current(rootID) != generation {
		service.overviews.Invalidate(ctx, rootID)
	}
}

// invalidateOverviews drops the cached overviews of the members after a write on their subtree
func (service *Service) invalidateOverviews(ctx context.Context, memberIDs ...uint64) {
	service.generations.bump(memberIDs...)
	service.overviews.Invalidate(ctx, memberIDs...)
}

func (service *Service) overviewLoadTimeout() time.Duration {
	if service.cfg.OverviewLoadTimeout > 0 {
		return service.cfg.OverviewLoadTimeout
	}
	return defaultOverviewLoadTimeout
}

// DirectReferrals returns a page of the immediate children of the root
func (service *Service) DirectReferrals(ctx context.Context, viewer Viewer, rootID uint64, page, limit int) (*model.DirectReferralsResponse, error) {
	if err := service.validatePaging(page, limit); err != nil {
		return nil, err
	}
	root, err := service.authorize(ctx, viewer, rootID)
	if err != nil {
		return nil, err
	}
	referrals, total, err := service.store.GetChildren(ctx, root.ID, page, limit)
	if err != nil {
		return nil, err
	}
	return &model.DirectReferralsResponse{
		Referrals:  referrals,
		Pagination: model.NewPagination(page, limit, total),
	}, nil
}

// TeamMembersByLevel returns a page of the descendants exactly `level` hops below the root.
// Levels deeper than the supported maximum return an empty page.
func (service *Service) TeamMembersByLevel(ctx context.Context, viewer Viewer, rootID uint64, level, page, limit int) (*model.TeamMembersResponse, error) {
	if level < 1 {
		return nil, errors.Wrap(model.ErrInvalidParams, "level must be positive")
	}
	if err := service.validatePaging(page, limit); err != nil {
		return nil, err
	}
	root, err := service.authorize(ctx, viewer, rootID)
	if err != nil {
		return nil, err
	}
	if level > service.cfg.MaxSupportedLevel {
		return &model.TeamMembersResponse{
			Members:    []*model.NetworkMember{},
			Pagination: model.NewPagination(page, limit, 0),
		}, nil
	}
	members, total, err := service.store.GetMembersByLevel(ctx, root.ID, level, page, limit)
	if err != nil {
		return nil, err
	}
	return &model.TeamMembersResponse{
		Members:    members,
		Pagination: model.NewPagination(page, limit, total),
	}, nil
}

// NetworkTree builds the subtree of the root down to depth levels, one batched read per level.
//
// Nodes on the last level keep hasChildren but carry no children. The request fails with
// ErrTooManyNodes as soon as the next level would push the tree over the node budget.
func (service *Service) NetworkTree(ctx context.Context, viewer Viewer, rootID uint64, depth int) (*model.NestedNode, error) {
	if depth < 0 || depth > service.cfg.MaxTreeDepth {
		return nil, errors.Wrapf(model.ErrInvalidParams, "depth must be between 0 and %d", service.cfg.MaxTreeDepth)
	}
	root, err := service.authorize(ctx, viewer, rootID)
	if err != nil {
		return nil, err
	}

	budget := service.cfg.NodeBudget(depth)
	tree := model.NewNestedNode(root)
	emitted := 1
	frontier := []*model.NestedNode{tree}

	for level := 1; level <= depth; level++ {
		parents := make([]*model.NestedNode, 0, len(frontier))
		ids := make([]uint64, 0, len(frontier))
		predicted := emitted
		for _, node := range frontier {
			if node.DirectRefs > 0 {
				parents = append(parents, node)
				ids = append(ids, node.ID)
				predicted += int(node.DirectRefs)
			}
		}
		if len(parents) == 0 {
			break
		}
		if predicted > budget {
			monitor.TreeRequestsRejected.Inc()
			return nil, model.ErrTooManyNodes
		}

		children, err := service.store.GetChildrenOf(ctx, ids)
		if err != nil {
			return nil, err
		}
		next := make([]*model.NestedNode, 0, predicted-emitted)
		for _, parent := range parents {
			parent.Children = make([]*model.NestedNode, 0, len(children[parent.ID]))
			for _, child := range children[parent.ID] {
				node := model.NewNestedNode(child)
				parent.Children = append(parent.Children, node)
				next = append(next, node)
			}
			emitted += len(parent.Children)
		}
		// counters can lag behind edges committed between the two reads
		if emitted > budget {
			monitor.TreeRequestsRejected.Inc()
			return nil, model.ErrTooManyNodes
		}
		frontier = next
	}

	monitor.TreeNodesEmitted.Observe(float64(emitted))
	return tree, nil
}

// AncestorPath returns the breadcrumb from the root down to the node.
// Non privileged viewers only see the part of the path starting at themselves.
func (service *Service) AncestorPath(ctx context.Context, viewer Viewer, nodeID uint64) (*model.AncestorPathResponse, error) {
	target, err := service.authorize(ctx, viewer, nodeID)
	if err != nil {
		return nil, err
	}
	path, err := service.store.GetAncestorPath(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if !viewer.Privileged {
		for i, member := range path {
			if member.ID == viewer.MemberID {
				path = path[i:]
				break
			}
		}
	}
	return &model.AncestorPathResponse{Path: path}, nil
}

func (service *Service) validatePaging(page, limit int) error {
	if page < 1 {
		return errors.Wrap(model.ErrInvalidParams, "page must be positive")
	}
	if limit < 1 || limit > service.cfg.MaxPageLimit {
		return errors.Wrapf(model.ErrInvalidParams, "limit must be between 1 and %d", service.cfg.MaxPageLimit)
	}
	return nil
}
