package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"gitlab.com/paramountdax-exchange/genealogy_api/cache/genealogy"
	"gitlab.com/paramountdax-exchange/genealogy_api/cache/overview"
	"gitlab.com/paramountdax-exchange/genealogy_api/config"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

const (
	rootR  = uint64(1)
	nodeA  = uint64(2)
	nodeB  = uint64(3)
	nodeA1 = uint64(4)
)

var t0 = time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.NetworkConfig {
	return config.NetworkConfig{
		Storage:           "memory",
		MaxSupportedLevel: 6,
		MaxTreeDepth:      6,
		BranchingCap:      50,
		InsertRetries:     3,
		RetryBackoff:      time.Millisecond,
		DefaultPageLimit:  10,
		MaxPageLimit:      100,
	}
}

func add(store *genealogy.Cache, id, parentID uint64, name string, status model.MemberStatus, joined time.Time) {
	_, err := store.Insert(context.Background(), &model.Member{
		ID:       id,
		Name:     name,
		Status:   status,
		JoinedAt: joined,
	}, parentID)
	if err != nil {
		panic(err)
	}
}

// R -> A, B ; A -> A1
func scenario() (*Service, *genealogy.Cache) {
	store := genealogy.New()
	add(store, rootR, 0, "R", model.MemberStatusActive, t0)
	add(store, nodeA, rootR, "A", model.MemberStatusActive, t0.Add(2*time.Hour))
	add(store, nodeB, rootR, "B", model.MemberStatusActive, t0.Add(1*time.Hour))
	add(store, nodeA1, nodeA, "A1", model.MemberStatusActive, t0.Add(3*time.Hour))
	return NewService(testConfig(), store, nil, overview.NewLocalCache(time.Minute), nil), store
}

func TestService_NetworkTree(t *testing.T) {
	ctx := context.Background()
	admin := Viewer{MemberID: rootR, Privileged: true}

	Convey("It should cut the tree at the requested depth", t, func() {
		service, _ := scenario()

		tree, err := service.NetworkTree(ctx, admin, rootR, 1)
		So(err, ShouldBeNil)
		So(tree.ID, ShouldEqual, rootR)
		So(len(tree.Children), ShouldEqual, 2)

		a := tree.Children[0]
		So(a.ID, ShouldEqual, nodeA)
		So(a.HasChildren, ShouldBeTrue)
		So(a.Children, ShouldBeNil)

		b := tree.Children[1]
		So(b.ID, ShouldEqual, nodeB)
		So(b.HasChildren, ShouldBeFalse)
		So(b.Children, ShouldBeNil)
	})

	Convey("It should drill down from a cut node", t, func() {
		service, _ := scenario()

		tree, err := service.NetworkTree(ctx, admin, nodeA, 1)
		So(err, ShouldBeNil)
		So(tree.ID, ShouldEqual, nodeA)
		So(tree.AbsoluteLevel, ShouldEqual, 1)
		So(len(tree.Children), ShouldEqual, 1)
		So(tree.Children[0].ID, ShouldEqual, nodeA1)
		So(tree.Children[0].AbsoluteLevel, ShouldEqual, 2)
	})

	Convey("It should return the root alone for depth 0", t, func() {
		service, _ := scenario()

		tree, err := service.NetworkTree(ctx, admin, rootR, 0)
		So(err, ShouldBeNil)
		So(tree.Children, ShouldBeNil)
		So(tree.HasChildren, ShouldBeTrue)
		So(tree.NetworkSize, ShouldEqual, 3)
	})

	Convey("It should reject depths outside the supported range", t, func() {
		service, _ := scenario()

		_, err := service.NetworkTree(ctx, admin, rootR, -1)
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)
		_, err = service.NetworkTree(ctx, admin, rootR, 7)
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)
	})

	Convey("It should fail instead of truncating when the node budget is exceeded", t, func() {
		store := genealogy.New()
		add(store, 1, 0, "root", model.MemberStatusActive, t0)
		for id := uint64(2); id <= 4; id++ {
			add(store, id, 1, "child", model.MemberStatusActive, t0)
		}
		cfg := testConfig()
		cfg.BranchingCap = 2
		service := NewService(cfg, store, nil, nil, nil)

		_, err := service.NetworkTree(ctx, admin, 1, 1)
		So(err, ShouldEqual, model.ErrTooManyNodes)

		tree, err := service.NetworkTree(ctx, admin, 1, 0)
		So(err, ShouldBeNil)
		So(tree.Count(), ShouldEqual, 1)
	})

	Convey("It should return not found for an unknown root", t, func() {
		service, _ := scenario()
		_, err := service.NetworkTree(ctx, admin, 99, 1)
		So(err, ShouldEqual, model.ErrNotFound)
	})
}

func TestService_Authorization(t *testing.T) {
	ctx := context.Background()

	Convey("A member may read its own subtree", t, func() {
		service, _ := scenario()
		tree, err := service.NetworkTree(ctx, Viewer{MemberID: nodeA}, 0, 2)
		So(err, ShouldBeNil)
		So(tree.ID, ShouldEqual, nodeA)

		tree, err = service.NetworkTree(ctx, Viewer{MemberID: nodeA}, nodeA1, 2)
		So(err, ShouldBeNil)
		So(tree.ID, ShouldEqual, nodeA1)
	})

	Convey("A member may not read another branch", t, func() {
		service, _ := scenario()
		_, err := service.NetworkTree(ctx, Viewer{MemberID: nodeA}, nodeB, 1)
		So(err, ShouldEqual, model.ErrUnauthorized)
		_, err = service.Overview(ctx, Viewer{MemberID: nodeA}, rootR)
		So(err, ShouldEqual, model.ErrUnauthorized)
	})

	Convey("An inactive member gets an activation required error on its own subtree", t, func() {
		service, store := scenario()
		_, _, err := store.SetStatus(ctx, nodeA, model.MemberStatusInactive)
		So(err, ShouldBeNil)

		_, err = service.Overview(ctx, Viewer{MemberID: nodeA}, 0)
		So(err, ShouldEqual, model.ErrActivationRequired)
		_, err = service.DirectReferrals(ctx, Viewer{MemberID: nodeA}, nodeA1, 1, 10)
		So(err, ShouldEqual, model.ErrActivationRequired)
	})

	Convey("A privileged viewer may read any subtree", t, func() {
		service, store := scenario()
		_, _, _ = store.SetStatus(ctx, nodeB, model.MemberStatusInactive)
		tree, err := service.NetworkTree(ctx, Viewer{MemberID: nodeB, Privileged: true}, nodeA, 1)
		So(err, ShouldBeNil)
		So(tree.ID, ShouldEqual, nodeA)
	})

	Convey("It should clip the breadcrumb at the viewer", t, func() {
		service, _ := scenario()

		path, err := service.AncestorPath(ctx, Viewer{MemberID: nodeA}, nodeA1)
		So(err, ShouldBeNil)
		So(len(path.Path), ShouldEqual, 2)
		So(path.Path[0].ID, ShouldEqual, nodeA)

		path, err = service.AncestorPath(ctx, Viewer{MemberID: rootR, Privileged: true}, nodeA1)
		So(err, ShouldBeNil)
		So(len(path.Path), ShouldEqual, 3)
		So(path.Path[0].ID, ShouldEqual, rootR)
	})
}

func TestService_Overview(t *testing.T) {
	ctx := context.Background()

	Convey("It should report the rollups and the referral count per level", t, func() {
		service, _ := scenario()

		result, err := service.Overview(ctx, Viewer{MemberID: rootR}, 0)
		So(err, ShouldBeNil)
		So(result.DirectRefs, ShouldEqual, 2)
		So(result.NetworkSize, ShouldEqual, 3)
		So(result.ActiveMembers, ShouldEqual, 3)
		So(len(result.Levels), ShouldEqual, 6)
		So(result.Levels[0], ShouldResemble, model.LevelCount{Level: 1, ReferralCount: 2})
		So(result.Levels[1], ShouldResemble, model.LevelCount{Level: 2, ReferralCount: 1})
		So(result.Levels[5], ShouldResemble, model.LevelCount{Level: 6, ReferralCount: 0})
	})

	Convey("It should drop the cached overview of the upline after a registration", t, func() {
		service := NewService(testConfig(), genealogy.New(), nil, overview.NewLocalCache(time.Minute), nil)

		root, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "R"}, true)
		So(err, ShouldBeNil)
		child, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "A", ReferralCode: root.ReferralCode}, false)
		So(err, ShouldBeNil)
		viewer := Viewer{MemberID: root.Member.ID}

		before, err := service.Overview(ctx, viewer, 0)
		So(err, ShouldBeNil)
		So(before.NetworkSize, ShouldEqual, 1)

		_, err = service.RegisterMember(ctx, model.RegistrationRequest{Name: "A1", ReferralCode: child.ReferralCode}, false)
		So(err, ShouldBeNil)

		after, err := service.Overview(ctx, viewer, 0)
		So(err, ShouldBeNil)
		So(after.NetworkSize, ShouldEqual, 2)
		So(after.Levels[1].ReferralCount, ShouldEqual, 1)
	})
}

func TestService_Paging(t *testing.T) {
	ctx := context.Background()
	admin := Viewer{MemberID: 1, Privileged: true}

	Convey("Concatenated pages should yield every direct referral once", t, func() {
		store := genealogy.New()
		add(store, 1, 0, "root", model.MemberStatusActive, t0)
		for id := uint64(2); id <= 38; id++ {
			add(store, id, 1, "child", model.MemberStatusActive, t0.Add(time.Duration(id%4)*time.Minute))
		}
		service := NewService(testConfig(), store, nil, nil, nil)

		for _, limit := range []int{1, 5, 10, 50} {
			first, err := service.DirectReferrals(ctx, admin, 1, 1, limit)
			So(err, ShouldBeNil)
			So(first.Pagination.Total, ShouldEqual, 37)

			seen := map[uint64]bool{}
			for page := 1; page <= first.Pagination.TotalPages; page++ {
				response, err := service.DirectReferrals(ctx, admin, 1, page, limit)
				So(err, ShouldBeNil)
				So(response.Pagination.Page, ShouldEqual, page)
				for _, referral := range response.Referrals {
					So(seen[referral.ID], ShouldBeFalse)
					seen[referral.ID] = true
				}
			}
			So(len(seen), ShouldEqual, 37)
		}
	})

	Convey("It should validate page and limit", t, func() {
		service, _ := scenario()
		_, err := service.DirectReferrals(ctx, admin, rootR, 0, 10)
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)
		_, err = service.DirectReferrals(ctx, admin, rootR, 1, 0)
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)
		_, err = service.DirectReferrals(ctx, admin, rootR, 1, 101)
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)
	})

	Convey("Levels should be disjoint and cover the network", t, func() {
		service, _ := scenario()
		seen := map[uint64]bool{}
		for level := 1; level <= 6; level++ {
			response, err := service.TeamMembersByLevel(ctx, admin, rootR, level, 1, 100)
			So(err, ShouldBeNil)
			for _, member := range response.Members {
				So(seen[member.ID], ShouldBeFalse)
				So(member.AbsoluteLevel, ShouldEqual, level)
				seen[member.ID] = true
			}
		}
		So(seen, ShouldResemble, map[uint64]bool{nodeA: true, nodeB: true, nodeA1: true})
	})

	Convey("Levels beyond the supported maximum should return an empty page", t, func() {
		service, _ := scenario()
		response, err := service.TeamMembersByLevel(ctx, admin, rootR, 7, 1, 10)
		So(err, ShouldBeNil)
		So(response.Members, ShouldBeEmpty)
		So(response.Pagination.Total, ShouldEqual, 0)

		_, err = service.TeamMembersByLevel(ctx, admin, rootR, 0, 1, 10)
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)
	})
}

// gatedStore reads the level counts right away and holds them back until the gate opens
type gatedStore struct {
	*genealogy.Cache
	started chan struct{}
	release chan struct{}
}

func newGatedStore(store *genealogy.Cache) *gatedStore {
	return &gatedStore{
		Cache:   store,
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (store *gatedStore) CountByLevel(ctx context.Context, rootID uint64, maxLevel int) (map[int]int64, error) {
	counts, err := store.Cache.CountByLevel(ctx, rootID, maxLevel)
	select {
	case store.started <- struct{}{}:
	default:
	}
	select {
	case <-store.release:
		return counts, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type overviewResult struct {
	overview *model.Overview
	err      error
}

func TestService_OverviewSharedLoad(t *testing.T) {
	viewer := Viewer{MemberID: rootR}

	Convey("A caller leaving should not fail the other callers waiting on the same load", t, func() {
		_, inner := scenario()
		store := newGatedStore(inner)
		service := NewService(testConfig(), store, nil, overview.NewLocalCache(time.Minute), nil)

		first, cancel := context.WithCancel(context.Background())
		defer cancel()
		firstDone := make(chan overviewResult, 1)
		go func() {
			result, err := service.Overview(first, viewer, 0)
			firstDone <- overviewResult{result, err}
		}()
		<-store.started

		secondDone := make(chan overviewResult, 1)
		go func() {
			result, err := service.Overview(context.Background(), viewer, 0)
			secondDone <- overviewResult{result, err}
		}()
		time.Sleep(20 * time.Millisecond)

		cancel()
		firstResult := <-firstDone
		So(errors.Is(firstResult.err, context.Canceled), ShouldBeTrue)

		close(store.release)
		secondResult := <-secondDone
		So(secondResult.err, ShouldBeNil)
		So(secondResult.overview.Levels[0].ReferralCount, ShouldEqual, 2)
	})

	Convey("A load overtaken by a registration should not be cached", t, func() {
		store := newGatedStore(genealogy.New())
		service := NewService(testConfig(), store, nil, overview.NewLocalCache(time.Minute), nil)
		ctx := context.Background()

		root, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "R"}, true)
		So(err, ShouldBeNil)
		_, err = service.RegisterMember(ctx, model.RegistrationRequest{Name: "A", ReferralCode: root.ReferralCode}, false)
		So(err, ShouldBeNil)
		owner := Viewer{MemberID: root.Member.ID}

		loading := make(chan overviewResult, 1)
		go func() {
			result, err := service.Overview(ctx, owner, 0)
			loading <- overviewResult{result, err}
		}()
		<-store.started

		_, err = service.RegisterMember(ctx, model.RegistrationRequest{Name: "B", ReferralCode: root.ReferralCode}, false)
		So(err, ShouldBeNil)

		close(store.release)
		stale := <-loading
		So(stale.err, ShouldBeNil)
		So(stale.overview.Levels[0].ReferralCount, ShouldEqual, 1)

		fresh, err := service.Overview(ctx, owner, 0)
		So(err, ShouldBeNil)
		So(fresh.Levels[0].ReferralCount, ShouldEqual, 2)
		So(fresh.NetworkSize, ShouldEqual, 2)
	})
}
