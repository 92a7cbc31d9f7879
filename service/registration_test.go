package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"gitlab.com/paramountdax-exchange/genealogy_api/cache/genealogy"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// conflictingStore fails the first writes with a write conflict
type conflictingStore struct {
	*genealogy.Cache
	conflicts int32
	calls     int32
}

func (store *conflictingStore) Insert(ctx context.Context, member *model.Member, parentID uint64) (*model.NetworkMember, error) {
	if atomic.AddInt32(&store.calls, 1) <= atomic.LoadInt32(&store.conflicts) {
		return nil, errors.Wrap(model.ErrWriteConflict, "could not obtain lock")
	}
	return store.Cache.Insert(ctx, member, parentID)
}

type recordingPublisher struct {
	lock   sync.Mutex
	events []*model.NetworkEvent
}

func (publisher *recordingPublisher) Publish(ctx context.Context, events ...*model.NetworkEvent) error {
	publisher.lock.Lock()
	publisher.events = append(publisher.events, events...)
	publisher.lock.Unlock()
	return nil
}

func TestService_RegisterMember(t *testing.T) {
	ctx := context.Background()

	Convey("It should resolve the referral code to the parent", t, func() {
		publisher := &recordingPublisher{}
		service := NewService(testConfig(), genealogy.New(), nil, nil, publisher)

		root, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "Root"}, true)
		So(err, ShouldBeNil)
		So(root.Member.IsRoot(), ShouldBeTrue)
		So(root.ReferralCode, ShouldNotBeEmpty)

		child, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: " Child ", ReferralCode: root.ReferralCode}, false)
		So(err, ShouldBeNil)
		So(child.ParentID, ShouldEqual, root.Member.ID)
		So(child.Member.Name, ShouldEqual, "Child")
		So(child.Member.AbsoluteLevel, ShouldEqual, 1)
		So(child.Member.Status, ShouldEqual, model.MemberStatusActive)

		So(len(publisher.events), ShouldEqual, 2)
		So(publisher.events[1].Type, ShouldEqual, model.NetworkEventType_MemberRegistered)
		So(publisher.events[1].Upline, ShouldResemble, []uint64{root.Member.ID})
	})

	Convey("It should reject unknown referral codes and missing roots", t, func() {
		service := NewService(testConfig(), genealogy.New(), nil, nil, nil)

		_, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "X", ReferralCode: "nope"}, false)
		So(errors.Is(err, model.ErrInvalidParent), ShouldBeTrue)

		_, err = service.RegisterMember(ctx, model.RegistrationRequest{Name: "X"}, false)
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)

		_, err = service.RegisterMember(ctx, model.RegistrationRequest{Name: "X", Status: "banned"}, true)
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)
	})

	Convey("It should reject a second registration of the same member", t, func() {
		service := NewService(testConfig(), genealogy.New(), nil, nil, nil)
		root, err := service.RegisterMember(ctx, model.RegistrationRequest{ID: 10, Name: "Root"}, true)
		So(err, ShouldBeNil)
		_, err = service.RegisterMember(ctx, model.RegistrationRequest{ID: 11, Name: "Child", ReferralCode: root.ReferralCode}, false)
		So(err, ShouldBeNil)

		_, err = service.RegisterMember(ctx, model.RegistrationRequest{ID: 11, Name: "Again", ReferralCode: root.ReferralCode}, false)
		So(err, ShouldEqual, model.ErrDuplicateChild)

		_, err = service.RegisterMember(ctx, model.RegistrationRequest{ID: 10, Name: "Self", ReferralCode: root.ReferralCode}, false)
		So(err, ShouldEqual, model.ErrInvalidParent)
	})

	Convey("It should retry write conflicts", t, func() {
		store := &conflictingStore{Cache: genealogy.New(), conflicts: 2}
		service := NewService(testConfig(), store, nil, nil, nil)

		response, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "Root"}, true)
		So(err, ShouldBeNil)
		So(response.Member.ID, ShouldEqual, 1)
		So(atomic.LoadInt32(&store.calls), ShouldEqual, 3)
	})

	Convey("It should give up with service unavailable once the retries are exhausted", t, func() {
		store := &conflictingStore{Cache: genealogy.New(), conflicts: 100}
		service := NewService(testConfig(), store, nil, nil, nil)

		_, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "Root"}, true)
		So(errors.Is(err, model.ErrServiceUnavailable), ShouldBeTrue)
		So(atomic.LoadInt32(&store.calls), ShouldEqual, 4)
		So(store.Len(), ShouldEqual, 0)
	})

	Convey("Concurrent registrations under one parent should all be counted", t, func() {
		store := genealogy.New()
		service := NewService(testConfig(), store, nil, nil, nil)
		root, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "Root"}, true)
		So(err, ShouldBeNil)
		parent, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "P", ReferralCode: root.ReferralCode}, false)
		So(err, ShouldBeNil)

		const writers = 50
		wg := sync.WaitGroup{}
		failures := int32(0)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := service.RegisterMember(ctx, model.RegistrationRequest{Name: "S", ReferralCode: parent.ReferralCode}, false); err != nil {
					atomic.AddInt32(&failures, 1)
				}
			}()
		}
		wg.Wait()
		So(failures, ShouldEqual, 0)

		rootMember, _ := store.GetMember(ctx, root.Member.ID)
		So(rootMember.NetworkSize, ShouldEqual, writers+1)
		So(rootMember.ActiveMembers, ShouldEqual, writers+1)
		parentMember, _ := store.GetMember(ctx, parent.Member.ID)
		So(parentMember.NetworkSize, ShouldEqual, writers)
		So(parentMember.DirectRefs, ShouldEqual, writers)
	})
}

func TestService_ChangeStatus(t *testing.T) {
	ctx := context.Background()

	Convey("It should move the active counter up the chain once", t, func() {
		publisher := &recordingPublisher{}
		service, store := scenario()
		service.events = publisher

		member, err := service.ChangeStatus(ctx, nodeA1, model.MemberStatusInactive)
		So(err, ShouldBeNil)
		So(member.Status, ShouldEqual, model.MemberStatusInactive)

		_, err = service.ChangeStatus(ctx, nodeA1, model.MemberStatusInactive)
		So(err, ShouldBeNil)
		So(len(publisher.events), ShouldEqual, 1)

		root, _ := store.GetMember(ctx, rootR)
		So(root.ActiveMembers, ShouldEqual, 2)
		a, _ := store.GetMember(ctx, nodeA)
		So(a.ActiveMembers, ShouldEqual, 0)
		So(a.NetworkSize, ShouldEqual, 1)
	})

	Convey("It should reject unknown statuses and members", t, func() {
		service, _ := scenario()
		_, err := service.ChangeStatus(ctx, nodeA1, "frozen")
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)
		_, err = service.ChangeStatus(ctx, 99, model.MemberStatusActive)
		So(err, ShouldEqual, model.ErrNotFound)
	})
}

func TestService_RecomputeEarnings(t *testing.T) {
	Convey("It should roll the ledger amounts up the tree", t, func() {
		ctx := context.Background()
		store := genealogy.New()
		add(store, rootR, 0, "R", model.MemberStatusActive, t0)
		add(store, nodeA, rootR, "A", model.MemberStatusActive, t0)
		add(store, nodeB, rootR, "B", model.MemberStatusActive, t0)
		add(store, nodeA1, nodeA, "A1", model.MemberStatusActive, t0)

		ledger := genealogy.NewLedger()
		ledger.Credit(nodeA1, 700)
		ledger.Credit(nodeB, 300)
		ledger.Credit(nodeB, 25)
		service := NewService(testConfig(), store, ledger, nil, nil)

		updated, err := service.RecomputeEarnings(ctx)
		So(err, ShouldBeNil)
		So(updated, ShouldEqual, 4)

		overview, err := service.Overview(ctx, Viewer{MemberID: rootR}, 0)
		So(err, ShouldBeNil)
		So(overview.Earnings, ShouldEqual, 1025)

		tree, err := service.NetworkTree(ctx, Viewer{MemberID: rootR}, 0, 2)
		So(err, ShouldBeNil)
		So(tree.Children[0].Earnings+tree.Children[1].Earnings, ShouldEqual, 1025)

		updated, err = service.RecomputeEarnings(ctx)
		So(err, ShouldBeNil)
		So(updated, ShouldEqual, 0)
	})
}
