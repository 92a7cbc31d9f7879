package tree

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

type fakeFetcher struct {
	lock     sync.Mutex
	requests []uint64
	err      error
}

func (f *fakeFetcher) NetworkTree(ctx context.Context, rootID uint64, depth int) (*model.NestedNode, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.requests = append(f.requests, rootID)
	if f.err != nil {
		return nil, f.err
	}
	return nested(rootID, "node", 0), nil
}

func TestNavigator(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	Convey("Drilling down should push breadcrumbs", t, func() {
		fetcher := &fakeFetcher{}
		nav := NewNavigator(fetcher, 1, 2)
		So(nav.State(), ShouldEqual, StateRoot)
		So(nav.Load(ctx, nav.ReturnToRoot()), ShouldBeNil)

		So(nav.Load(ctx, nav.ViewTree(2)), ShouldBeNil)
		So(nav.Load(ctx, nav.ViewTree(4)), ShouldBeNil)
		So(nav.State(), ShouldEqual, StateDrilled)
		So(nav.Current(), ShouldEqual, 4)
		So(nav.Breadcrumbs(), ShouldResemble, []uint64{1, 2})

		view, err := nav.View()
		So(err, ShouldBeNil)
		So(view.Root().ID, ShouldEqual, 4)
		So(fetcher.requests, ShouldResemble, []uint64{1, 2, 4})
	})

	Convey("Viewing the current root should not push a breadcrumb", t, func() {
		nav := NewNavigator(&fakeFetcher{}, 1, 2)
		nav.ViewTree(1)
		So(nav.State(), ShouldEqual, StateRoot)
	})

	Convey("Navigating back should pop the breadcrumbs", t, func() {
		nav := NewNavigator(&fakeFetcher{}, 1, 2)
		nav.ViewTree(2)
		nav.ViewTree(4)
		nav.ViewTree(5)

		fetch, err := nav.NavigateBack(1)
		So(err, ShouldBeNil)
		So(fetch.RootID, ShouldEqual, 2)
		So(nav.Breadcrumbs(), ShouldResemble, []uint64{1})
		So(nav.State(), ShouldEqual, StateDrilled)

		fetch, err = nav.NavigateBack(0)
		So(err, ShouldBeNil)
		So(fetch.RootID, ShouldEqual, 1)
		So(nav.State(), ShouldEqual, StateRoot)

		_, err = nav.NavigateBack(0)
		So(errors.Is(err, model.ErrInvalidParams), ShouldBeTrue)
	})

	Convey("Returning to the root should clear the breadcrumbs", t, func() {
		nav := NewNavigator(&fakeFetcher{}, 0, 2)
		nav.ViewTree(2)
		nav.ViewTree(4)
		fetch := nav.ReturnToRoot()
		So(fetch.RootID, ShouldEqual, 0)
		So(nav.State(), ShouldEqual, StateRoot)
		So(nav.Breadcrumbs(), ShouldBeEmpty)
	})

	Convey("A superseded fetch should be discarded", t, func() {
		nav := NewNavigator(&fakeFetcher{}, 1, 2)
		first := nav.ViewTree(2)
		second := nav.ViewTree(3)
		So(second.Seq, ShouldBeGreaterThan, first.Seq)

		So(nav.Complete(second, nested(3, "B", 1), nil), ShouldBeNil)
		So(nav.Complete(first, nested(2, "A", 1), nil), ShouldEqual, model.ErrStale)

		view, _ := nav.View()
		So(view.Root().ID, ShouldEqual, 3)
	})

	Convey("A failed fetch should keep the last tree", t, func() {
		fetcher := &fakeFetcher{}
		nav := NewNavigator(fetcher, 1, 2)
		So(nav.Load(ctx, nav.Refresh()), ShouldBeNil)

		fetcher.err = model.ErrTooManyNodes
		So(nav.Load(ctx, nav.ViewTree(2)), ShouldEqual, model.ErrTooManyNodes)
		view, err := nav.View()
		So(err, ShouldEqual, model.ErrTooManyNodes)
		So(view.Root().ID, ShouldEqual, 1)

		fetcher.err = nil
		So(nav.Load(ctx, nav.Refresh()), ShouldBeNil)
		view, err = nav.View()
		So(err, ShouldBeNil)
		So(view.Root().ID, ShouldEqual, 2)
	})

	Convey("Concurrent navigations should only apply the latest fetch", t, func() {
		nav := NewNavigator(&fakeFetcher{}, 1, 1)
		fetches := make([]Fetch, 0, 20)
		for id := uint64(2); id < 22; id++ {
			fetches = append(fetches, nav.ViewTree(id))
		}

		wg := sync.WaitGroup{}
		stale := make([]error, len(fetches))
		for i, fetch := range fetches {
			wg.Add(1)
			go func(i int, fetch Fetch) {
				defer wg.Done()
				stale[i] = nav.Load(ctx, fetch)
			}(i, fetch)
		}
		wg.Wait()

		for _, err := range stale[:len(stale)-1] {
			So(err, ShouldEqual, model.ErrStale)
		}
		So(stale[len(stale)-1], ShouldBeNil)
		view, _ := nav.View()
		So(view.Root().ID, ShouldEqual, 21)
	})
}
