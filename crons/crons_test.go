package crons

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type countingRecomputer struct {
	calls int32
	err   error
}

func (r *countingRecomputer) RecomputeEarnings(ctx context.Context) (int, error) {
	atomic.AddInt32(&r.calls, 1)
	return 0, r.err
}

func TestGetCronByID(t *testing.T) {
	ctx := context.Background()

	Convey("The recompute cron should call the service", t, func() {
		recomputer := &countingRecomputer{}
		GetCronByID(ctx, "recompute_earnings", recomputer)()
		So(atomic.LoadInt32(&recomputer.calls), ShouldEqual, 1)
	})

	Convey("A failing recompute should not panic", t, func() {
		recomputer := &countingRecomputer{err: errors.New("ledger down")}
		So(func() { GetCronByID(ctx, "recompute_earnings", recomputer)() }, ShouldNotPanic)
	})

	Convey("Unknown crons should do nothing", t, func() {
		recomputer := &countingRecomputer{}
		GetCronByID(ctx, "update_markets_cache", recomputer)()
		So(atomic.LoadInt32(&recomputer.calls), ShouldEqual, 0)
	})

	Convey("Overlapping ticks should be skipped", t, func() {
		recomputer := &countingRecomputer{}
		atomic.StoreInt32(&recomputing, 1)
		CronRecomputeEarnings(ctx, recomputer)
		atomic.StoreInt32(&recomputing, 0)
		So(atomic.LoadInt32(&recomputer.calls), ShouldEqual, 0)
	})
}
