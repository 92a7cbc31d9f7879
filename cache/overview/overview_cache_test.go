package overview

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
	"gitlab.com/paramountdax-exchange/genealogy_api/net/redis"
)

func TestLocalCache(t *testing.T) {
	ctx := context.Background()

	Convey("It should return the stored overviews until invalidated", t, func() {
		cache := NewLocalCache(time.Minute)
		cache.Set(ctx, 1, &model.Overview{NetworkSize: 3})
		cache.Set(ctx, 2, &model.Overview{NetworkSize: 1})

		cached, ok := cache.Get(ctx, 1)
		So(ok, ShouldBeTrue)
		So(cached.NetworkSize, ShouldEqual, 3)

		cache.Invalidate(ctx, 1, 5)
		_, ok = cache.Get(ctx, 1)
		So(ok, ShouldBeFalse)
		_, ok = cache.Get(ctx, 2)
		So(ok, ShouldBeTrue)
	})

	Convey("Expired entries should be ignored", t, func() {
		cache := NewLocalCache(-time.Second)
		cache.Set(ctx, 1, &model.Overview{})
		_, ok := cache.Get(ctx, 1)
		So(ok, ShouldBeFalse)
	})
}

func TestRedisCache_NotConnected(t *testing.T) {
	Convey("A disconnected redis should behave as a cache miss", t, func() {
		ctx := context.Background()
		cache := NewRedisCache(redis.NewClient(redisConfig()), time.Minute)
		So(func() { cache.Set(ctx, 1, &model.Overview{}) }, ShouldNotPanic)
		_, ok := cache.Get(ctx, 1)
		So(ok, ShouldBeFalse)
		So(func() { cache.Invalidate(ctx, 1, 2) }, ShouldNotPanic)
	})

	Convey("Keys should be namespaced per member", t, func() {
		So(Key(42), ShouldEqual, "genealogy:overview:42")
	})
}

func redisConfig() config.RedisConfig {
	return config.RedisConfig{Addr: "127.0.0.1:0"}
}
