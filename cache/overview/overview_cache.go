package overview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/encoding/json"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
	"gitlab.com/paramountdax-exchange/genealogy_api/net/redis"
)

// Cache keeps recently computed network overviews
type Cache interface {
	Get(ctx context.Context, memberID uint64) (*model.Overview, bool)
	Set(ctx context.Context, memberID uint64, overview *model.Overview)
	Invalidate(ctx context.Context, memberIDs ...uint64)
}

// Key of a member overview
func Key(memberID uint64) string {
	return fmt.Sprintf("genealogy:overview:%d", memberID)
}

// RedisCache stores the overviews in redis with a short ttl
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache godoc
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get godoc
func (cache *RedisCache) Get(ctx context.Context, memberID uint64) (*model.Overview, bool) {
	var raw []byte
	found, err := cache.client.Get(Key(memberID), &raw)
	if err != nil {
		log.Warn().Err(err).Str("section", "cache:overview").Uint64("member_id", memberID).Msg("Unable to read overview")
		return nil, false
	}
	if !found {
		return nil, false
	}
	overview := &model.Overview{}
	if err := json.Unmarshal(raw, overview); err != nil {
		log.Warn().Err(err).Str("section", "cache:overview").Uint64("member_id", memberID).Msg("Unable to decode overview")
		return nil, false
	}
	return overview, true
}

// Set godoc
func (cache *RedisCache) Set(ctx context.Context, memberID uint64, overview *model.Overview) {
	raw, err := json.Marshal(overview)
	if err != nil {
		return
	}
	seconds := int(cache.ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if err := cache.client.Exec(nil, "SET", Key(memberID), raw, "EX", seconds); err != nil {
		log.Warn().Err(err).Str("section", "cache:overview").Uint64("member_id", memberID).Msg("Unable to store overview")
	}
}

// Invalidate removes the overviews of the given members, used after writes on their subtree
func (cache *RedisCache) Invalidate(ctx context.Context, memberIDs ...uint64) {
	for _, id := range memberIDs {
		if err := cache.client.Exec(nil, "DEL", Key(id)); err != nil {
			log.Warn().Err(err).Str("section", "cache:overview").Uint64("member_id", id).Msg("Unable to invalidate overview")
		}
	}
}

type entry struct {
	overview *model.Overview
	expires  time.Time
}

// LocalCache keeps the overviews in process, used when no redis is configured
type LocalCache struct {
	lock    sync.RWMutex
	ttl     time.Duration
	entries map[uint64]entry
}

// NewLocalCache godoc
func NewLocalCache(ttl time.Duration) *LocalCache {
	return &LocalCache{ttl: ttl, entries: make(map[uint64]entry)}
}

// Get godoc
func (cache *LocalCache) Get(ctx context.Context, memberID uint64) (*model.Overview, bool) {
	cache.lock.RLock()
	defer cache.lock.RUnlock()
	e, ok := cache.entries[memberID]
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.overview, true
}

// Set godoc
func (cache *LocalCache) Set(ctx context.Context, memberID uint64, overview *model.Overview) {
	cache.lock.Lock()
	cache.entries[memberID] = entry{overview: overview, expires: time.Now().Add(cache.ttl)}
	cache.lock.Unlock()
}

// Invalidate godoc
func (cache *LocalCache) Invalidate(ctx context.Context, memberIDs ...uint64) {
	cache.lock.Lock()
	for _, id := range memberIDs {
		delete(cache.entries, id)
	}
	cache.lock.Unlock()
}

// Nop never caches anything
type Nop struct{}

// Get godoc
func (Nop) Get(context.Context, uint64) (*model.Overview, bool) { return nil, false }

// Set godoc
func (Nop) Set(context.Context, uint64, *model.Overview) {}

// Invalidate godoc
func (Nop) Invalidate(context.Context, ...uint64) {}
