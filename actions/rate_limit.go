package actions

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

const defaultLimiterIdleTTL = 10 * time.Minute

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimiter keeps one token bucket per authenticated member.
// Buckets idle for longer than idleTTL are swept on the next request after the ttl elapsed.
type callerLimiter struct {
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lock      sync.Mutex
	buckets   map[uint64]*callerBucket
	lastSweep time.Time
}

func newCallerLimiter(cfg config.RateLimitConfig) *callerLimiter {
	if cfg.RPS <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultLimiterIdleTTL
	}
	return &callerLimiter{
		limit:     rate.Limit(cfg.RPS),
		burst:     burst,
		idleTTL:   idleTTL,
		now:       time.Now,
		buckets:   make(map[uint64]*callerBucket),
		lastSweep: time.Now(),
	}
}

func (cl *callerLimiter) allow(memberID uint64) bool {
	now := cl.now()

	cl.lock.Lock()
	if now.Sub(cl.lastSweep) >= cl.idleTTL {
		cl.sweep(now)
	}
	bucket, ok := cl.buckets[memberID]
	if !ok {
		bucket = &callerBucket{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.buckets[memberID] = bucket
	}
	bucket.lastSeen = now
	cl.lock.Unlock()

	return bucket.limiter.AllowN(now, 1)
}

// sweep drops the idle buckets, the lock must be held
func (cl *callerLimiter) sweep(now time.Time) {
	for id, bucket := range cl.buckets {
		if now.Sub(bucket.lastSeen) >= cl.idleTTL {
			delete(cl.buckets, id)
		}
	}
	cl.lastSweep = now
}

func (cl *callerLimiter) size() int {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	return len(cl.buckets)
}

// RateLimit middleware limits the number of requests of each caller
func (actions *Actions) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actions.limiter == nil {
			c.Next()
			return
		}
		userID, _ := getUserID(c)
		if !actions.limiter.allow(userID) {
			abortWithErrorCode(c, TooManyRequests, "Too many requests", model.ErrorCodeRateLimited)
			return
		}
		c.Next()
	}
}
