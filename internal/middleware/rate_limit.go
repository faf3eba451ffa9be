// internal/middleware/rate_limit.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rentalregistry/strr-backend/internal/utils"
)

// callerState tracks one source IP's token bucket. Idle entries are evicted
// after a few minutes so the map stays bounded.
type callerState struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipRateLimiter struct {
	callers map[string]*callerState
	mtx     sync.Mutex
	rate    rate.Limit
	burst   int
}

func newIPRateLimiter(r rate.Limit, b int) *ipRateLimiter {
	rl := &ipRateLimiter{
		callers: make(map[string]*callerState),
		rate:    r,
		burst:   b,
	}
	go rl.evictIdle()
	return rl
}

func (rl *ipRateLimiter) evictIdle() {
	for {
		time.Sleep(time.Minute)
		rl.mtx.Lock()
		for ip, state := range rl.callers {
			if time.Since(state.lastSeen) > 3*time.Minute {
				delete(rl.callers, ip)
			}
		}
		rl.mtx.Unlock()
	}
}

func (rl *ipRateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	state, exists := rl.callers[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.rate, rl.burst)
		rl.callers[ip] = &callerState{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	state.lastSeen = time.Now()
	return state.limiter
}

func (rl *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, slow down", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Per-surface limits. Auth is tight to slow credential stuffing; document
// uploads and permit feeds are bulky so they get their own allowance.
var (
	generalLimiter = newIPRateLimiter(rate.Every(time.Second), 20)
	authLimiter    = newIPRateLimiter(rate.Every(time.Minute), 5)
	uploadLimiter  = newIPRateLimiter(rate.Every(time.Minute), 10)
)

func GeneralRateLimit() gin.HandlerFunc {
	return generalLimiter.middleware()
}

func AuthRateLimit() gin.HandlerFunc {
	return authLimiter.middleware()
}

func UploadRateLimit() gin.HandlerFunc {
	return uploadLimiter.middleware()
}
