// internal/middleware/rate_limit.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/javajoker/couponx-backend/internal/i18n"
	"github.com/javajoker/couponx-backend/internal/utils"
)

const (
	visitorIdleTTL       = 3 * time.Minute
	visitorPruneInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPThrottle is a per-client token bucket that sits in front of the
// per-user action quotas and absorbs request floods.
type IPThrottle struct {
	visitors  map[string]*visitor
	mtx       sync.Mutex
	rate      rate.Limit
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

func NewIPThrottle(r rate.Limit, b int) *IPThrottle {
	return &IPThrottle{
		visitors:  make(map[string]*visitor),
		rate:      r,
		burst:     b,
		lastPrune: time.Now(),
		now:       time.Now,
	}
}

// Idle visitors are dropped while the lock is held for a lookup, at most
// once per prune interval, so no background goroutine is needed.
func (t *IPThrottle) pruneLocked(now time.Time) {
	if now.Sub(t.lastPrune) < visitorPruneInterval {
		return
	}
	for ip, v := range t.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(t.visitors, ip)
		}
	}
	t.lastPrune = now
}

func (t *IPThrottle) getVisitor(ip string) *rate.Limiter {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	now := t.now()
	t.pruneLocked(now)

	v, exists := t.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(t.rate, t.burst)
		t.visitors[ip] = &visitor{limiter: limiter, lastSeen: now}
		return limiter
	}

	v.lastSeen = now
	return v.limiter
}

func (t *IPThrottle) Allow(ip string) bool {
	return t.getVisitor(ip).Allow()
}

func (t *IPThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.Allow(c.ClientIP()) {
			lang := utils.GetLangFromContext(c)
			c.Header("Retry-After", "1")
			utils.ErrorResponse(c, http.StatusTooManyRequests, string(utils.KindRateLimited), i18n.T(lang, i18n.KeyErrorTooManyRequests), nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
