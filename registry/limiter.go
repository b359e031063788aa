package registry

import (
	"sync"

	"golang.org/x/time/rate"
)

// FireLimiter caps how often each reflex may fire, as storm protection when
// a controller's hysteresis is misconfigured. It is optional: an unset
// limiter on the registry admits every fire.
type FireLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewFireLimiter allows firesPerMinute sustained fires per reflex with the
// given burst.
func NewFireLimiter(firesPerMinute float64, burst int) *FireLimiter {
	return &FireLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(firesPerMinute / 60),
		b:        burst,
	}
}

// Reserve takes one fire token for the named reflex. When the fire is
// admitted it returns true plus a cancel that refunds the token, for callers
// that decide not to fire after all.
func (l *FireLimiter) Reserve(reflexName string) (bool, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[reflexName]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters[reflexName] = limiter
	}

	res := limiter.Reserve()
	if !res.OK() || res.Delay() > 0 {
		res.Cancel()
		return false, nil
	}
	return true, res.Cancel
}
