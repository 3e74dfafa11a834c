package server

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out a token bucket per client.
type RateLimiter struct {
	mu        sync.Mutex
	perMin    int
	limit     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	now       func() time.Time
	idleTTL   time.Duration
	lastSwept time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows requestsPerMinute per client with a burst of the
// same size.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		perMin:  requestsPerMinute,
		limit:   rate.Limit(float64(requestsPerMinute) / 60),
		burst:   requestsPerMinute,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
		idleTTL: 10 * time.Minute,
	}
}

// Allow consumes one token for clientID or returns a *RateLimitError.
func (rl *RateLimiter) Allow(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	c, ok := rl.clients[clientID]
	if !ok {
		c = &clientLimiter{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = c
	}
	c.lastSeen = now

	r := c.lim.ReserveN(now, 1)
	if !r.OK() {
		return &RateLimitError{Limit: rl.perMin, RetryAfter: time.Minute}
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return &RateLimitError{Limit: rl.perMin, RetryAfter: time.Duration(math.Ceil(d.Seconds())) * time.Second}
	}
	return nil
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// sweep drops clients idle for longer than idleTTL, at most once per TTL.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSwept) < rl.idleTTL {
		return
	}
	rl.lastSwept = now
	for id, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.idleTTL {
			delete(rl.clients, id)
		}
	}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d per minute, retry after: %v)", e.Limit, e.RetryAfter)
}
