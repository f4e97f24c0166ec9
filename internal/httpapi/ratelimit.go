package httpapi

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedClients caps the number of tracked rate-limit keys to prevent
// memory exhaustion from rotating source addresses.
const maxTrackedClients = 4096

// clientLimiter rate-limits per client key so one caller cannot starve the
// rest of the control surface. Safe for concurrent use.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

// newClientLimiter creates a limiter allowing rpm requests per minute per
// client. Returns nil when rpm is not positive, meaning no limit.
func newClientLimiter(rpm int) *clientLimiter {
	if rpm <= 0 {
		return nil
	}
	return &clientLimiter{
		limit:   rate.Limit(float64(rpm) / 60),
		burst:   5,
		clients: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the client identified by key may proceed.
// Enforces a hard cap on tracked clients, evicting arbitrarily at the cap.
func (c *clientLimiter) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.clients) >= maxTrackedClients {
		for k := range c.clients {
			delete(c.clients, k)
			break
		}
	}

	lim, ok := c.clients[key]
	if !ok {
		lim = rate.NewLimiter(c.limit, c.burst)
		c.clients[key] = lim
	}
	return lim.Allow()
}
