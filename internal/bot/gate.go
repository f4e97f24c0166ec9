package bot

import "sync"

// Gate is the mutual-exclusion region around every outward send. The
// processing loop and the HTTP control surface share one instance: the
// underlying send mechanism drives a single UI surface that cannot
// tolerate concurrent interaction. No timeout, no preemption: a send is
// a short, bounded UI interaction, and whoever acquires the gate first
// completes it before the other proceeds.
type Gate struct {
	mu sync.Mutex
}

// Do runs fn while holding the gate.
func (g *Gate) Do(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}
