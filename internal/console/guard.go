package console

import "sync"

// Guard gates a write operation: Idle -> InFlight -> Idle. A second TryBegin
// while in flight is refused.
type Guard struct {
	mu       sync.Mutex
	inFlight bool
}

func (g *Guard) TryBegin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		return false
	}
	g.inFlight = true
	return true
}

func (g *Guard) End() {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()
}

func (g *Guard) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}
