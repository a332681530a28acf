// Package consoletest has recording stand-ins for the console UI seams.
package consoletest

import (
	"context"
	"sync"

	"github.com/kirinyoku/busdesk/internal/console"
)

// Host records what managers ask of the page.
type Host struct {
	mu      sync.Mutex
	Scrolls []string
	Changed [][]int64
	Removed []int64

	// OnChanged, when set, runs for every SchedulesChanged call.
	OnChanged func(ctx context.Context, routeIDs ...int64)
}

func (h *Host) ScrollIntoView(target string) {
	h.mu.Lock()
	h.Scrolls = append(h.Scrolls, target)
	h.mu.Unlock()
}

func (h *Host) SchedulesChanged(ctx context.Context, routeIDs ...int64) {
	h.mu.Lock()
	h.Changed = append(h.Changed, append([]int64(nil), routeIDs...))
	fn := h.OnChanged
	h.mu.Unlock()

	if fn != nil {
		fn(ctx, routeIDs...)
	}
}

func (h *Host) RouteRemoved(_ context.Context, routeID int64) {
	h.mu.Lock()
	h.Removed = append(h.Removed, routeID)
	h.mu.Unlock()
}

func (h *Host) LastScroll() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Scrolls) == 0 {
		return ""
	}
	return h.Scrolls[len(h.Scrolls)-1]
}

// Notices records every notice.
type Notices struct {
	mu   sync.Mutex
	List []console.Notice
}

func (n *Notices) Notify(_ context.Context, notice console.Notice) {
	n.mu.Lock()
	n.List = append(n.List, notice)
	n.mu.Unlock()
}

func (n *Notices) Last() console.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.List) == 0 {
		return console.Notice{}
	}
	return n.List[len(n.List)-1]
}

func (n *Notices) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.List)
}

// Answer is a prompter with a fixed answer that counts how often it was asked.
type Answer struct {
	Yes   bool
	Asked int
	Last  console.Prompt
}

func (a *Answer) Confirm(_ context.Context, p console.Prompt) (bool, error) {
	a.Asked++
	a.Last = p
	return a.Yes, nil
}
