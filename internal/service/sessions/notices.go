package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/kirinyoku/busdesk/internal/console"
)

type Entry struct {
	Seq    uint64         `json:"seq"`
	Notice console.Notice `json:"notice"`
	At     time.Time      `json:"at"`
}

// NoticeLog keeps the last notices of a session and streams new ones to
// subscribers. Slow subscribers miss entries instead of blocking Notify.
type NoticeLog struct {
	mu      sync.Mutex
	size    int
	entries []Entry
	seq     uint64
	subs    map[uint64]chan Entry
	nextSub uint64
	closed  bool
}

func NewNoticeLog(size int) *NoticeLog {
	if size <= 0 {
		size = 64
	}
	return &NoticeLog{
		size: size,
		subs: make(map[uint64]chan Entry),
	}
}

func (l *NoticeLog) Notify(_ context.Context, n console.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.seq++
	e := Entry{Seq: l.seq, Notice: n, At: time.Now()}

	l.entries = append(l.entries, e)
	if len(l.entries) > l.size {
		l.entries = append(l.entries[:0], l.entries[len(l.entries)-l.size:]...)
	}

	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Since returns the kept entries with a sequence number above seq.
func (l *NoticeLog) Since(seq uint64) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Subscribe returns a channel of new entries and a func to stop. The
// channel is closed when the log is closed or the subscription stops.
func (l *NoticeLog) Subscribe() (<-chan Entry, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Entry, 16)
	if l.closed {
		close(ch)
		return ch, func() {}
	}

	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(c)
			}
		})
	}
}

func (l *NoticeLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
}
