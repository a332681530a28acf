package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/busdesk/internal/console"
	"github.com/kirinyoku/busdesk/internal/observability"
	redisrepo "github.com/kirinyoku/busdesk/internal/repository/redis"
	"github.com/kirinyoku/busdesk/internal/service/view"
)

// Builder makes the page of a new session. notices must receive every
// notice the page raises.
type Builder func(id uuid.UUID, busID int64, notices console.Notifier) *view.Coordinator

// Subscriber delivers schedule changes made anywhere.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, ch redisrepo.ScheduleChange)) error
}

type Session struct {
	ID      uuid.UUID
	Page    *view.Coordinator
	Notices *NoticeLog
	Created time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

type Config struct {
	NoticeBacklog int
	IdleTimeout   time.Duration
	SweepEvery    time.Duration
}

// Registry holds the open console sessions.
type Registry struct {
	build  Builder
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(build Builder, cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Hour
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = time.Minute
	}

	return &Registry{
		build:    build,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (r *Registry) Create(busID int64) (*Session, error) {
	const op = "service.sessions.Create"

	if busID <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidBus)
	}

	id := uuid.New()
	log := NewNoticeLog(r.cfg.NoticeBacklog)
	now := r.now()

	s := &Session{
		ID:       id,
		Page:     r.build(id, busID, log),
		Notices:  log,
		Created:  now,
		lastSeen: now,
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	observability.SessionsActive.Inc()
	r.logger.Info("session opened", "session_id", id, "bus_id", busID)

	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	const op = "service.sessions.Get"

	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}

	r.mu.RLock()
	s, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}

	s.touch(r.now())
	return s, nil
}

func (r *Registry) Close(id string) error {
	const op = "service.sessions.Close"

	sid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}

	r.mu.Lock()
	s, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}

	r.closeSession(s, "closed")
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Dispatch applies a change to every other session showing the same bus.
func (r *Registry) Dispatch(ctx context.Context, ch redisrepo.ScheduleChange) {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id.String() == ch.SessionID {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	for _, s := range targets {
		if s.Page.BusID() != ch.BusID {
			continue
		}
		s.Page.RemoteChange(ctx, slices.Clone(ch.RouteIDs))
	}
}

// PublishSchedulesChanged dispatches in process. It stands in for the redis
// channel when there is none.
func (r *Registry) PublishSchedulesChanged(ctx context.Context, sessionID string, busID int64, routeIDs []int64) error {
	r.Dispatch(ctx, redisrepo.ScheduleChange{
		Type:      "schedules_changed",
		SessionID: sessionID,
		BusID:     busID,
		RouteIDs:  routeIDs,
		TsUnix:    r.now().Unix(),
	})
	return nil
}

// Run sweeps idle sessions and, with a subscriber, applies remote changes
// until ctx is done.
func (r *Registry) Run(ctx context.Context, sub Subscriber) error {
	errCh := make(chan error, 1)
	if sub != nil {
		go func() {
			errCh <- sub.Subscribe(ctx, r.Dispatch)
		}()
	}

	t := time.NewTicker(r.cfg.SweepEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("service.sessions.Run: %w", err)
			}
		case <-t.C:
			r.Sweep()
		}
	}
}

// Sweep closes sessions idle for longer than the idle timeout.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)

	var stale []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		r.closeSession(s, "expired")
	}
	return len(stale)
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		r.closeSession(s, "shutdown")
	}
}

func (r *Registry) closeSession(s *Session, reason string) {
	s.Notices.Close()
	observability.SessionsActive.Dec()
	r.logger.Info("session closed", "session_id", s.ID, "reason", reason)
}
