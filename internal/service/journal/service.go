package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/busdesk/internal/console"
	postgresrepo "github.com/kirinyoku/busdesk/internal/repository/postgres"
	"github.com/kirinyoku/busdesk/internal/uow"
)

var ErrDisabled = errors.New("journal disabled")

// Publisher fans a schedule change out to other console sessions.
type Publisher interface {
	PublishSchedulesChanged(ctx context.Context, sessionID string, busID int64, routeIDs []int64) error
}

// Service writes the operator journal. Without a store it only publishes.
type Service struct {
	store     *postgresrepo.Store
	uow       *uow.UoW
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration
}

func New(store *postgresrepo.Store, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		timeout:   2 * time.Second,
	}
	if store != nil {
		s.uow = uow.NewUoW(store)
	}

	return s
}

// Notifier records every notice of a session.
func (s *Service) Notifier(sessionID uuid.UUID, busID func() int64) console.Notifier {
	return console.NotifierFunc(func(ctx context.Context, n console.Notice) {
		if s.store == nil {
			return
		}

		const op = "service.journal.Notify"

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		_, err := s.store.Journal().InsertNotice(ctx, postgresrepo.NoticeRecord{
			SessionID: sessionID,
			BusID:     busID(),
			Severity:  string(n.Severity),
			Title:     n.Title,
			Message:   n.Message,
		})
		if err != nil {
			s.logger.Warn("failed to record notice", "op", op, "session_id", sessionID, "error", err)
		}
	})
}

// Broadcaster binds SchedulesChanged to a session.
func (s *Service) Broadcaster(sessionID uuid.UUID) *Broadcaster {
	return &Broadcaster{svc: s, sessionID: sessionID}
}

// SchedulesChanged records the change and publishes it once the record is
// committed.
func (s *Service) SchedulesChanged(ctx context.Context, sessionID uuid.UUID, busID int64, routeIDs []int64) error {
	const op = "service.journal.SchedulesChanged"

	if len(routeIDs) == 0 {
		return nil
	}

	publish := func(ctx context.Context) {
		if s.publisher == nil {
			return
		}
		if err := s.publisher.PublishSchedulesChanged(ctx, sessionID.String(), busID, routeIDs); err != nil {
			s.logger.Warn("failed to publish schedule change", "op", op, "bus_id", busID, "error", err)
		}
	}

	if s.uow == nil {
		publish(ctx)
		return nil
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx *uow.Tx) error {
		if _, err := tx.Journal.InsertChange(ctx, postgresrepo.ChangeRecord{
			SessionID: sessionID,
			BusID:     busID,
			RouteIDs:  routeIDs,
		}); err != nil {
			return err
		}
		tx.AfterCommit(publish)
		return nil
	})
	if err != nil {
		// the other sessions still need to hear about it
		publish(ctx)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Recent lists the latest notices of a bus.
func (s *Service) Recent(ctx context.Context, busID int64, limit int) ([]postgresrepo.NoticeRecord, error) {
	const op = "service.journal.Recent"

	if s.store == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrDisabled)
	}

	out, err := s.store.Journal().ListNotices(ctx, busID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

type Broadcaster struct {
	svc       *Service
	sessionID uuid.UUID
}

func (b *Broadcaster) SchedulesChanged(ctx context.Context, busID int64, routeIDs []int64) error {
	return b.svc.SchedulesChanged(ctx, b.sessionID, busID, routeIDs)
}
