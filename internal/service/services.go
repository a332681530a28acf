package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/busdesk/internal/console"
	postgresrepo "github.com/kirinyoku/busdesk/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/busdesk/internal/repository/redis"
	"github.com/kirinyoku/busdesk/internal/service/dashboard"
	"github.com/kirinyoku/busdesk/internal/service/journal"
	"github.com/kirinyoku/busdesk/internal/service/sessions"
	"github.com/kirinyoku/busdesk/internal/service/view"
)

type Backend interface {
	view.BusSource
	view.Backend
	dashboard.Counter
}

type Services struct {
	Sessions  *sessions.Registry
	Journal   *journal.Service
	Dashboard *dashboard.Service
}

type Config struct {
	Sessions sessions.Config
	Location *time.Location
}

// NewServices wires the console. store and pubsub may be nil; without
// pubsub schedule changes only reach sessions of this process.
func NewServices(
	backend Backend,
	buses view.BusSource,
	store *postgresrepo.Store,
	pubsub *redisrepo.ChangesPubSub,
	logger *slog.Logger,
	cfg Config,
) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	if buses == nil {
		buses = backend
	}

	svcs := &Services{
		Dashboard: dashboard.New(backend, logger),
	}

	svcs.Sessions = sessions.NewRegistry(func(id uuid.UUID, busID int64, notices console.Notifier) *view.Coordinator {
		sessionLogger := logger.With("session_id", id.String())

		var page *view.Coordinator
		currentBus := func() int64 { return page.BusID() }

		page = view.New(busID, view.Deps{
			Buses:       buses,
			Backend:     backend,
			Broadcaster: svcs.Journal.Broadcaster(id),
			Notifier: console.MultiNotifier(
				console.LogNotifier(sessionLogger),
				notices,
				svcs.Journal.Notifier(id, currentBus),
			),
			Logger:   sessionLogger,
			Location: cfg.Location,
		})
		return page
	}, cfg.Sessions, logger)

	var publisher journal.Publisher = svcs.Sessions
	if pubsub != nil {
		publisher = pubsub
	}
	svcs.Journal = journal.New(store, publisher, logger)

	return svcs
}
