package dashboard

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/busdesk/internal/domain"
)

type Counter interface {
	Count(ctx context.Context, resource string) (int, error)
}

// Resources maps a dashboard figure to the platform collection behind it.
var Resources = []string{"hotels", "buses", "taxis", "theaters"}

type Service struct {
	counter Counter
	logger  *slog.Logger
}

func New(counter Counter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{counter: counter, logger: logger}
}

// Stats fetches every count concurrently. A failing source is listed in
// Failed and leaves its figure at zero; it never holds the others back.
func (s *Service) Stats(ctx context.Context) domain.DashboardStats {
	const op = "service.dashboard.Stats"

	var (
		mu     sync.Mutex
		counts = make(map[string]int, len(Resources))
		failed []string
	)

	var g errgroup.Group
	for _, res := range Resources {
		g.Go(func() error {
			n, err := s.counter.Count(ctx, res)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.logger.Warn("dashboard source failed", "op", op, "resource", res, "error", err)
				failed = append(failed, res)
				return nil
			}
			counts[res] = n
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(failed)

	return domain.DashboardStats{
		Hotels:   counts["hotels"],
		Buses:    counts["buses"],
		Taxis:    counts["taxis"],
		Theaters: counts["theaters"],
		Failed:   failed,
	}
}
