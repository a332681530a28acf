package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/busdesk/internal/backend"
	"github.com/kirinyoku/busdesk/internal/config"
	"github.com/kirinyoku/busdesk/internal/postgres"
	"github.com/kirinyoku/busdesk/internal/redis"
	postgresrepo "github.com/kirinyoku/busdesk/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/busdesk/internal/repository/redis"
	"github.com/kirinyoku/busdesk/internal/service"
	"github.com/kirinyoku/busdesk/internal/service/sessions"
	"github.com/kirinyoku/busdesk/internal/service/view"
	httpgin "github.com/kirinyoku/busdesk/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	pubsub     *redisrepo.ChangesPubSub
	pool       *pgxpool.Pool
	rdb        *goredis.Client
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	client, err := backend.New(backend.Config{
		BaseURL:  cfg.Backend.URL,
		Token:    cfg.Backend.Token,
		Timeout:  cfg.Backend.Timeout,
		Location: cfg.Console.Location,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{cfg: cfg, logger: logger}

	var store *postgresrepo.Store
	if cfg.Postgres.Enabled() {
		a.pool, err = postgres.New(ctx, postgres.Config{
			DSN: postgres.DSN(
				cfg.Postgres.User,
				cfg.Postgres.Password,
				cfg.Postgres.Host,
				cfg.Postgres.Port,
				cfg.Postgres.Name,
				cfg.Postgres.SSLMode,
			),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: failed to initialize postgres: %w", op, err)
		}

		store = postgresrepo.NewStore(a.pool)
		if err := store.Migrate(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		logger.Info("postgres not configured, operator journal disabled")
	}

	var (
		buses  view.BusSource = client
		guards httpgin.Guards
	)
	if cfg.Redis.Enabled() {
		a.rdb, err = redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: failed to initialize redis: %w", op, err)
		}

		cache := redisrepo.New(a.rdb, logger)
		buses = redisrepo.NewBusCache(cache, client, cfg.Console.BusCacheTTL)
		a.pubsub = redisrepo.NewChangesPubSub(a.rdb)
		guards.Idempotency = redisrepo.NewIdempotencyStore(a.rdb, 2*time.Hour)
		if cfg.Console.BookingRateLimit > 0 {
			guards.Limiter = redisrepo.NewSlidingWindowLimiter(a.rdb, "booking", cfg.Console.BookingRateLimit, time.Minute)
		}
	} else {
		logger.Info("redis not configured, changes stay within this process")
	}

	a.services = service.NewServices(client, buses, store, a.pubsub, logger, service.Config{
		Sessions: sessions.Config{IdleTimeout: cfg.Console.SessionIdle},
		Location: cfg.Console.Location,
	})

	router := httpgin.NewRouter(a.services, httpgin.Options{
		Guards:      guards,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var sub sessions.Subscriber
		if a.pubsub != nil {
			sub = a.pubsub
		}
		return a.services.Sessions.Run(gCtx, sub)
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
