package postgresrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/busdesk/internal/observability"
)

// DB is what the journal queries need; both the pool and a transaction
// satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TxFunc func(ctx context.Context, tx DB) error

type Store struct {
	pool     *pgxpool.Pool
	attempts int
	backoff  time.Duration
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, attempts: 3, backoff: 20 * time.Millisecond}
}

func (s *Store) Journal() *JournalRepo { return &JournalRepo{pool: s.pool} }

// RunTx runs fn in a transaction, read committed unless opts say otherwise.
// Serialization failures and deadlocks are retried with a growing pause.
func (s *Store) RunTx(ctx context.Context, opts *pgx.TxOptions, fn TxFunc) error {
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
	if opts != nil {
		txOpts = *opts
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = s.runOnce(ctx, txOpts, fn); err == nil || !IsRetryable(err) || attempt == s.attempts {
			return err
		}

		observability.TxRetriesTotal.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
}

func (s *Store) runOnce(ctx context.Context, txOpts pgx.TxOptions, fn TxFunc) error {
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
