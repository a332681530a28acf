// Package uow runs journal writes in one transaction and defers side effects
// such as publishing until the commit succeeded.
package uow

import (
	"context"

	"github.com/jackc/pgx/v5"

	postgresrepo "github.com/kirinyoku/busdesk/internal/repository/postgres"
)

// AfterCommit runs once the transaction is committed.
type AfterCommit func(ctx context.Context)

// Tx is one attempt of a unit of work.
type Tx struct {
	Journal *postgresrepo.JournalRepo
	hooks   []AfterCommit
}

// AfterCommit queues h. Hooks of an attempt that rolls back are dropped.
func (t *Tx) AfterCommit(h AfterCommit) {
	t.hooks = append(t.hooks, h)
}

type UoW struct {
	store *postgresrepo.Store
}

func NewUoW(store *postgresrepo.Store) *UoW {
	return &UoW{store: store}
}

func (u *UoW) Do(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return u.DoWithOpts(ctx, nil, fn)
}

func (u *UoW) DoWithOpts(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context, tx *Tx) error) error {
	var committed *Tx

	err := u.store.RunTx(ctx, opts, func(ctx context.Context, db postgresrepo.DB) error {
		tx := &Tx{Journal: u.store.Journal().With(db)}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		committed = tx
		return nil
	})
	if err != nil {
		return err
	}

	for _, h := range committed.hooks {
		h(ctx)
	}
	return nil
}
