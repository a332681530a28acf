package postgresrepo

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS console_notices (
		id          BIGSERIAL PRIMARY KEY,
		session_id  UUID        NOT NULL,
		bus_id      BIGINT      NOT NULL,
		severity    TEXT        NOT NULL,
		title       TEXT        NOT NULL,
		message     TEXT        NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS console_notices_bus_created_idx
		ON console_notices (bus_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS console_changes (
		id          BIGSERIAL PRIMARY KEY,
		session_id  UUID        NOT NULL,
		bus_id      BIGINT      NOT NULL,
		route_ids   BIGINT[]    NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the journal tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgresrepo.Store.Migrate"

	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}
