package postgresrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NoticeRecord struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	BusID     int64     `json:"bus_id"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type ChangeRecord struct {
	ID        int64
	SessionID uuid.UUID
	BusID     int64
	RouteIDs  []int64
	CreatedAt time.Time
}

// JournalRepo stores what operators saw and changed.
type JournalRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *JournalRepo) With(db DB) *JournalRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *JournalRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *JournalRepo) InsertNotice(ctx context.Context, n NoticeRecord) (int64, error) {
	const op = "postgresrepo.JournalRepo.InsertNotice"

	var id int64
	err := r.handle().QueryRow(ctx,
		`INSERT INTO console_notices (session_id, bus_id, severity, title, message)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		n.SessionID, n.BusID, n.Severity, n.Title, n.Message,
	).Scan(&id)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *JournalRepo) InsertChange(ctx context.Context, c ChangeRecord) (int64, error) {
	const op = "postgresrepo.JournalRepo.InsertChange"

	var id int64
	err := r.handle().QueryRow(ctx,
		`INSERT INTO console_changes (session_id, bus_id, route_ids)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		c.SessionID, c.BusID, c.RouteIDs,
	).Scan(&id)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// ListNotices returns the newest notices of a bus first.
func (r *JournalRepo) ListNotices(ctx context.Context, busID int64, limit int) ([]NoticeRecord, error) {
	const op = "postgresrepo.JournalRepo.ListNotices"

	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.handle().Query(ctx,
		`SELECT id, session_id, bus_id, severity, title, message, created_at
		 FROM console_notices
		 WHERE bus_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		busID, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	out := make([]NoticeRecord, 0, limit)
	for rows.Next() {
		var n NoticeRecord
		if err := rows.Scan(&n.ID, &n.SessionID, &n.BusID, &n.Severity, &n.Title, &n.Message, &n.CreatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
