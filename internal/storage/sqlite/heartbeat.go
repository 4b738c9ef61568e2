package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

// HeartbeatLogRepo is an append-only audit trail of heartbeat ticks. The
// engine never mutates or deletes rows; retention is an external concern.
type HeartbeatLogRepo struct {
	db  *sql.DB
	loc *time.Location
}

func NewHeartbeatLogRepo(db *sql.DB, loc *time.Location) *HeartbeatLogRepo {
	return &HeartbeatLogRepo{db: db, loc: loc}
}

func (r *HeartbeatLogRepo) Log(ctx context.Context, state, action, summary string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO heartbeat_log (state, action, summary, created_at) VALUES (?, ?, ?, ?)`,
		state, action, summary, time.Now().In(r.loc).Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert heartbeat log: %w", err)
	}
	return nil
}

func (r *HeartbeatLogRepo) Last(ctx context.Context) (core.HeartbeatEntry, bool, error) {
	var entry core.HeartbeatEntry
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT state, action, summary, created_at FROM heartbeat_log ORDER BY id DESC LIMIT 1`,
	).Scan(&entry.State, &entry.Action, &entry.Summary, &raw)
	if err == sql.ErrNoRows {
		return core.HeartbeatEntry{}, false, nil
	}
	if err != nil {
		return core.HeartbeatEntry{}, false, fmt.Errorf("failed to query heartbeat log: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		entry.CreatedAt = t.In(r.loc)
	}
	return entry, true, nil
}
