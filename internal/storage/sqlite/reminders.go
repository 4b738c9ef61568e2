package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

type RemindersRepo struct {
	db  *sql.DB
	loc *time.Location
}

func NewRemindersRepo(db *sql.DB, loc *time.Location) *RemindersRepo {
	return &RemindersRepo{db: db, loc: loc}
}

func (r *RemindersRepo) Create(ctx context.Context, ownerID, chatID int64, message string, remindAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (owner_id, chat_id, message, remind_at) VALUES (?, ?, ?, ?)`,
		ownerID, chatID, message, remindAt.In(r.loc).Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reminder: %w", err)
	}
	return res.LastInsertId()
}

func (r *RemindersRepo) Due(ctx context.Context, now time.Time) ([]core.Reminder, error) {
	return r.query(ctx,
		`SELECT id, owner_id, chat_id, message, remind_at, fired FROM reminders
		 WHERE fired = 0 AND remind_at <= ?`,
		now.In(r.loc).Format(time.RFC3339),
	)
}

func (r *RemindersRepo) Upcoming(ctx context.Context, ownerID int64, until time.Time) ([]core.Reminder, error) {
	return r.query(ctx,
		`SELECT id, owner_id, chat_id, message, remind_at, fired FROM reminders
		 WHERE owner_id = ? AND fired = 0 AND remind_at <= ?`,
		ownerID, until.In(r.loc).Format(time.RFC3339),
	)
}

func (r *RemindersRepo) MarkFired(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE reminders SET fired = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark reminder fired: %w", err)
	}
	return nil
}

func (r *RemindersRepo) query(ctx context.Context, sqlStr string, args ...any) ([]core.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []core.Reminder
	for rows.Next() {
		var rem core.Reminder
		var at string
		var fired int
		if err := rows.Scan(&rem.ID, &rem.OwnerID, &rem.ChatID, &rem.Message, &at, &fired); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		rem.Fired = fired != 0
		if t, err := time.Parse(time.RFC3339, at); err == nil {
			rem.RemindAt = t.In(r.loc)
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}
