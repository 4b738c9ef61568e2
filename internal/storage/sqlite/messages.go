package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
	"github.com/shikidmsh-rgb/mochibot/pkg/log"
)

type MessagesRepo struct {
	db  *sql.DB
	loc *time.Location
}

func NewMessagesRepo(db *sql.DB, loc *time.Location) *MessagesRepo {
	return &MessagesRepo{db: db, loc: loc}
}

func (r *MessagesRepo) now() time.Time {
	return time.Now().In(r.loc)
}

func (r *MessagesRepo) AddMessage(ctx context.Context, ownerID int64, role, content string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (owner_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		ownerID, role, content, r.now().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	return res.LastInsertId()
}

func (r *MessagesRepo) GetRecent(ctx context.Context, ownerID int64, limit int) ([]core.StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, role, content, created_at FROM messages
		 WHERE owner_id = ? ORDER BY id DESC LIMIT ?`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages, err := r.scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Query returned newest first; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Int("count", len(messages)).Msg("loaded recent messages")
	return messages, nil
}

func (r *MessagesRepo) LastUserMessageTime(ctx context.Context, ownerID int64) (time.Time, bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT created_at FROM messages WHERE owner_id = ? AND role = 'user' ORDER BY id DESC LIMIT 1`,
		ownerID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last user message: %w", err)
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse timestamp %q: %w", raw, err)
	}
	return t.In(r.loc), true, nil
}

func (r *MessagesRepo) CountUserMessagesToday(ctx context.Context, ownerID int64, today string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE owner_id = ? AND role = 'user' AND created_at >= ?`,
		ownerID, today,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's messages: %w", err)
	}
	return count, nil
}

// DailyUserCounts returns per-day user message counts for the last N days,
// oldest first, zero-filled so the slice always has exactly `days` entries.
func (r *MessagesRepo) DailyUserCounts(ctx context.Context, ownerID int64, days int) ([]core.DailyCount, error) {
	now := r.now()
	start := now.AddDate(0, 0, -(days - 1)).Format("2006-01-02")

	rows, err := r.db.QueryContext(ctx,
		`SELECT DATE(created_at) AS day, COUNT(*) AS cnt FROM messages
		 WHERE owner_id = ? AND role = 'user' AND created_at >= ?
		 GROUP BY DATE(created_at) ORDER BY day`,
		ownerID, start,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var cnt int
		if err := rows.Scan(&day, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		counts[day] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]core.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		d := now.AddDate(0, 0, -(days - 1 - i)).Format("2006-01-02")
		result = append(result, core.DailyCount{Date: d, Count: counts[d]})
	}
	return result, nil
}

func (r *MessagesRepo) GetUnprocessed(ctx context.Context, ownerID int64) ([]core.StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, role, content, created_at FROM messages
		 WHERE owner_id = ? AND id > COALESCE(
		     (SELECT MAX(id) FROM messages WHERE owner_id = ? AND content LIKE ?), 0
		 )
		 ORDER BY id`,
		ownerID, ownerID, "%"+core.ExtractionMarker+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed messages: %w", err)
	}
	defer rows.Close()

	return r.scanMessages(rows)
}

func (r *MessagesRepo) MarkProcessed(ctx context.Context, ownerID, upToID int64) error {
	marker := fmt.Sprintf("%s up_to_id=%d", core.ExtractionMarker, upToID)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (owner_id, role, content, created_at) VALUES (?, 'system', ?, ?)`,
		ownerID, marker, r.now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert extraction marker: %w", err)
	}
	return nil
}

func (r *MessagesRepo) scanMessages(rows *sql.Rows) ([]core.StoredMessage, error) {
	var messages []core.StoredMessage
	for rows.Next() {
		var m core.StoredMessage
		var raw string
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Role, &m.Content, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			m.CreatedAt = t.In(r.loc)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
