package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

type HabitsRepo struct {
	db  *sql.DB
	loc *time.Location
}

func NewHabitsRepo(db *sql.DB, loc *time.Location) *HabitsRepo {
	return &HabitsRepo{db: db, loc: loc}
}

func (r *HabitsRepo) Create(ctx context.Context, ownerID int64, name, description string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO habits (owner_id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		ownerID, name, description, time.Now().In(r.loc).Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert habit: %w", err)
	}
	return res.LastInsertId()
}

// Log records a completion for today. Returns false if no active habit with
// that name exists.
func (r *HabitsRepo) Log(ctx context.Context, ownerID int64, name string) (bool, error) {
	var habitID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM habits WHERE owner_id = ? AND name = ? AND active = 1`,
		ownerID, name,
	).Scan(&habitID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up habit: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO habit_logs (habit_id, owner_id, logged_at) VALUES (?, ?, ?)`,
		habitID, ownerID, time.Now().In(r.loc).Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert habit log: %w", err)
	}
	return true, nil
}

func (r *HabitsRepo) Overview(ctx context.Context, ownerID int64, today string) ([]core.HabitOverview, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM habits WHERE owner_id = ? AND active = 1 ORDER BY name`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	type habitRow struct {
		id          int64
		name, descr string
	}
	var habits []habitRow
	for rows.Next() {
		var h habitRow
		if err := rows.Scan(&h.id, &h.name, &h.descr); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var result []core.HabitOverview
	for _, h := range habits {
		var lastLogged string
		err := r.db.QueryRowContext(ctx,
			`SELECT logged_at FROM habit_logs WHERE habit_id = ? ORDER BY logged_at DESC LIMIT 1`,
			h.id,
		).Scan(&lastLogged)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to query habit log: %w", err)
		}
		if len(lastLogged) >= 10 {
			lastLogged = lastLogged[:10]
		}

		streak, err := r.streak(ctx, h.id, today)
		if err != nil {
			return nil, err
		}

		result = append(result, core.HabitOverview{
			Name:        h.name,
			Description: h.descr,
			StreakDays:  streak,
			LastLogged:  lastLogged,
			LoggedToday: lastLogged == today,
		})
	}
	return result, nil
}

// streak counts consecutive logged days ending today or yesterday.
func (r *HabitsRepo) streak(ctx context.Context, habitID int64, today string) (int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT DATE(logged_at) AS day FROM habit_logs
		 WHERE habit_id = ? ORDER BY day DESC LIMIT 366`,
		habitID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to query habit log days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return 0, fmt.Errorf("failed to scan habit log day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(days) == 0 {
		return 0, nil
	}

	start, err := time.ParseInLocation("2006-01-02", today, r.loc)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q: %w", today, err)
	}
	// A streak may end yesterday without being broken yet.
	if days[0] != today {
		start = start.AddDate(0, 0, -1)
	}

	streak := 0
	for _, d := range days {
		if d != start.Format("2006-01-02") {
			break
		}
		streak++
		start = start.AddDate(0, 0, -1)
	}
	return streak, nil
}
