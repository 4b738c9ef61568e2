package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

type UsageRepo struct {
	db  *sql.DB
	loc *time.Location
}

func NewUsageRepo(db *sql.DB, loc *time.Location) *UsageRepo {
	return &UsageRepo{db: db, loc: loc}
}

func (r *UsageRepo) Log(ctx context.Context, rec core.UsageRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usage_log (prompt_tokens, completion_tokens, total_tokens, tool_calls, model, purpose, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.ToolCalls,
		rec.Model, rec.Purpose, time.Now().In(r.loc).Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// Summary aggregates today's and this month's spend plus the per-model
// and per-purpose breakdowns for the current month.
func (r *UsageRepo) Summary(ctx context.Context) (core.UsageSummary, error) {
	now := time.Now().In(r.loc)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc).Format(time.RFC3339)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc).Format(time.RFC3339)

	var s core.UsageSummary
	var err error

	if s.Today, err = r.window(ctx, todayStart); err != nil {
		return core.UsageSummary{}, err
	}
	if s.Month, err = r.window(ctx, monthStart); err != nil {
		return core.UsageSummary{}, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT model, COALESCE(SUM(total_tokens), 0), COUNT(*) FROM usage_log
		 WHERE created_at >= ? GROUP BY model ORDER BY SUM(total_tokens) DESC`,
		monthStart,
	)
	if err != nil {
		return core.UsageSummary{}, fmt.Errorf("failed to query usage by model: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m core.ModelUsage
		if err := rows.Scan(&m.Model, &m.TotalTokens, &m.Calls); err != nil {
			return core.UsageSummary{}, fmt.Errorf("failed to scan model usage: %w", err)
		}
		s.ByModel = append(s.ByModel, m)
	}
	if err := rows.Err(); err != nil {
		return core.UsageSummary{}, err
	}

	prows, err := r.db.QueryContext(ctx,
		`SELECT purpose, COALESCE(SUM(total_tokens), 0) FROM usage_log
		 WHERE created_at >= ? GROUP BY purpose ORDER BY SUM(total_tokens) DESC`,
		monthStart,
	)
	if err != nil {
		return core.UsageSummary{}, fmt.Errorf("failed to query usage by purpose: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var p core.PurposeUsage
		if err := prows.Scan(&p.Purpose, &p.TotalTokens); err != nil {
			return core.UsageSummary{}, fmt.Errorf("failed to scan purpose usage: %w", err)
		}
		s.ByPurpose = append(s.ByPurpose, p)
	}
	return s, prows.Err()
}

func (r *UsageRepo) window(ctx context.Context, since string) (core.UsageWindow, error) {
	var w core.UsageWindow
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0),
		        COALESCE(SUM(total_tokens), 0), COUNT(*)
		 FROM usage_log WHERE created_at >= ?`,
		since,
	).Scan(&w.PromptTokens, &w.CompletionTokens, &w.TotalTokens, &w.Calls)
	if err != nil {
		return core.UsageWindow{}, fmt.Errorf("failed to query usage window: %w", err)
	}
	return w, nil
}
