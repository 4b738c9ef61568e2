package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

type TodosRepo struct {
	db  *sql.DB
	loc *time.Location
}

func NewTodosRepo(db *sql.DB, loc *time.Location) *TodosRepo {
	return &TodosRepo{db: db, loc: loc}
}

func (r *TodosRepo) Create(ctx context.Context, ownerID int64, task, category string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (owner_id, task, category, created_at) VALUES (?, ?, ?, ?)`,
		ownerID, task, category, time.Now().In(r.loc).Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert todo: %w", err)
	}
	return res.LastInsertId()
}

func (r *TodosRepo) List(ctx context.Context, ownerID int64, includeDone bool) ([]core.Todo, error) {
	sqlStr := `SELECT id, owner_id, task, done, category, created_at FROM todos WHERE owner_id = ?`
	if !includeDone {
		sqlStr += " AND done = 0"
	}
	sqlStr += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, sqlStr, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	var todos []core.Todo
	for rows.Next() {
		var t core.Todo
		var done int
		var created string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Task, &done, &t.Category, &created); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		t.Done = done != 0
		if ts, err := time.Parse(time.RFC3339, created); err == nil {
			t.CreatedAt = ts.In(r.loc)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (r *TodosRepo) ActiveCount(ctx context.Context, ownerID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM todos WHERE owner_id = ? AND done = 0`, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active todos: %w", err)
	}
	return count, nil
}

func (r *TodosRepo) Complete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE todos SET done = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to complete todo: %w", err)
	}
	return nil
}
