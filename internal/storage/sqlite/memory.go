package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shikidmsh-rgb/mochibot/internal/core"
)

type MemoryRepo struct {
	db  *sql.DB
	loc *time.Location
}

func NewMemoryRepo(db *sql.DB, loc *time.Location) *MemoryRepo {
	return &MemoryRepo{db: db, loc: loc}
}

func (r *MemoryRepo) now() string {
	return time.Now().In(r.loc).Format(time.RFC3339)
}

func (r *MemoryRepo) SaveItem(ctx context.Context, item core.MemoryItem) (int64, error) {
	now := r.now()
	importance := item.Importance
	if importance <= 0 {
		importance = 1
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO memory_items (owner_id, category, content, importance, source, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.OwnerID, item.Category, item.Content, importance, item.Source, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert memory item: %w", err)
	}
	return res.LastInsertId()
}

func (r *MemoryRepo) AllItems(ctx context.Context, ownerID int64) ([]core.MemoryItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, category, content, importance, source, processed, created_at, updated_at
		 FROM memory_items WHERE owner_id = ? ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory items: %w", err)
	}
	defer rows.Close()
	return r.scanItems(rows)
}

func (r *MemoryRepo) Recall(ctx context.Context, ownerID int64, query, category string, limit int) ([]core.MemoryItem, error) {
	sqlStr := `SELECT id, owner_id, category, content, importance, source, processed, created_at, updated_at
	           FROM memory_items WHERE owner_id = ?`
	args := []any{ownerID}

	if category != "" {
		sqlStr += " AND category = ?"
		args = append(args, category)
	}
	if query != "" {
		sqlStr += " AND content LIKE ?"
		args = append(args, "%"+query+"%")
	}
	sqlStr += " ORDER BY importance DESC, updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to recall memory items: %w", err)
	}
	defer rows.Close()
	return r.scanItems(rows)
}

func (r *MemoryRepo) DeleteItems(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM memory_items WHERE id IN (%s)", placeholders), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete memory items: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *MemoryRepo) MergeItems(ctx context.Context, keepID int64, deleteIDs []int64, mergedContent string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE memory_items SET content = ?, updated_at = ? WHERE id = ?`,
		mergedContent, r.now(), keepID,
	); err != nil {
		return fmt.Errorf("failed to update kept item: %w", err)
	}

	if len(deleteIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(deleteIDs)), ",")
		args := make([]any, len(deleteIDs))
		for i, id := range deleteIDs {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM memory_items WHERE id IN (%s)", placeholders), args...); err != nil {
			return fmt.Errorf("failed to delete merged items: %w", err)
		}
	}

	return tx.Commit()
}

func (r *MemoryRepo) CoreMemory(ctx context.Context, ownerID int64) (string, error) {
	var content string
	err := r.db.QueryRowContext(ctx,
		`SELECT content FROM core_memory WHERE owner_id = ?`, ownerID,
	).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query core memory: %w", err)
	}
	return content, nil
}

func (r *MemoryRepo) UpsertCoreMemory(ctx context.Context, ownerID int64, content string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO core_memory (owner_id, content, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		ownerID, content, r.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert core memory: %w", err)
	}
	return nil
}

func (r *MemoryRepo) scanItems(rows *sql.Rows) ([]core.MemoryItem, error) {
	var items []core.MemoryItem
	for rows.Next() {
		var it core.MemoryItem
		var created, updated string
		var processed int
		if err := rows.Scan(&it.ID, &it.OwnerID, &it.Category, &it.Content,
			&it.Importance, &it.Source, &processed, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan memory item: %w", err)
		}
		it.Processed = processed != 0
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			it.CreatedAt = t.In(r.loc)
		}
		if t, err := time.Parse(time.RFC3339, updated); err == nil {
			it.UpdatedAt = t.In(r.loc)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
