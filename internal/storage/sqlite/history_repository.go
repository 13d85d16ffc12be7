package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/italolelis/youcast/internal/storage"
)

// HistoryRepository implements storage.HistoryRepository on SQLite.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Add relies on the UNIQUE(path) constraint; conflicting rows are left untouched.
func (r *HistoryRepository) Add(ctx context.Context, item storage.HistoryItem) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO history (path, title, size_bytes, size_human, format, media_type, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING`,
		item.Path, item.Title, item.SizeBytes, item.SizeHuman, item.Format, item.MediaType,
		item.AddedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert history item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *HistoryRepository) List(ctx context.Context) ([]storage.HistoryItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT
			path,
			title,
			size_bytes,
			size_human,
			format,
			media_type,
			added_at
		FROM history
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var items []storage.HistoryItem

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *HistoryRepository) Get(ctx context.Context, path string) (storage.HistoryItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT path, title, size_bytes, size_human, format, media_type, added_at FROM history WHERE path = ?`,
		path,
	)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.HistoryItem{}, storage.ErrNotFound
	}

	return item, err
}

func (r *HistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (storage.HistoryItem, error) {
	var (
		item    storage.HistoryItem
		addedAt string
	)

	if err := s.Scan(&item.Path, &item.Title, &item.SizeBytes, &item.SizeHuman, &item.Format, &item.MediaType, &addedAt); err != nil {
		return storage.HistoryItem{}, err
	}

	if t, err := time.Parse(time.RFC3339Nano, addedAt); err == nil {
		item.AddedAt = t
	}

	return item, nil
}
