package storage

import (
	"context"
	"time"
)

// HistoryItem is a completed download. Path is the identity: at most one item per path.
type HistoryItem struct {
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	SizeHuman string    `json:"size"`
	Format    string    `json:"format"`
	MediaType string    `json:"media_type"`
	AddedAt   time.Time `json:"added_at"`
}

// HistoryRepository stores history items in insertion order.
type HistoryRepository interface {
	// Add inserts item unless an item with the same path exists. Existing items are
	// never updated. It reports whether the item was inserted.
	Add(ctx context.Context, item HistoryItem) (bool, error)
	// List returns all items, oldest first.
	List(ctx context.Context) ([]HistoryItem, error)
	// Get returns the item stored for path.
	Get(ctx context.Context, path string) (HistoryItem, error)
	Clear(ctx context.Context) error
}
