// Package memory keeps the download history for the lifetime of the process.
package memory

import (
	"context"
	"sync"

	"github.com/italolelis/youcast/internal/storage"
)

// HistoryRepository implements storage.HistoryRepository in memory.
// It is safe for concurrent use.
type HistoryRepository struct {
	mu     sync.RWMutex
	items  []storage.HistoryItem
	byPath map[string]int
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{byPath: make(map[string]int)}
}

func (r *HistoryRepository) Add(_ context.Context, item storage.HistoryItem) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPath[item.Path]; exists {
		return false, nil
	}

	r.byPath[item.Path] = len(r.items)
	r.items = append(r.items, item)

	return true, nil
}

func (r *HistoryRepository) List(_ context.Context) ([]storage.HistoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]storage.HistoryItem, len(r.items))
	copy(out, r.items)

	return out, nil
}

func (r *HistoryRepository) Get(_ context.Context, path string) (storage.HistoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byPath[path]
	if !ok {
		return storage.HistoryItem{}, storage.ErrNotFound
	}

	return r.items[idx], nil
}

func (r *HistoryRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = nil
	r.byPath = make(map[string]int)

	return nil
}
