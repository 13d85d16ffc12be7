package sqlite

import (
	"context"
	"database/sql"

	"github.com/italolelis/youcast/internal/storage"
	"github.com/italolelis/youcast/internal/telemetry"
)

// InstrumentedHistoryRepository wraps HistoryRepository with telemetry.
type InstrumentedHistoryRepository struct {
	repo      *HistoryRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedHistoryRepository creates a new instrumented history repository.
func NewInstrumentedHistoryRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedHistoryRepository {
	return &InstrumentedHistoryRepository{
		repo:      NewHistoryRepository(dbConn),
		telemetry: tel,
	}
}

func (r *InstrumentedHistoryRepository) Add(ctx context.Context, item storage.HistoryItem) (bool, error) {
	var added bool

	err := r.telemetry.InstrumentDBOperation(ctx, "add_history_item", func(ctx context.Context) error {
		var err error
		added, err = r.repo.Add(ctx, item)

		return err
	})

	return added, err
}

func (r *InstrumentedHistoryRepository) List(ctx context.Context) ([]storage.HistoryItem, error) {
	var items []storage.HistoryItem

	err := r.telemetry.InstrumentDBOperation(ctx, "list_history", func(ctx context.Context) error {
		var err error
		items, err = r.repo.List(ctx)

		return err
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *InstrumentedHistoryRepository) Get(ctx context.Context, path string) (storage.HistoryItem, error) {
	var item storage.HistoryItem

	err := r.telemetry.InstrumentDBOperation(ctx, "get_history_item", func(ctx context.Context) error {
		var err error
		item, err = r.repo.Get(ctx, path)

		return err
	})

	return item, err
}

func (r *InstrumentedHistoryRepository) Clear(ctx context.Context) error {
	return r.telemetry.InstrumentDBOperation(ctx, "clear_history", r.repo.Clear)
}
