package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/italolelis/youcast/internal/storage"
	"github.com/italolelis/youcast/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}

func item(path, title string) storage.HistoryItem {
	return storage.HistoryItem{
		Title:     title,
		Path:      path,
		SizeBytes: 4_200_000,
		SizeHuman: "4.2 MB",
		Format:    "mp3",
		MediaType: "audio",
		AddedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHistoryRepository_AddAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(newTestDB(t))

	added, err := repo.Add(ctx, item("/out/b.mp3", "B"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(ctx, item("/out/a.mp3", "A"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(ctx, item("/out/b.mp3", "B again"))
	require.NoError(t, err)
	assert.False(t, added)

	items, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, item("/out/b.mp3", "B"), items[0])
	assert.Equal(t, "/out/a.mp3", items[1].Path)
}

func TestHistoryRepository_GetAndClear(t *testing.T) {
	ctx := context.Background()
	repo := NewInstrumentedHistoryRepository(newTestDB(t), &telemetry.Telemetry{})

	_, err := repo.Get(ctx, "/missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.Add(ctx, item("/out/a.mp3", "A"))
	require.NoError(t, err)

	got, err := repo.Get(ctx, "/out/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)

	require.NoError(t, repo.Clear(ctx))

	items, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestInitDB_ReopensExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := InitDB(path)
	require.NoError(t, err)

	_, err = NewHistoryRepository(db).Add(ctx, item("/out/a.mp3", "A"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = InitDB(path)
	require.NoError(t, err)
	defer db.Close()

	items, err := NewHistoryRepository(db).List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
