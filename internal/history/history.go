// Package history is the deduplicated record of completed downloads.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/youcast/internal/logctx"
	"github.com/italolelis/youcast/internal/media"
	"github.com/italolelis/youcast/internal/storage"
)

const unknownSize = "unknown"

// Store merges produced files into a HistoryRepository and prepares them for display.
// The repository is the only state; Store itself is safe for concurrent use when the
// repository is.
type Store struct {
	repo storage.HistoryRepository
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for AddedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(repo storage.HistoryRepository, opts ...Option) *Store {
	s := &Store{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Merge records file unless its path is already known. The size on disk is captured
// now and never refreshed. It reports whether a new item was added.
func (s *Store) Merge(ctx context.Context, file media.ProducedFile, format string, mediaType media.MediaType) (bool, error) {
	item := storage.HistoryItem{
		Title:     file.Title,
		Path:      file.Path,
		SizeHuman: unknownSize,
		Format:    format,
		MediaType: string(mediaType),
		AddedAt:   s.now(),
	}

	if item.Title == "" {
		item.Title = media.NewProducedFile(file.Path, "").Title
	}

	info, err := os.Stat(file.Path)
	if err != nil {
		logctx.LoggerFromContext(ctx).WarnContext(ctx, "failed to stat produced file", "file_path", file.Path, "err", err)
	} else {
		item.SizeBytes = info.Size()
		item.SizeHuman = humanize.Bytes(uint64(info.Size()))
	}

	added, err := s.repo.Add(ctx, item)
	if err != nil {
		return false, fmt.Errorf("failed to merge %s into history: %w", file.Path, err)
	}

	return added, nil
}

// List returns the history in insertion order.
func (s *Store) List(ctx context.Context) ([]storage.HistoryItem, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	return dedupe(ctx, items), nil
}

// Clear empties the history. Files on disk are left alone.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	return nil
}

// Entries returns the history ready for display. A file that disappeared from disk
// marks its own entry unavailable and does not affect the others.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, inspect(ctx, item))
	}

	return entries, nil
}

// Open returns the artifact of a history entry. Paths outside the history are
// rejected with storage.ErrNotFound; a vanished file yields *MissingArtifactError.
func (s *Store) Open(ctx context.Context, path string) (*os.File, Entry, error) {
	item, err := s.repo.Get(ctx, path)
	if err != nil {
		return nil, Entry{}, err
	}

	entry := inspect(ctx, item)
	if entry.Err != nil {
		return nil, entry, entry.Err
	}

	f, err := os.Open(item.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, entry, &MissingArtifactError{Path: item.Path, Title: item.Title, Err: err}
		}

		return nil, entry, fmt.Errorf("failed to open %s: %w", item.Path, err)
	}

	return f, entry, nil
}

// dedupe is a read-time safety net. Add already rejects duplicate paths, so dropping
// anything here means a repository broke that contract.
func dedupe(ctx context.Context, items []storage.HistoryItem) []storage.HistoryItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]

	for _, item := range items {
		if _, dup := seen[item.Path]; dup {
			logctx.LoggerFromContext(ctx).WarnContext(ctx, "duplicate history item dropped", "file_path", item.Path)

			continue
		}

		seen[item.Path] = struct{}{}
		out = append(out, item)
	}

	return out
}
