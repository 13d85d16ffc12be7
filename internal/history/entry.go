package history

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/italolelis/youcast/internal/logctx"
	"github.com/italolelis/youcast/internal/media"
	"github.com/italolelis/youcast/internal/storage"
)

// Entry is a history item as shown to the user.
type Entry struct {
	storage.HistoryItem

	MIMEType  string `json:"mime_type"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
	Err       error  `json:"-"`
}

// MissingArtifactError reports a history entry whose file is no longer on disk.
type MissingArtifactError struct {
	Path  string // Path recorded in the history
	Title string // Title of the entry
	Err   error  // Underlying error, if any
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

func (e *MissingArtifactError) Unwrap() error {
	return e.Err
}

func inspect(ctx context.Context, item storage.HistoryItem) Entry {
	entry := Entry{
		HistoryItem: item,
		MIMEType:    media.MIMETypeForPath(item.Path, item.Format),
		Available:   true,
	}

	_, err := os.Stat(item.Path)
	if err == nil {
		return entry
	}

	entry.Available = false

	if errors.Is(err, os.ErrNotExist) {
		entry.Err = &MissingArtifactError{Path: item.Path, Title: item.Title, Err: err}
	} else {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to stat history file", "file_path", item.Path, "err", err)
		entry.Err = fmt.Errorf("failed to stat %s: %w", item.Path, err)
	}

	entry.Error = entry.Err.Error()

	return entry
}
