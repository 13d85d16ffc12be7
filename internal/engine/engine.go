// Package engine defines the contract with the external media fetch/transcode engine.
package engine

import (
	"context"
	"fmt"

	"github.com/italolelis/youcast/internal/media"
)

// Invocation is one request to the engine: a URL plus one extraction strategy.
type Invocation struct {
	URL string
	// Selector is the engine format selector, e.g. "bestaudio/best".
	Selector string
	// Container is the audio codec for audio extraction or the merge container for video.
	Container       string
	MediaType       media.MediaType
	Quality         string
	OutputTemplate  string
	IncludePlaylist bool
}

// Download statuses reported through ProgressEvent.
const (
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
	StatusError       = "error"
)

// ProgressEvent is a raw transfer update. Zero byte counts mean unknown.
type ProgressEvent struct {
	Status             string
	DownloadedBytes    uint64
	TotalBytes         uint64
	TotalBytesEstimate uint64
}

// Total prefers the exact size and falls back to the estimate.
func (e ProgressEvent) Total() uint64 {
	if e.TotalBytes > 0 {
		return e.TotalBytes
	}

	return e.TotalBytesEstimate
}

// ProducedEvent reports a post-processed artifact on disk.
type ProducedEvent struct {
	Status string
	Path   string
	Title  string
}

// Listener receives engine callbacks. Callbacks run synchronously on the goroutine
// that called Fetch, so implementations need no locking.
type Listener interface {
	OnProgress(ev ProgressEvent)
	OnFinished()
	OnProduced(ev ProducedEvent)
}

// Engine fetches (and transcodes) the media behind a URL.
type Engine interface {
	Fetch(ctx context.Context, inv Invocation, l Listener) error
}

// Failure is returned by engines when an invocation fails.
type Failure struct {
	Reason   string // Human-readable explanation, usually the engine's last error line
	ExitCode int    // Process exit code, -1 when not applicable
	Err      error  // Underlying error, if any
}

func (e *Failure) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("engine failed (exit %d): %s", e.ExitCode, e.Reason)
	}

	return "engine failed: " + e.Reason
}

func (e *Failure) Unwrap() error {
	return e.Err
}
