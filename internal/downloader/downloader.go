package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/italolelis/youcast/internal/downloader/progress"
	"github.com/italolelis/youcast/internal/logctx"
	"github.com/italolelis/youcast/internal/media"
	"github.com/italolelis/youcast/internal/strategy"
	"github.com/italolelis/youcast/internal/telemetry"
)

const (
	dirPerm = 0755
)

// Runner runs the fallback cascade for one URL.
type Runner interface {
	Run(ctx context.Context, url string, req media.Request, hook strategy.Hook) ([]media.ProducedFile, error)
}

// Merger records produced files in the download history.
type Merger interface {
	Merge(ctx context.Context, file media.ProducedFile, format string, mediaType media.MediaType) (bool, error)
}

// Downloader processes batches of URLs, one URL at a time.
type Downloader struct {
	cascade   Runner
	history   Merger
	telemetry *telemetry.Telemetry
	observer  Observer
	newID     func() string
	now       func() time.Time

	// held for the duration of a batch
	mu sync.Mutex
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithObservers registers observers notified of every batch event.
func WithObservers(observers ...Observer) Option {
	return func(d *Downloader) { d.observer = Observers(append([]Observer{d.observer}, observers...)...) }
}

// WithClock replaces time.Now for batch timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Downloader) { d.now = now }
}

// WithIDGenerator replaces the batch id generator.
func WithIDGenerator(newID func() string) Option {
	return func(d *Downloader) { d.newID = newID }
}

func NewDownloader(cascade Runner, history Merger, tel *telemetry.Telemetry, opts ...Option) *Downloader {
	d := &Downloader{
		cascade:   cascade,
		history:   history,
		telemetry: tel,
		observer:  NopObserver{},
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// ProcessBatch downloads every URL of req in order. A failing URL is recorded in its
// outcome and never stops the batch; only an unusable request or output folder
// (*ConfigurationError) fails the batch before any URL runs. When ctx is cancelled the
// batch stops at the next URL boundary and the partial result is returned with the error.
func (d *Downloader) ProcessBatch(ctx context.Context, req media.Request) (*media.BatchResult, error) {
	if !d.mu.TryLock() {
		return nil, ErrBatchInProgress
	}
	defer d.mu.Unlock()

	req.URLs = slices.Clone(req.URLs)

	req, err := req.Normalize()
	if err != nil {
		return nil, &ConfigurationError{Reason: "invalid request", Err: err}
	}

	if err := prepareOutputFolder(req.OutputFolder); err != nil {
		return nil, &ConfigurationError{Reason: "output folder " + req.OutputFolder + " is not usable", Err: err}
	}

	result := &media.BatchResult{
		ID:        d.newID(),
		Total:     len(req.URLs),
		Outcomes:  make([]media.Outcome, 0, len(req.URLs)),
		StartedAt: d.now(),
	}

	ctx = logctx.WithAttrs(ctx, slog.String("batch_id", result.ID))
	logger := logctx.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "batch started",
		"urls", result.Total,
		"media_type", req.MediaType,
		"format", req.Format,
		"quality", req.Quality,
		"playlist_mode", req.PlaylistMode,
		"output_folder", req.OutputFolder,
	)
	d.observer.BatchStarted(ctx, result.ID, req)

	for i, url := range req.URLs {
		if err := ctx.Err(); err != nil {
			result.FinishedAt = d.now()
			d.telemetry.RecordBatch(ctx, "aborted", result.Total)
			logger.WarnContext(ctx, "batch interrupted", "processed", result.Processed, "total", result.Total)

			return result, fmt.Errorf("batch interrupted: %w", err)
		}

		outcome := d.processURL(ctx, i, url, req)

		result.Outcomes = append(result.Outcomes, outcome)
		result.Processed = i + 1

		d.observer.URLFinished(ctx, i, outcome)
		d.observer.OverallProgress(ctx, result.Processed, result.Total)
	}

	result.FinishedAt = d.now()
	d.telemetry.RecordBatch(ctx, "completed", result.Total)

	succeeded, failed := result.Counts()
	logger.InfoContext(ctx, "all downloads complete", "succeeded", succeeded, "failed", failed)
	d.observer.BatchCompleted(ctx, result)

	return result, nil
}

func (d *Downloader) processURL(ctx context.Context, index int, url string, req media.Request) media.Outcome {
	ctx = logctx.WithAttrs(ctx, slog.String("url", url))
	logger := logctx.LoggerFromContext(ctx)

	d.observer.URLStarted(ctx, index, len(req.URLs), url)

	var files []media.ProducedFile

	err := d.telemetry.InstrumentDownload(ctx, string(req.MediaType), func(ctx context.Context) error {
		var err error
		files, err = d.cascade.Run(ctx, url, req, &urlHook{url: url, observer: d.observer})

		return err
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to download", "err", err)

		return media.Outcome{URL: url, Status: media.StatusFailed, Error: failureReason(err)}
	}

	outcome := media.Outcome{URL: url, Status: media.StatusSuccess, Files: files}

	for _, file := range files {
		added, err := d.history.Merge(ctx, file, req.Container(), req.MediaType)
		if err != nil {
			logger.ErrorContext(ctx, "failed to record download in history", "file_path", file.Path, "err", err)

			continue
		}

		d.telemetry.RecordHistoryMerge(ctx, added)

		if added {
			outcome.NewFiles++
		}
	}

	logger.InfoContext(ctx, "download finished", "files", len(files), "new_files", outcome.NewFiles)

	return outcome
}

// failureReason is the message shown next to a failed URL.
func failureReason(err error) string {
	var exhausted *strategy.ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Reason()
	}

	return err.Error()
}

// prepareOutputFolder creates dir and checks that files can be written into it.
func prepareOutputFolder(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	probe, err := os.CreateTemp(dir, ".youcast-probe-*")
	if err != nil {
		return fmt.Errorf("output folder is not writable: %w", err)
	}

	name := probe.Name()
	probe.Close()

	return os.Remove(name)
}

// urlHook forwards cascade events for one URL to the batch observer.
type urlHook struct {
	url      string
	observer Observer
}

func (h *urlHook) AttemptStarted(ctx context.Context, position int, a strategy.Attempt) {
	h.observer.AttemptStarted(ctx, h.url, position, a)
}

func (h *urlHook) AttemptFailed(ctx context.Context, err *strategy.StrategyError) {
	h.observer.AttemptFailed(ctx, h.url, err)
}

func (h *urlHook) Progress(ctx context.Context, s progress.Snapshot) {
	h.observer.Progress(ctx, h.url, s)
}
