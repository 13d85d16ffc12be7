package strategy

import (
	"context"
	"fmt"

	"github.com/italolelis/youcast/internal/downloader/progress"
	"github.com/italolelis/youcast/internal/engine"
	"github.com/italolelis/youcast/internal/logctx"
	"github.com/italolelis/youcast/internal/media"
	"github.com/italolelis/youcast/internal/telemetry"
)

// Hook observes the cascade of one URL.
type Hook interface {
	AttemptStarted(ctx context.Context, position int, a Attempt)
	AttemptFailed(ctx context.Context, err *StrategyError)
	Progress(ctx context.Context, s progress.Snapshot)
}

// NopHook ignores every event.
type NopHook struct{}

func (NopHook) AttemptStarted(context.Context, int, Attempt)  {}
func (NopHook) AttemptFailed(context.Context, *StrategyError) {}
func (NopHook) Progress(context.Context, progress.Snapshot)   {}

// Cascade runs the planned attempts for a URL until one succeeds.
type Cascade struct {
	engine      engine.Engine
	telemetry   *telemetry.Telemetry
	trackerOpts []progress.Option
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithTrackerOptions is passed to the progress tracker of every attempt.
func WithTrackerOptions(opts ...progress.Option) Option {
	return func(c *Cascade) { c.trackerOpts = append(c.trackerOpts, opts...) }
}

// NewCascade creates a cascade driving e. tel may be nil.
func NewCascade(e engine.Engine, tel *telemetry.Telemetry, opts ...Option) *Cascade {
	c := &Cascade{engine: e, telemetry: tel}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run tries each attempt in order. On success it returns only the files produced by
// the successful attempt; on exhaustion it returns *ExhaustedError.
func (c *Cascade) Run(ctx context.Context, url string, req media.Request, hook Hook) ([]media.ProducedFile, error) {
	if hook == nil {
		hook = NopHook{}
	}

	logger := logctx.LoggerFromContext(ctx)
	attempts := Plan(req)

	var last *StrategyError

	for i, attempt := range attempts {
		position := i + 1

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("download interrupted: %w", err)
		}

		hook.AttemptStarted(ctx, position, attempt)
		logger.DebugContext(ctx, "trying strategy", "attempt", position, "selector", attempt.Selector, "container", attempt.Container)

		listener := newAttemptListener(ctx, hook, c.trackerOpts...)
		inv := engine.Invocation{
			URL:             url,
			Selector:        attempt.Selector,
			Container:       attempt.Container,
			MediaType:       req.MediaType,
			Quality:         req.Quality,
			OutputTemplate:  req.OutputTemplate(),
			IncludePlaylist: req.PlaylistMode == media.Playlist,
		}

		err := c.telemetry.InstrumentAttempt(ctx, string(req.MediaType), position, func(ctx context.Context) error {
			return c.engine.Fetch(ctx, inv, listener)
		})
		if err == nil {
			logger.InfoContext(ctx, "strategy succeeded", "attempt", position, "selector", attempt.Selector, "files", len(listener.files))

			return listener.files, nil
		}

		last = &StrategyError{Position: position, Attempt: attempt, Err: err}
		logger.WarnContext(ctx, "strategy failed", "attempt", position, "selector", attempt.Selector, "reason", last.Reason())
		hook.AttemptFailed(ctx, last)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("download interrupted: %w", ctxErr)
		}
	}

	return nil, &ExhaustedError{URL: url, Attempts: len(attempts), Last: last}
}

// attemptListener is the per-attempt engine listener. It owns the attempt's tracker
// and file buffer, so a failed attempt leaves nothing behind.
type attemptListener struct {
	ctx     context.Context
	tracker *progress.Tracker
	files   []media.ProducedFile
	seen    map[string]struct{}
}

func newAttemptListener(ctx context.Context, hook Hook, opts ...progress.Option) *attemptListener {
	observer := progress.ObserverFunc(func(s progress.Snapshot) {
		hook.Progress(ctx, s)
	})

	return &attemptListener{
		ctx:     ctx,
		tracker: progress.NewTracker(observer, opts...),
		seen:    make(map[string]struct{}),
	}
}

func (l *attemptListener) OnProgress(ev engine.ProgressEvent) {
	l.tracker.Update(ev.DownloadedBytes, ev.Total())
}

func (l *attemptListener) OnFinished() {
	l.tracker.Finish()
}

func (l *attemptListener) OnProduced(ev engine.ProducedEvent) {
	if ev.Status != engine.StatusFinished || ev.Path == "" {
		return
	}

	if _, dup := l.seen[ev.Path]; dup {
		return
	}

	l.seen[ev.Path] = struct{}{}
	l.files = append(l.files, media.NewProducedFile(ev.Path, ev.Title))

	logctx.LoggerFromContext(l.ctx).DebugContext(l.ctx, "file produced", "file_path", ev.Path)
}
