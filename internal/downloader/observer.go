package downloader

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/youcast/internal/downloader/progress"
	"github.com/italolelis/youcast/internal/logctx"
	"github.com/italolelis/youcast/internal/media"
	"github.com/italolelis/youcast/internal/strategy"
)

// Observer receives batch events. All methods are called from the goroutine running
// ProcessBatch, in order; implementations shared with other goroutines must lock.
type Observer interface {
	BatchStarted(ctx context.Context, batchID string, req media.Request)
	URLStarted(ctx context.Context, index, total int, url string)
	AttemptStarted(ctx context.Context, url string, position int, a strategy.Attempt)
	AttemptFailed(ctx context.Context, url string, err *strategy.StrategyError)
	Progress(ctx context.Context, url string, s progress.Snapshot)
	URLFinished(ctx context.Context, index int, outcome media.Outcome)
	OverallProgress(ctx context.Context, processed, total int)
	BatchCompleted(ctx context.Context, result *media.BatchResult)
}

// NopObserver implements Observer with no-ops. Embed it to handle a subset of events.
type NopObserver struct{}

func (NopObserver) BatchStarted(context.Context, string, media.Request) {}
func (NopObserver) URLStarted(context.Context, int, int, string) {}
func (NopObserver) AttemptStarted(context.Context, string, int, strategy.Attempt) {}
func (NopObserver) AttemptFailed(context.Context, string, *strategy.StrategyError) {}
func (NopObserver) Progress(context.Context, string, progress.Snapshot) {}
func (NopObserver) URLFinished(context.Context, int, media.Outcome) {}
func (NopObserver) OverallProgress(context.Context, int, int) {}
func (NopObserver) BatchCompleted(context.Context, *media.BatchResult) {}

type multiObserver []Observer

// Observers fans events out to every observer, in order.
func Observers(observers ...Observer) Observer {
	var flat multiObserver

	for _, o := range observers {
		switch o := o.(type) {
		case nil, NopObserver:
		case multiObserver:
			flat = append(flat, o...)
		default:
			flat = append(flat, o)
		}
	}

	if len(flat) == 0 {
		return NopObserver{}
	}

	return flat
}

func (m multiObserver) BatchStarted(ctx context.Context, batchID string, req media.Request) {
	for _, o := range m {
		o.BatchStarted(ctx, batchID, req)
	}
}

func (m multiObserver) URLStarted(ctx context.Context, index, total int, url string) {
	for _, o := range m {
		o.URLStarted(ctx, index, total, url)
	}
}

func (m multiObserver) AttemptStarted(ctx context.Context, url string, position int, a strategy.Attempt) {
	for _, o := range m {
		o.AttemptStarted(ctx, url, position, a)
	}
}

func (m multiObserver) AttemptFailed(ctx context.Context, url string, err *strategy.StrategyError) {
	for _, o := range m {
		o.AttemptFailed(ctx, url, err)
	}
}

func (m multiObserver) Progress(ctx context.Context, url string, s progress.Snapshot) {
	for _, o := range m {
		o.Progress(ctx, url, s)
	}
}

func (m multiObserver) URLFinished(ctx context.Context, index int, outcome media.Outcome) {
	for _, o := range m {
		o.URLFinished(ctx, index, outcome)
	}
}

func (m multiObserver) OverallProgress(ctx context.Context, processed, total int) {
	for _, o := range m {
		o.OverallProgress(ctx, processed, total)
	}
}

func (m multiObserver) BatchCompleted(ctx context.Context, result *media.BatchResult) {
	for _, o := range m {
		o.BatchCompleted(ctx, result)
	}
}

// LogObserver writes batch events to the context logger. Progress is logged at DEBUG
// each time an attempt crosses another 10%.
type LogObserver struct {
	NopObserver

	mu         sync.Mutex
	lastBucket int
}

func NewLogObserver() *LogObserver {
	return &LogObserver{lastBucket: -1}
}

func (o *LogObserver) URLStarted(ctx context.Context, index, total int, _ string) {
	logctx.LoggerFromContext(ctx).InfoContext(ctx, "downloading", "position", index+1, "total", total)
}

func (o *LogObserver) AttemptStarted(ctx context.Context, _ string, position int, a strategy.Attempt) {
	o.mu.Lock()
	o.lastBucket = -1
	o.mu.Unlock()

	if position > 1 {
		logctx.LoggerFromContext(ctx).InfoContext(ctx, "retrying with fallback strategy", "attempt", position, "selector", a.Selector)
	}
}

func (o *LogObserver) Progress(ctx context.Context, _ string, s progress.Snapshot) {
	bucket := int(s.Ratio() * 10)

	o.mu.Lock()
	if bucket <= o.lastBucket {
		o.mu.Unlock()

		return
	}

	o.lastBucket = bucket
	o.mu.Unlock()

	logctx.LoggerFromContext(ctx).DebugContext(ctx, "download progress",
		"downloaded", humanize.Bytes(s.DownloadedBytes),
		"total", humanize.Bytes(s.TotalBytes),
		"percent", humanize.FtoaWithDigits(s.Ratio()*100, 2),
		"speed", progress.FormatSpeed(s.Speed()),
		"eta", progress.FormatETA(s.ETA()),
	)
}

func (o *LogObserver) URLFinished(ctx context.Context, _ int, outcome media.Outcome) {
	logger := logctx.LoggerFromContext(ctx)

	if outcome.Succeeded() {
		logger.InfoContext(ctx, "url completed", "url", outcome.URL, "new_files", outcome.NewFiles)

		return
	}

	logger.WarnContext(ctx, "url failed", "url", outcome.URL, "reason", outcome.Error)
}

func (o *LogObserver) OverallProgress(ctx context.Context, processed, total int) {
	logctx.LoggerFromContext(ctx).DebugContext(ctx, "overall progress", "processed", processed, "total", total)
}
