package notifier

import (
	"context"
	"fmt"

	"github.com/italolelis/youcast/internal/downloader"
	"github.com/italolelis/youcast/internal/logctx"
	"github.com/italolelis/youcast/internal/media"
)

// BatchNotifier posts a message for every failed URL and one when a batch completes.
// Delivery failures are logged and never affect the batch.
type BatchNotifier struct {
	downloader.NopObserver

	notifier Notifier
}

func NewBatchNotifier(n Notifier) *BatchNotifier {
	return &BatchNotifier{notifier: n}
}

func (b *BatchNotifier) URLFinished(ctx context.Context, _ int, outcome media.Outcome) {
	if outcome.Succeeded() {
		return
	}

	b.send(ctx, fmt.Sprintf("❌ Failed to download %s: %s", outcome.URL, outcome.Error))
}

func (b *BatchNotifier) BatchCompleted(ctx context.Context, result *media.BatchResult) {
	succeeded, failed := result.Counts()

	b.send(ctx, fmt.Sprintf("✅ All downloads complete: %d succeeded, %d failed", succeeded, failed))
}

func (b *BatchNotifier) send(ctx context.Context, content string) {
	if err := b.notifier.Notify(ctx, content); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to send notification", "err", err)
	}
}
