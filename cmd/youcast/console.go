package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/youcast/internal/downloader"
	"github.com/italolelis/youcast/internal/downloader/progress"
	"github.com/italolelis/youcast/internal/media"
	"github.com/italolelis/youcast/internal/strategy"
)

// consoleObserver prints batch progress for the fetch command. The progress line is
// redrawn in place.
type consoleObserver struct {
	downloader.NopObserver

	out io.Writer
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out}
}

func (c *consoleObserver) URLStarted(_ context.Context, index, total int, url string) {
	fmt.Fprintf(c.out, "[%d/%d] %s\n", index+1, total, url)
}

func (c *consoleObserver) AttemptStarted(_ context.Context, _ string, position int, a strategy.Attempt) {
	if position > 1 {
		fmt.Fprintf(c.out, "\n  retrying with %s\n", a.Selector)
	}
}

func (c *consoleObserver) Progress(_ context.Context, _ string, s progress.Snapshot) {
	total := "?"
	if s.TotalBytes > 0 {
		total = humanize.Bytes(s.TotalBytes)
	}

	fmt.Fprintf(c.out, "\r  %5.1f%% of %s at %s, ETA %s   ", s.Ratio()*100, total, progress.FormatSpeed(s.Speed()), progress.FormatETA(s.ETA()))
}

func (c *consoleObserver) URLFinished(_ context.Context, _ int, outcome media.Outcome) {
	if !outcome.Succeeded() {
		fmt.Fprintf(c.out, "\n  ❌ %s\n", outcome.Error)

		return
	}

	fmt.Fprintf(c.out, "\n  ✅ %d new file(s)\n", outcome.NewFiles)

	for _, f := range outcome.Files {
		fmt.Fprintf(c.out, "     %s\n", f.Path)
	}
}

func (c *consoleObserver) BatchCompleted(_ context.Context, result *media.BatchResult) {
	succeeded, failed := result.Counts()

	fmt.Fprintf(c.out, "All downloads complete: %d succeeded, %d failed (%s)\n",
		succeeded, failed, result.FinishedAt.Sub(result.StartedAt).Round(time.Second))
}
