package rest

import (
	"context"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/youcast/internal/downloader"
	"github.com/italolelis/youcast/internal/downloader/progress"
	"github.com/italolelis/youcast/internal/media"
	"github.com/italolelis/youcast/internal/strategy"
)

// ProgressStatus is the live transfer state of the current attempt.
type ProgressStatus struct {
	Percent    float64 `json:"percent"`
	Downloaded string  `json:"downloaded"`
	Total      string  `json:"total,omitempty"`
	Speed      string  `json:"speed"`
	ETA        string  `json:"eta"`
}

// BatchStatus is what GET /api/status reports.
type BatchStatus struct {
	BatchID    string          `json:"batch_id,omitempty"`
	Running    bool            `json:"running"`
	CurrentURL string          `json:"current_url,omitempty"`
	Position   int             `json:"position"`
	Total      int             `json:"total"`
	Processed  int             `json:"processed"`
	Attempt    int             `json:"attempt,omitempty"`
	Selector   string          `json:"selector,omitempty"`
	Progress   *ProgressStatus `json:"progress,omitempty"`
	Outcomes   []media.Outcome `json:"outcomes"`
}

// StatusBoard keeps the state of the latest batch for polling clients. It is fed by
// the downloader goroutine and read by request handlers.
type StatusBoard struct {
	downloader.NopObserver

	mu     sync.RWMutex
	status BatchStatus
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{}
}

// Snapshot returns a copy of the current state.
func (b *StatusBoard) Snapshot() BatchStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.status
	s.Outcomes = slices.Clone(b.status.Outcomes)

	if s.Outcomes == nil {
		s.Outcomes = []media.Outcome{}
	}

	if b.status.Progress != nil {
		p := *b.status.Progress
		s.Progress = &p
	}

	return s
}

// Idle marks the batch as no longer running, whatever the way it ended.
func (b *StatusBoard) Idle() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status.Running = false
	b.status.CurrentURL = ""
	b.status.Progress = nil
}

func (b *StatusBoard) BatchStarted(_ context.Context, batchID string, req media.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status = BatchStatus{
		BatchID: batchID,
		Running: true,
		Total:   len(req.URLs),
	}
}

func (b *StatusBoard) URLStarted(_ context.Context, index, _ int, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status.CurrentURL = url
	b.status.Position = index + 1
	b.status.Attempt = 0
	b.status.Selector = ""
	b.status.Progress = nil
}

func (b *StatusBoard) AttemptStarted(_ context.Context, _ string, position int, a strategy.Attempt) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status.Attempt = position
	b.status.Selector = a.Selector
	b.status.Progress = nil
}

func (b *StatusBoard) Progress(_ context.Context, _ string, s progress.Snapshot) {
	p := &ProgressStatus{
		Percent:    s.Ratio() * 100,
		Downloaded: humanize.Bytes(s.DownloadedBytes),
		Speed:      progress.FormatSpeed(s.Speed()),
		ETA:        progress.FormatETA(s.ETA()),
	}

	if s.TotalBytes > 0 {
		p.Total = humanize.Bytes(s.TotalBytes)
	}

	b.mu.Lock()
	b.status.Progress = p
	b.mu.Unlock()
}

func (b *StatusBoard) URLFinished(_ context.Context, _ int, outcome media.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status.Outcomes = append(b.status.Outcomes, outcome)
}

func (b *StatusBoard) OverallProgress(_ context.Context, processed, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status.Processed = processed
	b.status.Total = total
}

func (b *StatusBoard) BatchCompleted(context.Context, *media.BatchResult) {
	b.Idle()
}
