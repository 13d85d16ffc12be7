package progress

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Snapshot is the progress of one attempt at a point in time.
// TotalBytes is zero when the engine does not know the size.
type Snapshot struct {
	DownloadedBytes uint64        `json:"downloaded_bytes"`
	TotalBytes      uint64        `json:"total_bytes"`
	Elapsed         time.Duration `json:"elapsed"`
	Done            bool          `json:"done"`
}

// Ratio is downloaded/total in [0, 1]; 0 while the total is unknown, 1 once done.
func (s Snapshot) Ratio() float64 {
	if s.Done {
		return 1
	}

	if s.TotalBytes == 0 {
		return 0
	}

	r := float64(s.DownloadedBytes) / float64(s.TotalBytes)
	if r > 1 {
		return 1
	}

	return r
}

// Speed in bytes per second.
func (s Snapshot) Speed() float64 {
	if s.Elapsed <= 0 {
		return 0
	}

	return float64(s.DownloadedBytes) / s.Elapsed.Seconds()
}

// ETA for the remaining bytes at the current average speed. Zero when unknown.
func (s Snapshot) ETA() time.Duration {
	speed := s.Speed()
	if speed <= 0 || s.TotalBytes == 0 || s.DownloadedBytes >= s.TotalBytes {
		return 0
	}

	remaining := float64(s.TotalBytes - s.DownloadedBytes)

	return time.Duration(remaining / speed * float64(time.Second))
}

// Observer receives every snapshot produced by a Tracker.
type Observer interface {
	Observe(s Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }

// Tracker turns raw byte counts from one attempt into snapshots.
// A tracker belongs to exactly one attempt and is not safe for concurrent use.
type Tracker struct {
	observer Observer
	now      func() time.Time
	start    time.Time
	last     Snapshot
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker starts the elapsed clock immediately.
func NewTracker(observer Observer, opts ...Option) *Tracker {
	t := &Tracker{observer: observer, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}

	t.start = t.now()

	return t
}

// Update records a downloading event and emits the resulting snapshot.
func (t *Tracker) Update(downloaded, total uint64) Snapshot {
	t.last = Snapshot{
		DownloadedBytes: downloaded,
		TotalBytes:      total,
		Elapsed:         t.now().Sub(t.start),
	}
	t.emit()

	return t.last
}

// Finish marks the attempt's transfer as complete; the emitted ratio is 1.
func (t *Tracker) Finish() Snapshot {
	t.last.Elapsed = t.now().Sub(t.start)
	t.last.Done = true
	t.emit()

	return t.last
}

// Last returns the most recent snapshot.
func (t *Tracker) Last() Snapshot {
	return t.last
}

func (t *Tracker) emit() {
	if t.observer != nil {
		t.observer.Observe(t.last)
	}
}

// FormatSpeed renders a speed like "1.5 MB/s".
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "-"
	}

	return humanize.Bytes(uint64(bytesPerSecond)) + "/s"
}

// FormatETA renders mm:ss, or hh:mm:ss past an hour. Unknown is "-".
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "-"
	}

	secs := int64(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}

	return fmt.Sprintf("%02d:%02d", m, s)
}
