package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTracker(observed *[]Snapshot) (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tracker := NewTracker(ObserverFunc(func(s Snapshot) {
		*observed = append(*observed, s)
	}), WithClock(clock.Now))

	return tracker, clock
}

func TestTracker_Update(t *testing.T) {
	var observed []Snapshot

	tracker, clock := newTestTracker(&observed)

	clock.Advance(2 * time.Second)
	snap := tracker.Update(50, 100)

	assert.InDelta(t, 0.5, snap.Ratio(), 1e-9)
	assert.InDelta(t, 25.0, snap.Speed(), 1e-9)
	assert.Equal(t, 2*time.Second, snap.ETA())
	require.Len(t, observed, 1)
	assert.Equal(t, snap, observed[0])
}

func TestTracker_UnknownTotal(t *testing.T) {
	var observed []Snapshot

	tracker, clock := newTestTracker(&observed)
	clock.Advance(time.Second)

	snap := tracker.Update(1024, 0)

	assert.Zero(t, snap.Ratio())
	assert.Zero(t, snap.ETA())
	assert.InDelta(t, 1024.0, snap.Speed(), 1e-9)
}

func TestTracker_ZeroElapsed(t *testing.T) {
	var observed []Snapshot

	tracker, _ := newTestTracker(&observed)

	snap := tracker.Update(10, 100)

	assert.Zero(t, snap.Speed())
	assert.Zero(t, snap.ETA())
	assert.InDelta(t, 0.1, snap.Ratio(), 1e-9)
}

func TestTracker_Finish(t *testing.T) {
	var observed []Snapshot

	tracker, clock := newTestTracker(&observed)

	clock.Advance(time.Second)
	tracker.Update(30, 0)
	clock.Advance(time.Second)

	snap := tracker.Finish()

	assert.True(t, snap.Done)
	assert.InDelta(t, 1.0, snap.Ratio(), 1e-9)
	assert.Equal(t, uint64(30), snap.DownloadedBytes)
	assert.Equal(t, 2*time.Second, snap.Elapsed)
	require.Len(t, observed, 2)
	assert.Equal(t, snap, tracker.Last())
}

func TestSnapshot_RatioClamped(t *testing.T) {
	s := Snapshot{DownloadedBytes: 150, TotalBytes: 100, Elapsed: time.Second}

	assert.InDelta(t, 1.0, s.Ratio(), 1e-9)
	assert.Zero(t, s.ETA())
}

func TestTracker_NilObserver(t *testing.T) {
	tracker := NewTracker(nil)

	assert.NotPanics(t, func() {
		tracker.Update(1, 2)
		tracker.Finish()
	})
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "-", FormatSpeed(0))
	assert.Equal(t, "1.5 MB/s", FormatSpeed(1_500_000))
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "-"},
		{65 * time.Second, "01:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatETA(tt.in))
		})
	}
}
