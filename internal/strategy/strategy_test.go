package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/italolelis/youcast/internal/downloader/progress"
	"github.com/italolelis/youcast/internal/engine"
	"github.com/italolelis/youcast/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEngine runs one step per Fetch call, in order.
type scriptedEngine struct {
	steps []func(inv engine.Invocation, l engine.Listener) error
	calls []engine.Invocation
}

func (e *scriptedEngine) Fetch(_ context.Context, inv engine.Invocation, l engine.Listener) error {
	e.calls = append(e.calls, inv)

	if len(e.calls) > len(e.steps) {
		return errors.New("unexpected call")
	}

	return e.steps[len(e.calls)-1](inv, l)
}

type recordingHook struct {
	started   []int
	failed    []*StrategyError
	snapshots []progress.Snapshot
}

func (h *recordingHook) AttemptStarted(_ context.Context, position int, _ Attempt) {
	h.started = append(h.started, position)
}

func (h *recordingHook) AttemptFailed(_ context.Context, err *StrategyError) {
	h.failed = append(h.failed, err)
}

func (h *recordingHook) Progress(_ context.Context, s progress.Snapshot) {
	h.snapshots = append(h.snapshots, s)
}

func fail(reason string) func(engine.Invocation, engine.Listener) error {
	return func(_ engine.Invocation, l engine.Listener) error {
		l.OnProduced(engine.ProducedEvent{Status: engine.StatusFinished, Path: "/out/partial-" + reason})

		return &engine.Failure{Reason: reason, ExitCode: 1}
	}
}

func produce(paths ...string) func(engine.Invocation, engine.Listener) error {
	return func(_ engine.Invocation, l engine.Listener) error {
		l.OnProgress(engine.ProgressEvent{Status: engine.StatusDownloading, DownloadedBytes: 50, TotalBytes: 100})
		l.OnFinished()

		for _, p := range paths {
			l.OnProduced(engine.ProducedEvent{Status: engine.StatusFinished, Path: p})
		}

		return nil
	}
}

func audioRequest() media.Request {
	return media.Request{
		URLs:         []string{"https://example.com/a"},
		MediaType:    media.Audio,
		Format:       "mp3",
		Quality:      "192",
		PlaylistMode: media.Single,
		OutputFolder: "/out",
	}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name string
		req  media.Request
		want []Attempt
	}{
		{
			name: "audio",
			req:  audioRequest(),
			want: []Attempt{
				{Selector: "bestaudio/best", Container: "mp3"},
				{Selector: "best", Container: "mp3"},
			},
		},
		{
			name: "video with height ceiling",
			req:  media.Request{MediaType: media.Video, Quality: "720p"},
			want: []Attempt{
				{Selector: "bestvideo[height<=720]+bestaudio/best[height<=720]", Container: "mp4"},
				{Selector: "bestvideo+bestaudio/best", Container: "mp4"},
				{Selector: "best", Container: "mp4"},
			},
		},
		{
			name: "video without ceiling",
			req:  media.Request{MediaType: media.Video, Quality: "best"},
			want: []Attempt{
				{Selector: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]", Container: "mp4"},
				{Selector: "bestvideo+bestaudio/best", Container: "mp4"},
				{Selector: "best", Container: "mp4"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plan(tt.req))
		})
	}
}

func TestHeightCeiling(t *testing.T) {
	h, ok := HeightCeiling("1080")
	assert.True(t, ok)
	assert.Equal(t, 1080, h)

	_, ok = HeightCeiling("high")
	assert.False(t, ok)

	_, ok = HeightCeiling("")
	assert.False(t, ok)
}

func TestCascade_FirstAttemptSucceeds(t *testing.T) {
	eng := &scriptedEngine{steps: []func(engine.Invocation, engine.Listener) error{
		produce("/out/Song.mp3"),
	}}
	hook := &recordingHook{}

	files, err := NewCascade(eng, nil).Run(context.Background(), "https://example.com/a", audioRequest(), hook)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "/out/Song.mp3", files[0].Path)
	assert.Equal(t, "Song.mp3", files[0].Title)
	assert.Equal(t, []int{1}, hook.started)

	require.Len(t, hook.snapshots, 2)
	assert.InDelta(t, 0.5, hook.snapshots[0].Ratio(), 1e-9)
	assert.InDelta(t, 1.0, hook.snapshots[1].Ratio(), 1e-9)

	inv := eng.calls[0]
	assert.Equal(t, "bestaudio/best", inv.Selector)
	assert.Equal(t, "mp3", inv.Container)
	assert.Equal(t, "/out/%(title)s.%(ext)s", inv.OutputTemplate)
	assert.False(t, inv.IncludePlaylist)
}

func TestCascade_FallsBackAndKeepsOnlyWinningFiles(t *testing.T) {
	eng := &scriptedEngine{steps: []func(engine.Invocation, engine.Listener) error{
		fail("A"),
		fail("B"),
		produce("/out/Clip.mp4", "/out/Clip.mp4"),
	}}
	hook := &recordingHook{}

	req := media.Request{MediaType: media.Video, Quality: "720", PlaylistMode: media.Playlist, OutputFolder: "/out"}

	files, err := NewCascade(eng, nil).Run(context.Background(), "https://example.com/v", req, hook)
	require.NoError(t, err)

	assert.Equal(t, []media.ProducedFile{{Path: "/out/Clip.mp4", Title: "Clip.mp4"}}, files)
	assert.Equal(t, []int{1, 2, 3}, hook.started)
	require.Len(t, hook.failed, 2)
	assert.Equal(t, "A", hook.failed[0].Reason())
	assert.Equal(t, 2, hook.failed[1].Position)

	require.Len(t, eng.calls, 3)
	assert.Equal(t, "best", eng.calls[2].Selector)
	assert.True(t, eng.calls[2].IncludePlaylist)
}

func TestCascade_Exhausted(t *testing.T) {
	eng := &scriptedEngine{steps: []func(engine.Invocation, engine.Listener) error{
		fail("format not available"),
		fail("Video unavailable"),
	}}

	files, err := NewCascade(eng, nil).Run(context.Background(), "https://example.com/x", audioRequest(), nil)
	require.Error(t, err)
	assert.Nil(t, files)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Equal(t, "Video unavailable", exhausted.Reason())
	assert.Equal(t, "all 2 strategies failed for https://example.com/x: Video unavailable", err.Error())

	var strategyErr *StrategyError
	require.ErrorAs(t, err, &strategyErr)
	assert.Equal(t, 2, strategyErr.Position)

	var failure *engine.Failure
	require.ErrorAs(t, err, &failure)
}

func TestCascade_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	eng := &scriptedEngine{steps: []func(engine.Invocation, engine.Listener) error{
		func(engine.Invocation, engine.Listener) error {
			cancel()

			return &engine.Failure{Reason: "download interrupted", Err: context.Canceled}
		},
	}}

	_, err := NewCascade(eng, nil).Run(ctx, "https://example.com/a", audioRequest(), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, eng.calls, 1)
}

func TestStrategyError_Reason(t *testing.T) {
	err := &StrategyError{Position: 1, Attempt: Attempt{Selector: "best"}, Err: errors.New("plain")}
	assert.Equal(t, "plain", err.Reason())
	assert.Equal(t, "strategy 1 (best) failed: plain", err.Error())

	assert.Equal(t, "unknown error", (&StrategyError{}).Reason())
	assert.Equal(t, "no strategy available", (&ExhaustedError{}).Reason())
	assert.NoError(t, (&ExhaustedError{}).Unwrap())
}
