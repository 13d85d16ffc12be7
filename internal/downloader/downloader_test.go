package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/italolelis/youcast/internal/downloader/progress"
	"github.com/italolelis/youcast/internal/engine"
	"github.com/italolelis/youcast/internal/history"
	"github.com/italolelis/youcast/internal/media"
	"github.com/italolelis/youcast/internal/storage/memory"
	"github.com/italolelis/youcast/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner returns scripted results per URL and records the call order.
type fakeRunner struct {
	mu      sync.Mutex
	results map[string]func(ctx context.Context, hook strategy.Hook) ([]media.ProducedFile, error)
	calls   []string
}

func (r *fakeRunner) Run(ctx context.Context, url string, _ media.Request, hook strategy.Hook) ([]media.ProducedFile, error) {
	r.mu.Lock()
	r.calls = append(r.calls, url)
	fn := r.results[url]
	r.mu.Unlock()

	if fn == nil {
		return nil, errors.New("unexpected url")
	}

	return fn(ctx, hook)
}

// recordingObserver keeps every event it receives.
type recordingObserver struct {
	NopObserver

	started   []string
	finished  []media.Outcome
	overall   [][2]int
	ratios    []float64
	completed []*media.BatchResult
}

func (o *recordingObserver) URLStarted(_ context.Context, _, _ int, url string) {
	o.started = append(o.started, url)
}

func (o *recordingObserver) Progress(_ context.Context, _ string, s progress.Snapshot) {
	o.ratios = append(o.ratios, s.Ratio())
}

func (o *recordingObserver) URLFinished(_ context.Context, _ int, outcome media.Outcome) {
	o.finished = append(o.finished, outcome)
}

func (o *recordingObserver) OverallProgress(_ context.Context, processed, total int) {
	o.overall = append(o.overall, [2]int{processed, total})
}

func (o *recordingObserver) BatchCompleted(_ context.Context, result *media.BatchResult) {
	o.completed = append(o.completed, result)
}

func newRequest(dir string, urls ...string) media.Request {
	return media.Request{
		URLs:         urls,
		MediaType:    media.Audio,
		Format:       "mp3",
		Quality:      "192",
		PlaylistMode: media.Single,
		OutputFolder: dir,
	}
}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))

	return path
}

func produces(files ...media.ProducedFile) func(context.Context, strategy.Hook) ([]media.ProducedFile, error) {
	return func(context.Context, strategy.Hook) ([]media.ProducedFile, error) { return files, nil }
}

func fails(reason string) func(context.Context, strategy.Hook) ([]media.ProducedFile, error) {
	return func(context.Context, strategy.Hook) ([]media.ProducedFile, error) {
		return nil, &strategy.ExhaustedError{
			URL:      "x",
			Attempts: 2,
			Last:     &strategy.StrategyError{Position: 2, Err: &engine.Failure{Reason: reason}},
		}
	}
}

func TestProcessBatch_PartialFailureDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "A.mp3"))
	c := touch(t, filepath.Join(dir, "C.mp3"))

	runner := &fakeRunner{results: map[string]func(context.Context, strategy.Hook) ([]media.ProducedFile, error){
		"u1": produces(media.NewProducedFile(a, "A")),
		"u2": fails("Video unavailable"),
		"u3": produces(media.NewProducedFile(c, "C")),
	}}
	store := history.NewStore(memory.NewHistoryRepository())
	obs := &recordingObserver{}

	d := NewDownloader(runner, store, nil, WithObservers(obs), WithIDGenerator(func() string { return "batch-1" }))

	result, err := d.ProcessBatch(context.Background(), newRequest(dir, "u1", "u2", "u3"))
	require.NoError(t, err)

	assert.Equal(t, "batch-1", result.ID)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 3, result.Total)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, media.StatusSuccess, result.Outcomes[0].Status)
	assert.Equal(t, 1, result.Outcomes[0].NewFiles)
	assert.Equal(t, media.Outcome{URL: "u2", Status: media.StatusFailed, Error: "Video unavailable"}, result.Outcomes[1])
	assert.Equal(t, media.StatusSuccess, result.Outcomes[2].Status)

	assert.Equal(t, []string{"u1", "u2", "u3"}, runner.calls)
	assert.Equal(t, []string{"u1", "u2", "u3"}, obs.started)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, obs.overall)
	assert.Equal(t, result.Outcomes, obs.finished)
	require.Len(t, obs.completed, 1)
	assert.Same(t, result, obs.completed[0])

	items, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, a, items[0].Path)
	assert.Equal(t, c, items[1].Path)
}

func TestProcessBatch_ConfigurationErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := touch(t, filepath.Join(dir, "not-a-dir"))

	runner := &fakeRunner{}
	obs := &recordingObserver{}
	d := NewDownloader(runner, history.NewStore(memory.NewHistoryRepository()), nil, WithObservers(obs))

	tests := []struct {
		name string
		req  media.Request
	}{
		{name: "output folder under a file", req: newRequest(filepath.Join(blocker, "out"), "u1")},
		{name: "no urls", req: newRequest(dir)},
		{name: "unknown media type", req: media.Request{URLs: []string{"u1"}, MediaType: "tape", OutputFolder: dir}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := d.ProcessBatch(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, result)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
		})
	}

	assert.Empty(t, runner.calls)
	assert.Empty(t, obs.completed)
}

func TestProcessBatch_CreatesOutputFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	runner := &fakeRunner{results: map[string]func(context.Context, strategy.Hook) ([]media.ProducedFile, error){
		"u1": produces(),
	}}

	result, err := NewDownloader(runner, history.NewStore(memory.NewHistoryRepository()), nil).
		ProcessBatch(context.Background(), newRequest(dir, "u1"))
	require.NoError(t, err)

	assert.DirExists(t, dir)
	assert.Equal(t, media.StatusSuccess, result.Outcomes[0].Status)
	assert.Zero(t, result.Outcomes[0].NewFiles)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "the writability probe must be removed")
}

func TestProcessBatch_RejectsConcurrentBatch(t *testing.T) {
	dir := t.TempDir()
	release := make(chan struct{})
	entered := make(chan struct{})

	runner := &fakeRunner{results: map[string]func(context.Context, strategy.Hook) ([]media.ProducedFile, error){
		"slow": func(context.Context, strategy.Hook) ([]media.ProducedFile, error) {
			close(entered)
			<-release

			return nil, nil
		},
	}}
	d := NewDownloader(runner, history.NewStore(memory.NewHistoryRepository()), nil)

	done := make(chan error, 1)

	go func() {
		_, err := d.ProcessBatch(context.Background(), newRequest(dir, "slow"))
		done <- err
	}()

	<-entered

	_, err := d.ProcessBatch(context.Background(), newRequest(dir, "slow"))
	require.ErrorIs(t, err, ErrBatchInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestProcessBatch_StopsAtURLBoundaryOnCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	runner := &fakeRunner{results: map[string]func(context.Context, strategy.Hook) ([]media.ProducedFile, error){
		"u1": func(ctx context.Context, _ strategy.Hook) ([]media.ProducedFile, error) {
			cancel()

			return nil, ctx.Err()
		},
		"u2": produces(),
	}}

	result, err := NewDownloader(runner, history.NewStore(memory.NewHistoryRepository()), nil).
		ProcessBatch(ctx, newRequest(dir, "u1", "u2"))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, media.StatusFailed, result.Outcomes[0].Status)
	assert.Equal(t, []string{"u1"}, runner.calls)
}

// scriptedEngine drives the real cascade. A URL listed in failing fails every attempt;
// any other URL reports 50%, finishes and produces its file.
type scriptedEngine struct {
	files       map[string]string
	failing     map[string]bool
	invocations []engine.Invocation
}

func (e *scriptedEngine) Fetch(_ context.Context, inv engine.Invocation, l engine.Listener) error {
	e.invocations = append(e.invocations, inv)

	if e.failing[inv.URL] {
		return &engine.Failure{Reason: "Video unavailable", ExitCode: 1}
	}

	l.OnProgress(engine.ProgressEvent{Status: engine.StatusDownloading, DownloadedBytes: 50, TotalBytes: 100})
	l.OnFinished()
	l.OnProduced(engine.ProducedEvent{Status: engine.StatusFinished, Path: e.files[inv.URL]})

	return nil
}

func newScriptedCascade(e *scriptedEngine) *strategy.Cascade {
	return strategy.NewCascade(e, nil,
		strategy.WithTrackerOptions(progress.WithClock(func() time.Time { return time.Unix(0, 0) })))
}

func TestProcessBatch_EndToEndWithCascade(t *testing.T) {
	tests := []struct {
		name         string
		files        func(dir string) map[string]string
		failing      map[string]bool
		wantStatuses []media.Status
		wantNewFiles []int
		wantRatios   []float64
		wantHistory  int
	}{
		{
			name: "distinct files",
			files: func(dir string) map[string]string {
				return map[string]string{"u1": filepath.Join(dir, "One.mp3"), "u2": filepath.Join(dir, "Two.mp3")}
			},
			wantStatuses: []media.Status{media.StatusSuccess, media.StatusSuccess},
			wantNewFiles: []int{1, 1},
			wantRatios:   []float64{0.5, 1.0, 0.5, 1.0},
			wantHistory:  2,
		},
		{
			name: "same file twice",
			files: func(dir string) map[string]string {
				return map[string]string{"u1": filepath.Join(dir, "Same.mp3"), "u2": filepath.Join(dir, "Same.mp3")}
			},
			wantStatuses: []media.Status{media.StatusSuccess, media.StatusSuccess},
			wantNewFiles: []int{1, 0},
			wantRatios:   []float64{0.5, 1.0, 0.5, 1.0},
			wantHistory:  1,
		},
		{
			name: "first url fails every strategy",
			files: func(dir string) map[string]string {
				return map[string]string{"u2": filepath.Join(dir, "Two.mp3")}
			},
			failing:      map[string]bool{"u1": true},
			wantStatuses: []media.Status{media.StatusFailed, media.StatusSuccess},
			wantNewFiles: []int{0, 1},
			wantRatios:   []float64{0.5, 1.0},
			wantHistory:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			files := tt.files(dir)

			for _, p := range files {
				touch(t, p)
			}

			store := history.NewStore(memory.NewHistoryRepository())
			obs := &recordingObserver{}
			eng := &scriptedEngine{files: files, failing: tt.failing}

			result, err := NewDownloader(newScriptedCascade(eng), store, nil, WithObservers(obs)).
				ProcessBatch(context.Background(), newRequest(dir, "u1", "u2"))
			require.NoError(t, err)

			for i := range tt.wantStatuses {
				assert.Equal(t, tt.wantStatuses[i], result.Outcomes[i].Status)
				assert.Equal(t, tt.wantNewFiles[i], result.Outcomes[i].NewFiles)
			}

			overall := make([]float64, 0, len(obs.overall))
			for _, o := range obs.overall {
				overall = append(overall, float64(o[0])/float64(o[1]))
			}

			assert.Equal(t, []float64{0.5, 1.0}, overall)
			assert.Equal(t, tt.wantRatios, obs.ratios)

			items, err := store.List(context.Background())
			require.NoError(t, err)
			assert.Len(t, items, tt.wantHistory)
		})
	}
}

func TestProcessBatch_FailedURLReportsEngineReason(t *testing.T) {
	dir := t.TempDir()
	eng := &scriptedEngine{failing: map[string]bool{"u1": true}}

	result, err := NewDownloader(newScriptedCascade(eng), history.NewStore(memory.NewHistoryRepository()), nil).
		ProcessBatch(context.Background(), newRequest(dir, "u1"))
	require.NoError(t, err)

	assert.Equal(t, media.Outcome{URL: "u1", Status: media.StatusFailed, Error: "Video unavailable"}, result.Outcomes[0])
	assert.Len(t, eng.invocations, 2, "audio requests try two strategies")
}

func TestProcessBatch_NormalizesMixedCaseRequest(t *testing.T) {
	dir := t.TempDir()
	clip := touch(t, filepath.Join(dir, "Clip.mp4"))

	eng := &scriptedEngine{files: map[string]string{"u1": clip}}
	store := history.NewStore(memory.NewHistoryRepository())

	req := media.Request{
		URLs:         []string{"u1"},
		MediaType:    "Video",
		Quality:      "720",
		PlaylistMode: "Playlist",
		OutputFolder: dir,
	}

	result, err := NewDownloader(newScriptedCascade(eng), store, nil).ProcessBatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, media.StatusSuccess, result.Outcomes[0].Status)

	require.Len(t, eng.invocations, 1)
	inv := eng.invocations[0]
	assert.Equal(t, media.Video, inv.MediaType)
	assert.Equal(t, "bestvideo[height<=720]+bestaudio/best[height<=720]", inv.Selector)
	assert.Equal(t, "mp4", inv.Container)
	assert.True(t, inv.IncludePlaylist)

	items, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "mp4", items[0].Format)
	assert.Equal(t, "video", items[0].MediaType)
}

func TestConfigurationError(t *testing.T) {
	inner := errors.New("permission denied")
	err := &ConfigurationError{Reason: "output folder /x is not usable", Err: inner}

	assert.Equal(t, "configuration error: output folder /x is not usable: permission denied", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "configuration error: bad", (&ConfigurationError{Reason: "bad"}).Error())
}

func TestObservers(t *testing.T) {
	assert.Equal(t, NopObserver{}, Observers())
	assert.Equal(t, NopObserver{}, Observers(nil, NopObserver{}))

	a, b := &recordingObserver{}, &recordingObserver{}
	fan := Observers(Observers(a), b)

	fan.OverallProgress(context.Background(), 1, 2)

	assert.Equal(t, [][2]int{{1, 2}}, a.overall)
	assert.Equal(t, [][2]int{{1, 2}}, b.overall)
}
