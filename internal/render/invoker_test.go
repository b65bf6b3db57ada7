package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"citypaper/internal/apperrors"
	"citypaper/internal/config"
	"citypaper/internal/models"
)

// fakeRunner plays the renderer: each call runs the next step, or the last
// step once the list is exhausted.
type fakeRunner struct {
	t       *testing.T
	scratch string
	steps   []func(scratch string) error
	calls   int
	args    [][]string
	env     []string
	dir     string
	// leftovers records files present in scratch when each call started.
	leftovers []int
}

func (f *fakeRunner) Run(_ context.Context, dir string, env []string, name string, args ...string) error {
	f.calls++
	f.dir = dir
	f.env = env
	f.args = append(f.args, append([]string{name}, args...))

	entries, _ := os.ReadDir(f.scratch)
	f.leftovers = append(f.leftovers, len(entries))

	step := f.steps[len(f.steps)-1]
	if f.calls <= len(f.steps) {
		step = f.steps[f.calls-1]
	}
	return step(f.scratch)
}

func writeFile(name string) func(string) error {
	return func(scratch string) error {
		return os.WriteFile(filepath.Join(scratch, name), []byte("data"), 0o644)
	}
}

func failWith(name string) func(string) error {
	return func(scratch string) error {
		// leave garbage behind so the next attempt must clear it
		_ = os.WriteFile(filepath.Join(scratch, name), []byte("partial"), 0o644)
		return errors.New("exit status 1")
	}
}

func newTestInvoker(t *testing.T, runner *fakeRunner) (*Invoker, *[]time.Duration) {
	dir := t.TempDir()
	cfg := config.RendererConfig{
		Dir:          dir,
		Command:      "python3",
		Script:       "create_map_poster.py",
		MaxAttempts:  3,
		RetryDelay:   5 * time.Second,
		PollInterval: time.Second,
		PollAttempts: 5,
	}
	require.NoError(t, os.MkdirAll(cfg.ScratchDir(), 0o755))
	runner.t = t
	runner.scratch = cfg.ScratchDir()

	inv := NewInvoker(cfg, runner, zaptest.NewLogger(t))
	var slept []time.Duration
	inv.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return inv, &slept
}

func testJob() models.RenderJob {
	return models.RenderJob{
		Format:         models.OutputFormat{Name: "Mobile_Wallpaper", Width: 3.6, Height: 6.4},
		Theme:          "terracotta",
		Lat:            45.75,
		Lon:            4.85,
		RadiusKm:       7.5,
		City:           "Lyon",
		Country:        "France",
		DisplayCity:    "Lyon",
		DisplayCountry: "France",
	}
}

func TestInvoker_Run_Success(t *testing.T) {
	runner := &fakeRunner{steps: []func(string) error{writeFile("poster.png")}}
	inv, slept := newTestInvoker(t, runner)

	out := inv.Run(context.Background(), testJob())
	require.True(t, out.Succeeded(), "err: %v", out.Err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, []string{filepath.Join(inv.ScratchDir(), "poster.png")}, out.Files)

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, inv.cfg.Dir, runner.dir)
	assert.ElementsMatch(t, []string{"MPLBACKEND=Agg", "PYTHONIOENCODING=utf-8"}, runner.env)
	assert.Equal(t, append([]string{"python3", "create_map_poster.py"}, testJob().Args()...), runner.args[0])
	assert.Contains(t, runner.args[0], "15000")
	assert.Equal(t, []time.Duration{time.Second}, *slept)
}

func TestInvoker_Run_AlwaysFailingStopsAtThreeAttempts(t *testing.T) {
	runner := &fakeRunner{steps: []func(string) error{failWith("partial.png")}}
	inv, slept := newTestInvoker(t, runner)

	out := inv.Run(context.Background(), testJob())
	assert.False(t, out.Succeeded())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, apperrors.ErrCodeRenderAttemptFailed, apperrors.CodeOf(out.Err))

	// scratch cleared before every attempt
	assert.Equal(t, []int{0, 0, 0}, runner.leftovers)
	// retry delay between attempts, none after the last
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *slept)
}

func TestInvoker_Run_MissingArtifactIsRetried(t *testing.T) {
	noOutput := func(string) error { return nil }
	runner := &fakeRunner{steps: []func(string) error{noOutput, writeFile("notes.txt"), writeFile("poster.svg")}}
	inv, slept := newTestInvoker(t, runner)

	out := inv.Run(context.Background(), testJob())
	require.True(t, out.Succeeded(), "err: %v", out.Err)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []string{filepath.Join(inv.ScratchDir(), "poster.svg")}, out.Files)

	// attempt 1: initial poll + 5 rechecks, then retry delay
	// attempt 2: initial poll finds notes.txt, then retry delay
	// attempt 3: initial poll
	want := []time.Duration{
		time.Second, time.Second, time.Second, time.Second, time.Second, time.Second,
		5 * time.Second,
		time.Second,
		5 * time.Second,
		time.Second,
	}
	assert.Equal(t, want, *slept)
}

func TestInvoker_Run_NoImagesIsArtifactMissing(t *testing.T) {
	runner := &fakeRunner{steps: []func(string) error{writeFile("log.txt")}}
	inv, _ := newTestInvoker(t, runner)

	out := inv.Run(context.Background(), testJob())
	assert.False(t, out.Succeeded())
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, apperrors.ErrCodeArtifactMissing, apperrors.CodeOf(out.Err))
}

func TestInvoker_Run_CancelledContextStops(t *testing.T) {
	runner := &fakeRunner{steps: []func(string) error{failWith("x.png")}}
	inv, _ := newTestInvoker(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	inv.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	out := inv.Run(ctx, testJob())
	assert.False(t, out.Succeeded())
	assert.Equal(t, 1, runner.calls)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestInvoker_Run_NonRetryableFailureStopsAtOnce(t *testing.T) {
	runner := &fakeRunner{steps: []func(string) error{writeFile("poster.png")}}
	inv, slept := newTestInvoker(t, runner)

	// a file where the scratch directory should be cannot be fixed by retrying
	require.NoError(t, os.RemoveAll(inv.ScratchDir()))
	require.NoError(t, os.WriteFile(inv.ScratchDir(), []byte("x"), 0o644))

	out := inv.Run(context.Background(), testJob())
	assert.False(t, out.Succeeded())
	assert.Equal(t, 1, out.Attempts)
	assert.Zero(t, runner.calls)
	assert.Empty(t, *slept)
	assert.False(t, apperrors.IsRetryable(out.Err))
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.CodeOf(out.Err))
}
