// Package render drives the external poster renderer.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/config"
	"citypaper/internal/logger"
	"citypaper/internal/models"
)

// Env is added to the renderer's inherited environment.
var Env = []string{"MPLBACKEND=Agg", "PYTHONIOENCODING=utf-8"}

// Status is the terminal state of a render job.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSucceeded {
		return "succeeded"
	}
	return "failed"
}

// Outcome is the result of a render job after all attempts.
type Outcome struct {
	Status   Status
	Attempts int
	// Files are the image files left in the scratch directory on success.
	Files []string
	// Err is the last attempt's failure.
	Err error
}

func (o Outcome) Succeeded() bool { return o.Status == StatusSucceeded }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Invoker struct {
	cfg    config.RendererConfig
	runner Runner
	sleep  SleepFunc
	log    *zap.Logger
}

func NewInvoker(cfg config.RendererConfig, runner Runner, log *zap.Logger) *Invoker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Invoker{cfg: cfg, runner: runner, sleep: Sleep, log: logger.OrNop(log)}
}

// ScratchDir is where the renderer writes its output.
func (i *Invoker) ScratchDir() string {
	return i.cfg.ScratchDir()
}

// Run renders job, retrying retryable failures up to the configured maximum.
// The scratch directory is emptied of files before every attempt. Failures
// are reported in the Outcome, never as a panic or process exit.
func (i *Invoker) Run(ctx context.Context, job models.RenderJob) Outcome {
	log := i.log.With(zap.String("format", job.Format.Name), zap.String("theme", job.ThemeLabel()))
	maxAttempts := i.cfg.MaxAttempts

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			log.Info("retrying render", zap.Int("attempt", attempt), zap.Int("max_attempts", maxAttempts))
		}
		if err := clearFiles(i.cfg.ScratchDir()); err != nil {
			log.Warn("could not clear scratch directory", zap.Error(err))
		}

		files, err := i.attempt(ctx, job)
		if err == nil {
			return Outcome{Status: StatusSucceeded, Attempts: attempt, Files: files}
		}
		lastErr = err
		if ctx.Err() != nil {
			return Outcome{Status: StatusFailed, Attempts: attempt, Err: ctx.Err()}
		}
		if !apperrors.IsRetryable(err) {
			log.Error("render failed", zap.Int("attempt", attempt), zap.Error(err))
			return Outcome{Status: StatusFailed, Attempts: attempt, Err: err}
		}
		log.Warn("render attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt < maxAttempts {
			if err := i.sleep(ctx, i.cfg.RetryDelay); err != nil {
				return Outcome{Status: StatusFailed, Attempts: attempt, Err: err}
			}
		}
	}
	log.Error("render failed after all attempts", zap.Int("attempts", maxAttempts), zap.Error(lastErr))
	return Outcome{Status: StatusFailed, Attempts: maxAttempts, Err: lastErr}
}

func (i *Invoker) attempt(ctx context.Context, job models.RenderJob) ([]string, error) {
	scratch := i.cfg.ScratchDir()
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "creating scratch directory", err)
	}

	var args []string
	if i.cfg.Script != "" {
		args = append(args, i.cfg.Script)
	}
	args = append(args, job.Args()...)
	if err := i.runner.Run(ctx, i.cfg.Dir, Env, i.cfg.Command, args...); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeRenderAttemptFailed, "renderer exited with error", err)
	}

	files, err := i.waitForFiles(ctx, scratch)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeArtifactMissing, "no output files generated")
	}

	var images []string
	for _, f := range files {
		if models.IsImage(f) {
			images = append(images, f)
		}
	}
	if len(images) == 0 {
		return nil, apperrors.Newf(apperrors.ErrCodeArtifactMissing, "output files found but no images: %v", baseNames(files))
	}
	return images, nil
}

// waitForFiles lists dir after one poll interval and keeps rechecking while
// it is empty, giving slow filesystems time to surface the output.
func (i *Invoker) waitForFiles(ctx context.Context, dir string) ([]string, error) {
	if err := i.sleep(ctx, i.cfg.PollInterval); err != nil {
		return nil, err
	}
	files, err := listFiles(dir)
	for n := 0; err == nil && len(files) == 0 && n < i.cfg.PollAttempts; n++ {
		if err := i.sleep(ctx, i.cfg.PollInterval); err != nil {
			return nil, err
		}
		files, err = listFiles(dir)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeArtifactMissing, "listing scratch directory", err)
	}
	return files, nil
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// clearFiles removes the regular files directly inside dir.
func clearFiles(dir string) error {
	files, err := listFiles(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("removing %d scratch files: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
