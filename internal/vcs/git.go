// Package vcs commits the catalog document with the git command line.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/logger"
)

// CommandRunner runs git with args in dir and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.Bytes(), nil
}

type Git struct {
	dir    string
	runner CommandRunner
	log    *zap.Logger
}

func NewGit(dir string, runner CommandRunner, log *zap.Logger) *Git {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Git{dir: dir, runner: runner, log: logger.OrNop(log)}
}

func (g *Git) Add(ctx context.Context, paths ...string) error {
	_, err := g.runner.Run(ctx, g.dir, append([]string{"add", "--"}, paths...)...)
	return err
}

// HasStagedChanges reports whether the index differs from HEAD for paths.
// Untracked and unstaged files elsewhere in the work tree are ignored.
func (g *Git) HasStagedChanges(ctx context.Context, paths ...string) (bool, error) {
	out, err := g.runner.Run(ctx, g.dir, append([]string{"diff", "--cached", "--name-only", "--"}, paths...)...)
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

func (g *Git) Commit(ctx context.Context, message string) error {
	_, err := g.runner.Run(ctx, g.dir, "commit", "-m", message)
	return err
}

func (g *Git) Push(ctx context.Context) error {
	_, err := g.runner.Run(ctx, g.dir, "push")
	return err
}

// CommitResult tells what CommitAndPush did.
type CommitResult struct {
	Committed bool
	Pushed    bool
}

// CommitAndPush stages path, commits it with message and optionally pushes.
// Nothing staged for path after adding it is not an error: nothing is
// committed.
func (g *Git) CommitAndPush(ctx context.Context, path, message string, push bool) (CommitResult, error) {
	var res CommitResult
	if err := g.Add(ctx, path); err != nil {
		return res, apperrors.Wrap(apperrors.ErrCodeCommit, "staging "+path, err)
	}

	changed, err := g.HasStagedChanges(ctx, path)
	if err != nil {
		return res, apperrors.Wrap(apperrors.ErrCodeCommit, "reading staged changes", err)
	}
	if !changed {
		g.log.Info("no changes to commit", zap.String("path", path))
		return res, nil
	}

	if err := g.Commit(ctx, message); err != nil {
		return res, apperrors.Wrap(apperrors.ErrCodeCommit, "committing", err)
	}
	res.Committed = true
	g.log.Info("committed", zap.String("message", message))

	if push {
		if err := g.Push(ctx); err != nil {
			return res, apperrors.Wrap(apperrors.ErrCodeCommit, "pushing", err)
		}
		res.Pushed = true
		g.log.Info("pushed")
	}
	return res, nil
}
