package vcs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"citypaper/internal/apperrors"
)

type fakeRunner struct {
	staged string
	fail   map[string]error
	calls  []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, strings.Join(args, " "))
	if err := f.fail[args[0]]; err != nil {
		return nil, err
	}
	if args[0] == "diff" {
		return []byte(f.staged), nil
	}
	return nil, nil
}

func TestGit_CommitAndPush(t *testing.T) {
	tests := []struct {
		name      string
		staged    string
		push      bool
		fail      map[string]error
		wantCalls []string
		wantRes   CommitResult
		wantCode  apperrors.ErrorCode
	}{
		{
			name:      "nothing staged for the catalog skips commit",
			staged:    "",
			push:      true,
			wantCalls: []string{"add -- data/cities.json", "diff --cached --name-only -- data/cities.json"},
		},
		{
			name:      "commit without push",
			staged:    "data/cities.json\n",
			wantCalls: []string{"add -- data/cities.json", "diff --cached --name-only -- data/cities.json", "commit -m Add maps for France_Lyon"},
			wantRes:   CommitResult{Committed: true},
		},
		{
			name:      "commit and push",
			staged:    "data/cities.json\n",
			push:      true,
			wantCalls: []string{"add -- data/cities.json", "diff --cached --name-only -- data/cities.json", "commit -m Add maps for France_Lyon", "push"},
			wantRes:   CommitResult{Committed: true, Pushed: true},
		},
		{
			name:      "commit failure",
			staged:    "data/cities.json\n",
			fail:      map[string]error{"commit": errors.New("exit status 1")},
			wantCalls: []string{"add -- data/cities.json", "diff --cached --name-only -- data/cities.json", "commit -m Add maps for France_Lyon"},
			wantCode:  apperrors.ErrCodeCommit,
		},
		{
			name:      "push failure keeps commit",
			staged:    "data/cities.json\n",
			push:      true,
			fail:      map[string]error{"push": errors.New("rejected")},
			wantCalls: []string{"add -- data/cities.json", "diff --cached --name-only -- data/cities.json", "commit -m Add maps for France_Lyon", "push"},
			wantRes:   CommitResult{Committed: true},
			wantCode:  apperrors.ErrCodeCommit,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{staged: tt.staged, fail: tt.fail}
			g := NewGit("/repo", runner, zaptest.NewLogger(t))

			res, err := g.CommitAndPush(context.Background(), "data/cities.json", "Add maps for France_Lyon", tt.push)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantRes, res)
			assert.Equal(t, tt.wantCalls, runner.calls)
		})
	}
}

func TestGit_CommitAndPush_UntrackedFilesDoNotForceCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	repo := t.TempDir()
	gitCmd := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", repo}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	catalogPath := filepath.Join(repo, "data", "cities.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(catalogPath), 0o755))
	require.NoError(t, os.WriteFile(catalogPath, []byte("[]\n"), 0o644))
	gitCmd("init", "-q")
	gitCmd("add", "--", "data/cities.json")
	gitCmd("commit", "-q", "-m", "init")

	// posters waiting to be purged show up as untracked files
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "worker", "output", "France"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "worker", "output", "France", "lyon.png"), []byte("png"), 0o644))

	g := NewGit(repo, nil, zaptest.NewLogger(t))
	res, err := g.CommitAndPush(context.Background(), "data/cities.json", "Add maps for France_Lyon", false)
	require.NoError(t, err)
	assert.Equal(t, CommitResult{}, res)
}
