package collect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"citypaper/internal/apperrors"
	"citypaper/internal/models"
)

func lyonJob() models.RenderJob {
	return models.RenderJob{
		Format:      models.OutputFormat{Name: "Mobile_Wallpaper", Width: 3.6, Height: 6.4},
		Theme:       "terracotta",
		City:        "Lyon",
		DisplayCity: "Lyon",
	}
}

func TestCollector_CollectDir(t *testing.T) {
	scratch := t.TempDir()
	dest := filepath.Join(t.TempDir(), "France", "Lyon", "Mobile_Wallpaper")
	require.NoError(t, os.WriteFile(filepath.Join(scratch, "lyon_terracotta_20260301.PNG"), []byte("png-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(scratch, "render.log"), []byte("log"), 0o644))

	artifacts, err := NewCollector(zaptest.NewLogger(t)).CollectDir(scratch, dest, lyonJob())
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	a := artifacts[0]
	assert.Equal(t, "lyon-mobile_wallpaper-terracotta.PNG", a.Name)
	assert.Equal(t, filepath.Join(dest, a.Name), a.Path)
	assert.Equal(t, "Mobile_Wallpaper", a.Format)
	assert.Equal(t, int64(len("png-bytes")), a.Size)
	assert.FileExists(t, a.Path)
	assert.NoFileExists(t, filepath.Join(scratch, "lyon_terracotta_20260301.PNG"))
	assert.FileExists(t, filepath.Join(scratch, "render.log"), "non-image files are left alone")
}

func TestCollector_ReplacesExisting(t *testing.T) {
	scratch := t.TempDir()
	dest := t.TempDir()
	existing := filepath.Join(dest, "lyon-mobile_wallpaper-terracotta.png")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))
	src := filepath.Join(scratch, "out.png")
	require.NoError(t, os.WriteFile(src, []byte("new-poster"), 0o644))

	_, err := NewCollector(nil).Collect([]string{src}, dest, lyonJob())
	require.NoError(t, err)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "new-poster", string(data))
}

func TestCollector_NoImages(t *testing.T) {
	scratch := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(scratch, "out.txt"), []byte("x"), 0o644))

	_, err := NewCollector(nil).CollectDir(scratch, t.TempDir(), lyonJob())
	assert.Equal(t, apperrors.ErrCodeArtifactMissing, apperrors.CodeOf(err))
}

func TestCollector_DefaultThemeLabel(t *testing.T) {
	scratch := t.TempDir()
	src := filepath.Join(scratch, "out.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF"), 0o644))

	job := lyonJob()
	job.Theme = ""
	artifacts, err := NewCollector(nil).Collect([]string{src}, t.TempDir(), job)
	require.NoError(t, err)
	assert.Equal(t, "lyon-mobile_wallpaper-default.pdf", artifacts[0].Name)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(src, []byte("abc"), 0o644))

	n, err := copyFile(src, filepath.Join(dir, "b.png"), 0o644)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.FileExists(t, src)
}
