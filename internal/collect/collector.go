// Package collect moves renderer output into the city's output tree.
package collect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/keys"
	"citypaper/internal/logger"
	"citypaper/internal/models"
)

type Collector struct {
	log *zap.Logger
}

func NewCollector(log *zap.Logger) *Collector {
	return &Collector{log: logger.OrNop(log)}
}

// Collect moves the image files among files into destDir, renaming each to
// "{city}-{format}-{theme}{ext}" after job. An existing file with the same
// name is replaced.
func (c *Collector) Collect(files []string, destDir string, job models.RenderJob) ([]models.Artifact, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "creating format directory", err)
	}

	var artifacts []models.Artifact
	for _, src := range files {
		if !models.IsImage(src) {
			continue
		}
		name := keys.ArtifactName(job.DisplayCity, job.Format.Name, job.ThemeLabel(), filepath.Ext(src))
		dest := filepath.Join(destDir, name)

		size, err := move(src, dest)
		if err != nil {
			return artifacts, apperrors.Wrap(apperrors.ErrCodeInternal, "moving "+filepath.Base(src), err)
		}
		c.log.Info("artifact collected",
			zap.String("file", name),
			zap.String("size", humanize.Bytes(uint64(size))),
		)
		artifacts = append(artifacts, models.Artifact{
			Path:   dest,
			Name:   name,
			Format: job.Format.Name,
			Theme:  job.Theme,
			Size:   size,
		})
	}
	if len(artifacts) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeArtifactMissing, "no image files to collect")
	}
	return artifacts, nil
}

// CollectDir is Collect over every regular file in scratchDir.
func (c *Collector) CollectDir(scratchDir, destDir string, job models.RenderJob) ([]models.Artifact, error) {
	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeArtifactMissing, "reading scratch directory", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(scratchDir, e.Name()))
		}
	}
	return c.Collect(files, destDir, job)
}

// move renames src to dest, falling back to copy and delete when a rename is
// not possible (for example across devices).
func move(src, dest string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	if err := os.Rename(src, dest); err == nil {
		return info.Size(), nil
	}

	n, err := copyFile(src, dest, info.Mode().Perm())
	if err != nil {
		_ = os.Remove(dest)
		return 0, err
	}
	if err := os.Remove(src); err != nil {
		return n, fmt.Errorf("removing source after copy: %w", err)
	}
	return n, nil
}

func copyFile(src, dest string, perm os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
