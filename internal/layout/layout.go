// Package layout derives where a city's posters live on disk and cleans up
// after a publish.
package layout

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"citypaper/internal/keys"
	"citypaper/internal/models"
)

// ProtectedSegment marks directories that are never purged.
const ProtectedSegment = "demo"

// Derive returns the city directory under outputRoot.
//
// With structured admin data the path is country, region, state, county,
// postcode and city, skipping empty components. Without it the path is
// exactly country/city from the inputs; display-name tokens are never used
// to build directories.
func Derive(outputRoot, city, country string, admin models.AdminInfo) string {
	segments := []string{outputRoot}
	if admin.Kind() == models.AdminHeuristic {
		return filepath.Join(append(segments, clean(country), clean(city))...)
	}

	s := admin.Structured
	segments = append(segments, clean(firstNonEmpty(s.Country, country)))
	for _, v := range []string{s.Region, s.State, s.County, s.Postcode} {
		if c := clean(v); c != "" {
			segments = append(segments, c)
		}
	}
	segments = append(segments, clean(firstNonEmpty(s.City, city)))
	return filepath.Join(segments...)
}

// FormatDir is the per-format subdirectory of a city directory.
func FormatDir(cityDir, format string) string {
	return filepath.Join(cityDir, keys.CleanName(format))
}

// RelativePrefix returns the slash-separated path of dir below outputRoot, used
// as the object key prefix when uploading.
func RelativePrefix(outputRoot, dir string) (string, error) {
	prefix, ok := keys.Prefix(filepath.Clean(outputRoot), filepath.Clean(dir))
	if !ok {
		return "", errors.New("directory " + dir + " is not below " + outputRoot)
	}
	return prefix, nil
}

// Purge removes dir and then each parent that became empty, stopping below
// outputRoot. Paths containing a "demo" segment, the root itself and paths
// outside the root are left alone; removed reports whether anything was deleted.
func Purge(dir, outputRoot string) (removed bool, err error) {
	root, err := filepath.Abs(outputRoot)
	if err != nil {
		return false, err
	}
	target, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	if !purgeable(target, root) {
		return false, nil
	}

	if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(target); err != nil {
		return false, err
	}

	for parent := filepath.Dir(target); purgeable(parent, root); parent = filepath.Dir(parent) {
		entries, err := os.ReadDir(parent)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(parent); err != nil {
			break
		}
	}
	return true, nil
}

// purgeable reports whether path is strictly inside root and carries no
// protected segment.
func purgeable(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	for _, seg := range strings.Split(path, string(filepath.Separator)) {
		if seg == ProtectedSegment {
			return false
		}
	}
	return true
}

func clean(s string) string {
	return keys.CleanName(strings.TrimSpace(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
