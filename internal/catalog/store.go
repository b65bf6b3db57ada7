// Package catalog maintains the published-cities document and its optional
// Postgres mirror.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/logger"
	"citypaper/internal/models"
)

// Store reads and writes the catalog JSON file.
type Store struct {
	path  string
	merge bool
	log   *zap.Logger
}

// NewStore returns a store for the file at path. With merge set, an update
// keeps the previously published maps and overlays the new ones; otherwise
// it replaces them.
func NewStore(path string, merge bool, log *zap.Logger) *Store {
	return &Store{path: path, merge: merge, log: logger.OrNop(log)}
}

func (s *Store) Path() string { return s.path }

// BackupPath is where a corrupt catalog is saved before it is replaced.
func (s *Store) BackupPath() string { return s.path + ".corrupt" }

// Load returns the catalog entries. A missing file is an empty catalog; so
// is a corrupt one, after its content is copied to BackupPath.
func (s *Store) Load() ([]models.CatalogEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.CatalogEntry{}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeCatalog, "reading catalog", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.CatalogEntry{}, nil
	}

	var entries []models.CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		if berr := writeFileAtomic(s.BackupPath(), data); berr != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeCatalog, "catalog is corrupt and could not be backed up", berr)
		}
		s.log.Warn("catalog is corrupt, starting from an empty catalog",
			zap.String("path", s.path),
			zap.String("backup", s.BackupPath()),
			zap.Error(err),
		)
		return []models.CatalogEntry{}, nil
	}
	return entries, nil
}

// Save writes entries atomically as a two-space indented JSON array.
func (s *Store) Save(entries []models.CatalogEntry) error {
	if entries == nil {
		entries = []models.CatalogEntry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeCatalog, "encoding catalog", err)
	}
	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeCatalog, "writing catalog", err)
	}
	return nil
}

// Put upserts entry and saves the catalog.
func (s *Store) Put(entry models.CatalogEntry) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}
	entries = Upsert(entries, entry, s.merge)
	if err := s.Save(entries); err != nil {
		return err
	}
	s.log.Info("catalog updated",
		zap.String("city", entry.Name),
		zap.String("country", entry.Country),
		zap.Int("entries", len(entries)),
	)
	return nil
}

// Upsert replaces the entry with the same (name, country) or appends entry.
// With merge set the old maps are kept and the new ones overlaid.
func Upsert(entries []models.CatalogEntry, entry models.CatalogEntry, merge bool) []models.CatalogEntry {
	for i, e := range entries {
		if e.Key() != entry.Key() {
			continue
		}
		if merge {
			entry.Maps = mergeMaps(e.Maps, entry.Maps)
		}
		entries[i] = entry
		return entries
	}
	return append(entries, entry)
}

func mergeMaps(old, updated map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(old)+len(updated))
	for _, src := range []map[string]map[string]string{old, updated} {
		for format, files := range src {
			if out[format] == nil {
				out[format] = make(map[string]string, len(files))
			}
			for name, url := range files {
				out[format][name] = url
			}
		}
	}
	return out
}
