// Package publish uploads a city's posters, records them in the catalog,
// commits the catalog and clears the local copy.
package publish

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/keys"
	"citypaper/internal/layout"
	"citypaper/internal/logger"
	"citypaper/internal/models"
	"citypaper/internal/storage"
	"citypaper/internal/vcs"
)

// CatalogStore persists catalog entries.
type CatalogStore interface {
	Put(entry models.CatalogEntry) error
	Path() string
}

// Mirror receives a copy of every published entry.
type Mirror interface {
	Upsert(ctx context.Context, entry models.CatalogEntry) error
}

// Committer records the catalog file in version control.
type Committer interface {
	CommitAndPush(ctx context.Context, path, message string, push bool) (vcs.CommitResult, error)
}

// EventPublisher announces published cities.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Deps are the collaborators of a Publisher. Mirror, Committer and Events
// are optional.
type Deps struct {
	Uploader  storage.Uploader
	Catalog   CatalogStore
	Mirror    Mirror
	Committer Committer
	Events    EventPublisher
	Now       func() time.Time
	Log       *zap.Logger
}

type Publisher struct {
	outputRoot string
	deps       Deps
	log        *zap.Logger
}

func NewPublisher(outputRoot string, deps Deps) *Publisher {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Publisher{outputRoot: outputRoot, deps: deps, log: logger.OrNop(deps.Log)}
}

// Request describes one city to publish.
type Request struct {
	RunID          string
	City           string
	Country        string
	DisplayCity    string
	DisplayCountry string
	Admin          models.AdminInfo
	// CityDir is the derived output directory holding the posters.
	CityDir string
	Push    bool
}

// Result reports what Publish did.
type Result struct {
	Prefix        string
	CommitMessage string
	URLs          map[string]string
	Entry         *models.CatalogEntry
	// Skipped is set when storage returned no URLs; nothing else ran.
	Skipped   bool
	Committed bool
	Pushed    bool
	Purged    bool
}

// CityPublished is the event emitted after a successful publish.
type CityPublished struct {
	RunID         string                       `json:"run_id,omitempty"`
	Name          string                       `json:"name"`
	Country       string                       `json:"country"`
	Prefix        string                       `json:"prefix"`
	Maps          map[string]map[string]string `json:"maps"`
	CommitMessage string                       `json:"commit_message"`
	PublishedAt   string                       `json:"published_at"`
}

// Publish runs upload, catalog update, mirror, commit, event and purge for
// one city. An upload failure stops before the catalog is touched. A commit
// failure is returned after the local files are purged, since the upload
// already succeeded; the catalog file is not rolled back.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	log := p.log.With(zap.String("city", req.City), zap.String("country", req.Country))
	res := Result{CommitMessage: BuildCommitMessage(req.Admin, req.DisplayCountry, req.DisplayCity)}

	prefix, err := layout.RelativePrefix(p.outputRoot, req.CityDir)
	if err != nil {
		prefix = keys.CleanName(req.Country) + "/" + keys.CleanName(req.City)
		log.Warn("city directory is outside the output root, using fallback prefix", zap.String("prefix", prefix), zap.Error(err))
	}
	res.Prefix = prefix

	log.Info("uploading", zap.String("prefix", prefix))
	urls, err := p.deps.Uploader.UploadDirectory(ctx, req.CityDir, prefix, res.CommitMessage)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.ErrCodeUpload) {
			err = apperrors.Wrap(apperrors.ErrCodeUpload, "uploading "+prefix, err)
		}
		return res, err
	}
	if len(urls) == 0 {
		log.Warn("no files uploaded, skipping catalog and commit; local files kept")
		res.Skipped = true
		return res, nil
	}
	res.URLs = urls
	for _, rel := range sortedKeys(urls) {
		log.Info("uploaded", zap.String("path", rel), zap.String("url", urls[rel]))
	}

	now := p.deps.Now()
	entry := models.CatalogEntry{
		Name:        req.City,
		Country:     req.Country,
		AdminInfo:   req.Admin,
		Maps:        BuildMaps(urls),
		LastUpdated: models.Timestamp(now),
		Status:      models.StatusPublished,
	}
	if err := p.deps.Catalog.Put(entry); err != nil {
		return res, apperrors.Wrap(apperrors.ErrCodeCatalog, "updating catalog", err)
	}
	res.Entry = &entry

	if p.deps.Mirror != nil {
		if err := p.deps.Mirror.Upsert(ctx, entry); err != nil {
			log.Warn("catalog mirror update failed", zap.Error(err))
		}
	}

	var commitErr error
	if p.deps.Committer != nil {
		cr, err := p.deps.Committer.CommitAndPush(ctx, p.deps.Catalog.Path(), res.CommitMessage, req.Push)
		res.Committed, res.Pushed = cr.Committed, cr.Pushed
		if err != nil {
			commitErr = err
			if !apperrors.HasCode(err, apperrors.ErrCodeCommit) {
				commitErr = apperrors.Wrap(apperrors.ErrCodeCommit, "committing catalog", err)
			}
			log.Error("catalog commit failed", zap.Error(commitErr))
		}
	}

	if commitErr == nil && p.deps.Events != nil {
		event := CityPublished{
			RunID:         req.RunID,
			Name:          entry.Name,
			Country:       entry.Country,
			Prefix:        prefix,
			Maps:          entry.Maps,
			CommitMessage: res.CommitMessage,
			PublishedAt:   entry.LastUpdated,
		}
		if err := p.deps.Events.Publish(ctx, prefix, event); err != nil {
			log.Warn("publish event failed", zap.Error(err))
		}
	}

	purged, err := layout.Purge(req.CityDir, p.outputRoot)
	if err != nil {
		log.Warn("failed to purge local cache", zap.Error(err))
	} else if purged {
		log.Info("local cache cleared", zap.String("dir", req.CityDir))
	}
	res.Purged = purged

	return res, commitErr
}

// BuildCommitMessage names the place from its structured admin fields,
// country first, without duplicates. Without structured data it falls back
// to "{displayCountry}_{displayCity}".
func BuildCommitMessage(admin models.AdminInfo, displayCountry, displayCity string) string {
	var parts []string
	seen := map[string]bool{}
	for _, v := range admin.Structured.Ordered() {
		if seen[v] {
			continue
		}
		seen[v] = true
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		return "Add maps for " + displayCountry + "_" + displayCity
	}
	return "Add maps for " + strings.Join(parts, "_")
}

// BuildMaps groups uploaded URLs by format directory and file name. Paths
// are relative to the city directory, e.g. "A4_Print/lyon-a4_print-noir.png".
func BuildMaps(urls map[string]string) map[string]map[string]string {
	maps := make(map[string]map[string]string)
	for rel, url := range urls {
		rel = filepath.ToSlash(rel)
		format := path.Base(path.Dir(rel))
		if format == "." || format == "/" {
			continue
		}
		if maps[format] == nil {
			maps[format] = make(map[string]string)
		}
		maps[format][path.Base(rel)] = url
	}
	return maps
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
