// Package generator runs the full poster pipeline for one city: resolve the
// bounds, render every format and theme, collect the files and publish them.
package generator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/collect"
	"citypaper/internal/config"
	"citypaper/internal/layout"
	"citypaper/internal/logger"
	"citypaper/internal/metrics"
	"citypaper/internal/models"
	"citypaper/internal/pipeline"
	"citypaper/internal/publish"
	"citypaper/internal/render"
)

type BoundsResolver interface {
	Resolve(ctx context.Context, q models.GeoQuery) (models.BoundsResult, error)
}

type RenderInvoker interface {
	Run(ctx context.Context, job models.RenderJob) render.Outcome
}

type Publisher interface {
	Publish(ctx context.Context, req publish.Request) (publish.Result, error)
}

// Request is one city to generate.
type Request struct {
	RunID          string
	City           string
	Country        string
	Hints          *models.PrecisionHints
	DisplayCity    string
	DisplayCountry string
	Theme          string
	Formats        []string
	Push           bool
}

// Report summarizes a city run.
type Report struct {
	City           string
	Country        string
	DisplayCity    string
	DisplayCountry string
	Bounds         models.BoundsResult
	CityDir        string
	Themes         []string
	Formats        []models.OutputFormat
	Total          int
	Succeeded      int
	Artifacts      []models.Artifact
	Publish        *publish.Result
}

type Generator struct {
	cfg       *config.Config
	resolver  BoundsResolver
	invoker   RenderInvoker
	collector *collect.Collector
	publisher Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func New(cfg *config.Config, resolver BoundsResolver, invoker RenderInvoker, collector *collect.Collector, publisher Publisher, m *metrics.Metrics, log *zap.Logger) *Generator {
	return &Generator{
		cfg:       cfg,
		resolver:  resolver,
		invoker:   invoker,
		collector: collector,
		publisher: publisher,
		metrics:   m,
		log:       logger.OrNop(log),
	}
}

// cityRun is the item flowing through the city pipeline.
type cityRun struct {
	req    Request
	log    *zap.Logger
	report Report
}

// Run generates and publishes one city. Render jobs that exhaust their
// retries are counted and skipped; the city fails only when nothing was
// produced or a resolve, theme or publish step fails.
func (g *Generator) Run(ctx context.Context, req Request) (Report, error) {
	run := &cityRun{
		req: req,
		log: g.log.With(zap.String("city", req.City), zap.String("country", req.Country)),
		report: Report{
			City:    req.City,
			Country: req.Country,
		},
	}
	if req.RunID != "" {
		run.log = run.log.With(zap.String("run_id", req.RunID))
	}

	p := pipeline.NewPipeline(run.log,
		pipeline.NewStage[cityRun]("select", g.selectWork),
		pipeline.NewStage[cityRun]("resolve", g.resolve),
		pipeline.NewStage[cityRun]("render", g.render),
		pipeline.NewStage[cityRun]("publish", g.publish),
	)
	err := p.Run(ctx, run)
	return run.report, err
}

func (g *Generator) selectWork(_ context.Context, run *cityRun) error {
	available, err := render.ListThemes(g.cfg.Renderer.ThemesDir())
	if err != nil {
		return err
	}
	themes, err := render.SelectThemes(available, run.req.Theme)
	if err != nil {
		return err
	}
	formats, err := render.SelectFormats(g.cfg.Renderer.Formats, run.req.Formats)
	if err != nil {
		return err
	}
	if run.req.Theme == "" {
		run.log.Info("no specific theme selected, generating all available themes", zap.Strings("themes", themes))
	}
	run.report.Themes = themes
	run.report.Formats = formats
	run.report.Total = len(themes) * len(formats)
	return nil
}

func (g *Generator) resolve(ctx context.Context, run *cityRun) error {
	q := models.GeoQuery{City: run.req.City, Country: run.req.Country, Hints: run.req.Hints}
	bounds, err := g.resolver.Resolve(ctx, q)
	if err != nil {
		return err
	}
	run.report.Bounds = bounds

	displayCity, displayCountry := render.DisplayNames(run.req.City, run.req.Country, run.req.DisplayCity, run.req.DisplayCountry, bounds.Admin)
	run.report.DisplayCity = displayCity
	run.report.DisplayCountry = displayCountry
	run.report.CityDir = layout.Derive(g.cfg.App.OutputDir, run.req.City, run.req.Country, bounds.Admin)

	run.log.Info("city resolved",
		zap.String("display_city", displayCity),
		zap.String("display_country", displayCountry),
		zap.String("admin", bounds.Admin.Kind().String()),
		zap.String("output_dir", run.report.CityDir),
	)
	return nil
}

func (g *Generator) render(ctx context.Context, run *cityRun) error {
	rep := &run.report
	n := 0
	for _, format := range rep.Formats {
		for _, theme := range rep.Themes {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
			job := models.RenderJob{
				Format:         format,
				Theme:          theme,
				Lat:            rep.Bounds.CenterLat,
				Lon:            rep.Bounds.CenterLon,
				RadiusKm:       rep.Bounds.RadiusKm,
				City:           run.req.City,
				Country:        run.req.Country,
				DisplayCity:    rep.DisplayCity,
				DisplayCountry: rep.DisplayCountry,
			}
			run.log.Info(fmt.Sprintf("[%d/%d] rendering", n, rep.Total),
				zap.String("format", format.Name),
				zap.String("size", fmt.Sprintf("%gx%g", format.Width, format.Height)),
				zap.String("theme", job.ThemeLabel()),
			)

			start := time.Now()
			out := g.invoker.Run(ctx, job)
			if out.Succeeded() {
				artifacts, err := g.collector.Collect(out.Files, layout.FormatDir(rep.CityDir, format.Name), job)
				if err != nil {
					out = render.Outcome{Status: render.StatusFailed, Attempts: out.Attempts, Err: err}
					run.log.Warn("collecting artifacts failed", zap.String("format", format.Name), zap.Error(err))
				} else {
					rep.Artifacts = append(rep.Artifacts, artifacts...)
					rep.Succeeded++
					g.metrics.ObserveArtifacts(len(artifacts))
				}
			}
			g.metrics.ObserveRender(format.Name, out.Succeeded(), out.Attempts, time.Since(start))
		}
	}

	run.log.Info(fmt.Sprintf("generated %d/%d maps", rep.Succeeded, rep.Total))
	if err := ctx.Err(); err != nil {
		return err
	}
	if rep.Succeeded == 0 {
		return apperrors.Newf(apperrors.ErrCodeArtifactMissing, "no maps generated for %s", run.req.City)
	}
	return nil
}

func (g *Generator) publish(ctx context.Context, run *cityRun) error {
	rep := &run.report
	res, err := g.publisher.Publish(ctx, publish.Request{
		RunID:          run.req.RunID,
		City:           run.req.City,
		Country:        run.req.Country,
		DisplayCity:    rep.DisplayCity,
		DisplayCountry: rep.DisplayCountry,
		Admin:          rep.Bounds.Admin,
		CityDir:        rep.CityDir,
		Push:           run.req.Push,
	})
	rep.Publish = &res
	if err != nil {
		g.metrics.ObservePublishFailure(err)
		return err
	}
	return nil
}
