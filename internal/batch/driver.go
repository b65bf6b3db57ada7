package batch

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/generator"
	"citypaper/internal/logger"
	"citypaper/internal/metrics"
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// CityRunner generates and publishes one city.
type CityRunner interface {
	Run(ctx context.Context, req generator.Request) (generator.Report, error)
}

// Summary counts batch outcomes.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

// Options apply to every city of a batch.
type Options struct {
	// Theme limits rendering to one theme; empty means all themes.
	Theme string
	// Formats limits rendering to the named formats; empty or "all" means all.
	Formats []string
	Push    bool
}

type Driver struct {
	runner  CityRunner
	opts    Options
	metrics *metrics.Metrics
	log     *zap.Logger
	newID   func() string
}

func NewDriver(runner CityRunner, opts Options, m *metrics.Metrics, log *zap.Logger) *Driver {
	return &Driver{
		runner:  runner,
		opts:    opts,
		metrics: m,
		log:     logger.OrNop(log),
		newID:   func() string { return uuid.NewString() },
	}
}

// Run processes the entries in order. City failures are logged and counted;
// only cancellation of ctx stops the batch early, in which case ctx.Err() is
// returned with the partial summary.
func (d *Driver) Run(ctx context.Context, entries []Entry) (Summary, error) {
	sum := Summary{RunID: d.newID(), Total: len(entries)}
	log := d.log.With(zap.String("run_id", sum.RunID))
	log.Info("batch started",
		zap.Int("cities", len(entries)),
		zap.String("theme", d.opts.Theme),
		zap.Strings("formats", d.opts.Formats),
	)

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			log.Warn("batch interrupted", zap.Int("processed", i), zap.Int("remaining", len(entries)-i))
			return sum, err
		}
		if !entry.Valid() {
			log.Warn("skipping entry without name or country", zap.Int("index", i), zap.String("name", entry.Name))
			sum.Skipped++
			d.metrics.ObserveCity(OutcomeSkipped)
			continue
		}

		q := entry.Query()
		log.Info("processing city", zap.Int("index", i+1), zap.Int("total", len(entries)), zap.String("query", q.Text()))
		report, err := d.runner.Run(ctx, generator.Request{
			RunID:   sum.RunID,
			City:    q.City,
			Country: q.Country,
			Hints:   q.Hints,
			Theme:   d.opts.Theme,
			Formats: d.opts.Formats,
			Push:    d.opts.Push,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				log.Warn("batch interrupted", zap.String("city", q.City))
				sum.Failed++
				d.metrics.ObserveCity(OutcomeFailed)
				return sum, ctx.Err()
			}
			log.Error("city failed",
				zap.String("city", q.City),
				zap.String("code", string(apperrors.CodeOf(err))),
				zap.Error(err),
			)
			sum.Failed++
			d.metrics.ObserveCity(OutcomeFailed)
			continue
		}
		log.Info("city done", zap.String("city", q.City), zap.Int("generated", report.Succeeded), zap.Int("jobs", report.Total))
		sum.Succeeded++
		d.metrics.ObserveCity(OutcomeSucceeded)
	}

	log.Info("batch finished",
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
	)
	return sum, nil
}
