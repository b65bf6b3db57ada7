package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"citypaper/internal/logger"
)

// Pipeline applies its stages to one item at a time.
type Pipeline[T any] struct {
	stages []Stage[T]
	log    *zap.Logger
}

func NewPipeline[T any](log *zap.Logger, stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages, log: logger.OrNop(log)}
}

// Run applies every stage to item in order. The context is checked before
// each step, so a cancellation stops the run between steps rather than in
// the middle of one. The first error is returned wrapped in a *StageError.
func (p *Pipeline[T]) Run(ctx context.Context, item *T) error {
	for _, stage := range p.stages {
		start := time.Now()
		for _, step := range stage.steps {
			if err := ctx.Err(); err != nil {
				return &StageError{Stage: stage.name, Err: err}
			}
			if err := step(ctx, item); err != nil {
				p.log.Debug("stage failed", zap.String("stage", stage.name), zap.Error(err))
				return &StageError{Stage: stage.name, Err: err}
			}
		}
		p.log.Debug("stage done", zap.String("stage", stage.name), zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}
