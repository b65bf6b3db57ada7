// Package pipeline runs an item through named stages in order, stopping at
// the first failure.
package pipeline

import (
	"context"
	"fmt"
)

// Step mutates item in place. A returned error stops the pipeline.
type Step[T any] func(ctx context.Context, item *T) error

// Stage is a named group of steps run one after another.
type Stage[T any] struct {
	name  string
	steps []Step[T]
}

func NewStage[T any](name string, steps ...Step[T]) Stage[T] {
	return Stage[T]{name: name, steps: steps}
}

// StageError tells which stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
