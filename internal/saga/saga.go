// Package saga runs a short sequence of steps that span storage systems
// without a shared transaction, undoing completed steps when a later one fails.
package saga

import (
	"context"
	"log/slog"
)

// Step is one unit of work. Undo may be nil when the step cannot be
// reversed; such steps are logged if a later step fails.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

// Run executes steps in order. When a step fails, Run undoes the steps that
// already completed, newest first, and returns the failing step's error.
// Undo failures are logged with the step name so orphans can be found; they
// never replace the original error.
func Run(ctx context.Context, logger *slog.Logger, steps ...Step) error {
	for i, step := range steps {
		if err := step.Do(ctx); err != nil {
			logger.Warn("step failed, compensating", "step", step.Name, "error", err)
			compensate(ctx, logger, steps[:i])
			return err
		}
	}
	return nil
}

func compensate(ctx context.Context, logger *slog.Logger, done []Step) {
	// The request context may already be cancelled; undo should still run.
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Undo == nil {
			logger.Error("step cannot be undone", "step", step.Name)
			continue
		}
		if err := step.Undo(ctx); err != nil {
			logger.Error("undo failed", "step", step.Name, "error", err)
		}
	}
}
