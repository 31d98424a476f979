package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

// Janitor handles periodic housekeeping of evaluation records: it drops
// grading data whose roll number has no submitted sheet and removes
// evaluations whose evaluator no longer exists.
type Janitor struct {
	repo     storage.Repository
	interval time.Duration
}

// NewJanitor creates a new housekeeping worker
func NewJanitor(repo storage.Repository, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &Janitor{
		repo:     repo,
		interval: interval,
	}
}

// Start begins the housekeeping worker in a goroutine
func (j *Janitor) Start(ctx context.Context) {
	go j.run(ctx)
}

// run is the main loop for the housekeeping worker
func (j *Janitor) run(ctx context.Context) {
	slog.Info("housekeeping worker started", "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("housekeeping worker stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// sweep walks every evaluation once
func (j *Janitor) sweep(ctx context.Context) {
	slog.Debug("running housekeeping cycle")

	evaluations, err := j.repo.ListEvaluations(ctx)
	if err != nil {
		slog.Error("failed to list evaluations", "error", err)
		return
	}

	for _, evaluation := range evaluations {
		ev, err := j.repo.GetEvaluator(ctx, evaluation.EvaluatorID)
		if err != nil {
			slog.Error("failed to get evaluator",
				"error", err,
				"evaluator", evaluation.EvaluatorID,
			)
			continue
		}

		if ev == nil {
			slog.Info("removing orphaned evaluation", "evaluator", evaluation.EvaluatorID)
			if err := j.repo.DeleteEvaluation(ctx, evaluation.EvaluatorID); err != nil {
				slog.Error("failed to remove orphaned evaluation",
					"error", err,
					"evaluator", evaluation.EvaluatorID,
				)
			}
			continue
		}

		if evaluation.Repair() {
			slog.Info("repairing evaluation data", "evaluator", evaluation.EvaluatorID)
			if err := j.repo.UpsertEvaluation(ctx, evaluation); err != nil {
				slog.Error("failed to persist repaired evaluation",
					"error", err,
					"evaluator", evaluation.EvaluatorID,
				)
			}
		}
	}
}
