package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

// ErrQuotaExceeded is returned when a counter cannot cover the requested
// consumption
var ErrQuotaExceeded = errors.New("quota exceeded")

// Ledger manages the per-user quota counters that gate evaluator creation
// and grading calls. All decrements go through the repository's conditional
// consume, so counters never go negative even under concurrent requests.
type Ledger struct {
	repo storage.Repository
}

// NewLedger creates a ledger over a repository
func NewLedger(repo storage.Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Get returns the current counters for a user, nil when none exist
func (l *Ledger) Get(ctx context.Context, userID string) (*models.Limits, error) {
	limits, err := l.repo.GetLimits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get limits: %w", err)
	}
	return limits, nil
}

// Consume atomically spends amount units of a kind. Returns
// ErrQuotaExceeded when the remaining balance is below amount.
func (l *Ledger) Consume(ctx context.Context, userID string, kind models.LimitKind, amount int) error {
	applied, err := l.repo.ConsumeLimit(ctx, userID, kind, amount)
	if err != nil {
		return fmt.Errorf("failed to consume %s limit: %w", kind, err)
	}
	if !applied {
		return ErrQuotaExceeded
	}

	slog.Debug("quota consumed", "user", userID, "kind", kind, "amount", amount)
	return nil
}

// Refund returns units to a counter, used when an evaluator is deleted
func (l *Ledger) Refund(ctx context.Context, userID string, kind models.LimitKind, amount int) error {
	if err := l.repo.AddLimit(ctx, userID, kind, amount); err != nil {
		return fmt.Errorf("failed to refund %s limit: %w", kind, err)
	}

	slog.Debug("quota refunded", "user", userID, "kind", kind, "amount", amount)
	return nil
}

// Grant applies a purchased limits package to both counters
func (l *Ledger) Grant(ctx context.Context, userID string, evaluatorDelta, evaluationDelta int) error {
	if err := l.repo.GrantLimits(ctx, userID, evaluatorDelta, evaluationDelta); err != nil {
		return fmt.Errorf("failed to grant limits: %w", err)
	}

	slog.Info("limits granted",
		"user", userID,
		"evaluator_delta", evaluatorDelta,
		"evaluation_delta", evaluationDelta,
	)
	return nil
}
