package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
	"github.com/pro804501/evaluateai-ai-backend/internal/oracle"
	"github.com/pro804501/evaluateai-ai-backend/internal/quota"
	"github.com/pro804501/evaluateai-ai-backend/internal/rubric"
	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

// Common errors
var (
	ErrEvaluatorNotFound  = errors.New("evaluator not found")
	ErrEvaluationNotFound = errors.New("evaluation not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Engine defines the evaluation workflow: exam definition, answer-sheet
// intake, oracle grading and result aggregation. Every operation takes the
// requesting user and enforces ownership before touching state.
type Engine interface {
	ListEvaluators(ctx context.Context, userID string) ([]*models.EvaluatorView, error)
	CreateEvaluator(ctx context.Context, userID string, req *models.CreateEvaluatorRequest) (*models.Evaluator, error)
	UpdateEvaluator(ctx context.Context, evaluatorID, userID, title, classID string) (*models.Evaluator, error)
	DeleteEvaluator(ctx context.Context, evaluatorID, userID string) error

	SetAnswerSheets(ctx context.Context, evaluatorID, userID string, sheets [][]string) (*models.Evaluation, error)
	GetEvaluation(ctx context.Context, evaluatorID, userID string) (*models.Evaluation, error)
	DeleteEvaluation(ctx context.Context, evaluatorID, userID string) error

	// Grade and Regrade fail with ErrEvaluationNotFound when no sheets
	// were ever submitted, and return (nil, nil) when the roll number
	// has no submitted sheet; no quota is spent in either case.
	Grade(ctx context.Context, evaluatorID, userID string, rollNo int) (*models.GradingResult, error)
	Regrade(ctx context.Context, evaluatorID, userID string, rollNo int, prompt string) (*models.GradingResult, error)

	// SingleResult returns (nil, nil) for a roster student with no
	// grading data yet.
	SingleResult(ctx context.Context, evaluatorID, userID string, rollNo int) (*models.StudentResult, error)
	ClassResults(ctx context.Context, evaluatorID, userID string) (*models.ClassResults, error)
	SaveResults(ctx context.Context, evaluatorID, userID string, rollNo int, answers []models.Answer) (*models.Evaluation, error)
}

type engine struct {
	repo    storage.Repository
	ledger  *quota.Ledger
	oracle  oracle.Client
	rubrics *rubric.Loader
	locks   *keyedMutex
}

// New creates the workflow engine. The oracle client is injected so tests
// can substitute a scripted double.
func New(repo storage.Repository, ledger *quota.Ledger, oracleClient oracle.Client, rubrics *rubric.Loader) Engine {
	return &engine{
		repo:    repo,
		ledger:  ledger,
		oracle:  oracleClient,
		rubrics: rubrics,
		locks:   newKeyedMutex(),
	}
}

// ownedEvaluator loads an evaluator and enforces ownership
func (e *engine) ownedEvaluator(ctx context.Context, evaluatorID, userID string) (*models.Evaluator, error) {
	ev, err := e.repo.GetEvaluator(ctx, evaluatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluator: %w", err)
	}
	if ev == nil {
		return nil, ErrEvaluatorNotFound
	}
	if ev.UserID != userID {
		return nil, ErrUnauthorized
	}
	return ev, nil
}

// ListEvaluators returns the caller's exams newest first, each joined with
// its roster summary
func (e *engine) ListEvaluators(ctx context.Context, userID string) ([]*models.EvaluatorView, error) {
	evaluators, err := e.repo.ListEvaluatorsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluators: %w", err)
	}

	views := make([]*models.EvaluatorView, 0, len(evaluators))
	for _, ev := range evaluators {
		view := &models.EvaluatorView{Evaluator: *ev}
		class, err := e.repo.GetClass(ctx, ev.ClassID)
		if err != nil {
			return nil, fmt.Errorf("failed to get class for evaluator %s: %w", ev.ID, err)
		}
		if class != nil {
			summary := class.Summary()
			view.Class = &summary
		}
		views = append(views, view)
	}

	return views, nil
}

// CreateEvaluator defines a new exam. The roster is validated before the
// quota unit is consumed so a bad class id costs nothing.
func (e *engine) CreateEvaluator(ctx context.Context, userID string, req *models.CreateEvaluatorRequest) (*models.Evaluator, error) {
	class, err := e.repo.GetClass(ctx, req.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	if class == nil {
		return nil, ErrClassNotFound
	}

	if err := e.ledger.Consume(ctx, userID, models.LimitEvaluator, 1); err != nil {
		return nil, err
	}

	ev := &models.Evaluator{
		ID:             uuid.New().String(),
		UserID:         userID,
		ClassID:        req.ClassID,
		Title:          req.Title,
		QuestionPapers: req.QuestionPapers,
		AnswerKeys:     req.AnswerKeys,
		CreatedAt:      time.Now().UTC(),
	}

	if err := e.repo.CreateEvaluator(ctx, ev); err != nil {
		// Return the consumed unit so a storage failure is not billed.
		if refundErr := e.ledger.Refund(ctx, userID, models.LimitEvaluator, 1); refundErr != nil {
			slog.Error("failed to refund evaluator unit after create failure",
				"error", refundErr, "user", userID)
		}
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}

	slog.Info("evaluator created", "id", ev.ID, "user", userID, "class", req.ClassID)
	return ev, nil
}

// UpdateEvaluator retitles or relinks an exam, owner only
func (e *engine) UpdateEvaluator(ctx context.Context, evaluatorID, userID, title, classID string) (*models.Evaluator, error) {
	ev, err := e.ownedEvaluator(ctx, evaluatorID, userID)
	if err != nil {
		return nil, err
	}

	ev.Title = title
	ev.ClassID = classID

	if err := e.repo.UpdateEvaluator(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to update evaluator: %w", err)
	}

	return ev, nil
}

// DeleteEvaluator removes an exam, refunds its quota unit and cascades to
// the evaluation record. The cascade is best-effort: a missing evaluation
// is not an error.
func (e *engine) DeleteEvaluator(ctx context.Context, evaluatorID, userID string) error {
	if _, err := e.ownedEvaluator(ctx, evaluatorID, userID); err != nil {
		return err
	}

	if err := e.repo.DeleteEvaluator(ctx, evaluatorID); err != nil {
		return fmt.Errorf("failed to delete evaluator: %w", err)
	}

	if err := e.ledger.Refund(ctx, userID, models.LimitEvaluator, 1); err != nil {
		slog.Error("failed to refund evaluator unit on delete", "error", err, "user", userID)
	}

	if err := e.repo.DeleteEvaluation(ctx, evaluatorID); err != nil {
		slog.Error("failed to cascade evaluation delete", "error", err, "evaluator", evaluatorID)
	}

	slog.Info("evaluator deleted", "id", evaluatorID, "user", userID)
	return nil
}

// SetAnswerSheets replaces the submitted sheets wholesale. The positional
// input is converted at this boundary: index i means roll number i+1, and
// empty or null slots mean no submission. The evaluation record is created
// lazily on first submission.
func (e *engine) SetAnswerSheets(ctx context.Context, evaluatorID, userID string, sheets [][]string) (*models.Evaluation, error) {
	if _, err := e.ownedEvaluator(ctx, evaluatorID, userID); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(evaluatorID)
	defer unlock()

	evaluation, err := e.repo.GetEvaluation(ctx, evaluatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if evaluation == nil {
		evaluation = &models.Evaluation{EvaluatorID: evaluatorID}
	}

	normalized := make(map[int][]string)
	for i, pages := range sheets {
		if len(pages) == 0 {
			continue
		}
		normalized[i+1] = pages
	}

	evaluation.AnswerSheets = normalized
	evaluation.Repair()

	if err := e.repo.UpsertEvaluation(ctx, evaluation); err != nil {
		return nil, fmt.Errorf("failed to save answer sheets: %w", err)
	}

	return evaluation, nil
}

// GetEvaluation returns the grading state, repairing the sparse-null
// invariant before handing it back. Returns (nil, nil) when no sheets have
// been submitted yet.
func (e *engine) GetEvaluation(ctx context.Context, evaluatorID, userID string) (*models.Evaluation, error) {
	if _, err := e.ownedEvaluator(ctx, evaluatorID, userID); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(evaluatorID)
	defer unlock()

	evaluation, err := e.repo.GetEvaluation(ctx, evaluatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if evaluation == nil {
		return nil, nil
	}

	if evaluation.Repair() {
		if err := e.repo.UpsertEvaluation(ctx, evaluation); err != nil {
			return nil, fmt.Errorf("failed to persist invariant repair: %w", err)
		}
	}

	return evaluation, nil
}

// DeleteEvaluation removes the grading state for an exam, owner only
func (e *engine) DeleteEvaluation(ctx context.Context, evaluatorID, userID string) error {
	if _, err := e.ownedEvaluator(ctx, evaluatorID, userID); err != nil {
		return err
	}

	if err := e.repo.DeleteEvaluation(ctx, evaluatorID); err != nil {
		return fmt.Errorf("failed to delete evaluation: %w", err)
	}

	slog.Info("evaluation deleted", "evaluator", evaluatorID, "user", userID)
	return nil
}
