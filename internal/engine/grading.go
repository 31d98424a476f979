package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
	"github.com/pro804501/evaluateai-ai-backend/internal/oracle"
	"github.com/pro804501/evaluateai-ai-backend/internal/quota"
	"github.com/pro804501/evaluateai-ai-backend/internal/rubric"
	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

// Grade runs the default rubric against one student's sheets. A roll
// number with no submitted sheet returns (nil, nil) and spends nothing.
func (e *engine) Grade(ctx context.Context, evaluatorID, userID string, rollNo int) (*models.GradingResult, error) {
	return e.grade(ctx, evaluatorID, userID, rollNo, func(r *rubric.Rubric) string {
		return r.Instruction
	})
}

// Regrade reruns grading with the operator's corrective prompt folded into
// the rubric. It costs a quota unit like any other grading call and
// replaces the stored result for that roll number only.
func (e *engine) Regrade(ctx context.Context, evaluatorID, userID string, rollNo int, prompt string) (*models.GradingResult, error) {
	return e.grade(ctx, evaluatorID, userID, rollNo, func(r *rubric.Rubric) string {
		return r.RevaluationInstruction(prompt)
	})
}

// grade is the shared grading path. The quota unit is spent in the same
// transaction that stores the result, so an oracle failure costs nothing
// and leaves stored state untouched.
func (e *engine) grade(ctx context.Context, evaluatorID, userID string, rollNo int, instruction func(*rubric.Rubric) string) (*models.GradingResult, error) {
	ev, err := e.ownedEvaluator(ctx, evaluatorID, userID)
	if err != nil {
		return nil, err
	}

	class, err := e.repo.GetClass(ctx, ev.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	if class == nil {
		return nil, ErrClassNotFound
	}

	student := class.StudentByRoll(rollNo)
	if student == nil {
		return nil, ErrStudentNotFound
	}

	unlock := e.locks.lock(evaluatorID)
	defer unlock()

	evaluation, err := e.repo.GetEvaluation(ctx, evaluatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if evaluation == nil {
		// Grading requires submitted state to exist, unlike the
		// per-student no-sheet case below.
		return nil, ErrEvaluationNotFound
	}

	if evaluation.Repair() {
		if err := e.repo.UpsertEvaluation(ctx, evaluation); err != nil {
			return nil, fmt.Errorf("failed to persist invariant repair: %w", err)
		}
	}

	sheets := evaluation.Sheets(rollNo)
	if len(sheets) == 0 {
		return nil, nil
	}

	// Balance guard before the expensive oracle call. The authoritative
	// spend still happens with the result write below.
	limits, err := e.ledger.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limits == nil || limits.Remaining(models.LimitEvaluation) < 1 {
		return nil, quota.ErrQuotaExceeded
	}

	r := e.rubrics.Default()
	req := &oracle.Request{
		Instruction:    instruction(r),
		QuestionPapers: ev.QuestionPapers,
		AnswerKeys:     ev.AnswerKeys,
		StudentName:    student.Name,
		RollNo:         rollNo,
		Class:          class.Label(),
		Subject:        class.Subject,
		AnswerSheets:   sheets,
		Model:          r.Model,
		MaxTokens:      r.MaxTokens,
	}

	result, err := e.oracle.Grade(ctx, req)
	if err != nil {
		return nil, err
	}

	applied, err := e.repo.SaveGradingResult(ctx, evaluatorID, rollNo, result, storage.LimitSpend{
		UserID: userID,
		Kind:   models.LimitEvaluation,
		Amount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save grading result: %w", err)
	}
	if !applied {
		return nil, quota.ErrQuotaExceeded
	}

	slog.Info("student graded",
		"evaluator", evaluatorID,
		"roll_no", rollNo,
		"answers", len(result.Answers),
	)
	return result, nil
}
