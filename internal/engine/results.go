package engine

import (
	"context"
	"fmt"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
)

// SingleResult builds the printable result sheet for one student. A roll
// number of -1 selects the first roster entry in stored order. A roster
// student with no grading data yet is not an error: the result is
// (nil, nil) and the transport renders it as an empty view.
func (e *engine) SingleResult(ctx context.Context, evaluatorID, userID string, rollNo int) (*models.StudentResult, error) {
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

	if rollNo == -1 {
		if len(class.Students) == 0 {
			return nil, ErrStudentNotFound
		}
		rollNo = class.Students[0].RollNo
	}

	student := class.StudentByRoll(rollNo)
	if student == nil {
		return nil, ErrStudentNotFound
	}

	evaluation, err := e.repo.GetEvaluation(ctx, evaluatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if evaluation == nil || evaluation.Data[rollNo] == nil {
		return nil, nil
	}

	result := evaluation.Data[rollNo]
	scored, total := result.Total()

	return &models.StudentResult{
		StudentName:    student.Name,
		RollNo:         rollNo,
		Class:          class.Label(),
		Subject:        class.Subject,
		QuestionPapers: ev.QuestionPapers,
		AnswerKeys:     ev.AnswerKeys,
		AnswerSheets:   evaluation.Sheets(rollNo),
		Results:        result.Answers,
		Score:          [2]float64{scored, total},
	}, nil
}

// ClassResults aggregates every graded student into the whole-class view,
// ordered by ascending roll number. Ungraded students are omitted.
func (e *engine) ClassResults(ctx context.Context, evaluatorID, userID string) (*models.ClassResults, error) {
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

	evaluation, err := e.repo.GetEvaluation(ctx, evaluatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	rows := make([]models.ClassResultRow, 0)
	if evaluation != nil {
		for _, student := range class.SortedStudents() {
			result := evaluation.Data[student.RollNo]
			if result == nil {
				continue
			}
			scored, total := result.Total()
			rows = append(rows, models.ClassResultRow{
				StudentName: student.Name,
				RollNo:      student.RollNo,
				Score:       models.FormatScorePair(scored, total),
			})
		}
	}

	return &models.ClassResults{
		Class:   class.Summary(),
		Exam:    ev.Title,
		Results: rows,
	}, nil
}

// SaveResults replaces one student's graded answers after manual review.
// It only edits an existing result: grading must have happened first, and
// no quota is involved.
func (e *engine) SaveResults(ctx context.Context, evaluatorID, userID string, rollNo int, answers []models.Answer) (*models.Evaluation, error) {
	if _, err := e.ownedEvaluator(ctx, evaluatorID, userID); err != nil {
		return nil, err
	}

	unlock := e.locks.lock(evaluatorID)
	defer unlock()

	evaluation, err := e.repo.GetEvaluation(ctx, evaluatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if evaluation == nil || evaluation.Data[rollNo] == nil {
		return nil, ErrEvaluationNotFound
	}

	if err := e.repo.SaveAnswers(ctx, evaluatorID, rollNo, answers); err != nil {
		return nil, fmt.Errorf("failed to save edited answers: %w", err)
	}

	evaluation.Data[rollNo] = &models.GradingResult{Answers: answers}
	return evaluation, nil
}
