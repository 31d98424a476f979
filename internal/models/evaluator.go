package models

import (
	"time"
)

// Evaluator is a defined exam: question papers and answer keys bound to a
// class roster, owned by the user who created it. Creating one consumes a
// unit of the owner's evaluator quota; deleting it refunds the unit.
type Evaluator struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ClassID        string    `json:"class_id"`
	Title          string    `json:"title"`
	QuestionPapers []string  `json:"question_papers"`
	AnswerKeys     []string  `json:"answer_keys"`
	CreatedAt      time.Time `json:"created_at"`
}

// EvaluatorView is an evaluator joined with its roster summary for listings
type EvaluatorView struct {
	Evaluator
	Class *ClassSummary `json:"class,omitempty"`
}

// CreateEvaluatorRequest represents a request to define an exam
type CreateEvaluatorRequest struct {
	ClassID        string   `json:"class_id"`
	Title          string   `json:"title"`
	QuestionPapers []string `json:"question_papers"`
	AnswerKeys     []string `json:"answer_keys"`
}

// UpdateEvaluatorRequest represents a request to retitle or relink an exam
type UpdateEvaluatorRequest struct {
	Title   string `json:"title"`
	ClassID string `json:"class_id"`
}

// ListEvaluatorsResponse carries the caller's evaluators, profile and
// remaining limits in one payload
type ListEvaluatorsResponse struct {
	Evaluators []*EvaluatorView `json:"evaluators"`
	User       UserSummary      `json:"user"`
	Limits     *Limits          `json:"limits"`
}
