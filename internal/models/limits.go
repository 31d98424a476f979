package models

import (
	"time"
)

// LimitKind names one of the two per-user quota counters
type LimitKind string

const (
	// LimitEvaluator gates exam creation
	LimitEvaluator LimitKind = "evaluator"
	// LimitEvaluation gates grading calls to the oracle
	LimitEvaluation LimitKind = "evaluation"
)

// Limits holds the remaining quota for one user. Counters are decremented
// only through the conditional consume path and can never go negative.
type Limits struct {
	UserID          string    `json:"-"`
	EvaluatorLimit  int       `json:"evaluator_limit"`
	EvaluationLimit int       `json:"evaluation_limit"`
	UpdatedAt       time.Time `json:"-"`
}

// Remaining returns the counter for a kind
func (l *Limits) Remaining(kind LimitKind) int {
	if kind == LimitEvaluator {
		return l.EvaluatorLimit
	}
	return l.EvaluationLimit
}
