package models

import (
	"strconv"
	"time"
)

// Answer is one graded question as returned by the oracle. The field set is
// controlled by the oracle and treated as opaque here; only the score pair
// is interpreted for aggregation.
type Answer map[string]any

// Score returns the [awarded, max] pair. ok is false when the pair is
// missing or malformed.
func (a Answer) Score() (awarded, max float64, ok bool) {
	raw, exists := a["score"]
	if !exists {
		return 0, 0, false
	}
	pair, isSlice := raw.([]any)
	if !isSlice || len(pair) != 2 {
		return 0, 0, false
	}
	awarded, ok1 := toFloat(pair[0])
	max, ok2 := toFloat(pair[1])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return awarded, max, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// GradingResult is the oracle's verdict for one student's answer sheet
type GradingResult struct {
	Answers []Answer `json:"answers"`
}

// Total sums the score pairs across all answers
func (g *GradingResult) Total() (scored, total float64) {
	for _, answer := range g.Answers {
		awarded, max, ok := answer.Score()
		if !ok {
			continue
		}
		scored += awarded
		total += max
	}
	return scored, total
}

// Evaluation holds the mutable grading state for one evaluator: submitted
// answer sheets and per-student oracle results, both keyed by roll number.
// A roll number with no submission is simply absent from AnswerSheets.
type Evaluation struct {
	EvaluatorID  string                    `json:"evaluator_id"`
	AnswerSheets map[int][]string          `json:"answer_sheets"`
	Data         map[int]*GradingResult    `json:"data"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// Sheets returns the submitted pages for a roll number, nil when absent
func (e *Evaluation) Sheets(rollNo int) []string {
	if e.AnswerSheets == nil {
		return nil
	}
	return e.AnswerSheets[rollNo]
}

// Repair restores the "no sheet implies no data" invariant: every data
// entry whose roll number has no submitted sheet is dropped. Returns true
// when anything changed.
func (e *Evaluation) Repair() bool {
	changed := false
	for rollNo, result := range e.Data {
		if len(e.Sheets(rollNo)) == 0 || result == nil {
			delete(e.Data, rollNo)
			changed = true
		}
	}
	return changed
}

// StudentResult is the printable single-student result view
type StudentResult struct {
	StudentName    string     `json:"student_name"`
	RollNo         int        `json:"roll_no"`
	Class          string     `json:"class"`
	Subject        string     `json:"subject"`
	QuestionPapers []string   `json:"question_papers"`
	AnswerKeys     []string   `json:"answer_keys"`
	AnswerSheets   []string   `json:"answer_sheets"`
	Results        []Answer   `json:"results"`
	Score          [2]float64 `json:"score"`
}

// ClassResultRow is one graded student in the whole-class view
type ClassResultRow struct {
	StudentName string `json:"student_name"`
	RollNo      int    `json:"roll_no"`
	Score       string `json:"score"`
}

// ClassResults is the whole-class result view
type ClassResults struct {
	Class   ClassSummary     `json:"class"`
	Exam    string           `json:"exam"`
	Results []ClassResultRow `json:"results"`
}

// FormatScorePair renders "scored / total" with integral values printed
// without a decimal point
func FormatScorePair(scored, total float64) string {
	return formatScore(scored) + " / " + formatScore(total)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SetAnswerSheetsRequest carries the positional sheet upload: index i
// corresponds to roll number i+1, null or empty slots mean no submission
type SetAnswerSheetsRequest struct {
	AnswerSheets [][]string `json:"answer_sheets"`
}

// GradeRequest represents a request to grade one roll number
type GradeRequest struct {
	RollNo int `json:"roll_no"`
}

// RegradeRequest adds the operator's corrective instruction
type RegradeRequest struct {
	RollNo int    `json:"roll_no"`
	Prompt string `json:"prompt"`
}

// SaveResultsRequest replaces a student's graded answers after manual review
type SaveResultsRequest struct {
	RollNo  int      `json:"roll_no"`
	Results []Answer `json:"results"`
}
