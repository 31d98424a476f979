package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
	"github.com/pro804501/evaluateai-ai-backend/internal/oracle"
	"github.com/pro804501/evaluateai-ai-backend/internal/quota"
	"github.com/pro804501/evaluateai-ai-backend/internal/rubric"
	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

// fakeOracle is a scripted stand-in for the grading oracle
type fakeOracle struct {
	mu      sync.Mutex
	result  *models.GradingResult
	err     error
	lastReq *oracle.Request
	calls   int
}

func (f *fakeOracle) Grade(_ context.Context, req *oracle.Request) (*models.GradingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func scoredResult(pairs ...[2]float64) *models.GradingResult {
	answers := make([]models.Answer, 0, len(pairs))
	for i, p := range pairs {
		answers = append(answers, models.Answer{
			"question_no": i + 1,
			"answer":      "something",
			"remarks":     "ok",
			"score":       []any{p[0], p[1]},
		})
	}
	return &models.GradingResult{Answers: answers}
}

type fixture struct {
	engine Engine
	repo   *storage.MemoryRepository
	ledger *quota.Ledger
	oracle *fakeOracle
}

// newFixture seeds two users: u1 with quota and a two-student class c1,
// and u2 with quota of their own
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := storage.NewMemoryRepository()

	for _, userID := range []string{"u1", "u2"} {
		if err := repo.CreateLimits(ctx, &models.Limits{
			UserID:          userID,
			EvaluatorLimit:  2,
			EvaluationLimit: 10,
		}); err != nil {
			t.Fatalf("failed to seed limits: %v", err)
		}
	}

	if err := repo.CreateClass(ctx, &models.Class{
		ID:      "c1",
		Name:    "10",
		Section: "A",
		Subject: "Physics",
		Students: []models.Student{
			{RollNo: 1, Name: "Asha"},
			{RollNo: 2, Name: "Bilal"},
		},
		CreatedBy: "u1",
	}); err != nil {
		t.Fatalf("failed to seed class: %v", err)
	}

	fake := &fakeOracle{result: scoredResult([2]float64{5, 10})}
	ledger := quota.NewLedger(repo)
	eng := New(repo, ledger, fake, rubric.NewLoader())

	return &fixture{engine: eng, repo: repo, ledger: ledger, oracle: fake}
}

func (f *fixture) createEvaluator(t *testing.T) *models.Evaluator {
	t.Helper()
	ev, err := f.engine.CreateEvaluator(context.Background(), "u1", &models.CreateEvaluatorRequest{
		ClassID:        "c1",
		Title:          "Midterm",
		QuestionPapers: []string{"qp.jpg"},
		AnswerKeys:     []string{"key.jpg"},
	})
	if err != nil {
		t.Fatalf("failed to create evaluator: %v", err)
	}
	return ev
}

func (f *fixture) evaluatorLimit(t *testing.T, userID string) int {
	t.Helper()
	limits, err := f.ledger.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to get limits: %v", err)
	}
	return limits.EvaluatorLimit
}

func (f *fixture) evaluationLimit(t *testing.T, userID string) int {
	t.Helper()
	limits, err := f.ledger.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to get limits: %v", err)
	}
	return limits.EvaluationLimit
}

func TestCreateEvaluatorConsumesQuota(t *testing.T) {
	f := newFixture(t)
	f.createEvaluator(t)

	if got := f.evaluatorLimit(t, "u1"); got != 1 {
		t.Errorf("expected evaluator limit 1 after create, got %d", got)
	}
}

func TestCreateEvaluatorUnknownClassCostsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateEvaluator(context.Background(), "u1", &models.CreateEvaluatorRequest{
		ClassID:        "missing",
		Title:          "Midterm",
		QuestionPapers: []string{"qp.jpg"},
		AnswerKeys:     []string{"key.jpg"},
	})
	if !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("expected ErrClassNotFound, got %v", err)
	}

	// The roster check happens before the quota spend
	if got := f.evaluatorLimit(t, "u1"); got != 2 {
		t.Errorf("failed create must not cost quota, limit is %d", got)
	}
}

func TestCreateEvaluatorQuotaExhausted(t *testing.T) {
	f := newFixture(t)
	f.createEvaluator(t)
	f.createEvaluator(t)

	_, err := f.engine.CreateEvaluator(context.Background(), "u1", &models.CreateEvaluatorRequest{
		ClassID:        "c1",
		Title:          "One too many",
		QuestionPapers: []string{"qp.jpg"},
		AnswerKeys:     []string{"key.jpg"},
	})
	if !errors.Is(err, quota.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestGradeWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	// Positional upload: roll 1 has a sheet, roll 2 does not
	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1p1.jpg", "s1p2.jpg"}, nil}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}

	result, err := f.engine.Grade(ctx, ev.ID, "u1", 1)
	if err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if result == nil || len(result.Answers) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if got := f.evaluationLimit(t, "u1"); got != 9 {
		t.Errorf("expected evaluation limit 9 after one grade, got %d", got)
	}

	// The oracle saw the right identity and pages
	req := f.oracle.lastReq
	if req.StudentName != "Asha" || req.RollNo != 1 {
		t.Errorf("wrong student in oracle request: %s %d", req.StudentName, req.RollNo)
	}
	if req.Class != "10 A" || req.Subject != "Physics" {
		t.Errorf("wrong class context: %q %q", req.Class, req.Subject)
	}
	if len(req.AnswerSheets) != 2 {
		t.Errorf("expected 2 sheet pages, got %d", len(req.AnswerSheets))
	}

	// Result persisted under the roll number
	evaluation, err := f.engine.GetEvaluation(ctx, ev.ID, "u1")
	if err != nil {
		t.Fatalf("get evaluation failed: %v", err)
	}
	if evaluation.Data[1] == nil {
		t.Fatal("graded result not stored for roll 1")
	}
	scored, total := evaluation.Data[1].Total()
	if scored != 5 || total != 10 {
		t.Errorf("expected [5, 10], got [%v, %v]", scored, total)
	}
}

func TestGradeNoSheetIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}

	// Roll 2 never submitted anything
	result, err := f.engine.Grade(ctx, ev.ID, "u1", 2)
	if err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result for unsubmitted roll, got %+v", result)
	}

	if f.oracle.calls != 0 {
		t.Errorf("oracle must not be called without a sheet, got %d calls", f.oracle.calls)
	}
	if got := f.evaluationLimit(t, "u1"); got != 10 {
		t.Errorf("no-op grade must not cost quota, limit is %d", got)
	}
}

func TestGradeWithoutAnySubmissionIsError(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvaluator(t)

	// Sheets were never uploaded: grading has no state to work on, which
	// is a hard error rather than a silent no-op
	_, err := f.engine.Grade(context.Background(), ev.ID, "u1", 1)
	if !errors.Is(err, ErrEvaluationNotFound) {
		t.Fatalf("expected ErrEvaluationNotFound without any submission, got %v", err)
	}

	if f.oracle.calls != 0 {
		t.Errorf("oracle must not be called without a submission, got %d calls", f.oracle.calls)
	}
	if got := f.evaluationLimit(t, "u1"); got != 10 {
		t.Errorf("failed grade must not cost quota, limit is %d", got)
	}
}

func TestGradeHealsOrphanedData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}

	// Corrupt the record behind the engine's back: grading data for a
	// roll number with no sheet
	if err := f.repo.UpsertEvaluation(ctx, &models.Evaluation{
		EvaluatorID:  ev.ID,
		AnswerSheets: map[int][]string{1: {"s1.jpg"}},
		Data: map[int]*models.GradingResult{
			2: {Answers: []models.Answer{{"score": []any{1.0, 10.0}}}},
		},
	}); err != nil {
		t.Fatalf("failed to corrupt evaluation: %v", err)
	}

	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 1); err != nil {
		t.Fatalf("grade failed: %v", err)
	}

	evaluation, _ := f.repo.GetEvaluation(ctx, ev.ID)
	if _, exists := evaluation.Data[2]; exists {
		t.Error("grade attempt must drop data whose roll number has no sheet")
	}
	if evaluation.Data[1] == nil {
		t.Error("the graded roll's own result must still be stored")
	}
}

func TestGradeUnknownStudent(t *testing.T) {
	f := newFixture(t)
	ev := f.createEvaluator(t)

	_, err := f.engine.Grade(context.Background(), ev.ID, "u1", 99)
	if !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestGradeOracleFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}

	f.oracle.err = oracle.ErrUnavailable
	_, err := f.engine.Grade(ctx, ev.ID, "u1", 1)
	if !errors.Is(err, oracle.ErrUnavailable) {
		t.Fatalf("expected oracle error, got %v", err)
	}

	// Nothing spent, nothing written
	if got := f.evaluationLimit(t, "u1"); got != 10 {
		t.Errorf("failed grade must not cost quota, limit is %d", got)
	}
	evaluation, _ := f.engine.GetEvaluation(ctx, ev.ID, "u1")
	if evaluation.Data[1] != nil {
		t.Error("failed grade must not store a result")
	}
}

func TestGradeQuotaExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}

	// Drain the grading quota
	for i := 0; i < 10; i++ {
		if err := f.ledger.Consume(ctx, "u1", models.LimitEvaluation, 1); err != nil {
			t.Fatalf("drain failed: %v", err)
		}
	}

	_, err := f.engine.Grade(ctx, ev.ID, "u1", 1)
	if !errors.Is(err, quota.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	evaluation, _ := f.engine.GetEvaluation(ctx, ev.ID, "u1")
	if evaluation.Data[1] != nil {
		t.Error("quota-blocked grade must not store a result")
	}
}

func TestRegradeUsesRevaluationInstruction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}, {"s2.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}

	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 1); err != nil {
		t.Fatalf("grade failed: %v", err)
	}
	if strings.Contains(f.oracle.lastReq.Instruction, "REVALUATION") {
		t.Error("plain grade must not use the revaluation instruction")
	}

	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 2); err != nil {
		t.Fatalf("grade failed: %v", err)
	}

	// Re-grade roll 1 with a corrective prompt
	f.oracle.result = scoredResult([2]float64{7, 10})
	if _, err := f.engine.Regrade(ctx, ev.ID, "u1", 1, "be lenient on question 2"); err != nil {
		t.Fatalf("regrade failed: %v", err)
	}

	instr := f.oracle.lastReq.Instruction
	if !strings.Contains(instr, "THIS IS REVALUATION. PROMPT: be lenient on question 2") {
		t.Errorf("corrective prompt missing from instruction: %q", instr)
	}

	// Only roll 1 was replaced
	evaluation, _ := f.engine.GetEvaluation(ctx, ev.ID, "u1")
	scored, _ := evaluation.Data[1].Total()
	if scored != 7 {
		t.Errorf("expected regraded score 7 for roll 1, got %v", scored)
	}
	scored, _ = evaluation.Data[2].Total()
	if scored != 5 {
		t.Errorf("roll 2 must be untouched by the regrade, got %v", scored)
	}
}

func TestSetAnswerSheetsDropsOrphanedData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}, {"s2.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}
	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 2); err != nil {
		t.Fatalf("grade failed: %v", err)
	}

	// Re-upload drops roll 2's sheet, so its result must go too
	evaluation, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}})
	if err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}

	if _, exists := evaluation.Data[2]; exists {
		t.Error("result for roll 2 must be dropped with its sheet")
	}

	// And the invariant holds after a reload
	reloaded, _ := f.engine.GetEvaluation(ctx, ev.ID, "u1")
	if _, exists := reloaded.Data[2]; exists {
		t.Error("orphaned result survived persistence")
	}
}

func TestSingleResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}
	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 1); err != nil {
		t.Fatalf("grade failed: %v", err)
	}

	result, err := f.engine.SingleResult(ctx, ev.ID, "u1", 1)
	if err != nil {
		t.Fatalf("single result failed: %v", err)
	}

	if result.StudentName != "Asha" || result.RollNo != 1 {
		t.Errorf("wrong student: %s %d", result.StudentName, result.RollNo)
	}
	if result.Score != [2]float64{5, 10} {
		t.Errorf("expected score [5 10], got %v", result.Score)
	}
	if result.Class != "10 A" || result.Subject != "Physics" {
		t.Errorf("wrong class context: %q %q", result.Class, result.Subject)
	}
	if len(result.AnswerSheets) != 1 {
		t.Errorf("expected the student's sheets in the view, got %v", result.AnswerSheets)
	}

	// -1 selects the first roster entry
	first, err := f.engine.SingleResult(ctx, ev.ID, "u1", -1)
	if err != nil {
		t.Fatalf("single result with -1 failed: %v", err)
	}
	if first.RollNo != 1 {
		t.Errorf("expected first roster entry, got roll %d", first.RollNo)
	}

	// An ungraded roster student is an empty view, not an error
	ungraded, err := f.engine.SingleResult(ctx, ev.ID, "u1", 2)
	if err != nil {
		t.Errorf("ungraded student must not be an error, got %v", err)
	}
	if ungraded != nil {
		t.Errorf("expected empty result for ungraded student, got %+v", ungraded)
	}

	// Same before any sheets exist at all
	fresh := f.createEvaluator(t)
	ungraded, err = f.engine.SingleResult(ctx, fresh.ID, "u1", 1)
	if err != nil {
		t.Errorf("result before any submission must not be an error, got %v", err)
	}
	if ungraded != nil {
		t.Errorf("expected empty result before any submission, got %+v", ungraded)
	}
}

func TestClassResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}, {"s2.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}
	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 1); err != nil {
		t.Fatalf("grade failed: %v", err)
	}

	f.oracle.result = scoredResult([2]float64{3.5, 10})
	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 2); err != nil {
		t.Fatalf("grade failed: %v", err)
	}

	results, err := f.engine.ClassResults(ctx, ev.ID, "u1")
	if err != nil {
		t.Fatalf("class results failed: %v", err)
	}

	if results.Exam != "Midterm" {
		t.Errorf("unexpected exam title: %q", results.Exam)
	}
	if results.Class.Name != "10" || results.Class.Subject != "Physics" {
		t.Errorf("unexpected class summary: %+v", results.Class)
	}
	if len(results.Results) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(results.Results))
	}

	// Ordered by roll number, scores formatted "scored / total"
	if results.Results[0].RollNo != 1 || results.Results[0].Score != "5 / 10" {
		t.Errorf("unexpected first row: %+v", results.Results[0])
	}
	if results.Results[1].RollNo != 2 || results.Results[1].Score != "3.5 / 10" {
		t.Errorf("unexpected second row: %+v", results.Results[1])
	}
}

func TestSaveResultsRequiresGradedData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	edited := []models.Answer{{"question_no": 1, "score": []any{9.0, 10.0}}}
	_, err := f.engine.SaveResults(ctx, ev.ID, "u1", 1, edited)
	if !errors.Is(err, ErrEvaluationNotFound) {
		t.Fatalf("expected ErrEvaluationNotFound before grading, got %v", err)
	}

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}
	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 1); err != nil {
		t.Fatalf("grade failed: %v", err)
	}

	evaluation, err := f.engine.SaveResults(ctx, ev.ID, "u1", 1, edited)
	if err != nil {
		t.Fatalf("save results failed: %v", err)
	}

	scored, total := evaluation.Data[1].Total()
	if scored != 9 || total != 10 {
		t.Errorf("expected edited score [9, 10], got [%v, %v]", scored, total)
	}

	// Manual edits cost nothing
	if got := f.evaluationLimit(t, "u1"); got != 9 {
		t.Errorf("save results must not cost quota, limit is %d", got)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u2", nil); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("set sheets: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.Grade(ctx, ev.ID, "u2", 1); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("grade: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.GetEvaluation(ctx, ev.ID, "u2"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("get evaluation: expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.DeleteEvaluator(ctx, ev.ID, "u2"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("delete evaluator: expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.DeleteEvaluation(ctx, ev.ID, "u2"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("delete evaluation: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.engine.ClassResults(ctx, ev.ID, "u2"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("class results: expected ErrUnauthorized, got %v", err)
	}

	// The blocked attempts changed nothing for the owner
	if got := f.evaluatorLimit(t, "u1"); got != 1 {
		t.Errorf("owner's quota disturbed: %d", got)
	}
}

func TestDeleteEvaluatorRefundsAndCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.createEvaluator(t)

	if _, err := f.engine.SetAnswerSheets(ctx, ev.ID, "u1", [][]string{{"s1.jpg"}}); err != nil {
		t.Fatalf("failed to set sheets: %v", err)
	}
	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 1); err != nil {
		t.Fatalf("grade failed: %v", err)
	}

	if err := f.engine.DeleteEvaluator(ctx, ev.ID, "u1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// Unit refunded
	if got := f.evaluatorLimit(t, "u1"); got != 2 {
		t.Errorf("expected evaluator limit back to 2, got %d", got)
	}

	// Evaluator and its evaluation are gone
	if _, err := f.engine.Grade(ctx, ev.ID, "u1", 1); !errors.Is(err, ErrEvaluatorNotFound) {
		t.Errorf("expected ErrEvaluatorNotFound after delete, got %v", err)
	}
	stored, _ := f.repo.GetEvaluation(ctx, ev.ID)
	if stored != nil {
		t.Error("evaluation record must cascade with the evaluator")
	}
}

func TestListEvaluatorsJoinsClass(t *testing.T) {
	f := newFixture(t)
	f.createEvaluator(t)

	views, err := f.engine.ListEvaluators(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 evaluator, got %d", len(views))
	}
	if views[0].Class == nil || views[0].Class.Subject != "Physics" {
		t.Errorf("expected joined class summary, got %+v", views[0].Class)
	}

	other, err := f.engine.ListEvaluators(context.Background(), "u2")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("u2 must not see u1's evaluators, got %d", len(other))
	}
}
