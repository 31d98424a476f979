package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pro804501/evaluateai-ai-backend/internal/config"
	"github.com/pro804501/evaluateai-ai-backend/internal/engine"
	"github.com/pro804501/evaluateai-ai-backend/internal/models"
	"github.com/pro804501/evaluateai-ai-backend/internal/oracle"
	"github.com/pro804501/evaluateai-ai-backend/internal/quota"
	"github.com/pro804501/evaluateai-ai-backend/internal/ratelimit"
	"github.com/pro804501/evaluateai-ai-backend/internal/rubric"
	"github.com/pro804501/evaluateai-ai-backend/internal/shop"
	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

type stubOracle struct{}

func (stubOracle) Grade(_ context.Context, _ *oracle.Request) (*models.GradingResult, error) {
	return &models.GradingResult{Answers: []models.Answer{
		{"question_no": 1, "score": []any{5.0, 10.0}},
	}}, nil
}

func newTestServer(t *testing.T) (*Server, *storage.MemoryRepository) {
	t.Helper()
	ctx := context.Background()
	repo := storage.NewMemoryRepository()

	if err := repo.CreateUser(ctx, &models.User{
		ID:       "u1",
		Name:     "Teacher One",
		Email:    "one@example.com",
		Role:     models.RoleRegular,
		ApiToken: "token-regular",
	}); err != nil {
		t.Fatalf("seed user failed: %v", err)
	}
	if err := repo.CreateUser(ctx, &models.User{
		ID:       "admin",
		Name:     "Admin",
		Email:    "admin@example.com",
		Role:     models.RoleAdmin,
		ApiToken: "token-admin",
	}); err != nil {
		t.Fatalf("seed admin failed: %v", err)
	}
	if err := repo.CreateLimits(ctx, &models.Limits{
		UserID:          "u1",
		EvaluatorLimit:  2,
		EvaluationLimit: 10,
	}); err != nil {
		t.Fatalf("seed limits failed: %v", err)
	}

	ledger := quota.NewLedger(repo)
	eng := engine.New(repo, ledger, stubOracle{}, rubric.NewLoader())
	shopService := shop.NewService(repo, ledger)
	limiter := ratelimit.NewLimiter(nil, 0, 0)

	return NewServer(config.ServerConfig{}, eng, ledger, shopService, repo, limiter), repo
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("bad envelope: %v: %s", err, rec.Body.String())
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope: %s", rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("bad data: %v", err)
		}
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil || envelope.Error == nil {
		t.Fatalf("expected error envelope: %s", rec.Body.String())
	}
	return envelope.Error.Code
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, s, "GET", "/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("ready: expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, "GET", "/api/v1/evaluators", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = doRequest(t, s, "GET", "/api/v1/evaluators", "wrong-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestXAPIKeyHeader(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/limits", nil)
	req.Header.Set("X-API-Key", "token-regular")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with X-API-Key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEvaluatorWorkflowOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	// Create a class
	rec := doRequest(t, s, "POST", "/api/v1/classes", "token-regular", models.CreateClassRequest{
		Name:    "10",
		Section: "A",
		Subject: "Physics",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create class: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var class models.Class
	decodeData(t, rec, &class)

	// Add a student
	rec = doRequest(t, s, "POST", "/api/v1/classes/"+class.ID+"/students", "token-regular", models.AddStudentRequest{
		RollNo: 1,
		Name:   "Asha",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add student: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Define the exam
	rec = doRequest(t, s, "POST", "/api/v1/evaluators", "token-regular", models.CreateEvaluatorRequest{
		ClassID:        class.ID,
		Title:          "Midterm",
		QuestionPapers: []string{"qp.jpg"},
		AnswerKeys:     []string{"key.jpg"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create evaluator: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ev models.Evaluator
	decodeData(t, rec, &ev)

	// Upload sheets and grade roll 1
	rec = doRequest(t, s, "POST", "/api/v1/evaluators/"+ev.ID+"/evaluation/sheets", "token-regular", models.SetAnswerSheetsRequest{
		AnswerSheets: [][]string{{"s1.jpg"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set sheets: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "POST", "/api/v1/evaluators/"+ev.ID+"/grade", "token-regular", models.GradeRequest{RollNo: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("grade: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Single result view
	rec = doRequest(t, s, "GET", "/api/v1/evaluators/"+ev.ID+"/results/1", "token-regular", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("single result: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.StudentResult
	decodeData(t, rec, &result)
	if result.Score != [2]float64{5, 10} {
		t.Errorf("unexpected score: %v", result.Score)
	}

	// Class results view
	rec = doRequest(t, s, "GET", "/api/v1/evaluators/"+ev.ID+"/results", "token-regular", nil)
	var classResults models.ClassResults
	decodeData(t, rec, &classResults)
	if len(classResults.Results) != 1 || classResults.Results[0].Score != "5 / 10" {
		t.Errorf("unexpected class results: %+v", classResults.Results)
	}

	// Listing carries user and limits alongside the evaluators
	rec = doRequest(t, s, "GET", "/api/v1/evaluators", "token-regular", nil)
	var listing models.ListEvaluatorsResponse
	decodeData(t, rec, &listing)
	if len(listing.Evaluators) != 1 {
		t.Errorf("expected 1 evaluator in listing, got %d", len(listing.Evaluators))
	}
	if listing.User.Email != "one@example.com" {
		t.Errorf("expected user profile in listing, got %+v", listing.User)
	}
	if listing.Limits == nil || listing.Limits.EvaluationLimit != 9 {
		t.Errorf("expected limits with one grading spent, got %+v", listing.Limits)
	}
}

func TestEmptyReadsReturnNullData(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, "POST", "/api/v1/classes", "token-regular", models.CreateClassRequest{
		Name:    "10",
		Section: "A",
		Subject: "Physics",
	})
	var class models.Class
	decodeData(t, rec, &class)

	rec = doRequest(t, s, "POST", "/api/v1/classes/"+class.ID+"/students", "token-regular", models.AddStudentRequest{
		RollNo: 1,
		Name:   "Asha",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add student: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "POST", "/api/v1/evaluators", "token-regular", models.CreateEvaluatorRequest{
		ClassID:        class.ID,
		Title:          "Midterm",
		QuestionPapers: []string{"qp.jpg"},
		AnswerKeys:     []string{"key.jpg"},
	})
	var ev models.Evaluator
	decodeData(t, rec, &ev)

	assertNullData := func(label string, rec *httptest.ResponseRecorder) {
		t.Helper()
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", label, rec.Code, rec.Body.String())
		}
		var envelope struct {
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("%s: bad envelope: %v: %s", label, err, rec.Body.String())
		}
		if !envelope.Success {
			t.Errorf("%s: expected success envelope: %s", label, rec.Body.String())
		}
		if data := string(envelope.Data); data != "null" && data != "" {
			t.Errorf("%s: expected null data, got %s", label, data)
		}
	}

	// No sheets submitted yet: the evaluation read is empty, not 404
	rec = doRequest(t, s, "GET", "/api/v1/evaluators/"+ev.ID+"/evaluation", "token-regular", nil)
	assertNullData("evaluation before sheets", rec)

	// Same for a roster student who was never graded
	rec = doRequest(t, s, "GET", "/api/v1/evaluators/"+ev.ID+"/results/1", "token-regular", nil)
	assertNullData("result before grading", rec)
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)

	// Unknown class on create -> 404
	rec := doRequest(t, s, "POST", "/api/v1/evaluators", "token-regular", models.CreateEvaluatorRequest{
		ClassID:        "missing",
		Title:          "Midterm",
		QuestionPapers: []string{"qp.jpg"},
		AnswerKeys:     []string{"key.jpg"},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown class, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "class_not_found" {
		t.Errorf("unexpected error code: %s", code)
	}

	// Validation failure -> 400 before any state change
	rec = doRequest(t, s, "POST", "/api/v1/evaluators", "token-regular", models.CreateEvaluatorRequest{
		ClassID: "c1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", rec.Code)
	}

	// Unknown evaluator -> 404
	rec = doRequest(t, s, "POST", "/api/v1/evaluators/ghost/grade", "token-regular", models.GradeRequest{RollNo: 1})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown evaluator, got %d", rec.Code)
	}
}

func TestQuotaExceededMapsTo402(t *testing.T) {
	s, repo := newTestServer(t)
	ctx := context.Background()

	// Drain the evaluator quota
	for i := 0; i < 2; i++ {
		if applied, err := repo.ConsumeLimit(ctx, "u1", models.LimitEvaluator, 1); err != nil || !applied {
			t.Fatalf("drain failed: applied=%v err=%v", applied, err)
		}
	}

	if err := repo.CreateClass(ctx, &models.Class{ID: "c1", Name: "10", Subject: "Math", CreatedBy: "u1"}); err != nil {
		t.Fatalf("seed class failed: %v", err)
	}

	rec := doRequest(t, s, "POST", "/api/v1/evaluators", "token-regular", models.CreateEvaluatorRequest{
		ClassID:        "c1",
		Title:          "Midterm",
		QuestionPapers: []string{"qp.jpg"},
		AnswerKeys:     []string{"key.jpg"},
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("expected 402 when quota exhausted, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "quota_exceeded" {
		t.Errorf("unexpected error code: %s", code)
	}
}

func TestFulfillRequiresAdmin(t *testing.T) {
	s, repo := newTestServer(t)

	repo.AddShopItem(&models.ShopItem{
		ID:              "starter",
		Enabled:         true,
		Title:           "Starter Pack",
		EvaluatorLimit:  1,
		EvaluationLimit: 10,
		Price:           499,
	})

	body := models.FulfillRequest{UserID: "u1", ItemID: "starter", OrderRef: "o1", PaymentMethod: "card"}

	rec := doRequest(t, s, "POST", "/api/v1/shop/fulfill", "token-regular", body)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin fulfill, got %d", rec.Code)
	}

	rec = doRequest(t, s, "POST", "/api/v1/shop/fulfill", "token-admin", body)
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201 for admin fulfill, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestClassOwnershipOverHTTP(t *testing.T) {
	s, repo := newTestServer(t)

	if err := repo.CreateClass(context.Background(), &models.Class{
		ID:        "c-admin",
		Name:      "9",
		Subject:   "Math",
		CreatedBy: "admin",
	}); err != nil {
		t.Fatalf("seed class failed: %v", err)
	}

	rec := doRequest(t, s, "GET", "/api/v1/classes/c-admin", "token-regular", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for someone else's class, got %d", rec.Code)
	}
}
