package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
)

// Evaluator handlers

func (s *Server) handleListEvaluators(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	views, err := s.engine.ListEvaluators(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	limits, err := s.ledger.Get(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.ListEvaluatorsResponse{
		Evaluators: views,
		User:       user.Summary(),
		Limits:     limits,
	})
}

func (s *Server) handleCreateEvaluator(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req models.CreateEvaluatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ClassID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "class_id is required")
		return
	}
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "title is required")
		return
	}
	if len(req.QuestionPapers) == 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "at least one question paper is required")
		return
	}
	if len(req.AnswerKeys) == 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "at least one answer key is required")
		return
	}

	ev, err := s.engine.CreateEvaluator(r.Context(), user.ID, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEvaluator(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req models.UpdateEvaluatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Title == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "title is required")
		return
	}
	if req.ClassID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "class_id is required")
		return
	}

	ev, err := s.engine.UpdateEvaluator(r.Context(), id, user.ID, req.Title, req.ClassID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvaluator(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.engine.DeleteEvaluator(r.Context(), id, user.ID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// Evaluation handlers

func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	evaluation, err := s.engine.GetEvaluation(r.Context(), id, user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// No sheets submitted yet is an empty read, not an error
	respondJSON(w, http.StatusOK, evaluation)
}

func (s *Server) handleSetAnswerSheets(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req models.SetAnswerSheetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	evaluation, err := s.engine.SetAnswerSheets(r.Context(), id, user.ID, req.AnswerSheets)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, evaluation)
}

func (s *Server) handleDeleteEvaluation(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.engine.DeleteEvaluation(r.Context(), id, user.ID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// Grading handlers

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req models.GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.RollNo < 1 {
		respondError(w, http.StatusBadRequest, "validation_error", "roll_no must be positive")
		return
	}

	if err := s.limiter.Allow(r.Context(), user.ID); err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := s.engine.Grade(r.Context(), id, user.ID, req.RollNo)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// No sheet for this roll number: nothing graded, nothing spent
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRegrade(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req models.RegradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.RollNo < 1 {
		respondError(w, http.StatusBadRequest, "validation_error", "roll_no must be positive")
		return
	}

	if err := s.limiter.Allow(r.Context(), user.ID); err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := s.engine.Regrade(r.Context(), id, user.ID, req.RollNo, req.Prompt)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Result handlers

func (s *Server) handleSingleResult(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rollNo, err := strconv.Atoi(chi.URLParam(r, "rollNo"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "roll number must be an integer")
		return
	}

	result, err := s.engine.SingleResult(r.Context(), id, user.ID, rollNo)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleClassResults(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	results, err := s.engine.ClassResults(r.Context(), id, user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleSaveResults(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req models.SaveResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.RollNo < 1 {
		respondError(w, http.StatusBadRequest, "validation_error", "roll_no must be positive")
		return
	}
	if len(req.Results) == 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "results must not be empty")
		return
	}

	evaluation, err := s.engine.SaveResults(r.Context(), id, user.ID, req.RollNo, req.Results)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, evaluation)
}
