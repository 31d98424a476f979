package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pro804501/evaluateai-ai-backend/internal/engine"
	"github.com/pro804501/evaluateai-ai-backend/internal/oracle"
	"github.com/pro804501/evaluateai-ai-backend/internal/quota"
	"github.com/pro804501/evaluateai-ai-backend/internal/ratelimit"
	"github.com/pro804501/evaluateai-ai-backend/internal/shop"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Anything unmapped is a 500 and gets logged.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrEvaluatorNotFound):
		respondError(w, http.StatusNotFound, "evaluator_not_found", "evaluator not found")
	case errors.Is(err, engine.ErrEvaluationNotFound):
		respondError(w, http.StatusNotFound, "evaluation_not_found", "no grading data for this exam")
	case errors.Is(err, engine.ErrClassNotFound):
		respondError(w, http.StatusNotFound, "class_not_found", "class not found")
	case errors.Is(err, engine.ErrStudentNotFound):
		respondError(w, http.StatusNotFound, "student_not_found", "no such roll number in the class")
	case errors.Is(err, shop.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", "shop item not found")
	case errors.Is(err, engine.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "forbidden", "you do not own this resource")
	case errors.Is(err, quota.ErrQuotaExceeded):
		respondError(w, http.StatusPaymentRequired, "quota_exceeded", "limit exhausted, purchase more to continue")
	case errors.Is(err, ratelimit.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "rate_limited", "too many grading calls, slow down")
	case errors.Is(err, oracle.ErrUnavailable):
		respondError(w, http.StatusBadGateway, "oracle_unavailable", "grading oracle unavailable, try again")
	case errors.Is(err, oracle.ErrBadResponse):
		respondError(w, http.StatusBadGateway, "oracle_bad_response", "grading oracle returned an unusable response")
	default:
		slog.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Limits handler

func (s *Server) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	limits, err := s.ledger.Get(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if limits == nil {
		respondError(w, http.StatusNotFound, "limits_not_found", "no limits record for this user")
		return
	}

	respondJSON(w, http.StatusOK, limits)
}
