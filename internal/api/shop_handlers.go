package api

import (
	"encoding/json"
	"net/http"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
)

// Shop handlers

func (s *Server) handleListShopItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.shop.ListItems(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	purchases, err := s.shop.ListPurchases(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, purchases)
}

func (s *Server) handleFulfill(w http.ResponseWriter, r *http.Request) {
	var req models.FulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}
	if req.ItemID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "item_id is required")
		return
	}
	if req.OrderRef == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "order_ref is required")
		return
	}

	purchase, err := s.shop.Fulfill(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, purchase)
}
