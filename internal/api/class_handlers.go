package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pro804501/evaluateai-ai-backend/internal/models"
)

// Class handlers. Rosters are simple owned records, so these talk to the
// repository directly; the grading engine only reads them.

// ownedClass loads a class and checks the caller created it
func (s *Server) ownedClass(w http.ResponseWriter, r *http.Request) *models.Class {
	id := chi.URLParam(r, "id")

	class, err := s.repo.GetClass(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return nil
	}
	if class == nil {
		respondError(w, http.StatusNotFound, "class_not_found", "class not found")
		return nil
	}

	user := UserFromContext(r.Context())
	if class.CreatedBy != user.ID {
		respondError(w, http.StatusForbidden, "forbidden", "you do not own this class")
		return nil
	}

	return class
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	classes, err := s.repo.ListClassesByUser(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, classes)
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req models.CreateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}
	if req.Subject == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "subject is required")
		return
	}

	class := &models.Class{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Section:   req.Section,
		Subject:   req.Subject,
		Students:  []models.Student{},
		CreatedBy: user.ID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateClass(r.Context(), class); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, class)
}

func (s *Server) handleGetClass(w http.ResponseWriter, r *http.Request) {
	class := s.ownedClass(w, r)
	if class == nil {
		return
	}

	respondJSON(w, http.StatusOK, class)
}

func (s *Server) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	class := s.ownedClass(w, r)
	if class == nil {
		return
	}

	var req models.UpdateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Name != "" {
		class.Name = req.Name
	}
	if req.Section != "" {
		class.Section = req.Section
	}
	if req.Subject != "" {
		class.Subject = req.Subject
	}

	if err := s.repo.UpdateClass(r.Context(), class); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, class)
}

func (s *Server) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	class := s.ownedClass(w, r)
	if class == nil {
		return
	}

	if err := s.repo.DeleteClass(r.Context(), class.ID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": class.ID})
}

func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	class := s.ownedClass(w, r)
	if class == nil {
		return
	}

	var req models.AddStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.RollNo < 1 {
		respondError(w, http.StatusBadRequest, "validation_error", "roll_no must be positive")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}
	if class.StudentByRoll(req.RollNo) != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "roll_no already taken in this class")
		return
	}

	class.Students = append(class.Students, models.Student{
		RollNo: req.RollNo,
		Name:   req.Name,
	})

	if err := s.repo.UpdateClass(r.Context(), class); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, class)
}

func (s *Server) handleRemoveStudent(w http.ResponseWriter, r *http.Request) {
	class := s.ownedClass(w, r)
	if class == nil {
		return
	}

	rollNo, err := strconv.Atoi(chi.URLParam(r, "rollNo"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "roll number must be an integer")
		return
	}

	kept := class.Students[:0]
	found := false
	for _, student := range class.Students {
		if student.RollNo == rollNo {
			found = true
			continue
		}
		kept = append(kept, student)
	}
	if !found {
		respondError(w, http.StatusNotFound, "student_not_found", "no such roll number in the class")
		return
	}
	class.Students = kept

	if err := s.repo.UpdateClass(r.Context(), class); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, class)
}
