package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Darkpool645/alex-backend/internal/exams"
	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/operations"
)

func (s *Server) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	teacherID, _, ok := callerIDs(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	var req exams.ExamInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	exam, err := s.exams.Create(r.Context(), teacherID, req)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exam)
}

func (s *Server) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	teacherID, _, ok := callerIDs(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	examID, err := model.ParseID(chi.URLParam(r, "examId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, operations.ErrInvalidID)
		return
	}
	var req exams.ExamInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	exam, err := s.exams.Update(r.Context(), teacherID, examID, req)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

func (s *Server) handleListExams(w http.ResponseWriter, r *http.Request) {
	teacherID, _, ok := callerIDs(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	list, err := s.exams.ListActive(r.Context(), teacherID)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exams": list})
}

func (s *Server) handleGetExam(w http.ResponseWriter, r *http.Request) {
	_, institution, ok := callerIDs(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	examID, err := model.ParseID(chi.URLParam(r, "examId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, operations.ErrInvalidID)
		return
	}
	exam, err := s.exams.Get(r.Context(), institution, examID)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

func (s *Server) handleCountInstitutionExams(w http.ResponseWriter, r *http.Request) {
	_, institution, ok := callerIDs(r)
	if !ok || institution.IsZero() {
		writeError(w, http.StatusForbidden, operations.ErrForbidden)
		return
	}
	total, err := s.exams.CountByInstitution(r.Context(), institution)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total_exams": total})
}

func (s *Server) handleListInstitutionExams(w http.ResponseWriter, r *http.Request) {
	_, institution, ok := callerIDs(r)
	if !ok || institution.IsZero() {
		writeError(w, http.StatusForbidden, operations.ErrForbidden)
		return
	}
	listed, err := s.exams.ListActiveByInstitution(r.Context(), institution)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exams": listed})
}
