package http

import (
	"errors"
	"net/http"

	"github.com/Darkpool645/alex-backend/internal/operations"
	"github.com/Darkpool645/alex-backend/internal/session"
)

type registerAdminRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	InstitutionName    string `json:"institution_name"`
	InstitutionAddress string `json:"institution_address"`
	InstitutionPhone   string `json:"institution_phone"`
	PaymentMethod      string `json:"payment_method"`
	PaymentToken       string `json:"payment_token"`
	Country            string `json:"country"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type invalidCodeResponse struct {
	Error             string `json:"error"`
	RemainingAttempts int    `json:"remaining_attempts"`
}

func (s *Server) handleRegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req registerAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	result, err := s.sessions.RegisterAdministrator(r.Context(), session.RegisterAdministratorInput{
		Name:               req.Name,
		Email:              req.Email,
		InstitutionName:    req.InstitutionName,
		InstitutionAddress: req.InstitutionAddress,
		InstitutionPhone:   req.InstitutionPhone,
		PaymentMethod:      req.PaymentMethod,
		PaymentToken:       req.PaymentToken,
		Country:            req.Country,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleLoginAdmin(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.sessions.ChallengeAdministratorLogin(r.Context(), session.ChallengeInput{Email: req.Email}); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "code_sent"})
}

func (s *Server) handleVerifyCodeAdmin(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	result, err := s.sessions.VerifyAdministratorCode(r.Context(), session.VerifyInput{Email: req.Email, Code: req.Code})
	if err != nil {
		var opErr *operations.Error
		if errors.As(err, &opErr) && opErr.Kind == operations.KindInvalidCode {
			writeJSON(w, http.StatusUnauthorized, invalidCodeResponse{Error: opErr.Code, RemainingAttempts: opErr.Remaining})
			return
		}
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLoginTeacher(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	result, err := s.sessions.LoginTeacher(r.Context(), session.TeacherLoginInput{Code: req.Code})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLoginStudent(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	result, err := s.sessions.JoinExam(r.Context(), session.JoinExamInput{ExamCode: req.Code})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":        claims.UserID,
		"role":           claims.Role,
		"institution_id": claims.InstitutionID,
		"expires_at":     claims.ExpiresAt.Time,
	})
}

type createTeacherRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateTeacher(w http.ResponseWriter, r *http.Request) {
	_, institution, ok := callerIDs(r)
	if !ok || institution.IsZero() {
		writeError(w, http.StatusForbidden, operations.ErrForbidden)
		return
	}
	var req createTeacherRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	teacher, err := s.sessions.RegisterTeacher(r.Context(), session.RegisterTeacherInput{Name: req.Name, InstitutionID: institution})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, teacher)
}

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	_, institution, ok := callerIDs(r)
	if !ok || institution.IsZero() {
		writeError(w, http.StatusForbidden, operations.ErrForbidden)
		return
	}
	teachers, err := s.sessions.ListTeachers(r.Context(), institution)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teachers": teachers})
}

func (s *Server) handleCountTeachers(w http.ResponseWriter, r *http.Request) {
	_, institution, ok := callerIDs(r)
	if !ok || institution.IsZero() {
		writeError(w, http.StatusForbidden, operations.ErrForbidden)
		return
	}
	total, err := s.sessions.CountTeachers(r.Context(), institution)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total_teachers": total})
}
