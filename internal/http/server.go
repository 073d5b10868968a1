package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Darkpool645/alex-backend/internal/auth"
	"github.com/Darkpool645/alex-backend/internal/exams"
	"github.com/Darkpool645/alex-backend/internal/model"
	"github.com/Darkpool645/alex-backend/internal/operations"
	"github.com/Darkpool645/alex-backend/internal/session"
)

const maxBodyBytes = 1 << 20

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	sessions *session.Service
	exams    *exams.Service
	issuer   *auth.Issuer
	health   pinger
	metrics  http.Handler
	logger   *slog.Logger
}

// NewServer wires the HTTP surface. health and gatherer may be nil.
func NewServer(sessions *session.Service, examService *exams.Service, issuer *auth.Issuer, health pinger, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	metricsHandler := promhttp.Handler()
	if gatherer != nil {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return &Server{
		sessions: sessions,
		exams:    examService,
		issuer:   issuer,
		health:   health,
		metrics:  metricsHandler,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register-admin", s.handleRegisterAdmin)
		r.Post("/login-admin", s.handleLoginAdmin)
		r.Post("/verify-code-admin", s.handleVerifyCodeAdmin)
		r.Post("/login-teacher", s.handleLoginTeacher)
		r.Post("/login-student", s.handleLoginStudent)
		r.With(s.authMiddleware).Get("/me", s.handleGetMe)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireRole(model.RoleAdministrator))
		r.Post("/teachers", s.handleCreateTeacher)
		r.Get("/teachers", s.handleListTeachers)
		r.Get("/teachers/count", s.handleCountTeachers)
		r.Get("/exams/count", s.handleCountInstitutionExams)
		r.Get("/exams/active", s.handleListInstitutionExams)
	})

	r.Route("/teacher", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireRole(model.RoleTeacher))
		r.Post("/exams", s.handleCreateExam)
		r.Get("/exams", s.handleListExams)
		r.Put("/exams/{examId}", s.handleUpdateExam)
	})

	r.Route("/student", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireRole(model.RoleStudent))
		r.Get("/exams/{examId}", s.handleGetExam)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := s.issuer.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil || claims.Role != string(role) {
				writeError(w, http.StatusForbidden, operations.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// callerIDs returns the subject and institution carried by the token.
func callerIDs(r *http.Request) (subject, institution model.ID, ok bool) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		return model.ID{}, model.ID{}, false
	}
	subject, err := model.ParseID(claims.UserID)
	if err != nil {
		return model.ID{}, model.ID{}, false
	}
	if claims.InstitutionID != "" {
		institution, err = model.ParseID(claims.InstitutionID)
		if err != nil {
			return model.ID{}, model.ID{}, false
		}
	}
	return subject, institution, true
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeOperationError renders an operation failure. Internal causes are
// never sent to the client.
func writeOperationError(w http.ResponseWriter, err error) {
	opErr := operations.As(err)
	writeError(w, statusFor(opErr.Kind), opErr.Code)
}

func statusFor(kind operations.Kind) int {
	switch kind {
	case operations.KindValidation:
		return http.StatusBadRequest
	case operations.KindNotFound:
		return http.StatusNotFound
	case operations.KindConflict:
		return http.StatusConflict
	case operations.KindInvalidCode:
		return http.StatusUnauthorized
	case operations.KindAttemptsExceeded, operations.KindForbidden:
		return http.StatusForbidden
	case operations.KindExpired:
		return http.StatusGone
	case operations.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
