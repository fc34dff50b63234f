// Package server exposes company qualification over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/company-qualifier/internal/matching"
	"github.com/sells-group/company-qualifier/internal/model"
	"github.com/sells-group/company-qualifier/internal/qualify"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "company-evaluator"

// maxBodyBytes caps request bodies. A full batch of org numbers with
// criteria text fits comfortably.
const maxBodyBytes = 1 << 20

// Qualifier is the qualification backend served over HTTP.
type Qualifier interface {
	EvaluateSingle(ctx context.Context, orgNumber, criteria string) (*qualify.SingleResult, error)
	EvaluateBatch(ctx context.Context, req qualify.BatchRequest) (*qualify.BatchResponse, error)
	TestEvaluateBatch(ctx context.Context, req qualify.BatchRequest) (*qualify.BatchResponse, error)
	Interpret(ctx context.Context, criteria string) (*model.CriteriaInfo, error)
}

// Server holds the HTTP handlers.
type Server struct {
	q           Qualifier
	origins     []string
	credentials bool
	now         func() time.Time
}

// New creates a Server. An empty origins list allows every origin.
// Credentialed requests are allowed only when every origin is named
// explicitly.
func New(q Qualifier, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{q: q, origins: origins, credentials: !slices.Contains(origins, "*"), now: time.Now}
}

// Routes returns the router with all endpoints and middleware mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: s.credentials,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/evaluate-company", s.handleEvaluateCompany)
	r.Post("/evaluate-batch", s.handleBatch(s.q.EvaluateBatch))
	r.Post("/test-evaluate-batch", s.handleBatch(s.q.TestEvaluateBatch))
	r.Post("/criteria", s.handleCriteria)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Company Data API",
		"status":  "active",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   ServiceName,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

type evaluateCompanyRequest struct {
	OrgNumber string `json:"orgNumber"`
	Criteria  string `json:"criteria"`
}

func (s *Server) handleEvaluateCompany(w http.ResponseWriter, r *http.Request) {
	var req evaluateCompanyRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.q.EvaluateSingle(r.Context(), req.OrgNumber, req.Criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchFunc func(context.Context, qualify.BatchRequest) (*qualify.BatchResponse, error)

func (s *Server) handleBatch(run batchFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req qualify.BatchRequest
		if !decode(w, r, &req) {
			return
		}
		resp, err := run(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type criteriaRequest struct {
	Criteria string `json:"criteria"`
}

func (s *Server) handleCriteria(w http.ResponseWriter, r *http.Request) {
	var req criteriaRequest
	if !decode(w, r, &req) {
		return
	}
	info, err := s.q.Interpret(r.Context(), req.Criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps qualification errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, qualify.ErrValidation), errors.Is(err, matching.ErrEmptyCriteria):
		return http.StatusBadRequest
	case errors.Is(err, qualify.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, qualify.ErrTimeout), errors.Is(err, qualify.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Int("status", code), zap.Error(err))
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
