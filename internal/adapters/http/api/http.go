// Package api serves the benchmarking operations over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/benchmarks/internal/adapters/repository"
	service "github.com/okian/benchmarks/internal/app"
	"github.com/okian/benchmarks/internal/domain/benchmark"
	"github.com/okian/benchmarks/internal/domain/coerce"
	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
)

const maxBodyBytes = 4 << 20

// Dependencies are the service operations the HTTP handlers call.
type Dependencies interface {
	CreateAssessment(ctx context.Context, a model.Assessment) (model.Assessment, error)
	GetAssessment(ctx context.Context, id string) (model.Assessment, error)
	CreateCohort(ctx context.Context, c model.Cohort) (model.Cohort, error)
	GetCohort(ctx context.Context, id string) (model.Cohort, error)

	SubmitEntry(ctx context.Context, in service.EntryInput) (model.Entry, error)
	SubmitEntries(ctx context.Context, in []service.EntryInput) service.BulkResult
	GetEntry(ctx context.Context, id string) (model.Entry, error)
	UpdateEntry(ctx context.Context, id string, in service.EntryInput) (model.Entry, error)
	NormalizeEntry(ctx context.Context, id string) (model.Entry, error)

	CalculateBenchmarks(ctx context.Context, req benchmark.Request) (benchmark.Result, error)
	GetBenchmarks(ctx context.Context, f model.BenchmarkFilter) ([]model.Benchmark, error)
	DeleteBenchmarks(ctx context.Context, f model.BenchmarkFilter) (int, error)

	StatsProvider
	Ping(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps   Dependencies
	logger logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Get()
	}
	return &Server{
		deps:   deps,
		logger: log.Named("api"),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	mux.Handle("GET /metrics", MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.handleStats, "stats"))

	mux.HandleFunc("POST /assessments", MetricsMiddleware(s.handleCreateAssessment, "assessments"))
	mux.HandleFunc("GET /assessments/{id}", MetricsMiddleware(s.handleGetAssessment, "assessment"))
	mux.HandleFunc("POST /cohorts", MetricsMiddleware(s.handleCreateCohort, "cohorts"))
	mux.HandleFunc("GET /cohorts/{id}", MetricsMiddleware(s.handleGetCohort, "cohort"))

	mux.HandleFunc("POST /entries", MetricsMiddleware(s.handleSubmitEntry, "entries"))
	mux.HandleFunc("POST /entries/bulk", MetricsMiddleware(s.handleSubmitEntries, "entries_bulk"))
	mux.HandleFunc("GET /entries/{id}", MetricsMiddleware(s.handleGetEntry, "entry"))
	mux.HandleFunc("PUT /entries/{id}", MetricsMiddleware(s.handleUpdateEntry, "entry"))
	mux.HandleFunc("POST /entries/{id}/normalize", MetricsMiddleware(s.handleNormalizeEntry, "normalize"))

	mux.HandleFunc("POST /cohorts/{id}/benchmarks", MetricsMiddleware(s.handleCalculate, "calculate"))
	mux.HandleFunc("GET /benchmarks", MetricsMiddleware(s.handleListBenchmarks, "benchmarks"))
	mux.HandleFunc("DELETE /benchmarks", MetricsMiddleware(s.handleDeleteBenchmarks, "benchmarks"))
}

type errorResponse struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Details []observationIssue `json:"details,omitempty"`
}

type observationIssue struct {
	Index       int    `json:"index"`
	ParameterID string `json:"parameter_id"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	noteErrorCode(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, coerce.ErrTypeMismatch):
		return http.StatusBadRequest, "type_mismatch"
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownParameter):
		return http.StatusBadRequest, "unknown_parameter"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, benchmark.ErrNoData):
		return http.StatusUnprocessableEntity, "no_data"
	case errors.Is(err, repository.ErrStale):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrBusy), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err with the status it maps to. Entry rejections carry one
// detail per rejected observation.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, status, code, WrapKind(op, ErrInternal, err))
		return
	}

	resp := errorResponse{Code: code, Message: Wrap(op, err).Error()}
	var entryErr *service.EntryError
	if errors.As(err, &entryErr) {
		for _, o := range entryErr.Observations {
			_, c := classify(o.Err)
			resp.Details = append(resp.Details, observationIssue{
				Index:       o.Index,
				ParameterID: o.ParameterID,
				Code:        c,
				Message:     o.Err.Error(),
			})
		}
	}
	noteErrorCode(w, code)
	writeJSON(w, status, resp)
}

// decode reads a JSON body into v, bounded to maxBodyBytes.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
