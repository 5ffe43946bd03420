package api

import (
	"net/http"

	"github.com/okian/benchmarks/internal/domain/model"
)

// handleCreateAssessment handles POST /assessments.
func (s *Server) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_assessment"
	var a model.Assessment
	if err := decode(w, r, &a); err != nil {
		s.fail(w, r, op, err)
		return
	}
	created, err := s.deps.CreateAssessment(r.Context(), a)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetAssessment handles GET /assessments/{id}.
func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.GetAssessment(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "api.get_assessment", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleCreateCohort handles POST /cohorts.
func (s *Server) handleCreateCohort(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_cohort"
	var c model.Cohort
	if err := decode(w, r, &c); err != nil {
		s.fail(w, r, op, err)
		return
	}
	created, err := s.deps.CreateCohort(r.Context(), c)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetCohort handles GET /cohorts/{id}.
func (s *Server) handleGetCohort(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.GetCohort(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "api.get_cohort", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
