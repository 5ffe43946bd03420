package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/okian/benchmarks/internal/domain/benchmark"
	"github.com/okian/benchmarks/internal/domain/model"
)

type calculateRequest struct {
	AssessmentID string `json:"assessment_id"`
	AgeGroup     string `json:"age_group"`
	Gender       string `json:"gender"`
}

// handleCalculate handles POST /cohorts/{id}/benchmarks. The body is
// optional; without it every assessment of the cohort is recalculated.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	const op = "api.calculate_benchmarks"
	var body calculateRequest
	if err := decode(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, r, op, err)
		return
	}
	res, err := s.deps.CalculateBenchmarks(r.Context(), benchmark.Request{
		CohortID:     r.PathValue("id"),
		AssessmentID: body.AssessmentID,
		AgeGroup:     body.AgeGroup,
		Gender:       body.Gender,
	})
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type benchmarksResponse struct {
	Count      int               `json:"count"`
	Benchmarks []model.Benchmark `json:"benchmarks"`
}

// handleListBenchmarks handles GET /benchmarks.
func (s *Server) handleListBenchmarks(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_benchmarks"
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	list, err := s.deps.GetBenchmarks(r.Context(), f)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if list == nil {
		list = []model.Benchmark{}
	}
	writeJSON(w, http.StatusOK, benchmarksResponse{Count: len(list), Benchmarks: list})
}

// handleDeleteBenchmarks handles DELETE /benchmarks.
func (s *Server) handleDeleteBenchmarks(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_benchmarks"
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	f.Limit = 0
	n, err := s.deps.DeleteBenchmarks(r.Context(), f)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// parseFilter reads a benchmark filter from the query string. An absent
// age_group or gender matches any stratum; present but empty selects the
// whole-cohort record.
func parseFilter(q url.Values) (model.BenchmarkFilter, error) {
	f := model.BenchmarkFilter{
		CohortID:     q.Get("cohort_id"),
		AssessmentID: q.Get("assessment_id"),
		ParameterID:  q.Get("parameter_id"),
		AgeGroup:     stratumParam(q, "age_group"),
		Gender:       stratumParam(q, "gender"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("%w: invalid limit %q", ErrBadRequest, raw)
		}
		f.Limit = n
	}
	return f, nil
}

func stratumParam(q url.Values, name string) model.StratumFilter {
	if !q.Has(name) {
		return model.StratumFilter{}
	}
	v := q.Get(name)
	if v == "" {
		return model.StratumFilter{Set: true}
	}
	return model.StratumFilter{Set: true, Value: &v}
}
