package api

import (
	"net/http"

	service "github.com/okian/benchmarks/internal/app"
)

// handleSubmitEntry handles POST /entries.
func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_entry"
	var in service.EntryInput
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, op, err)
		return
	}
	e, err := s.deps.SubmitEntry(r.Context(), in)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

type bulkRequest struct {
	Entries []service.EntryInput `json:"entries"`
}

type bulkFailure struct {
	Index int           `json:"index"`
	Error errorResponse `json:"error"`
}

type bulkResponse struct {
	Created int           `json:"created"`
	Entries any           `json:"entries"`
	Failed  []bulkFailure `json:"failed"`
}

// handleSubmitEntries handles POST /entries/bulk. Accepted entries are
// stored even when others fail; every failure is reported by index.
func (s *Server) handleSubmitEntries(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_entries"
	var req bulkRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	res := s.deps.SubmitEntries(r.Context(), req.Entries)
	resp := bulkResponse{Created: len(res.Created), Entries: res.Created, Failed: make([]bulkFailure, 0, len(res.Failed))}
	for _, f := range res.Failed {
		_, code := classify(f.Err)
		resp.Failed = append(resp.Failed, bulkFailure{Index: f.Index, Error: errorResponse{Code: code, Message: f.Error}})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetEntry handles GET /entries/{id}.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.GetEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "api.get_entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleUpdateEntry handles PUT /entries/{id}.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_entry"
	var in service.EntryInput
	if err := decode(w, r, &in); err != nil {
		s.fail(w, r, op, err)
		return
	}
	e, err := s.deps.UpdateEntry(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleNormalizeEntry handles POST /entries/{id}/normalize.
func (s *Server) handleNormalizeEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.deps.NormalizeEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "api.normalize_entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
