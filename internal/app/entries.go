package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
	"github.com/okian/benchmarks/pkg/metrics"
)

// ObservationInput is one submitted parameter value.
type ObservationInput struct {
	ParameterID string      `json:"parameter_id"`
	Value       model.Value `json:"value"`
	Note        string      `json:"note,omitempty"`
}

// EntryInput is an athlete's submission before coercion.
type EntryInput struct {
	CohortID     string             `json:"cohort_id"`
	BatchID      string             `json:"batch_id,omitempty"`
	AssessmentID string             `json:"assessment_id"`
	AthleteID    string             `json:"athlete_id"`
	Attempt      int                `json:"attempt,omitempty"`
	Age          *int               `json:"age,omitempty"`
	AgeGroup     string             `json:"age_group,omitempty"`
	Gender       string             `json:"gender,omitempty"`
	Observations []ObservationInput `json:"observations"`
}

// SubmitEntry coerces and stores a new entry. Any observation that cannot
// be coerced rejects the whole entry with *EntryError.
func (s *Service) SubmitEntry(ctx context.Context, in EntryInput) (model.Entry, error) {
	e, err := s.submit(ctx, in)
	recordSubmission(err)
	return e, err
}

func (s *Service) submit(ctx context.Context, in EntryInput) (model.Entry, error) {
	if err := s.checkCapacity(); err != nil {
		return model.Entry{}, err
	}
	e, err := s.buildEntry(ctx, in)
	if err != nil {
		return model.Entry{}, err
	}
	e.ID = s.newID()
	now := s.now()
	e.CreatedAt, e.UpdatedAt = now, now

	if err := s.store.SaveEntry(ctx, e); err != nil {
		return model.Entry{}, fmt.Errorf("save entry: %w", err)
	}
	s.logger.Debug(ctx, "entry submitted",
		logger.String("entry_id", e.ID),
		logger.String("cohort_id", e.CohortID),
		logger.String("assessment_id", e.AssessmentID),
	)
	s.scheduleRecalc(ctx, &e)
	return e, nil
}

// UpdateEntry replaces an entry's submitted fields, re-running coercion.
// Previously stored normalization is dropped; cohort and assessment are fixed.
func (s *Service) UpdateEntry(ctx context.Context, id string, in EntryInput) (model.Entry, error) {
	old, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return model.Entry{}, err
	}
	if in.CohortID == "" {
		in.CohortID = old.CohortID
	}
	if in.AssessmentID == "" {
		in.AssessmentID = old.AssessmentID
	}
	if in.CohortID != old.CohortID || in.AssessmentID != old.AssessmentID {
		return model.Entry{}, invalid("an entry cannot move to another cohort or assessment")
	}
	if err := s.checkCapacity(); err != nil {
		return model.Entry{}, err
	}

	e, err := s.buildEntry(ctx, in)
	if err != nil {
		recordSubmission(err)
		return model.Entry{}, err
	}
	e.ID = old.ID
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = s.now()

	if err := s.store.SaveEntry(ctx, e); err != nil {
		return model.Entry{}, fmt.Errorf("save entry: %w", err)
	}
	metrics.RecordEntrySubmitted("updated")

	s.scheduleRecalc(ctx, &e)
	if old.AgeGroup != e.AgeGroup || old.Gender != e.Gender {
		s.scheduleRecalc(ctx, &old)
	}
	return e, nil
}

// GetEntry returns the entry with id.
func (s *Service) GetEntry(ctx context.Context, id string) (model.Entry, error) {
	return s.store.GetEntry(ctx, id)
}

// BulkFailure reports one rejected entry of a bulk submission.
type BulkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BulkResult reports a bulk submission. Accepted entries are stored even
// when others fail.
type BulkResult struct {
	Created []model.Entry `json:"created"`
	Failed  []BulkFailure `json:"failed"`
}

// SubmitEntries submits each input independently.
func (s *Service) SubmitEntries(ctx context.Context, in []EntryInput) BulkResult {
	res := BulkResult{Created: []model.Entry{}, Failed: []BulkFailure{}}
	for i := range in {
		e, err := s.SubmitEntry(ctx, in[i])
		if err != nil {
			res.Failed = append(res.Failed, BulkFailure{Index: i, Error: err.Error(), Err: err})
			continue
		}
		res.Created = append(res.Created, e)
	}
	s.logger.Info(ctx, "bulk submission processed",
		logger.Int("created", len(res.Created)),
		logger.Int("failed", len(res.Failed)),
	)
	return res
}

// buildEntry validates references and coerces every observation.
func (s *Service) buildEntry(ctx context.Context, in EntryInput) (model.Entry, error) {
	in.AthleteID = strings.TrimSpace(in.AthleteID)
	switch {
	case in.CohortID == "":
		return model.Entry{}, invalid("cohort_id is required")
	case in.AssessmentID == "":
		return model.Entry{}, invalid("assessment_id is required")
	case in.AthleteID == "":
		return model.Entry{}, invalid("athlete_id is required")
	case in.Attempt < 0:
		return model.Entry{}, invalid("attempt must not be negative")
	case in.Age != nil && *in.Age < 0:
		return model.Entry{}, invalid("age must not be negative")
	}

	if _, err := s.store.GetCohort(ctx, in.CohortID); err != nil {
		return model.Entry{}, fmt.Errorf("cohort %s: %w", in.CohortID, err)
	}
	a, err := s.store.GetAssessment(ctx, in.AssessmentID)
	if err != nil {
		return model.Entry{}, fmt.Errorf("assessment %s: %w", in.AssessmentID, err)
	}

	e := model.Entry{
		CohortID:     in.CohortID,
		BatchID:      in.BatchID,
		AssessmentID: in.AssessmentID,
		AthleteID:    in.AthleteID,
		Attempt:      in.Attempt,
		Age:          in.Age,
		AgeGroup:     strings.TrimSpace(in.AgeGroup),
		Gender:       strings.TrimSpace(in.Gender),
		Observations: make([]model.Observation, 0, len(in.Observations)),
	}
	if e.Attempt == 0 {
		e.Attempt = 1
	}
	if e.AgeGroup == "" && e.Age != nil {
		e.AgeGroup, _ = model.AgeGroupFor(*e.Age, s.ageGroups)
	}

	var rejected []*ObservationError
	seen := make(map[string]bool, len(in.Observations))
	for i, oi := range in.Observations {
		if seen[oi.ParameterID] {
			rejected = append(rejected, &ObservationError{Index: i, ParameterID: oi.ParameterID, Err: invalid("parameter submitted twice")})
			continue
		}
		seen[oi.ParameterID] = true

		p, ok := a.Parameter(oi.ParameterID)
		if !ok {
			rejected = append(rejected, &ObservationError{Index: i, ParameterID: oi.ParameterID, Err: ErrUnknownParameter})
			continue
		}
		o := model.Observation{ParameterID: p.ID, Raw: oi.Value, Note: oi.Note}
		if err := s.coercer.Observation(ctx, p, &o); err != nil {
			rejected = append(rejected, &ObservationError{Index: i, ParameterID: p.ID, Err: err})
			continue
		}
		e.Observations = append(e.Observations, o)
	}
	if len(rejected) > 0 {
		return model.Entry{}, &EntryError{Observations: rejected}
	}
	return e, nil
}

func recordSubmission(err error) {
	var entryErr *EntryError
	switch {
	case err == nil:
		metrics.RecordEntrySubmitted("accepted")
	case errors.As(err, &entryErr):
		metrics.RecordEntrySubmitted("rejected")
	case errors.Is(err, ErrBusy):
		metrics.RecordEntrySubmitted("throttled")
	default:
		metrics.RecordEntrySubmitted("error")
	}
}
