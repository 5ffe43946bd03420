package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
)

// CreateAssessment validates and stores a template. A missing id is minted;
// a missing direction defaults to higher_is_better.
func (s *Service) CreateAssessment(ctx context.Context, a model.Assessment) (model.Assessment, error) {
	if err := normalizeAssessment(&a); err != nil {
		return model.Assessment{}, err
	}
	if a.ID == "" {
		a.ID = s.newID()
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now

	if err := s.store.SaveAssessment(ctx, a); err != nil {
		return model.Assessment{}, fmt.Errorf("save assessment: %w", err)
	}
	s.logger.Info(ctx, "assessment created",
		logger.String("assessment_id", a.ID),
		logger.Int("parameters", len(a.Parameters)),
	)
	return a, nil
}

// GetAssessment returns the template with id.
func (s *Service) GetAssessment(ctx context.Context, id string) (model.Assessment, error) {
	return s.store.GetAssessment(ctx, id)
}

func normalizeAssessment(a *model.Assessment) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return invalid("assessment name is required")
	}
	if len(a.Parameters) == 0 {
		return invalid("assessment needs at least one parameter")
	}
	seen := make(map[string]bool, len(a.Parameters))
	for i := range a.Parameters {
		p := &a.Parameters[i]
		if p.ID == "" {
			return invalid("parameter %d has no id", i)
		}
		if seen[p.ID] {
			return invalid("duplicate parameter id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Type == "" {
			return invalid("parameter %q has no type", p.ID)
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		switch p.Direction {
		case "":
			p.Direction = model.HigherIsBetter
		case model.HigherIsBetter, model.LowerIsBetter, model.Nominal:
		default:
			return invalid("parameter %q has unknown direction %q", p.ID, p.Direction)
		}
		for j, b := range p.Bands {
			if b.Name == "" {
				return invalid("parameter %q band %d has no name", p.ID, j)
			}
			if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
				return invalid("parameter %q band %q has min above max", p.ID, b.Name)
			}
		}
	}
	return nil
}

// CreateCohort stores a cohort. A missing id is minted.
func (s *Service) CreateCohort(ctx context.Context, c model.Cohort) (model.Cohort, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return model.Cohort{}, invalid("cohort name is required")
	}
	if c.ID == "" {
		c.ID = s.newID()
	}
	c.CreatedAt = s.now()

	if err := s.store.SaveCohort(ctx, c); err != nil {
		return model.Cohort{}, fmt.Errorf("save cohort: %w", err)
	}
	s.logger.Info(ctx, "cohort created", logger.String("cohort_id", c.ID))
	return c, nil
}

// GetCohort returns the cohort with id.
func (s *Service) GetCohort(ctx context.Context, id string) (model.Cohort, error) {
	return s.store.GetCohort(ctx, id)
}
