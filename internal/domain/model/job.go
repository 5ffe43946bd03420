package model

import "time"

// RecalcJob asks for the benchmarks of one cohort and assessment to be
// recalculated after an entry changed. AgeGroup and Gender are the changed
// entry's strata; empty means the entry carried none.
type RecalcJob struct {
	ID           string    `json:"id"`
	CohortID     string    `json:"cohort_id"`
	AssessmentID string    `json:"assessment_id"`
	AgeGroup     string    `json:"age_group,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// Key identifies the scope a job recalculates; pending jobs with equal keys
// are interchangeable.
func (j RecalcJob) Key() string {
	return j.CohortID + "|" + j.AssessmentID + "|" + j.AgeGroup + "|" + j.Gender
}
