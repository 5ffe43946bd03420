package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	service "github.com/okian/benchmarks/internal/app"
	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
)

// Parameter ids of the synthetic assessment.
const (
	paramJump   = "vertical_jump"
	paramSprint = "sprint_20m"
	paramFoot   = "dominant_foot"
	paramEffort = "effort"
)

// Ranges of the generated values.
const (
	randomFloatDivisor = 1_000_000
	minAge             = 10
	ageSpan            = 10 // 10..19
	jumpMin            = 20.0
	jumpSpan           = 45.0 // cm
	sprintMin          = 2.9
	sprintSpan         = 1.6 // seconds
	ratingSpan         = 10
	nullOneIn          = 25 // every n-th observation is left empty on average
)

var genders = []string{"f", "m"}

// getRandomFloat returns a random float64 in [0, 1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// Assessment is the template the generated entries are submitted against.
func Assessment() model.Assessment {
	low, high := 35.0, 50.0
	left, right := "L", "R"
	return model.Assessment{
		Name: "loadgen combine " + uuid.NewString()[:8],
		Parameters: []model.Parameter{
			{
				ID: paramJump, Name: "Vertical jump", Unit: "cm", Type: model.TypeNumeric,
				Bands: []model.Band{
					{Name: "Developing", Max: &low},
					{Name: "Competent", Min: &low, Max: &high},
					{Name: "Elite", Min: &high},
				},
			},
			{ID: paramSprint, Name: "20m sprint", Unit: "s", Type: model.TypeTime, Direction: model.LowerIsBetter},
			{
				ID: paramFoot, Name: "Dominant foot", Type: model.TypeChoice, Direction: model.Nominal,
				Bands: []model.Band{{Name: "Left", Match: &left}, {Name: "Right", Match: &right}},
			},
			{ID: paramEffort, Name: "Coach effort rating", Type: model.TypeRating},
		},
	}
}

// generateEntries builds n entries for one athlete each.
func generateEntries(ctx context.Context, n int, cohortID, assessmentID string, stats *Stats) []service.EntryInput {
	logger.Get().Info(ctx, "generating entries", logger.Int("entries", n))

	batch := uuid.NewString()
	entries := make([]service.EntryInput, n)
	for i := range entries {
		entries[i] = generateSingleEntry(cohortID, assessmentID, batch)
	}
	stats.EntriesGenerated = len(entries)
	return entries
}

func generateSingleEntry(cohortID, assessmentID, batch string) service.EntryInput {
	age := minAge + randomInt(ageSpan)
	foot := "R"
	if randomInt(4) == 0 {
		foot = "L"
	}
	return service.EntryInput{
		CohortID:     cohortID,
		BatchID:      batch,
		AssessmentID: assessmentID,
		AthleteID:    uuid.NewString(),
		Attempt:      1,
		Age:          &age,
		Gender:       genders[randomInt(len(genders))],
		Observations: []service.ObservationInput{
			{ParameterID: paramJump, Value: maybeNull(model.Number(jumpMin + getRandomFloat()*jumpSpan))},
			{ParameterID: paramSprint, Value: maybeNull(sprintValue())},
			{ParameterID: paramFoot, Value: model.Text(foot)},
			{ParameterID: paramEffort, Value: model.Number(float64(1 + randomInt(ratingSpan)))},
		},
	}
}

// sprintValue mixes plain seconds with clock notation.
func sprintValue() model.Value {
	secs := sprintMin + getRandomFloat()*sprintSpan
	if randomInt(2) == 0 {
		return model.Number(secs)
	}
	return model.Text(fmt.Sprintf("0:%05.2f", secs))
}

func maybeNull(v model.Value) model.Value {
	if randomInt(nullOneIn) == 0 {
		return model.Null()
	}
	return v
}
