package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestNewPrediction(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	probs := []ClassProbability{{Class: "No", Probability: 0.3}, {Class: "Yes", Probability: 0.7}}
	row := NewFeatureRow(Column{Name: ColMonth, Value: NumberValue(6)})
	imputed := Imputation{ColResponseTime: 11.5}

	p := NewPrediction("pred-1", "Fire_Occurred", probs, row, imputed)

	assert.Equal(t, "pred-1", p.ID)
	assert.Equal(t, "Fire_Occurred", p.Target)
	assert.Equal(t, "Yes", p.PredictedClass)
	assert.Equal(t, fixed, p.PredictedAt)
	assert.Equal(t, imputed, p.Imputed)
	assert.Equal(t, row, p.Features)
	assert.Nil(t, p.Explanations)
}

func TestMostLikely(t *testing.T) {
	assert.Equal(t, "", MostLikely(nil))
	assert.Equal(t, "b", MostLikely([]ClassProbability{{"a", 0.2}, {"b", 0.5}, {"c", 0.3}}))
	assert.Equal(t, "a", MostLikely([]ClassProbability{{"a", 0.5}, {"b", 0.5}}), "ties go to the first class")
}

func TestProbabilityText(t *testing.T) {
	assert.Equal(t, "[0.81 0.19]", ProbabilityText([]ClassProbability{{"No", 0.81}, {"Yes", 0.19}}))
	assert.Equal(t, "[]", ProbabilityText(nil))
	assert.Equal(t, "[0.33333333 0.66666667]", ProbabilityText([]ClassProbability{{"No", 1.0 / 3}, {"Yes", 2.0 / 3}}))
}

func TestStageTransitions(t *testing.T) {
	assert.Equal(t, StageValidated, StageReceived.Next(true))
	assert.Equal(t, StageRejected, StageReceived.Next(false))
	assert.Equal(t, StageCompleted, StageValidated.Next(true))
	assert.Equal(t, StageFailed, StageValidated.Next(false))
	assert.Equal(t, StageRejected, StageRejected.Next(true))

	assert.False(t, StageReceived.Terminal())
	assert.False(t, StageValidated.Terminal())
	assert.True(t, StageCompleted.Terminal())
	assert.True(t, StageRejected.Terminal())
	assert.True(t, StageFailed.Terminal())
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: "month", Expected: "integer", Received: "missing"},
		{Field: "humidity", Expected: "number", Received: `"wet"`},
	}}
	assert.Equal(t, `validation failed: month (expected integer, got missing); humidity (expected number, got "wet")`, err.Error())
	assert.True(t, err.Has("humidity"))
	assert.False(t, err.Has("building_type"))
}
