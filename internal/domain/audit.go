package domain

import "time"

// AuditEvent is the record of one completed prediction, as published to the
// audit trail. It carries the full feature row the model scored.
type AuditEvent struct {
	ID             string             `json:"id"`
	Target         string             `json:"target"`
	PredictedClass string             `json:"predicted_class"`
	Probabilities  []ClassProbability `json:"probabilities"`
	Imputed        Imputation         `json:"imputed"`
	Features       map[string]any     `json:"features"`
	PredictedAt    time.Time          `json:"predicted_at"`
}

// NewAuditEvent builds the audit record for p.
func NewAuditEvent(p Prediction) AuditEvent {
	return AuditEvent{
		ID:             p.ID,
		Target:         p.Target,
		PredictedClass: p.PredictedClass,
		Probabilities:  p.Probabilities,
		Imputed:        p.Imputed,
		Features:       p.Features.Map(),
		PredictedAt:    p.PredictedAt,
	}
}
