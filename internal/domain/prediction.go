package domain

import (
	"strconv"
	"strings"
	"time"
)

// Predictor turns a feature row into class probabilities.
type Predictor interface {
	// Target names the predicted dataset column.
	Target() string

	// PredictProba returns one probability per class, in the model's class order.
	PredictProba(row FeatureRow) ([]ClassProbability, error)

	// PredictExplain returns the class probabilities together with each
	// feature's local contribution to the predicted class.
	PredictExplain(row FeatureRow) ([]ClassProbability, []Explanation, error)
}

// ClassProbability is the estimated probability of one target class.
type ClassProbability struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// Explanation is one feature's local importance for a single prediction.
type Explanation struct {
	Feature    string  `json:"feature"`
	Value      string  `json:"value"`
	Importance float64 `json:"importance"`
}

// Prediction is the outcome of a completed request.
type Prediction struct {
	ID             string             `json:"id"`
	Target         string             `json:"target"`
	Probabilities  []ClassProbability `json:"probabilities"`
	PredictedClass string             `json:"predicted_class"`
	Imputed        Imputation         `json:"imputed"`
	Explanations   []Explanation      `json:"explanations,omitempty"`
	PredictedAt    time.Time          `json:"predicted_at"`

	Features FeatureRow `json:"-"`
}

// NewPrediction assembles a prediction stamped with the package clock.
func NewPrediction(id, target string, probs []ClassProbability, row FeatureRow, imputed Imputation) Prediction {
	return Prediction{
		ID:             id,
		Target:         target,
		Probabilities:  probs,
		PredictedClass: MostLikely(probs),
		Imputed:        imputed,
		PredictedAt:    clock.Now().UTC(),
		Features:       row,
	}
}

// MostLikely returns the class with the highest probability. Ties go to the
// earlier class.
func MostLikely(probs []ClassProbability) string {
	best := -1
	for i, p := range probs {
		if best < 0 || p.Probability > probs[best].Probability {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return probs[best].Class
}

// ProbabilityText renders the probability vector in array notation,
// e.g. "[0.81 0.19]".
func ProbabilityText(probs []ClassProbability) string {
	parts := make([]string, len(probs))
	for i, p := range probs {
		parts[i] = strconv.FormatFloat(p.Probability, 'g', 8, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
