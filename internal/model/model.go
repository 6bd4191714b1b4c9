package model

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
)

// Model is a loaded, immutable prediction pipeline. It is safe for
// concurrent use.
type Model struct {
	artifact Artifact
	features []feature
	width    int
}

// feature is a compiled FeatureSpec with its slot range in the encoded vector.
type feature struct {
	spec       FeatureSpec
	offset     int
	scale      float64
	categories map[string]int
}

func (f feature) width() int {
	if f.spec.Kind == KindCategorical {
		return len(f.spec.Categories)
	}
	return 1
}

// New validates an artifact and compiles it into a Model.
func New(a Artifact) (*Model, error) {
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelLoad, err)
	}

	m := &Model{artifact: a, features: make([]feature, len(a.Features))}
	for i, spec := range a.Features {
		f := feature{spec: spec, offset: m.width, scale: spec.Scale}
		if f.scale == 0 {
			f.scale = 1
		}
		if spec.Kind == KindCategorical {
			f.categories = make(map[string]int, len(spec.Categories))
			for j, c := range spec.Categories {
				f.categories[c] = j
			}
		}
		m.features[i] = f
		m.width += f.width()
	}
	return m, nil
}

// Info describes a loaded model.
type Info struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Target  string   `json:"target"`
	Classes []string `json:"classes"`
	Columns []string `json:"columns"`
}

// Info returns the model's metadata.
func (m *Model) Info() Info {
	return Info{
		Name:    m.artifact.Name,
		Version: m.artifact.Version,
		Target:  m.artifact.Target,
		Classes: slices.Clone(m.artifact.Classes),
		Columns: m.Columns(),
	}
}

// Features returns a copy of the artifact's feature specifications.
func (m *Model) Features() []FeatureSpec {
	out := make([]FeatureSpec, len(m.artifact.Features))
	for i, f := range m.artifact.Features {
		f.Categories = slices.Clone(f.Categories)
		out[i] = f
	}
	return out
}

// Target names the predicted column.
func (m *Model) Target() string { return m.artifact.Target }

// Columns returns the input columns the model expects, in artifact order.
func (m *Model) Columns() []string {
	cols := make([]string, len(m.features))
	for i, f := range m.features {
		cols[i] = f.spec.Name
	}
	return cols
}

// PredictProba returns the probability of each class for row.
// Errors wrap domain.ErrPrediction.
func (m *Model) PredictProba(row domain.FeatureRow) ([]domain.ClassProbability, error) {
	sc, err := m.score(row)
	if err != nil {
		return nil, err
	}
	return sc.probs, nil
}

// PredictExplain scores row and explains the predicted class from the same
// encoded input.
func (m *Model) PredictExplain(row domain.FeatureRow) ([]domain.ClassProbability, []domain.Explanation, error) {
	sc, err := m.score(row)
	if err != nil {
		return nil, nil, err
	}
	return sc.probs, m.explain(row, sc), nil
}

// Explain returns each feature's additive contribution to the logit of the
// predicted class, largest magnitude first.
func (m *Model) Explain(row domain.FeatureRow) ([]domain.Explanation, error) {
	_, exp, err := m.PredictExplain(row)
	return exp, err
}

// scored is one encoded row and its class probabilities.
type scored struct {
	x     []float64
	probs []domain.ClassProbability
}

func (m *Model) score(row domain.FeatureRow) (scored, error) {
	x, err := m.encode(row)
	if err != nil {
		return scored{}, err
	}
	return scored{x: x, probs: m.probabilities(m.logits(x))}, nil
}

func (m *Model) explain(row domain.FeatureRow, sc scored) []domain.Explanation {
	best := 0
	for i, p := range sc.probs {
		if p.Probability > sc.probs[best].Probability {
			best = i
		}
	}

	coef, sign := m.classCoefficients(best)
	out := make([]domain.Explanation, len(m.features))
	for i, f := range m.features {
		var contrib float64
		for j := f.offset; j < f.offset+f.width(); j++ {
			contrib += coef[j] * sc.x[j]
		}
		v, _ := row.Get(f.spec.Name)
		out[i] = domain.Explanation{
			Feature:    f.spec.Name,
			Value:      v.String(),
			Importance: sign * contrib,
		}
	}

	slices.SortStableFunc(out, func(a, b domain.Explanation) int {
		return cmp.Compare(math.Abs(b.Importance), math.Abs(a.Importance))
	})
	return out
}

// classCoefficients returns the coefficient row driving class idx and the
// sign to apply. Single-row binary models score the second class, so the
// first class uses the negated row.
func (m *Model) classCoefficients(idx int) ([]float64, float64) {
	if len(m.artifact.Coefficients) == 1 {
		if idx == 0 {
			return m.artifact.Coefficients[0], -1
		}
		return m.artifact.Coefficients[0], 1
	}
	return m.artifact.Coefficients[idx], 1
}

// encode checks row against the expected schema and builds the model input.
func (m *Model) encode(row domain.FeatureRow) ([]float64, error) {
	if err := m.checkColumns(row); err != nil {
		return nil, err
	}

	x := make([]float64, m.width)
	for _, f := range m.features {
		v, _ := row.Get(f.spec.Name)
		switch f.spec.Kind {
		case KindNumeric:
			n, ok := v.AsNumber()
			if !ok {
				return nil, fmt.Errorf("%w: column %q: expected number, got %s", domain.ErrPrediction, f.spec.Name, v.Kind())
			}
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, fmt.Errorf("%w: column %q: non-finite value", domain.ErrPrediction, f.spec.Name)
			}
			x[f.offset] = (n - f.spec.Mean) / f.scale
		case KindCategorical:
			s, ok := v.AsText()
			if !ok {
				return nil, fmt.Errorf("%w: column %q: expected text, got %s", domain.ErrPrediction, f.spec.Name, v.Kind())
			}
			j, known := f.categories[s]
			if !known {
				if f.spec.HandleUnknown == UnknownError {
					return nil, fmt.Errorf("%w: column %q: unknown category %q", domain.ErrPrediction, f.spec.Name, s)
				}
				continue
			}
			x[f.offset+j] = 1
		}
	}
	return x, nil
}

func (m *Model) checkColumns(row domain.FeatureRow) error {
	expected := make(map[string]bool, len(m.features))
	for _, f := range m.features {
		expected[f.spec.Name] = true
	}

	var missing, extra []string
	present := make(map[string]bool, row.Len())
	for _, name := range row.Names() {
		present[name] = true
		if !expected[name] {
			extra = append(extra, name)
		}
	}
	for _, f := range m.features {
		if !present[f.spec.Name] {
			missing = append(missing, f.spec.Name)
		}
	}

	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing columns "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected columns "+strings.Join(extra, ", "))
	}
	return fmt.Errorf("%w: schema mismatch: %s", domain.ErrPrediction, strings.Join(parts, "; "))
}

func (m *Model) logits(x []float64) []float64 {
	z := make([]float64, len(m.artifact.Coefficients))
	for k, coef := range m.artifact.Coefficients {
		z[k] = m.artifact.Intercepts[k]
		for j, c := range coef {
			z[k] += c * x[j]
		}
	}
	return z
}

func (m *Model) probabilities(z []float64) []domain.ClassProbability {
	var p []float64
	if len(z) == 1 {
		p1 := sigmoid(z[0])
		p = []float64{1 - p1, p1}
	} else {
		p = softmax(z)
	}

	out := make([]domain.ClassProbability, len(p))
	for i := range p {
		out[i] = domain.ClassProbability{Class: m.artifact.Classes[i], Probability: p[i]}
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softmax(z []float64) []float64 {
	maxZ := slices.Max(z)
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
