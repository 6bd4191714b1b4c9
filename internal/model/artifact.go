package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Feature kinds understood by the preprocessing stage.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
)

// Unknown-category policies for categorical features.
const (
	UnknownIgnore = "ignore"
	UnknownError  = "error"
)

// Artifact is the on-disk description of a fitted pipeline: per-feature
// preprocessing followed by a logistic classifier.
//
// Numeric features are standardised as (x - mean) / scale. Categorical
// features are one-hot encoded over categories. The encoded vector is the
// concatenation of all features in declaration order, and each coefficient
// row must match its width. A binary model may carry a single coefficient
// row (the positive, second class); otherwise there is one row per class.
type Artifact struct {
	Name         string        `json:"name" yaml:"name"`
	Version      string        `json:"version" yaml:"version"`
	Target       string        `json:"target" yaml:"target"`
	Classes      []string      `json:"classes" yaml:"classes"`
	Features     []FeatureSpec `json:"features" yaml:"features"`
	Coefficients [][]float64   `json:"coefficients" yaml:"coefficients"`
	Intercepts   []float64     `json:"intercepts" yaml:"intercepts"`
}

// FeatureSpec describes the preprocessing of one input column.
type FeatureSpec struct {
	Name          string   `json:"name" yaml:"name"`
	Kind          string   `json:"kind" yaml:"kind"`
	Mean          float64  `json:"mean,omitempty" yaml:"mean,omitempty"`
	Scale         float64  `json:"scale,omitempty" yaml:"scale,omitempty"`
	Categories    []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	HandleUnknown string   `json:"handle_unknown,omitempty" yaml:"handle_unknown,omitempty"`
}

// Load reads and validates a model artifact. The format follows the file
// extension: .json, .yaml or .yml. Errors wrap domain.ErrModelLoad.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelLoad, err)
	}

	m, err := Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes an artifact in the given format ("json", "yaml" or "yml").
func Parse(data []byte, format string) (*Model, error) {
	var a Artifact
	switch format {
	case "json":
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: decode json: %w", domain.ErrModelLoad, err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %w", domain.ErrModelLoad, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported artifact format %q", domain.ErrModelLoad, format)
	}
	return New(a)
}

func (a Artifact) validate() error {
	if a.Target == "" {
		return fmt.Errorf("target is required")
	}
	if len(a.Classes) < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", len(a.Classes))
	}
	if len(a.Features) == 0 {
		return fmt.Errorf("no features")
	}

	seen := make(map[string]bool, len(a.Features))
	width := 0
	for i, f := range a.Features {
		if f.Name == "" {
			return fmt.Errorf("feature %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate feature %q", f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case KindNumeric:
			if f.Scale < 0 {
				return fmt.Errorf("feature %q: negative scale", f.Name)
			}
			width++
		case KindCategorical:
			if len(f.Categories) == 0 {
				return fmt.Errorf("feature %q: no categories", f.Name)
			}
			cats := make(map[string]bool, len(f.Categories))
			for _, c := range f.Categories {
				if cats[c] {
					return fmt.Errorf("feature %q: duplicate category %q", f.Name, c)
				}
				cats[c] = true
			}
			switch f.HandleUnknown {
			case "", UnknownIgnore, UnknownError:
			default:
				return fmt.Errorf("feature %q: unknown handle_unknown %q", f.Name, f.HandleUnknown)
			}
			width += len(f.Categories)
		default:
			return fmt.Errorf("feature %q: unknown kind %q", f.Name, f.Kind)
		}
	}

	rows := len(a.Classes)
	if rows == 2 && len(a.Coefficients) == 1 {
		rows = 1
	}
	if len(a.Coefficients) != rows {
		return fmt.Errorf("expected %d coefficient rows for %d classes, got %d", rows, len(a.Classes), len(a.Coefficients))
	}
	for i, row := range a.Coefficients {
		if len(row) != width {
			return fmt.Errorf("coefficient row %d has %d values, encoded width is %d", i, len(row), width)
		}
	}
	if len(a.Intercepts) != rows {
		return fmt.Errorf("expected %d intercepts, got %d", rows, len(a.Intercepts))
	}
	return nil
}
