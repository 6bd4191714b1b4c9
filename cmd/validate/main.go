// Command validate checks that a model artifact and the reference dataset
// agree before they are deployed together. It verifies the artifact's column
// layout, the dataset header, category coverage, reference statistics, and
// that every dataset row can be scored.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -model data/hanoi_fire_model.json \
//	  -dataset data/hanoi_fire.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/model"
	"github.com/couchcryptid/fire-risk-service/internal/reference"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	modelPath := flag.String("model", "data/hanoi_fire_model.json", "path to the model artifact")
	datasetPath := flag.String("dataset", "data/hanoi_fire.csv", "path to the reference dataset CSV")
	flag.Parse()

	if code := run(os.Stdout, *modelPath, *datasetPath); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, modelPath, datasetPath string) int {
	fmt.Fprintln(out, "=== Fire Risk Artifact Validation ===")
	fmt.Fprintln(out)

	m, err := model.Load(modelPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load model: %v\n", err)
		return 1
	}

	rows, header, err := loadCSV(datasetPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load dataset: %v\n", err)
		return 1
	}

	statsPhase, stats := validateReferenceStats(datasetPath)

	phases := []*phase{
		validateModelLayout(m),
		validateDatasetHeader(header, m.Target()),
		validateCategoryCoverage(m, rows),
		statsPhase,
	}
	scoring, correct := validateScoring(m, rows, stats)
	phases = append(phases, scoring)

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	info := m.Info()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Model: %s %s (%s, classes %s)\n", info.Name, info.Version, info.Target, strings.Join(info.Classes, "/"))
	fmt.Fprintf(out, "Dataset: %d rows; reference means %.3f / %.3f / %.3f\n", len(rows),
		stats.MeanTimeToExtinguishMin, stats.MeanResponseTimeMin, stats.MeanFireExtinguishers)
	if len(rows) > 0 {
		fmt.Fprintf(out, "Agreement with %s: %d/%d (%.1f%%)\n", info.Target, correct, len(rows), 100*float64(correct)/float64(len(rows)))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSV(path string) ([]csvRow, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) < 2 {
		return nil, nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	rows := make([]csvRow, 0, len(all)-1)
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = strings.TrimSpace(row[j])
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return rows, header, nil
}

func validateModelLayout(m *model.Model) *phase {
	p := &phase{name: "Model columns match feature row"}
	want := domain.FeatureColumns()
	got := m.Columns()
	if slices.Equal(want, got) {
		return p
	}
	for i := range max(len(want), len(got)) {
		var w, g string
		if i < len(want) {
			w = want[i]
		}
		if i < len(got) {
			g = got[i]
		}
		if w != g {
			p.errorf("position %d: feature row has %q, model expects %q", i, w, g)
		}
	}
	return p
}

func validateDatasetHeader(header []string, target string) *phase {
	p := &phase{name: "Dataset header"}
	for _, col := range append(domain.FeatureColumns(), target) {
		if !slices.Contains(header, col) {
			p.errorf("missing column %q", col)
		}
	}
	return p
}

func validateCategoryCoverage(m *model.Model, rows []csvRow) *phase {
	p := &phase{name: "Dataset categories known to model"}
	for _, f := range m.Features() {
		if f.Kind != model.KindCategorical {
			continue
		}
		unseen := map[string]int{}
		for _, r := range rows {
			v := r.fields[f.Name]
			if !slices.Contains(f.Categories, v) {
				unseen[v]++
			}
		}
		for v, n := range unseen {
			p.errorf("%s: %d rows with unknown category %q", f.Name, n, v)
		}
	}
	return p
}

func validateReferenceStats(path string) (*phase, domain.ReferenceStats) {
	p := &phase{name: "Reference statistics"}
	f, err := os.Open(path)
	if err != nil {
		p.errorf("open: %v", err)
		return p, domain.ReferenceStats{}
	}
	defer f.Close()

	stats, err := reference.ComputeStats(f)
	if err != nil {
		p.errorf("%v", err)
		return p, domain.ReferenceStats{}
	}
	for name, v := range map[string]float64{
		domain.ColTimeToExtinguish:          stats.MeanTimeToExtinguishMin,
		domain.ColResponseTime:              stats.MeanResponseTimeMin,
		domain.ColNumberOfFireExtinguishers: stats.MeanFireExtinguishers,
	} {
		if math.IsNaN(v) || v < 0 {
			p.errorf("%s: implausible mean %v", name, v)
		}
	}
	return p, stats
}

// validateScoring scores every dataset row, filling empty optional cells from
// stats the same way the service does, and counts rows whose predicted class
// matches the recorded target.
func validateScoring(m *model.Model, rows []csvRow, stats domain.ReferenceStats) (*phase, int) {
	p := &phase{name: "Dataset rows score"}
	means := map[string]float64{
		domain.ColTimeToExtinguish:          stats.MeanTimeToExtinguishMin,
		domain.ColResponseTime:              stats.MeanResponseTimeMin,
		domain.ColNumberOfFireExtinguishers: stats.MeanFireExtinguishers,
	}
	classes := m.Info().Classes

	correct := 0
	for _, r := range rows {
		row, err := featureRow(r, means)
		if err != nil {
			p.errorf("line %d: %v", r.lineNum, err)
			continue
		}
		probs, err := m.PredictProba(row)
		if err != nil {
			p.errorf("line %d: %v", r.lineNum, err)
			continue
		}

		var sum float64
		for _, cp := range probs {
			sum += cp.Probability
		}
		if math.Abs(sum-1) > 1e-9 {
			p.errorf("line %d: probabilities sum to %v", r.lineNum, sum)
		}

		predicted := domain.MostLikely(probs)
		if !slices.Contains(classes, predicted) {
			p.errorf("line %d: predicted unknown class %q", r.lineNum, predicted)
		}
		if predicted == r.fields[m.Target()] {
			correct++
		}
	}
	return p, correct
}

func featureRow(r csvRow, means map[string]float64) (domain.FeatureRow, error) {
	cols := make([]domain.Column, 0, len(domain.FeatureColumns()))
	for _, name := range domain.FeatureColumns() {
		raw := r.fields[name]
		kind, _ := domain.ColumnKind(name)
		if kind == domain.KindText {
			cols = append(cols, domain.Column{Name: name, Value: domain.TextValue(raw)})
			continue
		}

		if raw == "" {
			mean, ok := means[name]
			if !ok {
				return domain.FeatureRow{}, fmt.Errorf("column %q is empty", name)
			}
			cols = append(cols, domain.Column{Name: name, Value: domain.NumberValue(mean)})
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.FeatureRow{}, fmt.Errorf("column %q: %w", name, err)
		}
		cols = append(cols, domain.Column{Name: name, Value: domain.NumberValue(v)})
	}
	return domain.NewFeatureRow(cols...), nil
}
