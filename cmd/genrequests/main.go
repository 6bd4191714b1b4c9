// Command genrequests turns reference dataset rows into POST /predict request
// fixtures. Empty optional cells are left out of the request so the service
// exercises its reference-mean fallback. Every fixture is checked with the
// service's own request validator before it is written.
//
// Usage:
//
//	go run ./cmd/genrequests \
//	  -dataset data/hanoi_fire.csv \
//	  -out data/requests.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"gopkg.in/yaml.v3"
)

const targetColumn = "Fire_Occurred"

// fixture is one generated request plus the outcome recorded in the dataset.
type fixture struct {
	Line     int            `json:"line" yaml:"line"`
	Expected string         `json:"expected" yaml:"expected"`
	Imputes  []string       `json:"imputes,omitempty" yaml:"imputes,omitempty"`
	Request  map[string]any `json:"request" yaml:"request"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	datasetPath := flag.String("dataset", "data/hanoi_fire.csv", "reference dataset CSV")
	out := flag.String("out", "", "output path (.json, .yaml or .yml); stdout when empty")
	limit := flag.Int("limit", 0, "maximum number of fixtures (0 for all)")
	flag.Parse()

	f, err := os.Open(*datasetPath)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	fixtures, skipped, err := buildFixtures(f, *limit)
	if err != nil {
		return fmt.Errorf("processing %s: %w", *datasetPath, err)
	}
	log.Printf("generated %d fixtures (%d rows skipped)", len(fixtures), skipped)

	if *out == "" {
		return encode(os.Stdout, "json", fixtures)
	}
	if err := writeFile(*out, fixtures); err != nil {
		return fmt.Errorf("writing fixtures: %w", err)
	}
	log.Printf("wrote fixtures: %s", *out)

	printStats(fixtures)
	return nil
}

// buildFixtures converts dataset rows into validated request fixtures. Rows
// the request validator rejects are skipped and counted.
func buildFixtures(r io.Reader, limit int) ([]fixture, int, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, 0, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.TrimSpace(h)] = i
	}
	for _, col := range domain.FeatureColumns() {
		if _, ok := colIdx[col]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", col)
		}
	}

	var fixtures []fixture
	skipped := 0
	for i, row := range rows[1:] {
		if limit > 0 && len(fixtures) >= limit {
			break
		}
		line := i + 2

		fx, err := rowToFixture(row, colIdx)
		if err != nil {
			log.Printf("line %d: %v", line, err)
			skipped++
			continue
		}
		fx.Line = line
		fixtures = append(fixtures, fx)
	}
	return fixtures, skipped, nil
}

func rowToFixture(row []string, colIdx map[string]int) (fixture, error) {
	fx := fixture{
		Expected: get(row, colIdx, targetColumn),
		Request:  make(map[string]any, len(domain.FeatureColumns())),
	}

	for _, col := range domain.FeatureColumns() {
		field, _ := domain.RequestField(col)
		kind, _ := domain.ColumnKind(col)
		raw := get(row, colIdx, col)

		switch {
		case kind == domain.KindText:
			fx.Request[field] = raw
		case raw == "":
			// Left out; required fields are reported by the validator below.
			fx.Imputes = append(fx.Imputes, col)
		default:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fixture{}, fmt.Errorf("column %q: %w", col, err)
			}
			fx.Request[field] = number(v)
		}
	}

	body, err := json.Marshal(fx.Request)
	if err != nil {
		return fixture{}, err
	}
	if _, err := domain.ParseBuildingRequest(body); err != nil {
		return fixture{}, err
	}
	return fx, nil
}

// number keeps integral values as integers so integer request fields encode
// without a fractional part.
func number(v float64) any {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return int64(v)
	}
	return v
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func writeFile(path string, fixtures []fixture) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f, format, fixtures); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encode(w io.Writer, format string, fixtures []fixture) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fixtures)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(fixtures); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func printStats(fixtures []fixture) {
	outcomes := map[string]int{}
	imputed := map[string]int{}
	for _, fx := range fixtures {
		outcomes[fx.Expected]++
		for _, col := range fx.Imputes {
			imputed[col]++
		}
	}

	fmt.Println("\n=== Fixture Summary ===")
	fmt.Printf("Total: %d\n", len(fixtures))
	printCounts("Expected outcome", outcomes)
	printCounts("Imputed column", imputed)
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-32s %d\n", k, counts[k])
	}
}
