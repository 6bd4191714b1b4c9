package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/couchcryptid/fire-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/jszwec/csvutil"
)

// datasetRow picks the three fallback columns out of a reference dataset row.
type datasetRow struct {
	TimeToExtinguish  cell `csv:"Time_to_Extinguish_(min)"`
	ResponseTime      cell `csv:"Response_Time_(min)"`
	FireExtinguishers cell `csv:"Number_of_Fire_Extinguishers"`
}

// missingTokens are the cell values pandas reads as NaN by default.
var missingTokens = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true,
	"None": true, "n/a": true, "nan": true, "null": true,
}

// cell is a numeric dataset value that may be missing.
type cell struct {
	value float64
	valid bool
}

// UnmarshalCSV implements csvutil.Unmarshaler. Missing markers and NaN leave
// the cell invalid; anything else must parse as a number.
func (c *cell) UnmarshalCSV(data []byte) error {
	s := string(data)
	if missingTokens[s] {
		*c = cell{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse %q: %w", s, err)
	}
	*c = cell{value: v, valid: !math.IsNaN(v)}
	return nil
}

var requiredColumns = []string{
	domain.ColTimeToExtinguish,
	domain.ColResponseTime,
	domain.ColNumberOfFireExtinguishers,
}

// runningMean accumulates a column mean, ignoring missing values.
type runningMean struct {
	sum   float64
	count int
}

func (m *runningMean) add(c cell) {
	if !c.valid {
		return
	}
	m.sum += c.value
	m.count++
}

func (m *runningMean) value() float64 { return m.sum / float64(m.count) }

// ComputeStats reads a CSV reference dataset and returns the fallback means.
// Errors wrap domain.ErrDataUnavailable.
func ComputeStats(r io.Reader) (domain.ReferenceStats, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ReferenceStats{}, fmt.Errorf("%w: empty dataset", domain.ErrDataUnavailable)
		}
		return domain.ReferenceStats{}, fmt.Errorf("%w: read header: %w", domain.ErrDataUnavailable, err)
	}

	header := dec.Header()
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			return domain.ReferenceStats{}, fmt.Errorf("%w: missing column %q", domain.ErrDataUnavailable, col)
		}
	}

	var extinguish, response, extinguishers runningMean
	rows := 0
	for {
		var row datasetRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return domain.ReferenceStats{}, fmt.Errorf("%w: row %d: %w", domain.ErrDataUnavailable, rows+1, err)
		}
		rows++
		extinguish.add(row.TimeToExtinguish)
		response.add(row.ResponseTime)
		extinguishers.add(row.FireExtinguishers)
	}

	for i, m := range []runningMean{extinguish, response, extinguishers} {
		if m.count == 0 {
			return domain.ReferenceStats{}, fmt.Errorf("%w: no values in column %q", domain.ErrDataUnavailable, requiredColumns[i])
		}
	}

	return domain.ReferenceStats{
		MeanTimeToExtinguishMin: extinguish.value(),
		MeanResponseTimeMin:     response.value(),
		MeanFireExtinguishers:   extinguishers.value(),
		Rows:                    rows,
	}, nil
}

// FileLoader computes reference statistics from a CSV file on disk.
type FileLoader struct {
	path    string
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewFileLoader creates a loader for the dataset at path. metrics may be nil.
func NewFileLoader(path string, clock clockwork.Clock, metrics *observability.Metrics) *FileLoader {
	return &FileLoader{path: path, clock: clock, metrics: metrics}
}

// Path returns the dataset location.
func (l *FileLoader) Path() string { return l.path }

// Load reads the whole dataset and stamps the result with the load time.
func (l *FileLoader) Load(_ context.Context) (domain.ReferenceStats, error) {
	start := l.clock.Now()
	stats, err := l.load()
	l.observe(start, err)
	if err != nil {
		return domain.ReferenceStats{}, err
	}
	stats.ComputedAt = l.clock.Now().UTC()
	return stats, nil
}

func (l *FileLoader) load() (domain.ReferenceStats, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return domain.ReferenceStats{}, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}
	defer f.Close()

	stats, err := ComputeStats(f)
	if err != nil {
		return domain.ReferenceStats{}, fmt.Errorf("%s: %w", l.path, err)
	}
	return stats, nil
}

func (l *FileLoader) observe(start time.Time, err error) {
	if l.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	l.metrics.ReferenceLoads.WithLabelValues(result).Inc()
	l.metrics.ReferenceLoadDuration.Observe(l.clock.Since(start).Seconds())
}
