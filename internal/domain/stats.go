package domain

import (
	"fmt"
	"time"
)

// ReferenceStats holds the dataset-wide means used to fill optional request fields.
type ReferenceStats struct {
	MeanTimeToExtinguishMin float64   `json:"mean_time_to_extinguish_min"`
	MeanResponseTimeMin     float64   `json:"mean_response_time_min"`
	MeanFireExtinguishers   float64   `json:"mean_number_of_fire_extinguishers"`
	Rows                    int       `json:"rows"`
	ComputedAt              time.Time `json:"computed_at"`
}

// StatsMode selects when reference statistics are recomputed.
type StatsMode string

const (
	// StatsModeStartup computes statistics once at process start.
	StatsModeStartup StatsMode = "startup"
	// StatsModeRequest recomputes statistics on every call.
	StatsModeRequest StatsMode = "request"
	// StatsModeTTL caches statistics and recomputes them once they are older than a TTL.
	StatsModeTTL StatsMode = "ttl"
)

// ParseStatsMode validates a STATS_MODE value.
func ParseStatsMode(s string) (StatsMode, error) {
	switch m := StatsMode(s); m {
	case StatsModeStartup, StatsModeRequest, StatsModeTTL:
		return m, nil
	default:
		return "", fmt.Errorf("unknown stats mode %q (want startup, request or ttl)", s)
	}
}
