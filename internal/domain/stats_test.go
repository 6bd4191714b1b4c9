package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatsMode(t *testing.T) {
	for _, s := range []string{"startup", "request", "ttl"} {
		m, err := ParseStatsMode(s)
		require.NoError(t, err)
		assert.Equal(t, StatsMode(s), m)
	}

	_, err := ParseStatsMode("hourly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hourly")
}
