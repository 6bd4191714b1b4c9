package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/couchcryptid/fire-risk-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildFixtures_Dataset(t *testing.T) {
	f, err := os.Open("../../data/hanoi_fire.csv")
	require.NoError(t, err)
	defer f.Close()

	fixtures, skipped, err := buildFixtures(f, 0)
	require.NoError(t, err)
	assert.Len(t, fixtures, 60)
	assert.Zero(t, skipped)

	imputing := 0
	for _, fx := range fixtures {
		assert.Contains(t, []string{"Yes", "No"}, fx.Expected)
		if len(fx.Imputes) > 0 {
			imputing++
		}

		body, err := json.Marshal(fx.Request)
		require.NoError(t, err)
		_, err = domain.ParseBuildingRequest(body)
		require.NoError(t, err, "line %d", fx.Line)
	}
	assert.Equal(t, 3, imputing, "rows with an empty optional cell")
}

func TestBuildFixtures_OmitsEmptyOptional(t *testing.T) {
	header := strings.Join(append(domain.FeatureColumns(), targetColumn), ",")
	row := "Residential,Yes,No,Near,Commercial,Yes,Yes,Yes,10,28,310,6,6,,17,16,1,6,24,42,31.6,64.3,5.4,1.2,No"

	fixtures, skipped, err := buildFixtures(strings.NewReader(header+"\n"+row+"\n"), 0)
	require.NoError(t, err)
	require.Len(t, fixtures, 1)
	assert.Zero(t, skipped)

	fx := fixtures[0]
	assert.Equal(t, 2, fx.Line)
	assert.Equal(t, "No", fx.Expected)
	assert.Equal(t, []string{domain.ColTimeToExtinguish}, fx.Imputes)
	assert.NotContains(t, fx.Request, "time_to_extinguish_min")
	assert.Equal(t, int64(10), fx.Request["month"])
	assert.Equal(t, 31.6, fx.Request["temperature_c"])
	assert.Equal(t, "Residential", fx.Request["building_type"])
}

func TestBuildFixtures_SkipsRowsMissingRequiredValues(t *testing.T) {
	header := strings.Join(append(domain.FeatureColumns(), targetColumn), ",")
	row := "Residential,Yes,No,Near,Commercial,Yes,Yes,Yes,10,,310,6,6,37,17,16,1,6,24,42,31.6,64.3,5.4,1.2,No"

	fixtures, skipped, err := buildFixtures(strings.NewReader(header+"\n"+row+"\n"), 0)
	require.NoError(t, err)
	assert.Empty(t, fixtures)
	assert.Equal(t, 1, skipped)
}

func TestBuildFixtures_MissingColumn(t *testing.T) {
	_, _, err := buildFixtures(strings.NewReader("Building_Type,Month\nResidential,6\n"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
}

func TestBuildFixtures_Limit(t *testing.T) {
	f, err := os.Open("../../data/hanoi_fire.csv")
	require.NoError(t, err)
	defer f.Close()

	fixtures, _, err := buildFixtures(f, 5)
	require.NoError(t, err)
	assert.Len(t, fixtures, 5)
}

func TestEncode_YAML(t *testing.T) {
	fixtures := []fixture{{Line: 2, Expected: "Yes", Request: map[string]any{"month": int64(6), "humidity": 70.5}}}

	var buf bytes.Buffer
	require.NoError(t, encode(&buf, "yaml", fixtures))

	var decoded []fixture
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Yes", decoded[0].Expected)
	assert.Equal(t, 6, decoded[0].Request["month"])

	assert.Error(t, encode(&buf, "csv", fixtures))
}
