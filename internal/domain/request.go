package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// BuildingRequest is a validated prediction request.
// The three optional pointers are nil when the caller left the field out.
type BuildingRequest struct {
	BuildingType                           string `json:"building_type"`
	SprinklerSystemPresent                 string `json:"sprinkler_system_present"`
	FireSafetyTrainingConducted            string `json:"fire_safety_training_conducted"`
	NearestFireStationLocation             string `json:"nearest_fire_station_location"`
	TypesOfNearbyBuildings                 string `json:"types_of_nearby_buildings"`
	ElectricalEquipmentInspectionConducted string `json:"electrical_equipment_inspection_conducted"`
	GasEquipmentInspectionConducted        string `json:"gas_equipment_inspection_conducted"`
	RecentRepairReplacementHistory         string `json:"recent_repair_replacement_history"`

	Month           int64 `json:"month"`
	BuildingAge     int64 `json:"building_age"`
	BuildingAreaSqm int64 `json:"building_area_sqm"`
	BuildingHeightM int64 `json:"building_height_m"`
	NumberOfFloors  int64 `json:"number_of_floors"`

	TimeToExtinguishMin       *int64 `json:"time_to_extinguish_min,omitempty"`
	ResponseTimeMin           *int64 `json:"response_time_min,omitempty"`
	NumberOfFireExtinguishers *int64 `json:"number_of_fire_extinguishers,omitempty"`

	NumberOfEmergencyExits     int64 `json:"number_of_emergency_exits"`
	NumberOfFireAlarms         int64 `json:"number_of_fire_alarms"`
	WidthOfNearbyRoadsM        int64 `json:"width_of_nearby_roads_m"`
	DistanceToNearbyBuildingsM int64 `json:"distance_to_nearby_buildings_m"`

	TemperatureC    float64 `json:"temperature_c"`
	Humidity        float64 `json:"humidity"`
	WindSpeedMS     float64 `json:"wind_speed_ms"`
	PrecipitationMM float64 `json:"precipitation_mm"`
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindInteger
	kindNumber
)

func (k fieldKind) String() string {
	switch k {
	case kindText:
		return "string"
	case kindInteger:
		return "integer"
	default:
		return "number"
	}
}

// decoded holds a raw JSON value converted to the field's kind.
type decoded struct {
	text string
	i    int64
	f    float64
}

type fieldSpec struct {
	name     string
	kind     fieldKind
	optional bool
	assign   func(r *BuildingRequest, v decoded)
}

func textField(name string, set func(*BuildingRequest, string)) fieldSpec {
	return fieldSpec{name: name, kind: kindText, assign: func(r *BuildingRequest, v decoded) { set(r, v.text) }}
}

func intField(name string, set func(*BuildingRequest, int64)) fieldSpec {
	return fieldSpec{name: name, kind: kindInteger, assign: func(r *BuildingRequest, v decoded) { set(r, v.i) }}
}

func optionalIntField(name string, set func(*BuildingRequest, *int64)) fieldSpec {
	return fieldSpec{name: name, kind: kindInteger, optional: true, assign: func(r *BuildingRequest, v decoded) {
		n := v.i
		set(r, &n)
	}}
}

func numberField(name string, set func(*BuildingRequest, float64)) fieldSpec {
	return fieldSpec{name: name, kind: kindNumber, assign: func(r *BuildingRequest, v decoded) { set(r, v.f) }}
}

// buildingSchema lists request fields in declaration order; validation
// failures are reported in this order.
var buildingSchema = []fieldSpec{
	textField("building_type", func(r *BuildingRequest, v string) { r.BuildingType = v }),
	textField("sprinkler_system_present", func(r *BuildingRequest, v string) { r.SprinklerSystemPresent = v }),
	textField("fire_safety_training_conducted", func(r *BuildingRequest, v string) { r.FireSafetyTrainingConducted = v }),
	textField("nearest_fire_station_location", func(r *BuildingRequest, v string) { r.NearestFireStationLocation = v }),
	textField("types_of_nearby_buildings", func(r *BuildingRequest, v string) { r.TypesOfNearbyBuildings = v }),
	textField("electrical_equipment_inspection_conducted", func(r *BuildingRequest, v string) { r.ElectricalEquipmentInspectionConducted = v }),
	textField("gas_equipment_inspection_conducted", func(r *BuildingRequest, v string) { r.GasEquipmentInspectionConducted = v }),
	textField("recent_repair_replacement_history", func(r *BuildingRequest, v string) { r.RecentRepairReplacementHistory = v }),
	intField("month", func(r *BuildingRequest, v int64) { r.Month = v }),
	intField("building_age", func(r *BuildingRequest, v int64) { r.BuildingAge = v }),
	intField("building_area_sqm", func(r *BuildingRequest, v int64) { r.BuildingAreaSqm = v }),
	intField("building_height_m", func(r *BuildingRequest, v int64) { r.BuildingHeightM = v }),
	intField("number_of_floors", func(r *BuildingRequest, v int64) { r.NumberOfFloors = v }),
	optionalIntField("time_to_extinguish_min", func(r *BuildingRequest, v *int64) { r.TimeToExtinguishMin = v }),
	optionalIntField("response_time_min", func(r *BuildingRequest, v *int64) { r.ResponseTimeMin = v }),
	optionalIntField("number_of_fire_extinguishers", func(r *BuildingRequest, v *int64) { r.NumberOfFireExtinguishers = v }),
	intField("number_of_emergency_exits", func(r *BuildingRequest, v int64) { r.NumberOfEmergencyExits = v }),
	intField("number_of_fire_alarms", func(r *BuildingRequest, v int64) { r.NumberOfFireAlarms = v }),
	intField("width_of_nearby_roads_m", func(r *BuildingRequest, v int64) { r.WidthOfNearbyRoadsM = v }),
	intField("distance_to_nearby_buildings_m", func(r *BuildingRequest, v int64) { r.DistanceToNearbyBuildingsM = v }),
	numberField("temperature_c", func(r *BuildingRequest, v float64) { r.TemperatureC = v }),
	numberField("humidity", func(r *BuildingRequest, v float64) { r.Humidity = v }),
	numberField("wind_speed_ms", func(r *BuildingRequest, v float64) { r.WindSpeedMS = v }),
	numberField("precipitation_mm", func(r *BuildingRequest, v float64) { r.PrecipitationMM = v }),
}

// RequestFields returns the request field names in schema order.
func RequestFields() []string {
	names := make([]string, len(buildingSchema))
	for i, f := range buildingSchema {
		names[i] = f.name
	}
	return names
}

const receivedMissing = "missing"

// ParseBuildingRequest validates a JSON payload against the request schema.
// It returns a *ValidationError naming every failing field, not just the first.
func ParseBuildingRequest(data []byte) (BuildingRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return BuildingRequest{}, &ValidationError{Fields: []FieldError{{
			Field:    "body",
			Expected: "object",
			Received: truncate(string(bytes.TrimSpace(data))),
		}}}
	}

	var req BuildingRequest
	var failures []FieldError
	for _, spec := range buildingSchema {
		raw, ok := fields[spec.name]
		if !ok || isNull(raw) {
			if spec.optional {
				continue
			}
			failures = append(failures, FieldError{Field: spec.name, Expected: spec.kind.String(), Received: receivedMissing})
			continue
		}

		v, ok := decodeKind(raw, spec.kind)
		if !ok {
			failures = append(failures, FieldError{Field: spec.name, Expected: spec.kind.String(), Received: truncate(string(raw))})
			continue
		}
		spec.assign(&req, v)
	}

	if len(failures) > 0 {
		return BuildingRequest{}, &ValidationError{Fields: failures}
	}
	return req, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeKind converts a raw JSON value to the requested kind. Only JSON strings
// satisfy kindText and only JSON numbers satisfy the numeric kinds.
func decodeKind(raw json.RawMessage, kind fieldKind) (decoded, bool) {
	raw = bytes.TrimSpace(raw)
	switch kind {
	case kindText:
		if raw[0] != '"' {
			return decoded{}, false
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decoded{}, false
		}
		return decoded{text: s}, true
	case kindInteger:
		n, ok := jsonNumber(raw)
		if !ok {
			return decoded{}, false
		}
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return decoded{i: i}, true
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return decoded{}, false
		}
		return decoded{i: int64(f)}, true
	default:
		n, ok := jsonNumber(raw)
		if !ok {
			return decoded{}, false
		}
		f, err := n.Float64()
		if err != nil {
			return decoded{}, false
		}
		return decoded{f: f}, true
	}
}

func jsonNumber(raw json.RawMessage) (json.Number, bool) {
	c := raw[0]
	if c != '-' && (c < '0' || c > '9') {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n, true
}

// truncate keeps echoed values short in error payloads.
func truncate(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
