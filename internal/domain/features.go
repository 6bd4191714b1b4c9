package domain

import (
	"strconv"
)

// Feature row column names, as they appear in the reference dataset header.
const (
	ColBuildingType                  = "Building_Type"
	ColSprinklerSystemPresent        = "Sprinkler_System_Present"
	ColFireSafetyTrainingConducted   = "Fire_Safety_Training_Conducted"
	ColNearestFireStationLocation    = "Nearest_Fire_Station_Location"
	ColTypesOfNearbyBuildings        = "Types_of_Nearby_Buildings"
	ColElectricalInspectionConducted = "Electrical_Equipment_Inspection_Conducted"
	ColGasInspectionConducted        = "Gas_Equipment_Inspection_Conducted"
	ColRecentRepairHistory           = "Recent_Repair_Replacement_History"
	ColMonth                         = "Month"
	ColBuildingAge                   = "Building_Age"
	ColBuildingArea                  = "Building_Area_(sqm)"
	ColBuildingHeight                = "Building_Height_(m)"
	ColNumberOfFloors                = "Number_of_Floors"
	ColTimeToExtinguish              = "Time_to_Extinguish_(min)"
	ColResponseTime                  = "Response_Time_(min)"
	ColNumberOfFireExtinguishers     = "Number_of_Fire_Extinguishers"
	ColNumberOfEmergencyExits        = "Number_of_Emergency_Exits"
	ColNumberOfFireAlarms            = "Number_of_Fire_Alarms"
	ColWidthOfNearbyRoads            = "Width_of_Nearby_Roads_(m)"
	ColDistanceToNearbyBuildings     = "Distance_to_Nearby_Buildings_(m)"
	ColTemperature                   = "Temperature_(_C)"
	ColHumidity                      = "Humidity_(%)"
	ColWindSpeed                     = "Wind_Speed_(m_s)"
	ColPrecipitation                 = "Precipitation_(mm)"
)

var featureColumns = []string{
	ColBuildingType,
	ColSprinklerSystemPresent,
	ColFireSafetyTrainingConducted,
	ColNearestFireStationLocation,
	ColTypesOfNearbyBuildings,
	ColElectricalInspectionConducted,
	ColGasInspectionConducted,
	ColRecentRepairHistory,
	ColMonth,
	ColBuildingAge,
	ColBuildingArea,
	ColBuildingHeight,
	ColNumberOfFloors,
	ColTimeToExtinguish,
	ColResponseTime,
	ColNumberOfFireExtinguishers,
	ColNumberOfEmergencyExits,
	ColNumberOfFireAlarms,
	ColWidthOfNearbyRoads,
	ColDistanceToNearbyBuildings,
	ColTemperature,
	ColHumidity,
	ColWindSpeed,
	ColPrecipitation,
}

// FeatureColumns returns the model-facing column names in row order.
func FeatureColumns() []string {
	return append([]string(nil), featureColumns...)
}

// columnFields maps each feature column to the request field that feeds it.
var columnFields = map[string]string{
	ColBuildingType:                  "building_type",
	ColSprinklerSystemPresent:        "sprinkler_system_present",
	ColFireSafetyTrainingConducted:   "fire_safety_training_conducted",
	ColNearestFireStationLocation:    "nearest_fire_station_location",
	ColTypesOfNearbyBuildings:        "types_of_nearby_buildings",
	ColElectricalInspectionConducted: "electrical_equipment_inspection_conducted",
	ColGasInspectionConducted:        "gas_equipment_inspection_conducted",
	ColRecentRepairHistory:           "recent_repair_replacement_history",
	ColMonth:                         "month",
	ColBuildingAge:                   "building_age",
	ColBuildingArea:                  "building_area_sqm",
	ColBuildingHeight:                "building_height_m",
	ColNumberOfFloors:                "number_of_floors",
	ColTimeToExtinguish:              "time_to_extinguish_min",
	ColResponseTime:                  "response_time_min",
	ColNumberOfFireExtinguishers:     "number_of_fire_extinguishers",
	ColNumberOfEmergencyExits:        "number_of_emergency_exits",
	ColNumberOfFireAlarms:            "number_of_fire_alarms",
	ColWidthOfNearbyRoads:            "width_of_nearby_roads_m",
	ColDistanceToNearbyBuildings:     "distance_to_nearby_buildings_m",
	ColTemperature:                   "temperature_c",
	ColHumidity:                      "humidity",
	ColWindSpeed:                     "wind_speed_ms",
	ColPrecipitation:                 "precipitation_mm",
}

// RequestField returns the request field that feeds column.
func RequestField(column string) (string, bool) {
	f, ok := columnFields[column]
	return f, ok
}

// ColumnKind reports whether column holds text or numbers.
func ColumnKind(column string) (ValueKind, bool) {
	field, ok := columnFields[column]
	if !ok {
		return 0, false
	}
	for _, spec := range buildingSchema {
		if spec.name == field {
			if spec.kind == kindText {
				return KindText, true
			}
			return KindNumber, true
		}
	}
	return 0, false
}

// ValueKind distinguishes text (categorical) cells from numeric ones.
type ValueKind uint8

const (
	KindNumber ValueKind = iota
	KindText
)

func (k ValueKind) String() string {
	if k == KindText {
		return "text"
	}
	return "number"
}

// Value is a single feature row cell.
type Value struct {
	kind ValueKind
	text string
	num  float64
}

// TextValue returns a categorical cell.
func TextValue(s string) Value { return Value{kind: KindText, text: s} }

// NumberValue returns a numeric cell.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

func (v Value) Kind() ValueKind { return v.kind }

// AsText returns the cell's text and whether the cell is categorical.
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsNumber returns the cell's number and whether the cell is numeric.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) String() string {
	if v.kind == KindText {
		return v.text
	}
	return strconv.FormatFloat(v.num, 'g', -1, 64)
}

// Column is a named feature row cell.
type Column struct {
	Name  string
	Value Value
}

// FeatureRow is a single-row record in the model's column layout.
// The zero value is an empty row. Rows are immutable once built.
type FeatureRow struct {
	cols []Column
}

// NewFeatureRow builds a row from the given columns, in order.
func NewFeatureRow(cols ...Column) FeatureRow {
	return FeatureRow{cols: append([]Column(nil), cols...)}
}

// Len returns the number of columns.
func (r FeatureRow) Len() int { return len(r.cols) }

// Columns returns a copy of the row's columns.
func (r FeatureRow) Columns() []Column {
	return append([]Column(nil), r.cols...)
}

// Names returns the column names in row order.
func (r FeatureRow) Names() []string {
	names := make([]string, len(r.cols))
	for i, c := range r.cols {
		names[i] = c.Name
	}
	return names
}

// Get looks up a column by name.
func (r FeatureRow) Get(name string) (Value, bool) {
	for _, c := range r.cols {
		if c.Name == name {
			return c.Value, true
		}
	}
	return Value{}, false
}

// Map renders the row as column -> value, for serialization.
func (r FeatureRow) Map() map[string]any {
	m := make(map[string]any, len(r.cols))
	for _, c := range r.cols {
		if s, ok := c.Value.AsText(); ok {
			m[c.Name] = s
			continue
		}
		n, _ := c.Value.AsNumber()
		m[c.Name] = n
	}
	return m
}

// Imputation records the columns filled from reference means, keyed by column name.
type Imputation map[string]float64

// BuildFeatureRow maps a validated request onto the model's column layout.
// Optional fields the caller omitted are filled from stats. Nothing else is
// transformed. The result depends only on the arguments.
func BuildFeatureRow(req BuildingRequest, stats ReferenceStats) (FeatureRow, Imputation) {
	imputed := Imputation{}
	fill := func(col string, supplied *int64, mean float64) Value {
		if supplied != nil {
			return NumberValue(float64(*supplied))
		}
		imputed[col] = mean
		return NumberValue(mean)
	}

	row := NewFeatureRow(
		Column{ColBuildingType, TextValue(req.BuildingType)},
		Column{ColSprinklerSystemPresent, TextValue(req.SprinklerSystemPresent)},
		Column{ColFireSafetyTrainingConducted, TextValue(req.FireSafetyTrainingConducted)},
		Column{ColNearestFireStationLocation, TextValue(req.NearestFireStationLocation)},
		Column{ColTypesOfNearbyBuildings, TextValue(req.TypesOfNearbyBuildings)},
		Column{ColElectricalInspectionConducted, TextValue(req.ElectricalEquipmentInspectionConducted)},
		Column{ColGasInspectionConducted, TextValue(req.GasEquipmentInspectionConducted)},
		Column{ColRecentRepairHistory, TextValue(req.RecentRepairReplacementHistory)},
		Column{ColMonth, NumberValue(float64(req.Month))},
		Column{ColBuildingAge, NumberValue(float64(req.BuildingAge))},
		Column{ColBuildingArea, NumberValue(float64(req.BuildingAreaSqm))},
		Column{ColBuildingHeight, NumberValue(float64(req.BuildingHeightM))},
		Column{ColNumberOfFloors, NumberValue(float64(req.NumberOfFloors))},
		Column{ColTimeToExtinguish, fill(ColTimeToExtinguish, req.TimeToExtinguishMin, stats.MeanTimeToExtinguishMin)},
		Column{ColResponseTime, fill(ColResponseTime, req.ResponseTimeMin, stats.MeanResponseTimeMin)},
		Column{ColNumberOfFireExtinguishers, fill(ColNumberOfFireExtinguishers, req.NumberOfFireExtinguishers, stats.MeanFireExtinguishers)},
		Column{ColNumberOfEmergencyExits, NumberValue(float64(req.NumberOfEmergencyExits))},
		Column{ColNumberOfFireAlarms, NumberValue(float64(req.NumberOfFireAlarms))},
		Column{ColWidthOfNearbyRoads, NumberValue(float64(req.WidthOfNearbyRoadsM))},
		Column{ColDistanceToNearbyBuildings, NumberValue(float64(req.DistanceToNearbyBuildingsM))},
		Column{ColTemperature, NumberValue(req.TemperatureC)},
		Column{ColHumidity, NumberValue(req.Humidity)},
		Column{ColWindSpeed, NumberValue(req.WindSpeedMS)},
		Column{ColPrecipitation, NumberValue(req.PrecipitationMM)},
	)
	return row, imputed
}
