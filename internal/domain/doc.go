// Package domain models the building fire-risk prediction boundary: the
// inbound request schema, the model-facing feature row, and the reference
// statistics used to fill fields a caller leaves out.
//
// # Request Conventions
//
// Requests are flat JSON objects keyed by snake_case attribute names, e.g.
//
//	{"building_type": "Residential", "month": 6, "temperature_c": 28.5, ...}
//
// Categorical attributes are open text. No vocabulary check is done here;
// an unseen category is the model's concern (see handle_unknown in the
// model artifact).
//
// Integer attributes accept any JSON number with an integral value, so 6
// and 6.0 are both month 6 while 6.5 is rejected. Float attributes accept
// any JSON number. Strings are never coerced into numbers.
//
// # Feature Row Columns
//
// The model was fitted on the Hanoi fire dataset and expects its original
// column headers, which differ from the request field names:
//
//	building_area_sqm   ->  Building_Area_(sqm)
//	temperature_c       ->  Temperature_(_C)
//	humidity            ->  Humidity_(%)
//	wind_speed_ms       ->  Wind_Speed_(m_s)
//
// The full mapping lives in FeatureColumns and BuildFeatureRow. Column
// order matches the dataset header order.
//
// # Fallback Means
//
// Three attributes are only known after an incident and are optional on
// the request:
//
//	time_to_extinguish_min        ->  Time_to_Extinguish_(min)
//	response_time_min             ->  Response_Time_(min)
//	number_of_fire_extinguishers  ->  Number_of_Fire_Extinguishers
//
// When omitted (or null) they are filled with the dataset-wide mean of the
// corresponding column, and the filled columns are reported back as an
// Imputation.
package domain
