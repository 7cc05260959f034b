package weather

import (
	"strconv"
	"time"
)

// ConversionKind selects how a VariableSpec's source value is rendered.
type ConversionKind int

const (
	KindText ConversionKind = iota
	KindNumber
	KindTemperature
	KindKelvin
	KindPressure
	KindPressureMmHg
	KindSpeed
	KindPercent
	KindCompass
	KindClock
	KindDateClock
	KindDayNight
	KindWallClock
	KindWallDateClock
)

// VariableSpec describes one output variable and where its value comes from.
type VariableSpec struct {
	ID          string         `json:"id"`
	Section     string         `json:"section,omitempty"`
	Field       string         `json:"field,omitempty"`
	Description string         `json:"description"`
	Kind        ConversionKind `json:"-"`
}

// Variable ids referenced outside the table.
const (
	VarName        = "l_name"
	VarTime        = "l_time"
	VarDateTime    = "l_datetime"
	VarIcon        = "c_icon"
	VarDay         = "c_day"
	VarTemperature = "c_temp"
	VarWindDir     = "c_wind_dir"
	VarUpdated     = "c_updated"
)

// Specs is the fixed variable table. Ids are the contract with host bindings
// and must not change.
var Specs = []VariableSpec{
	{ID: VarName, Field: "name", Description: "Location name", Kind: KindText},
	{ID: "l_country", Section: "sys", Field: "country", Description: "Country code", Kind: KindText},
	{ID: "l_lat", Section: "coord", Field: "lat", Description: "Latitude", Kind: KindNumber},
	{ID: "l_lon", Section: "coord", Field: "lon", Description: "Longitude", Kind: KindNumber},
	{ID: VarTime, Description: "Local time", Kind: KindWallClock},
	{ID: VarDateTime, Description: "Local date and time", Kind: KindWallDateClock},
	{ID: "c_main", Section: "weather", Field: "main", Description: "Condition", Kind: KindText},
	{ID: "c_desc", Section: "weather", Field: "description", Description: "Condition description", Kind: KindText},
	{ID: VarIcon, Section: "weather", Field: "icon", Description: "Condition icon code", Kind: KindText},
	{ID: VarTemperature, Section: "main", Field: "temp", Description: "Temperature", Kind: KindTemperature},
	{ID: "c_temp_k", Section: "main", Field: "temp", Description: "Temperature (K)", Kind: KindKelvin},
	{ID: "c_feels", Section: "main", Field: "feels_like", Description: "Feels like", Kind: KindTemperature},
	{ID: "c_temp_min", Section: "main", Field: "temp_min", Description: "Minimum temperature", Kind: KindTemperature},
	{ID: "c_temp_max", Section: "main", Field: "temp_max", Description: "Maximum temperature", Kind: KindTemperature},
	{ID: "c_pressure", Section: "main", Field: "pressure", Description: "Pressure", Kind: KindPressure},
	{ID: "c_pressure_mm", Section: "main", Field: "pressure", Description: "Pressure (mmHg)", Kind: KindPressureMmHg},
	{ID: "c_humidity", Section: "main", Field: "humidity", Description: "Humidity", Kind: KindPercent},
	{ID: "c_clouds", Section: "clouds", Field: "all", Description: "Cloud cover", Kind: KindPercent},
	{ID: "c_visibility", Field: "visibility", Description: "Visibility (m)", Kind: KindNumber},
	{ID: "c_wind_speed", Section: "wind", Field: "speed", Description: "Wind speed", Kind: KindSpeed},
	{ID: "c_wind_gust", Section: "wind", Field: "gust", Description: "Wind gust", Kind: KindSpeed},
	{ID: "c_wind_deg", Section: "wind", Field: "deg", Description: "Wind bearing", Kind: KindNumber},
	{ID: VarWindDir, Section: "wind", Field: "deg", Description: "Wind direction", Kind: KindCompass},
	{ID: "c_sunrise", Section: "sys", Field: "sunrise", Description: "Sunrise", Kind: KindClock},
	{ID: "c_sunset", Section: "sys", Field: "sunset", Description: "Sunset", Kind: KindClock},
	{ID: VarUpdated, Field: "dt", Description: "Observation time", Kind: KindDateClock},
	{ID: VarDay, Description: "Daytime", Kind: KindDayNight},
}

// Variables maps variable id to its display value.
type Variables map[string]string

// Clone returns an independent copy.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// MapOptions carries the settings that select conversion branches.
type MapOptions struct {
	Units    Units
	Timezone TimezoneMode
	Now      time.Time
}

// EmptyVariables is the initial state: every id present with an empty value.
func EmptyVariables() Variables {
	vars := make(Variables, len(Specs))
	for _, spec := range Specs {
		vars[spec.ID] = ""
	}
	return vars
}

// ErrorVariables is the full reset published when the provider answers with
// something other than a weather document.
func ErrorVariables(message string) Variables {
	vars := EmptyVariables()
	vars[VarName] = message
	return vars
}

// MapVariables builds the complete variable set for doc.
func MapVariables(doc *RawWeatherDocument, opts MapOptions) Variables {
	offset := EffectiveOffset(opts.Timezone, doc.Timezone, opts.Now)
	vars := make(Variables, len(Specs))
	for _, spec := range Specs {
		vars[spec.ID] = mapValue(doc, spec, opts, offset)
	}
	return vars
}

// ApplyWallClock refreshes only the wall-clock variables in place.
func ApplyWallClock(vars Variables, mode TimezoneMode, documentOffset int64, now time.Time) {
	offset := EffectiveOffset(mode, documentOffset, now)
	vars[VarTime] = FormatClock(now.Unix(), offset)
	vars[VarDateTime] = FormatDateClock(now.Unix(), offset)
}

func mapValue(doc *RawWeatherDocument, spec VariableSpec, opts MapOptions, offset int64) string {
	switch spec.Kind {
	case KindText:
		s, _ := doc.Text(spec.Section, spec.Field)
		return s
	case KindNumber:
		return numeric(doc, spec, formatNumber)
	case KindTemperature:
		return numeric(doc, spec, func(k float64) string {
			if opts.Units == UnitsMetric {
				return FormatTemperature(KelvinToCelsius(k))
			}
			return FormatTemperature(KelvinToFahrenheit(k))
		})
	case KindKelvin:
		return numeric(doc, spec, func(k float64) string {
			return FormatTemperature(KelvinRounded(k))
		})
	case KindPressure:
		return numeric(doc, spec, func(hpa float64) string {
			if opts.Units == UnitsMetric {
				return formatNumber(hpa)
			}
			return formatNumber(HectopascalToInHg(hpa))
		})
	case KindPressureMmHg:
		return numeric(doc, spec, func(hpa float64) string {
			return formatNumber(HectopascalToMmHg(hpa))
		})
	case KindSpeed:
		return numeric(doc, spec, func(mps float64) string {
			if opts.Units == UnitsMetric {
				return formatNumber(SpeedToKmh(mps))
			}
			return formatNumber(SpeedToMph(mps))
		})
	case KindPercent:
		s, ok := doc.Text(spec.Section, spec.Field)
		if !ok {
			return ""
		}
		return s + "%"
	case KindCompass:
		return numeric(doc, spec, BearingToCompass)
	case KindClock:
		return numeric(doc, spec, func(epoch float64) string {
			return FormatClock(int64(epoch), offset)
		})
	case KindDateClock:
		return numeric(doc, spec, func(epoch float64) string {
			return FormatDateClock(int64(epoch), offset)
		})
	case KindDayNight:
		return strconv.FormatBool(IsDaytime(doc.Sys.Sunrise, doc.Sys.Sunset, opts.Now.Unix()))
	case KindWallClock:
		return FormatClock(opts.Now.Unix(), offset)
	case KindWallDateClock:
		return FormatDateClock(opts.Now.Unix(), offset)
	default:
		return ""
	}
}

func numeric(doc *RawWeatherDocument, spec VariableSpec, render func(float64) string) string {
	v, ok := doc.Number(spec.Section, spec.Field)
	if !ok {
		return ""
	}
	return render(v)
}
