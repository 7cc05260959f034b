package weather

import (
	"math"
	"strconv"
)

// Conversions round half-up through floor (x + 0.49 or x + 0.5) so that the
// displayed values match what hosts have always shown.

const (
	kelvinOffset     = 273.15
	hpaPerInHg       = 33.863886666667
	paPerMmHg        = 133.322387415
	mphPerMpsTimes10 = 22.3694
)

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// KelvinToFahrenheit converts to whole degrees Fahrenheit.
func KelvinToFahrenheit(k float64) float64 {
	return math.Floor((k-kelvinOffset)*9/5 + 32.49)
}

// KelvinToCelsius converts to whole degrees Celsius.
func KelvinToCelsius(k float64) float64 {
	return math.Floor(k - kelvinOffset + 0.49)
}

// KelvinRounded is the Kelvin value rounded to a whole degree.
func KelvinRounded(k float64) float64 {
	return math.Floor(k + 0.5)
}

// HectopascalToInHg converts to inches of mercury with two decimals.
func HectopascalToInHg(hpa float64) float64 {
	return math.Floor(hpa/hpaPerInHg*100+0.5) / 100
}

// HectopascalToMmHg converts to whole millimetres of mercury.
func HectopascalToMmHg(hpa float64) float64 {
	return math.Floor(hpa / paPerMmHg * 100)
}

// SpeedToKmh is the metric speed display: two decimals of the provider value.
func SpeedToKmh(mps float64) float64 {
	return math.Floor(mps*100+0.49) / 100
}

// SpeedToMph converts m/s to mph with one decimal.
func SpeedToMph(mps float64) float64 {
	return math.Floor(mps*mphPerMpsTimes10+0.49) / 10
}

// BearingToCompass maps a bearing in degrees to a 16-point compass label.
// Negative and >360 bearings wrap.
func BearingToCompass(deg float64) string {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	idx := int(math.Floor(d/22.5+0.5)) % len(compassPoints)
	return compassPoints[idx]
}

// FormatTemperature renders a converted temperature with the degree suffix.
func FormatTemperature(v float64) string {
	return formatNumber(v) + "°"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
