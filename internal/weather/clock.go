package weather

import "time"

// EffectiveOffset returns the UTC offset in seconds to apply to provider
// timestamps for the given mode. documentOffset is the location's own offset
// as reported by the provider; now supplies the host zone in host mode.
func EffectiveOffset(mode TimezoneMode, documentOffset int64, now time.Time) int64 {
	switch mode {
	case TimezoneLocation:
		return documentOffset
	case TimezoneHost:
		// minutes west of UTC, negated and scaled back to seconds east
		_, east := now.Zone()
		minutesWest := -east / 60
		return int64(-minutesWest * 60)
	default:
		return 0
	}
}

// FormatClock renders "HH:MM" for an epoch shifted by offsetSeconds.
func FormatClock(epochSeconds, offsetSeconds int64) string {
	return shifted(epochSeconds, offsetSeconds).Format("15:04")
}

// FormatDateClock renders "MM-DD HH:MM" for an epoch shifted by offsetSeconds.
func FormatDateClock(epochSeconds, offsetSeconds int64) string {
	return shifted(epochSeconds, offsetSeconds).Format("01-02 15:04")
}

// shifted reads UTC fields of the offset instant so the host zone is never
// applied on top of the chosen offset.
func shifted(epochSeconds, offsetSeconds int64) time.Time {
	ms := epochSeconds*1000 + offsetSeconds*1000
	return time.UnixMilli(ms).UTC()
}

// IsDaytime reports whether now lies strictly between sunrise and sunset.
func IsDaytime(sunrise, sunset, now int64) bool {
	return sunrise < now && now < sunset
}
