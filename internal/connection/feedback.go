package connection

import "github.com/i474232898/weather-panel/internal/weather"

// Colour hints for the condition icon, as 0xRRGGBB.
const (
	dayColor     = 0x000000
	dayBgColor   = 0x87CEEB
	nightColor   = 0xFFFFFF
	nightBgColor = 0x0B1A40
)

// IconFeedback is what the host needs to draw the condition button.
type IconFeedback struct {
	Code    string `json:"code"`
	PNG64   string `json:"png64,omitempty"`
	Day     bool   `json:"day"`
	Color   int    `json:"color"`
	BgColor int    `json:"bgcolor"`
}

// IconFeedback returns the active icon bitmap, if resolved, and colours
// chosen by the day/night flag.
func (c *Controller) IconFeedback() IconFeedback {
	c.mu.Lock()
	day := c.vars[weather.VarDay] == "true"
	c.mu.Unlock()

	code, bitmap, _ := c.icons.Current()
	fb := IconFeedback{Code: code, PNG64: bitmap, Day: day, Color: nightColor, BgColor: nightBgColor}
	if day {
		fb.Color, fb.BgColor = dayColor, dayBgColor
	}
	return fb
}
