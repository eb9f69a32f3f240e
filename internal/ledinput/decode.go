package ledinput

import (
	"strings"

	"github.com/yavuzozge/homeseer-dimmers/internal/led"
)

// unavailableState is what Home Assistant reports for an entity with no value.
const unavailableState = "unavailable"

// DecodeColor converts a raw colour channel value.
//
// "unavailable" (any case) is Off. Anything else is matched against the colour names
// ignoring case; an unknown value is logged and treated as Off.
func DecodeColor(raw string, logger Logger) led.Color {
	if strings.EqualFold(strings.TrimSpace(raw), unavailableState) {
		return led.ColorOff
	}
	c, err := led.ParseColor(raw)
	if err != nil {
		if logger != nil {
			logger.Warn("unrecognised LED colour, using Off", "value", raw)
		}
		return led.ColorOff
	}
	return c
}

// DecodeBlink converts a raw blink channel value. Only "on" (any case) is On.
func DecodeBlink(raw string) led.Blink {
	if strings.EqualFold(strings.TrimSpace(raw), "on") {
		return led.BlinkOn
	}
	return led.BlinkOff
}
