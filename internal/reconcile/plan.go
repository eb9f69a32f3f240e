package reconcile

import (
	"fmt"

	"github.com/yavuzozge/homeseer-dimmers/internal/led"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// Write is one configuration parameter write.
type Write struct {
	Field       string
	Property    int
	PropertyKey *int
	Value       string
}

// Plan lists the writes that bring current to desired, in write order.
// Fields already at the desired value produce no write.
func Plan(current DimmerConfiguration, desired led.Table, blinkFrequency int) []Write {
	var writes []Write

	for i := 0; i < led.Count; i++ {
		want := desired.At(i).Color
		if current.Colors[i] == want {
			continue
		}
		property, _ := zwave.ColorProperty(i)
		writes = append(writes, Write{
			Field:    fmt.Sprintf("led%d_color", i+1),
			Property: property,
			Value:    zwave.EncodeValue(int(want)),
		})
	}

	for i := 0; i < led.Count; i++ {
		want := desired.At(i).Blink
		if current.Blinks[i] == want {
			continue
		}
		key, _ := zwave.BlinkPropertyKey(i)
		writes = append(writes, Write{
			Field:       fmt.Sprintf("led%d_blink", i+1),
			Property:    zwave.PropertyBlink,
			PropertyKey: &key,
			Value:       zwave.EncodeValue(int(want)),
		})
	}

	if current.CustomMode != zwave.CustomStatusEnabled {
		writes = append(writes, Write{
			Field:    "custom_mode",
			Property: zwave.PropertyCustomMode,
			Value:    zwave.EncodeValue(int(zwave.CustomStatusEnabled)),
		})
	}

	if current.BlinkFrequency != blinkFrequency {
		writes = append(writes, Write{
			Field:    "blink_frequency",
			Property: zwave.PropertyBlinkFrequency,
			Value:    zwave.EncodeValue(blinkFrequency),
		})
	}

	return writes
}
