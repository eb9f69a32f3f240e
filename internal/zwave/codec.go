package zwave

import (
	"fmt"
	"strconv"

	"github.com/yavuzozge/homeseer-dimmers/internal/led"
)

// Configuration command class addressing.
const (
	// ConfigurationEndpoint is the endpoint of every status LED parameter.
	ConfigurationEndpoint = 0

	// PropertyCustomMode switches the LEDs between load indication and status mode.
	PropertyCustomMode = 13

	// PropertyColorBase is the colour property of the bottom LED; LED i uses PropertyColorBase+i.
	PropertyColorBase = 21

	// PropertyBlinkFrequency is the blink period, in units of 100ms.
	PropertyBlinkFrequency = 30

	// PropertyBlink is the blink bitmask property. Each LED owns one propertyKey bit.
	PropertyBlink = 31
)

// CustomStatusMode is the value of PropertyCustomMode.
type CustomStatusMode int

// Custom status modes.
const (
	CustomStatusDisabled CustomStatusMode = 0
	CustomStatusEnabled  CustomStatusMode = 1
)

// Valid reports whether m is a defined mode.
func (m CustomStatusMode) Valid() bool {
	return m == CustomStatusDisabled || m == CustomStatusEnabled
}

func (m CustomStatusMode) String() string {
	switch m {
	case CustomStatusDisabled:
		return "Disabled"
	case CustomStatusEnabled:
		return "Enabled"
	default:
		return fmt.Sprintf("CustomStatusMode(%d)", int(m))
	}
}

// ColorProperty returns the colour property of LED i (21..27).
func ColorProperty(i int) (int, error) {
	if err := checkLed(i); err != nil {
		return 0, err
	}
	return PropertyColorBase + i, nil
}

// BlinkPropertyKey returns the blink bitmask key of LED i.
//
// The key is 1<<i, not i: property 31 is a bit field and Z-Wave JS exposes
// each bit as its own partial parameter.
func BlinkPropertyKey(i int) (int, error) {
	if err := checkLed(i); err != nil {
		return 0, err
	}
	return 1 << i, nil
}

// ColorAddress returns "{node}-112-0-{21+i}".
func ColorAddress(node, i int) (string, error) {
	property, err := ColorProperty(i)
	if err != nil {
		return "", err
	}
	return address(node, property), nil
}

// BlinkAddress returns "{node}-112-0-31-{1<<i}".
func BlinkAddress(node, i int) (string, error) {
	key, err := BlinkPropertyKey(i)
	if err != nil {
		return "", err
	}
	return address(node, PropertyBlink) + "-" + strconv.Itoa(key), nil
}

// CustomModeAddress returns "{node}-112-0-13".
func CustomModeAddress(node int) string {
	return address(node, PropertyCustomMode)
}

// BlinkFrequencyAddress returns "{node}-112-0-30".
func BlinkFrequencyAddress(node int) string {
	return address(node, PropertyBlinkFrequency)
}

// EncodeValue renders an integer the way set_config_parameter expects it.
func EncodeValue(v int) string {
	return strconv.Itoa(v)
}

func address(node, property int) string {
	return fmt.Sprintf("%d-%d-%d-%d", node, int(CommandClassConfiguration), ConfigurationEndpoint, property)
}

func checkLed(i int) error {
	if err := led.CheckIndex(i); err != nil {
		return fmt.Errorf("%w: %d", ErrLedIndex, i)
	}
	return nil
}
