package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/yavuzozge/homeseer-dimmers/internal/led"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// Supported hardware.
const (
	Manufacturer = "HomeSeer Technologies"
	ModelWD200   = "HS-WD200+"
	ModelWX300   = "HS-WX300"
)

// IsSupportedDimmer reports whether d is a HomeSeer dimmer with seven status LEDs.
func IsSupportedDimmer(d zwave.Device) bool {
	if !strings.EqualFold(d.Manufacturer, Manufacturer) {
		return false
	}
	return strings.EqualFold(d.Model, ModelWD200) || strings.EqualFold(d.Model, ModelWX300)
}

// DimmerConfiguration is the LED configuration read from a device.
type DimmerConfiguration struct {
	Colors         [led.Count]led.Color
	Blinks         [led.Count]led.Blink
	CustomMode     zwave.CustomStatusMode
	BlinkFrequency int
}

// ParameterReader reads configuration parameters from a device.
type ParameterReader interface {
	GetConfigurationParameters(ctx context.Context, device zwave.Device) (map[string]zwave.Parameter, error)
}

// ReadConfiguration fetches and decodes the LED configuration of a device.
//
// Every field is required: a missing parameter or an undecodable value
// fails the whole read with ErrReadConfiguration.
func ReadConfiguration(ctx context.Context, reader ParameterReader, device zwave.Device, node int) (DimmerConfiguration, error) {
	var cfg DimmerConfiguration

	params, err := reader.GetConfigurationParameters(ctx, device)
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrReadConfiguration, err)
	}

	for i := 0; i < led.Count; i++ {
		colorAddr, _ := zwave.ColorAddress(node, i)
		c, err := decodeRequired(params, colorAddr, zwave.DecodeEnumerated[led.Color])
		if err != nil {
			return cfg, err
		}
		cfg.Colors[i] = c

		blinkAddr, _ := zwave.BlinkAddress(node, i)
		b, err := decodeRequired(params, blinkAddr, zwave.DecodeEnumerated[led.Blink])
		if err != nil {
			return cfg, err
		}
		cfg.Blinks[i] = b
	}

	mode, err := decodeRequired(params, zwave.CustomModeAddress(node), zwave.DecodeEnumerated[zwave.CustomStatusMode])
	if err != nil {
		return cfg, err
	}
	cfg.CustomMode = mode

	freq, err := decodeRequired(params, zwave.BlinkFrequencyAddress(node), zwave.DecodeInt)
	if err != nil {
		return cfg, err
	}
	cfg.BlinkFrequency = freq

	return cfg, nil
}

func decodeRequired[T any](params map[string]zwave.Parameter, addr string, decode func(zwave.Parameter) (T, bool)) (T, error) {
	var zero T
	p, ok := params[addr]
	if !ok {
		return zero, fmt.Errorf("%w: parameter %s not reported", ErrReadConfiguration, addr)
	}
	v, ok := decode(p)
	if !ok {
		return zero, fmt.Errorf("%w: parameter %s has unexpected %s value %s", ErrReadConfiguration, addr, p.Kind, string(p.Raw))
	}
	return v, nil
}
