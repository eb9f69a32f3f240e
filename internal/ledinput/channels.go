package ledinput

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yavuzozge/homeseer-dimmers/internal/led"
)

// placeholder is replaced with the LED ordinal (1..7) in channel patterns.
const placeholder = "{0}"

// Aspect is the half of an LED entry a channel feeds.
type Aspect int

// Channel aspects.
const (
	AspectColor Aspect = iota
	AspectBlink
)

func (a Aspect) String() string {
	if a == AspectBlink {
		return "blink"
	}
	return "color"
}

// channel identifies the table cell a state channel feeds.
type channel struct {
	index  int
	aspect Aspect
}

// validatePatterns checks the two naming patterns.
func validatePatterns(colorPattern, blinkPattern string) error {
	if strings.TrimSpace(colorPattern) == "" {
		return fmt.Errorf("%w: %w: colour", ErrConfiguration, ErrBlankPattern)
	}
	if strings.TrimSpace(blinkPattern) == "" {
		return fmt.Errorf("%w: %w: blink", ErrConfiguration, ErrBlankPattern)
	}
	if colorPattern == blinkPattern {
		return fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrAmbiguousPatterns, colorPattern)
	}
	for _, p := range []string{colorPattern, blinkPattern} {
		if !strings.Contains(p, placeholder) {
			return fmt.Errorf("%w: %w: %q", ErrConfiguration, ErrMissingPlaceholder, p)
		}
	}
	return nil
}

// ChannelName expands pattern for LED index i (0-based).
func ChannelName(pattern string, i int) string {
	return strings.ReplaceAll(pattern, placeholder, strconv.Itoa(i+1))
}

// buildChannels maps every channel name to its table cell.
func buildChannels(colorPattern, blinkPattern string) (map[string]channel, []string) {
	channels := make(map[string]channel, 2*led.Count)
	names := make([]string, 0, 2*led.Count)
	for i := 0; i < led.Count; i++ {
		colorName := ChannelName(colorPattern, i)
		blinkName := ChannelName(blinkPattern, i)
		channels[colorName] = channel{index: i, aspect: AspectColor}
		channels[blinkName] = channel{index: i, aspect: AspectBlink}
		names = append(names, colorName, blinkName)
	}
	return channels, names
}
