package led

import (
	"fmt"
	"strings"
)

// Count is the number of status LEDs on a supported dimmer.
const Count = 7

// Color is the colour of a single status LED.
// The numeric value is the configuration parameter value on the device.
type Color int

// Status LED colours.
const (
	ColorOff     Color = 0
	ColorRed     Color = 1
	ColorGreen   Color = 2
	ColorBlue    Color = 3
	ColorMagenta Color = 4
	ColorYellow  Color = 5
	ColorCyan    Color = 6
	ColorWhite   Color = 7
)

var colorNames = [...]string{
	ColorOff:     "Off",
	ColorRed:     "Red",
	ColorGreen:   "Green",
	ColorBlue:    "Blue",
	ColorMagenta: "Magenta",
	ColorYellow:  "Yellow",
	ColorCyan:    "Cyan",
	ColorWhite:   "White",
}

// Valid reports whether c is one of the defined colours.
func (c Color) Valid() bool {
	return c >= ColorOff && c <= ColorWhite
}

// String returns the colour name, or Color(n) for undefined values.
func (c Color) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Color(%d)", int(c))
	}
	return colorNames[c]
}

// ParseColor matches s against the colour names, ignoring case and
// surrounding whitespace.
//
// Returns:
//   - Color: The matching colour (ColorOff on failure)
//   - error: ErrUnknownColor if nothing matches
func ParseColor(s string) (Color, error) {
	trimmed := strings.TrimSpace(s)
	for i, name := range colorNames {
		if strings.EqualFold(trimmed, name) {
			return Color(i), nil
		}
	}
	return ColorOff, fmt.Errorf("%w: %q", ErrUnknownColor, s)
}

// Blink is the blink state of a single status LED.
type Blink int

// Blink states.
const (
	BlinkOff Blink = 0
	BlinkOn  Blink = 1
)

// Valid reports whether b is a defined blink state.
func (b Blink) Valid() bool {
	return b == BlinkOff || b == BlinkOn
}

// String returns "Off" or "On".
func (b Blink) String() string {
	switch b {
	case BlinkOff:
		return "Off"
	case BlinkOn:
		return "On"
	default:
		return fmt.Sprintf("Blink(%d)", int(b))
	}
}

// Entry is the desired state of one LED.
type Entry struct {
	Color Color `json:"color"`
	Blink Blink `json:"blink"`
}

// Table is the desired state of all seven LEDs, bottom (0) to top (6).
//
// The zero value is seven entries of (ColorOff, BlinkOff).
type Table struct {
	entries [Count]Entry
}

// NewTable builds a table from exactly Count entries.
func NewTable(entries [Count]Entry) Table {
	return Table{entries: entries}
}

// At returns the entry at index i. It panics if i is out of range.
func (t Table) At(i int) Entry {
	return t.entries[i]
}

// Entries returns a copy of all entries.
func (t Table) Entries() [Count]Entry {
	return t.entries
}

// With returns a copy of t with entry i replaced.
func (t Table) With(i int, e Entry) (Table, error) {
	if err := CheckIndex(i); err != nil {
		return t, err
	}
	t.entries[i] = e
	return t, nil
}

// WithColor returns a copy of t with the colour of LED i replaced.
func (t Table) WithColor(i int, c Color) (Table, error) {
	if err := CheckIndex(i); err != nil {
		return t, err
	}
	t.entries[i].Color = c
	return t, nil
}

// WithBlink returns a copy of t with the blink state of LED i replaced.
func (t Table) WithBlink(i int, b Blink) (Table, error) {
	if err := CheckIndex(i); err != nil {
		return t, err
	}
	t.entries[i].Blink = b
	return t, nil
}

// String renders the table bottom to top, e.g. "[Red/Off Off/Off ...]".
func (t Table) String() string {
	parts := make([]string, Count)
	for i, e := range t.entries {
		parts[i] = e.Color.String() + "/" + e.Blink.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// CheckIndex returns ErrIndexOutOfRange unless 0 <= i < Count.
func CheckIndex(i int) error {
	if i < 0 || i >= Count {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return nil
}
