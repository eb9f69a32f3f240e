package led

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarshalText encodes the colour by name.
func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownColor, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a colour name, ignoring case.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText encodes the blink state as "On" or "Off".
func (b Blink) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("led: invalid blink state %d", int(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText accepts "on" or "off" in any case.
func (b *Blink) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "on":
		*b = BlinkOn
	case "off":
		*b = BlinkOff
	default:
		return fmt.Errorf("led: invalid blink state %q", string(text))
	}
	return nil
}

// MarshalJSON encodes the table as an array of seven entries, bottom first.
func (t Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.entries[:])
}

// UnmarshalJSON decodes an array of exactly seven entries.
func (t *Table) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if len(entries) != Count {
		return fmt.Errorf("led: table needs %d entries, got %d", Count, len(entries))
	}
	copy(t.entries[:], entries)
	return nil
}
