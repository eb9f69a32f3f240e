package led

import "errors"

// Sentinel errors for LED table operations.
var (
	// ErrIndexOutOfRange is returned for an LED index outside 0..6.
	ErrIndexOutOfRange = errors.New("led: index out of range")

	// ErrUnknownColor is returned when a colour name cannot be parsed.
	ErrUnknownColor = errors.New("led: unknown colour")
)
