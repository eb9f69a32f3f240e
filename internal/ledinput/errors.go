package ledinput

import "errors"

// Sentinel errors for the input aggregator.
var (
	// ErrConfiguration is the parent of every pattern validation error.
	ErrConfiguration = errors.New("ledinput: invalid configuration")

	// ErrBlankPattern is returned when a channel naming pattern is empty.
	ErrBlankPattern = errors.New("ledinput: channel pattern is blank")

	// ErrAmbiguousPatterns is returned when the colour and blink patterns are identical.
	ErrAmbiguousPatterns = errors.New("ledinput: colour and blink patterns are identical")

	// ErrMissingPlaceholder is returned when a pattern has no {0} placeholder.
	ErrMissingPlaceholder = errors.New("ledinput: channel pattern has no {0} placeholder")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("ledinput: already started")
)
