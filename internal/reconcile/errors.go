package reconcile

import "errors"

// Sentinel errors for reconciliation.
var (
	// ErrReadConfiguration is returned when a device's LED configuration
	// cannot be read or decoded. The device is skipped for that attempt.
	ErrReadConfiguration = errors.New("reconcile: reading dimmer configuration failed")

	// ErrWriteRejected is returned when the registry answers a write with a
	// status other than "accepted".
	ErrWriteRejected = errors.New("reconcile: parameter write rejected")

	// ErrMissingDependency is returned by New when a required dependency is nil.
	ErrMissingDependency = errors.New("reconcile: missing dependency")
)
