package zwave

import (
	"errors"
	"fmt"
)

// Sentinel errors for the Z-Wave codec.
var (
	// ErrNoNodeID is returned when a device carries no usable Z-Wave node id.
	ErrNoNodeID = errors.New("zwave: device has no node id")

	// ErrLedIndex is returned for an LED index outside 0..6.
	ErrLedIndex = errors.New("zwave: led index out of range")
)

// NodeIDError describes why a node id could not be derived from a device.
//
// It matches ErrNoNodeID with errors.Is.
type NodeIDError struct {
	DeviceID string
	Reason   string
}

func (e *NodeIDError) Error() string {
	return fmt.Sprintf("zwave: device %s has no node id: %s", e.DeviceID, e.Reason)
}

// Is reports whether target is ErrNoNodeID.
func (e *NodeIDError) Is(target error) bool {
	return target == ErrNoNodeID
}
