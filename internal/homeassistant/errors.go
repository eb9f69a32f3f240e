package homeassistant

import (
	"errors"
	"fmt"
)

// Sentinel errors for Home Assistant operations.
var (
	// ErrNotConnected is returned when no authenticated connection exists.
	ErrNotConnected = errors.New("homeassistant: not connected")

	// ErrConnectionFailed is returned when dialling or authentication fails.
	ErrConnectionFailed = errors.New("homeassistant: connection failed")

	// ErrAuthFailed is returned when Home Assistant rejects the access token.
	ErrAuthFailed = errors.New("homeassistant: authentication failed")

	// ErrRequestFailed is returned when a command times out or cannot be sent.
	ErrRequestFailed = errors.New("homeassistant: request failed")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("homeassistant: client closed")
)

// CommandError is an unsuccessful command result.
type CommandError struct {
	Command string
	Code    string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("homeassistant: %s failed: %s: %s", e.Command, e.Code, e.Message)
}
