package mqtt

import "errors"

var (
	ErrNotConnected     = errors.New("mqtt: not connected to broker")
	ErrConnectionFailed = errors.New("mqtt: could not connect to broker")
	ErrTimeout          = errors.New("mqtt: no broker acknowledgement")

	ErrPublishFailed   = errors.New("mqtt: publish rejected")
	ErrSubscribeFailed = errors.New("mqtt: subscribe rejected")

	// ErrInvalidQoS means a QoS outside 0-2.
	ErrInvalidQoS      = errors.New("mqtt: qos out of range")
	ErrInvalidTopic    = errors.New("mqtt: empty topic")
	ErrPayloadTooLarge = errors.New("mqtt: payload exceeds 1 MiB")
)
