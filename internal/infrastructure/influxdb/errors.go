package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Callers treat it as "run without time-series export".
	ErrDisabled = errors.New("influxdb: export disabled")

	ErrConnectionFailed = errors.New("influxdb: server unreachable")
	ErrUnhealthy        = errors.New("influxdb: server reports unhealthy")
	ErrNotConnected     = errors.New("influxdb: client closed")

	// ErrWriteFailed wraps batch errors delivered to SetOnError.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
