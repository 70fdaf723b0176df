package history

import "errors"

var (
	// ErrDisabled is returned by Connect when history recording is turned off.
	ErrDisabled = errors.New("influxdb history disabled")

	// ErrConnectionFailed is returned when the server cannot be reached or reports unhealthy.
	ErrConnectionFailed = errors.New("influxdb connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb not connected")
)
