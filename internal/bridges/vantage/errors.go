package vantage

import "errors"

// Domain errors for the MQTT bridge.
var (
	// ErrNotConnected is returned when publishing while the broker link is down.
	ErrNotConnected = errors.New("vantage: mqtt not connected")

	// ErrUnknownStation is returned for commands addressed to an entry the
	// bridge has not announced.
	ErrUnknownStation = errors.New("vantage: unknown station")

	// ErrInvalidCommand is returned for malformed command topics.
	ErrInvalidCommand = errors.New("vantage: invalid command")
)
