package pinger

import "errors"

var (
	// ErrPingerNotFound is returned when a pinger is not found
	ErrPingerNotFound = errors.New("pinger not found")

	// ErrPingerAlreadyRegistered is returned when a pinger with the same name exists
	ErrPingerAlreadyRegistered = errors.New("pinger already registered")

	// ErrNilPinger is returned when registering a nil pinger
	ErrNilPinger = errors.New("pinger is nil")
)
