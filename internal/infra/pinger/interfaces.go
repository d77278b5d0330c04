package pinger

import (
	"context"
	"time"
)

// Pinger is implemented by every component whose liveness feeds the probes.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// Optional knobs, detected on the pinger by type assertion. Pingers are
// ready- and health-critical by default.
type (
	readyCriticalPinger interface {
		PingerReadyCritical() bool
	}

	healthCriticalPinger interface {
		PingerCritical() bool
	}

	timeoutPinger interface {
		PingerTimeout() time.Duration
	}
)
