package tool

import "context"

// Instance is a live tool object produced by a Factory.
type Instance any

// Factory constructs a tool instance. It must honor ctx cancellation where it can;
// the controller abandons it once the startup timeout elapses.
type Factory func(ctx context.Context) (Instance, error)

// Optional hooks, detected on the instance by type assertion.
type (
	Cleaner interface {
		Cleanup(ctx context.Context) error
	}

	Pauser interface {
		Pause(ctx context.Context) error
	}

	Resumer interface {
		Resume(ctx context.Context) error
	}

	HealthChecker interface {
		CheckHealth(ctx context.Context) error
	}
)
