package shutdown

import (
	"context"
	"os"
)

// Shutdowner is implemented by every component that owns goroutines or
// external resources.
type Shutdowner interface {
	Name() string
	Shutdown(ctx context.Context) error
}

type quiter interface {
	Quit() <-chan os.Signal
}
