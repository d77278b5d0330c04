package resource

import "context"

// HostReader is the port for reading raw host counters.
// Implementations are provided by adapters in the outbound layer.
type HostReader interface {
	Read(ctx context.Context) (HostStats, error)
}
