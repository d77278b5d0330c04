package appstate

import (
	"context"

	"github.com/skillcoder/toolmanager/internal/infra/pinger"
	"github.com/skillcoder/toolmanager/internal/infra/shutdown"
)

// pingerServer is the part of the pinger service the app state drives.
type pingerServer interface {
	Start(ctx context.Context) error
	Ready() <-chan struct{}
	shutdown.Shutdowner
	Register(p pinger.Pinger) error
	GetAllStats() map[string]*pinger.Statistics
	Healthy() bool
	AllReady() bool
}

// prober is what the probe handlers read.
type prober interface {
	IsHealthy() bool
	IsReady() bool
	Status() Status
}
