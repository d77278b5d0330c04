package app

import (
	"context"
	"os"

	"github.com/skillcoder/toolmanager/internal/infra/appstate"
	"github.com/skillcoder/toolmanager/internal/infra/pinger"
	"github.com/skillcoder/toolmanager/internal/infra/shutdown"
)

// appstater defines the interface for application state management
type appstater interface {
	RegisterPinger(pinger pinger.Pinger) error
	RegisterShutdowner(shutdowner shutdown.Shutdowner)
	Quit() <-chan os.Signal
	SetStarting(ctx context.Context) error
	SetRunning(ctx context.Context) error
	GetState() appstate.State
	Shutdown(ctx context.Context) error
}

type signalHandler interface {
	HandleSignals(ctx context.Context, cancel func())
	CheckTermination(ctx context.Context) error
}

// component is a long-running part of the process started by Run.
type component interface {
	Start(ctx context.Context) error
	Ready() <-chan struct{}
	shutdown.Shutdowner
}

// pingedComponent is a component whose liveness feeds the probes.
type pingedComponent interface {
	component
	pinger.Pinger
}
