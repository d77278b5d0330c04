package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"k8s.io/utils/clock"

	"github.com/skillcoder/toolmanager/internal/adapters/outbound/filestore"
	"github.com/skillcoder/toolmanager/internal/adapters/outbound/host"
	"github.com/skillcoder/toolmanager/internal/config"
	"github.com/skillcoder/toolmanager/internal/httpserver"
	"github.com/skillcoder/toolmanager/internal/infra/appstate"
	"github.com/skillcoder/toolmanager/internal/infra/cronparser"
	"github.com/skillcoder/toolmanager/internal/infra/pinger"
	"github.com/skillcoder/toolmanager/internal/infra/shutdown"
	"github.com/skillcoder/toolmanager/internal/logic/controller"
	"github.com/skillcoder/toolmanager/internal/logic/lifecycle"
	"github.com/skillcoder/toolmanager/internal/logic/resource"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
	"github.com/skillcoder/toolmanager/internal/tools"

	// Built-in tools register themselves.
	_ "github.com/skillcoder/toolmanager/internal/tools/ballast"
	_ "github.com/skillcoder/toolmanager/internal/tools/heartbeat"
)

var ErrStartupAborted = errors.New("startup aborted")

type App struct {
	logger     *slog.Logger
	appState   appstater
	signals    signalHandler
	pingers    component
	components []component
}

// New wires every component of the tool manager. Nothing is started yet.
func New(logger *slog.Logger, cfg *config.Config, signals <-chan os.Signal) (*App, error) {
	clk := clock.RealClock{}

	reader, err := host.New(logger, cfg.ProcPath, cfg.DiskPath)
	if err != nil {
		return nil, fmt.Errorf("create host reader: %w", err)
	}

	registry := tool.NewRegistry()
	store := filestore.New(logger, cfg.ConfigFile)

	service := controller.New(
		logger,
		registry,
		lifecycle.New(logger, registry, clk, cfg.MaxErrorCount),
		resource.NewSampler(logger, reader, clk, cfg.Thresholds, cfg.HistorySize),
		store,
		cronparser.New(),
		clk,
		controller.Options{
			MonitorInterval:  cfg.MonitorInterval,
			Policy:           cfg.Policy,
			RestartJitterMax: cfg.RestartJitterMax,
			Builtins:         tools.Factories(logger, tools.Options{BallastMB: cfg.BallastMB}),
		},
	)

	pingers := pinger.New(logger, clk, cfg.PingerInterval)
	appState := appstate.New(logger, clk, cfg.TerminationFile, signals, pingers)

	pinged := []pingedComponent{service}

	if cfg.WatchConfig {
		pinged = append(pinged, filestore.NewWatcher(logger, cfg.ConfigFile, filestore.DefaultDebounce, service.Reload))
	}

	pinged = append(pinged,
		httpserver.NewMetricsServer(logger, cfg.MetricsPort),
		httpserver.New(logger, appState, service, cfg.HTTPPort),
	)

	a := &App{
		logger:     logger.With("component", "app"),
		appState:   appState,
		signals:    shutdown.New(logger, appState, cfg.TerminationFile),
		pingers:    pingers,
		components: make([]component, 0, len(pinged)),
	}

	// Shutdown runs in reverse registration order, so the pinger stops last.
	appState.RegisterShutdowner(pingers)

	for _, c := range pinged {
		if err := appState.RegisterPinger(c); err != nil {
			return nil, fmt.Errorf("register pinger %s: %w", c.Name(), err)
		}

		appState.RegisterShutdowner(c)
		a.components = append(a.components, c)
	}

	return a, nil
}

// Run starts every component, waits until they are ready, then blocks until
// a termination signal or ctx cancellation and shuts everything down.
func (a *App) Run(originCtx context.Context) error {
	err := a.signals.CheckTermination(originCtx)
	if err != nil {
		return fmt.Errorf("check termination: %w", err)
	}

	ctx, cancel := context.WithCancel(originCtx)
	defer cancel()

	go a.signals.HandleSignals(ctx, cancel)

	if err := a.appState.SetStarting(ctx); err != nil {
		return fmt.Errorf("set starting application state: %w", err)
	}

	runErr := a.start(ctx)
	if runErr == nil {
		a.logger.InfoContext(ctx, "tool manager is running", "state", a.appState.GetState())

		<-ctx.Done()
	}

	a.logger.InfoContext(ctx, "shutting down")

	if err := a.appState.Shutdown(ctx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown application: %w", err))
	}

	return runErr
}

func (a *App) start(ctx context.Context) error {
	readyChans := make([]<-chan struct{}, 0, len(a.components)+1)

	for _, c := range a.components {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", c.Name(), err)
		}

		readyChans = append(readyChans, c.Ready())
	}

	if err := a.pingers.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", a.pingers.Name(), err)
	}

	readyChans = append(readyChans, a.pingers.Ready())

	<-allChannelsClose(ctx, a.logger, readyChans...)

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrStartupAborted, context.Cause(ctx))
	}

	if err := a.appState.SetRunning(ctx); err != nil {
		return fmt.Errorf("set running application state: %w", err)
	}

	return nil
}

// allChannelsClose returns a channel closed once every input channel is
// closed or ctx is done.
func allChannelsClose(ctx context.Context, logger *slog.Logger, chans ...<-chan struct{}) <-chan struct{} {
	out := make(chan struct{})

	if len(chans) == 0 {
		close(out)

		return out
	}

	var wg sync.WaitGroup

	for _, ch := range chans {
		wg.Go(func() {
			select {
			case <-ch:
			case <-ctx.Done():
			}
		})
	}

	go func() {
		wg.Wait()
		logger.DebugContext(ctx, "all components reported ready or context done")
		close(out)
	}()

	return out
}
