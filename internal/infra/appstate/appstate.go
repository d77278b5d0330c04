package appstate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"syscall"
	"time"

	"k8s.io/utils/clock"

	"github.com/skillcoder/toolmanager/internal/infra/pinger"
	"github.com/skillcoder/toolmanager/internal/infra/shutdown"
)

// State represents the application state
type State string

const (
	// StateInit is the initial state when the application is created
	StateInit State = "init"

	// StateStarting is the state while components are starting
	StateStarting State = "starting"

	// StateRunning is the state when the application is running normally
	StateRunning State = "running"

	// StateTerminating is the state when the application is shutting down
	StateTerminating State = "terminating"

	// StateTerminated is the final state
	StateTerminated State = "terminated"
)

const defaultShutdownersCount = 16

// ComponentStatus is the probe view of a single pinged component.
type ComponentStatus struct {
	Healthy   bool
	Ready     bool
	LastPing  time.Time
	LastError string
	P90       time.Duration
}

// Status is a snapshot of the process state for the status endpoint.
type Status struct {
	State      State
	StartTime  time.Time
	ReadyAt    *time.Time
	Uptime     time.Duration
	Components []NamedComponentStatus
}

// NamedComponentStatus pairs a component name with its status.
type NamedComponentStatus struct {
	Name string
	ComponentStatus
}

// AppState tracks the process lifecycle, owns the registered shutdowners
// and combines component pings into the liveness and readiness answers.
type AppState struct {
	logger          *slog.Logger
	clock           clock.PassiveClock
	quit            <-chan os.Signal
	terminationFile string
	pinger          pingerServer

	mu            sync.RWMutex
	startedAt     time.Time
	readyAt       *time.Time
	terminatingAt *time.Time
	state         State
	shutdowners   []shutdown.Shutdowner
}

// New creates the app state; startedAt is taken from clk.
func New(
	logger *slog.Logger,
	clk clock.PassiveClock,
	terminationFile string,
	quit <-chan os.Signal,
	pingers pingerServer,
) *AppState {
	return &AppState{
		logger:          logger.With("component", "appstate"),
		clock:           clk,
		quit:            quit,
		terminationFile: terminationFile,
		pinger:          pingers,
		startedAt:       clk.Now(),
		state:           StateInit,
		shutdowners:     make([]shutdown.Shutdowner, 0, defaultShutdownersCount),
	}
}

func (s *AppState) RegisterPinger(p pinger.Pinger) error {
	return s.pinger.Register(p)
}

// RegisterShutdowner appends a component; shutdown runs in reverse order.
func (s *AppState) RegisterShutdowner(sd shutdown.Shutdowner) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shutdowners = append(s.shutdowners, sd)
}

func (s *AppState) GetAllStats() map[string]*pinger.Statistics {
	return s.pinger.GetAllStats()
}

// SetStarting transitions the state from Init to Starting
func (s *AppState) SetStarting(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInit {
		return fmt.Errorf("set starting from %s: %w", s.state, ErrInvalidStateTransition)
	}

	s.state = StateStarting

	return nil
}

// SetRunning transitions the state from Starting to Running. If the
// termination file appeared while starting, it asks the process to stop.
func (s *AppState) SetRunning(ctx context.Context) error {
	if err := s.setRunning(); err != nil {
		return err
	}

	if shutdown.CheckTerminationFile(ctx, s.logger, s.terminationFile) {
		pid := os.Getpid()
		s.logger.InfoContext(ctx, "termination file found after initialization, sending SIGTERM", "pid", pid)

		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
			s.logger.ErrorContext(ctx, "failed to send SIGTERM", "reason", err, "pid", pid)
		}
	}

	return nil
}

func (s *AppState) setRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarting {
		return fmt.Errorf("set running from %s: %w", s.state, ErrInvalidStateTransition)
	}

	now := s.clock.Now()
	s.readyAt = &now
	s.state = StateRunning

	return nil
}

// SetTerminating moves any live state to Terminating.
func (s *AppState) SetTerminating(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return fmt.Errorf("set terminating: %w", ErrAlreadyTerminated)
	}

	if s.terminatingAt == nil {
		now := s.clock.Now()
		s.terminatingAt = &now
	}

	s.state = StateTerminating

	return nil
}

// GetState returns the current application state
func (s *AppState) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// GetStartTime returns the time when the application started
func (s *AppState) GetStartTime() time.Time {
	return s.startedAt
}

// GetUptime returns the duration since the application started
func (s *AppState) GetUptime() time.Duration {
	return s.clock.Since(s.startedAt)
}

// IsHealthy is true while running and every health-critical component answers.
func (s *AppState) IsHealthy() bool {
	return s.GetState() == StateRunning && s.pinger.Healthy()
}

// IsReady is true once running and every ready-critical component answers.
func (s *AppState) IsReady() bool {
	s.mu.RLock()
	running := s.state == StateRunning && s.readyAt != nil
	s.mu.RUnlock()

	return running && s.pinger.AllReady()
}

// Status returns the state together with per-component ping results.
func (s *AppState) Status() Status {
	s.mu.RLock()
	st := Status{
		State:     s.state,
		StartTime: s.startedAt,
		ReadyAt:   s.readyAt,
	}
	s.mu.RUnlock()

	st.Uptime = s.GetUptime()

	for name, stats := range s.pinger.GetAllStats() {
		c := NamedComponentStatus{
			Name: name,
			ComponentStatus: ComponentStatus{
				Healthy:  stats.IsHealthy,
				Ready:    stats.IsReady,
				LastPing: stats.LastRun,
				P90:      stats.Success.P90,
			},
		}

		if stats.LastError != nil {
			c.LastError = stats.LastError.Error()
		}

		st.Components = append(st.Components, c)
	}

	sort.Slice(st.Components, func(i, j int) bool {
		return st.Components[i].Name < st.Components[j].Name
	})

	return st
}

// Quit returns the channel that receives the termination signal.
func (s *AppState) Quit() <-chan os.Signal {
	return s.quit
}

// Shutdown stops every registered component and marks the app terminated.
// Calling it again after termination is a no-op.
func (s *AppState) Shutdown(ctx context.Context) error {
	if s.GetState() == StateTerminated {
		return nil
	}

	if err := s.SetTerminating(ctx); err != nil {
		return fmt.Errorf("set terminating application state: %w", err)
	}

	s.mu.RLock()
	shutdowners := append([]shutdown.Shutdowner(nil), s.shutdowners...)
	s.mu.RUnlock()

	err := shutdown.GracefulShutdown(ctx, s.logger, shutdowners)

	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
