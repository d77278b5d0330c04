package pinger

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/skillcoder/toolmanager/internal/infra/metrics"
	"github.com/skillcoder/toolmanager/internal/infra/shutdown"
)

const defaultPingTimeout = time.Second

// target is a registered pinger with its resolved options.
type target struct {
	name           string
	ping           func(ctx context.Context) error
	readyCritical  bool
	healthCritical bool
	timeout        time.Duration
	stats          *record
}

// Service pings registered components on an interval and keeps per-component
// latency statistics for the probes and the status endpoint.
type Service struct {
	logger   *slog.Logger
	clock    clock.WithTicker
	interval time.Duration

	mu      sync.RWMutex
	targets map[string]*target

	ready      chan struct{}
	stop       chan struct{}
	doneCh     chan struct{}
	started    atomic.Bool
	inShutdown atomic.Bool
}

// New creates a pinger service with the specified interval.
func New(logger *slog.Logger, clk clock.WithTicker, interval time.Duration) *Service {
	return &Service{
		logger:   logger.With("component", "pinger-service"),
		clock:    clk,
		interval: interval,
		targets:  make(map[string]*target),
		ready:    make(chan struct{}),
		stop:     make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

var _ shutdown.Shutdowner = (*Service)(nil)

// Name returns the name of the pinger service component
func (s *Service) Name() string {
	return "pinger-service"
}

// Register adds a pinger. Names must be unique.
func (s *Service) Register(p Pinger) error {
	if p == nil {
		return fmt.Errorf("register pinger: %w", ErrNilPinger)
	}

	t := &target{
		name:           p.Name(),
		ping:           p.Ping,
		readyCritical:  true,
		healthCritical: true,
		timeout:        defaultPingTimeout,
		stats:          newRecord(),
	}

	if rc, ok := p.(readyCriticalPinger); ok {
		t.readyCritical = rc.PingerReadyCritical()
	}

	if hc, ok := p.(healthCriticalPinger); ok {
		t.healthCritical = hc.PingerCritical()
	}

	if tp, ok := p.(timeoutPinger); ok && tp.PingerTimeout() > 0 {
		t.timeout = tp.PingerTimeout()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.targets[t.name]; exists {
		return fmt.Errorf("register pinger %s: %w", t.name, ErrPingerAlreadyRegistered)
	}

	s.targets[t.name] = t

	s.logger.Info("pinger registered",
		"name", t.name,
		"readyCritical", t.readyCritical,
		"healthCritical", t.healthCritical,
		"timeout", t.timeout,
	)

	return nil
}

// Start runs the first round of pings and then pings on every interval.
func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "pinger service is shutting down, skipping start")

		return nil
	}

	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	go s.run(ctx)

	return nil
}

// Ready returns a channel that is closed after the first round of pings.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Shutdown stops the loop and waits for in-flight pings.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		return nil
	}

	close(s.stop)

	if !s.started.Load() {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before pinger loop exited: %w", ctx.Err())
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "pinger loop exited")
	}

	return nil
}

// GetStats returns statistics for a single pinger.
func (s *Service) GetStats(name string) (*Statistics, error) {
	s.mu.RLock()
	t, ok := s.targets[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("get stats %s: %w", name, ErrPingerNotFound)
	}

	return t.statistics(), nil
}

// GetAllStats returns statistics for every pinger, keyed by name.
func (s *Service) GetAllStats() map[string]*Statistics {
	out := make(map[string]*Statistics)

	for _, t := range s.snapshot() {
		out[t.name] = t.statistics()
	}

	return out
}

// Healthy reports whether every health-critical pinger last succeeded.
func (s *Service) Healthy() bool {
	for _, t := range s.snapshot() {
		if !t.statistics().IsHealthy {
			return false
		}
	}

	return true
}

// AllReady reports whether every ready-critical pinger last succeeded.
func (s *Service) AllReady() bool {
	for _, t := range s.snapshot() {
		if !t.statistics().IsReady {
			return false
		}
	}

	return true
}

func (s *Service) snapshot() []*target {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Collect(maps.Values(s.targets))
}

func (s *Service) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.pingAll(ctx)
	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "terminating pinger loop")

			return
		case <-s.stop:
			s.logger.InfoContext(ctx, "terminating pinger loop")

			return
		case <-ticker.C():
			s.pingAll(ctx)
		}
	}
}

// pingAll pings every target in parallel and waits for all of them.
func (s *Service) pingAll(ctx context.Context) {
	var g errgroup.Group

	for _, t := range s.snapshot() {
		g.Go(func() error {
			s.pingOne(ctx, t)

			return nil
		})
	}

	_ = g.Wait()
}

func (s *Service) pingOne(ctx context.Context, t *target) {
	pingCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := s.clock.Now()
	err := t.ping(pingCtx)
	latency := s.clock.Since(start)

	t.stats.observe(start, latency, err)
	metrics.ObserveComponentPing(t.name, latency.Seconds(), err)

	if err != nil {
		s.logger.DebugContext(ctx, "pinger error", "name", t.name, "latency", latency, "reason", err)

		return
	}

	s.logger.DebugContext(ctx, "pinger success", "name", t.name, "latency", latency)
}

func (t *target) statistics() *Statistics {
	st := t.stats.statistics()
	st.IsReady = !t.readyCritical || st.LastError == nil
	st.IsHealthy = !t.healthCritical || st.LastError == nil

	return st
}
