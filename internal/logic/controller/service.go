package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/skillcoder/toolmanager/internal/infra/metrics"
	"github.com/skillcoder/toolmanager/internal/logic/lifecycle"
	"github.com/skillcoder/toolmanager/internal/logic/resource"
	"github.com/skillcoder/toolmanager/internal/logic/scaling"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

// Service is the tool manager: it owns the registry, the lifecycle controller
// and the monitoring loop, and exposes the programmatic API.
type Service struct {
	logger    *slog.Logger
	registry  *tool.Registry
	lifecycle *lifecycle.Controller
	sampler   *resource.Sampler
	store     ConfigStore
	scheduler RestartScheduler
	clock     clock.WithTicker

	interval  time.Duration
	policy    scaling.Policy
	jitterMax time.Duration
	builtins  map[string]tool.Factory

	autoScaling atomic.Bool
	ready       chan struct{}
	inShutdown  atomic.Bool

	// settingsMu makes each settings mutation and its save one step, and
	// keeps loads from landing between them.
	settingsMu sync.Mutex
	// unsaved is set while the last save failed; reloads are refused then.
	unsaved atomic.Bool

	loopMu     sync.Mutex
	loopCtx    context.Context
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	tickMu   sync.RWMutex
	lastTick time.Time

	restartMu sync.Mutex
	restarts  map[string]restartPlan
}

// New creates a tool manager service.
func New(
	logger *slog.Logger,
	registry *tool.Registry,
	lifecycleController *lifecycle.Controller,
	sampler *resource.Sampler,
	store ConfigStore,
	scheduler RestartScheduler,
	clk clock.WithTicker,
	opts Options,
) *Service {
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = DefaultMonitorInterval
	}

	s := &Service{
		logger:    logger.With("component", "tool-manager"),
		registry:  registry,
		lifecycle: lifecycleController,
		sampler:   sampler,
		store:     store,
		scheduler: scheduler,
		clock:     clk,
		interval:  opts.MonitorInterval,
		policy:    opts.Policy,
		jitterMax: opts.RestartJitterMax,
		builtins:  opts.Builtins,
		ready:     make(chan struct{}),
		restarts:  make(map[string]restartPlan),
	}

	s.autoScaling.Store(true)

	return s
}

// Start loads the stored settings, registers the built-in tools, autostarts
// enabled tools and begins monitoring. A config store failure is logged and
// the service continues with what it has.
func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "tool manager is shutting down, skipping start")

		return nil
	}

	if err := s.Load(ctx); err != nil {
		s.logger.ErrorContext(ctx, "starting with in-memory settings only", "reason", err)
	}

	for _, name := range slices.Sorted(maps.Keys(s.builtins)) {
		if err := s.RegisterToolFactory(ctx, name, s.builtins[name]); err != nil {
			return fmt.Errorf("register built-in tool %s: %w", name, err)
		}
	}

	s.StartEnabledTools(ctx)
	s.StartMonitoring(ctx)

	close(s.ready)

	return nil
}

// Name returns the name of the component.
func (s *Service) Name() string {
	return serviceName
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Ping fails when the monitoring loop is not running or has not ticked recently.
func (s *Service) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.Monitoring() {
		return ErrNotMonitoring
	}

	age := s.clock.Since(s.LastTick())
	if age > staleTickFactor*s.interval {
		return fmt.Errorf("%w: %s", ErrStaleTick, age.Round(time.Second))
	}

	return nil
}

// Shutdown stops monitoring and every running tool.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.ErrorContext(ctx, "tool manager is already shutting down, skipping shutdown")

		return nil
	}

	defer func() {
		s.logger.InfoContext(ctx, "tool manager shut down")
	}()

	s.logger.InfoContext(ctx, "shutting down tool manager")

	if err := s.StopMonitoring(ctx); err != nil {
		return err
	}

	if err := s.lifecycle.StopAll(ctx); err != nil {
		return fmt.Errorf("stop tools: %w", err)
	}

	return nil
}

// Load reads the stored settings into the registry. Stored configurations
// replace in-memory ones; factories and runtime state are kept.
func (s *Service) Load(ctx context.Context) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	settings, err := s.store.Load(ctx)
	if err != nil {
		metrics.RecordConfigPersistFailure(persistOpLoad)

		return fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	s.applyLocked(ctx, settings)

	return nil
}

// Reload re-reads the stored settings after an external edit of the config
// file. Content matching the in-memory settings, such as the service's own
// saves, is ignored. While an in-memory change is unsaved the file is stale
// and is not applied.
func (s *Service) Reload(ctx context.Context) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	if s.unsaved.Load() {
		s.logger.WarnContext(ctx, "in-memory settings are not saved yet, ignoring config file change")

		return
	}

	settings, err := s.store.Load(ctx)
	if err != nil {
		metrics.RecordConfigPersistFailure(persistOpLoad)
		s.logger.ErrorContext(ctx, "reload settings", "reason", fmt.Errorf("%w: %w", ErrLoadConfig, err))

		return
	}

	if s.matchesLocked(settings) {
		s.logger.DebugContext(ctx, "config file matches in-memory settings, nothing to reload")

		return
	}

	s.applyLocked(ctx, settings)
}

// applyLocked requires settingsMu to be held.
func (s *Service) applyLocked(ctx context.Context, settings tool.Settings) {
	s.autoScaling.Store(settings.AutoScalingEnabled)

	for name, cfg := range settings.Tools {
		cfg.Name = name

		if _, err := s.registry.Put(cfg); err != nil {
			s.logger.WarnContext(ctx, "skipping stored tool config", "tool", name, "reason", err)

			continue
		}

		s.lifecycle.Track(name)
	}

	s.logger.InfoContext(ctx, "settings loaded",
		"tools", len(settings.Tools),
		"autoScaling", settings.AutoScalingEnabled,
	)
}

// matchesLocked reports whether every stored value equals the in-memory one.
func (s *Service) matchesLocked(settings tool.Settings) bool {
	if settings.AutoScalingEnabled != s.autoScaling.Load() {
		return false
	}

	current := s.registry.Configs()

	for name, cfg := range settings.Tools {
		cfg.Name = name

		have, ok := current[name]
		if !ok || !have.Equal(cfg) {
			return false
		}
	}

	return true
}

// StartEnabledTools starts every tool whose config has enabled=true and that
// has a registered factory.
func (s *Service) StartEnabledTools(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	for name, cfg := range s.registry.Configs() {
		if !cfg.Enabled {
			continue
		}

		if _, ok := s.registry.Factory(name); !ok {
			s.logger.DebugContext(ctx, "enabled tool has no factory yet, skipping autostart", "tool", name)

			continue
		}

		if err := s.lifecycle.Start(ctx, name); err != nil {
			s.logger.WarnContext(ctx, "autostart failed", "tool", name, "reason", err)
		}
	}
}

// RegisterToolFactory registers or replaces the factory of name. A tool seen
// for the first time gets the default config, which is persisted.
func (s *Service) RegisterToolFactory(ctx context.Context, name string, factory tool.Factory) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	created, err := s.registry.Register(name, factory)
	if err != nil {
		return fmt.Errorf("register tool: %w", err)
	}

	s.lifecycle.Track(name)

	s.logger.InfoContext(ctx, "tool factory registered", "tool", name, "newConfig", created)

	if created {
		s.persistLocked(ctx)
	}

	return nil
}

// UnregisterTool stops name and forgets its factory, config and runtime state.
func (s *Service) UnregisterTool(ctx context.Context, name string) bool {
	if err := s.lifecycle.Untrack(context.WithoutCancel(ctx), name); err != nil {
		s.logger.WarnContext(ctx, "stop before unregister failed", "tool", name, "reason", err)
	}

	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	if !s.registry.Unregister(name) {
		return false
	}

	s.forgetRestart(name)
	s.persistLocked(ctx)

	s.logger.InfoContext(ctx, "tool unregistered", "tool", name)

	return true
}

// EnableTool starts name and its dependencies. It reports whether the tool is
// enabled afterwards; failures are visible through GetToolStatus.
func (s *Service) EnableTool(ctx context.Context, name string) bool {
	return s.command(ctx, "enable", name, s.lifecycle.Start)
}

// DisableTool stops name.
func (s *Service) DisableTool(ctx context.Context, name string) bool {
	return s.command(ctx, "disable", name, s.lifecycle.Stop)
}

// PauseTool pauses an enabled tool.
func (s *Service) PauseTool(ctx context.Context, name string) bool {
	return s.command(ctx, "pause", name, s.lifecycle.Pause)
}

// ResumeTool resumes a paused tool.
func (s *Service) ResumeTool(ctx context.Context, name string) bool {
	return s.command(ctx, "resume", name, s.lifecycle.Resume)
}

// EnableToolAsync runs EnableTool in the background. The channel yields the
// result once and is then closed; callers may ignore it.
func (s *Service) EnableToolAsync(ctx context.Context, name string) <-chan bool {
	return s.async(ctx, name, s.EnableTool)
}

// DisableToolAsync runs DisableTool in the background.
func (s *Service) DisableToolAsync(ctx context.Context, name string) <-chan bool {
	return s.async(ctx, name, s.DisableTool)
}

// PauseToolAsync runs PauseTool in the background.
func (s *Service) PauseToolAsync(ctx context.Context, name string) <-chan bool {
	return s.async(ctx, name, s.PauseTool)
}

// ResumeToolAsync runs ResumeTool in the background.
func (s *Service) ResumeToolAsync(ctx context.Context, name string) <-chan bool {
	return s.async(ctx, name, s.ResumeTool)
}

// command runs a lifecycle operation detached from ctx cancellation, so a
// caller that goes away never leaves a tool mid-transition.
func (s *Service) command(
	ctx context.Context,
	op, name string,
	fn func(context.Context, string) error,
) bool {
	err := fn(context.WithoutCancel(ctx), name)
	if err == nil {
		return true
	}

	if errors.Is(err, tool.ErrToolNotFound) && !s.known(name) {
		s.logger.WarnContext(ctx, "unknown tool", "op", op, "tool", name)
	} else {
		s.logger.WarnContext(ctx, "tool command failed", "op", op, "tool", name, "reason", err)
	}

	return false
}

func (s *Service) async(
	ctx context.Context,
	name string,
	fn func(context.Context, string) bool,
) <-chan bool {
	result := make(chan bool, 1)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(result)

		result <- fn(ctx, name)
	}()

	return result
}

func (s *Service) known(name string) bool {
	_, ok := s.registry.Config(name)

	return ok
}

// GetToolStatus returns a copy of the runtime record of name.
func (s *Service) GetToolStatus(name string) (tool.RuntimeInfo, bool) {
	return s.lifecycle.Info(name)
}

// GetAllToolStatuses returns a copy of every runtime record keyed by name.
func (s *Service) GetAllToolStatuses() map[string]tool.RuntimeInfo {
	infos := s.lifecycle.Infos()

	out := make(map[string]tool.RuntimeInfo, len(infos))
	for _, info := range infos {
		out[info.Name] = info
	}

	return out
}

// GetSystemResources reads the host without disturbing the monitoring
// loop's CPU baseline or rolling history.
func (s *Service) GetSystemResources(ctx context.Context) resource.Snapshot {
	return s.sampler.Peek(ctx)
}

// GetResourceLevel classifies the current resource pressure.
func (s *Service) GetResourceLevel(ctx context.Context) resource.Level {
	return s.sampler.Level(s.sampler.Peek(ctx))
}

// Level classifies a snapshot with the configured thresholds.
func (s *Service) Level(snapshot resource.Snapshot) resource.Level {
	return s.sampler.Level(snapshot)
}

// AverageCPU returns the mean CPU percent over the trailing window.
func (s *Service) AverageCPU(window time.Duration) float64 {
	return s.sampler.AverageCPU(window)
}

// SetAutoScaling turns the auto-scaling policy on or off and persists the flag.
func (s *Service) SetAutoScaling(ctx context.Context, enabled bool) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	if s.autoScaling.Swap(enabled) == enabled {
		return
	}

	s.logger.InfoContext(ctx, "auto-scaling changed", "enabled", enabled)
	s.persistLocked(ctx)
}

// AutoScalingEnabled reports whether the policy is applied on each tick.
func (s *Service) AutoScalingEnabled() bool {
	return s.autoScaling.Load()
}

// UpdateToolConfig validates and merges patch into the config of name, then
// persists. It returns false, without writing, for unknown tools and invalid patches.
func (s *Service) UpdateToolConfig(ctx context.Context, name string, patch tool.ConfigPatch) bool {
	if patch.RestartSchedule != nil && *patch.RestartSchedule != "" {
		if err := s.scheduler.Validate(*patch.RestartSchedule); err != nil {
			s.logger.WarnContext(ctx, "rejected config update", "tool", name,
				"reason", fmt.Errorf("%w: %w", ErrInvalidSchedule, err))

			return false
		}
	}

	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	cfg, err := s.registry.UpdateConfig(name, patch)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected config update", "tool", name, "reason", err)

		return false
	}

	s.logger.InfoContext(ctx, "tool config updated", "tool", name, "priority", cfg.Priority)
	s.persistLocked(ctx)

	return true
}

// persistLocked writes the current settings and requires settingsMu to be held.
// Failures are logged and counted; the in-memory state stays authoritative
// until the next successful save.
func (s *Service) persistLocked(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	settings := tool.Settings{
		AutoScalingEnabled: s.autoScaling.Load(),
		Tools:              s.registry.Configs(),
	}

	if err := s.store.Save(ctx, settings); err != nil {
		s.unsaved.Store(true)
		metrics.RecordConfigPersistFailure(persistOpSave)
		s.logger.ErrorContext(ctx, "failed to persist settings", "reason", err)

		return
	}

	s.unsaved.Store(false)
}
