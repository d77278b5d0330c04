package lifecycle

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/clock"

	"github.com/skillcoder/toolmanager/internal/infra/metrics"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

var statusLabels = func() []string {
	labels := make([]string, 0, len(tool.Statuses))
	for _, s := range tool.Statuses {
		labels = append(labels, string(s))
	}

	return labels
}()

type entry struct {
	// transition serializes lifecycle operations of one tool.
	transition sync.Mutex
	// info and removed are guarded by Controller.mu.
	info tool.RuntimeInfo
	removed bool
}

// Controller owns the live tool instances and moves each tool through its
// lifecycle state machine.
type Controller struct {
	logger    *slog.Logger
	registry  *tool.Registry
	clock     clock.PassiveClock
	maxErrors int
	newID     func() string

	mu      sync.RWMutex
	entries map[string]*entry
	live    map[string]tool.Instance
}

// New creates a controller over the tools of registry. A tool is stopped once its
// error count exceeds maxErrors; non-positive values use DefaultMaxErrors.
func New(logger *slog.Logger, registry *tool.Registry, clk clock.PassiveClock, maxErrors int) *Controller {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}

	return &Controller{
		logger:    logger.With("component", "lifecycle-controller"),
		registry:  registry,
		clock:     clk,
		maxErrors: maxErrors,
		newID:     uuid.NewString,
		entries:   make(map[string]*entry),
		live:      make(map[string]tool.Instance),
	}
}

// Track creates a DISABLED runtime record for name if it has none yet.
func (c *Controller) Track(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.trackLocked(name)
}

func (c *Controller) trackLocked(name string) bool {
	if _, ok := c.entries[name]; ok {
		return false
	}

	c.entries[name] = &entry{info: tool.RuntimeInfo{Name: name, Status: tool.StatusDisabled}}
	metrics.SetToolStatus(name, string(tool.StatusDisabled), statusLabels)

	return true
}

// Untrack stops the tool and drops its runtime record.
func (c *Controller) Untrack(ctx context.Context, name string) error {
	e, ok := c.lookup(name)
	if !ok {
		return nil
	}

	e.transition.Lock()
	defer e.transition.Unlock()

	if c.isRemoved(e) {
		return nil
	}

	if err := c.stopLocked(ctx, e, name); err != nil {
		return err
	}

	c.mu.Lock()
	e.removed = true
	if c.entries[name] == e {
		delete(c.entries, name)
	}
	c.mu.Unlock()

	metrics.DeleteTool(name)

	return nil
}

// Info returns a copy of the runtime record of name.
func (c *Controller) Info(name string) (tool.RuntimeInfo, bool) {
	c.mu.RLock()
	e, ok := c.entries[name]

	var info tool.RuntimeInfo
	if ok {
		info = e.info
	}
	c.mu.RUnlock()

	if !ok {
		return tool.RuntimeInfo{}, false
	}

	return c.withConfig(info), true
}

// Infos returns a copy of every runtime record, sorted by name.
func (c *Controller) Infos() []tool.RuntimeInfo {
	c.mu.RLock()
	infos := make([]tool.RuntimeInfo, 0, len(c.entries))
	for _, e := range c.entries {
		infos = append(infos, e.info)
	}
	c.mu.RUnlock()

	for i := range infos {
		infos[i] = c.withConfig(infos[i])
	}

	slices.SortFunc(infos, func(a, b tool.RuntimeInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return infos
}

// Instance returns the live instance of name, if any.
func (c *Controller) Instance(name string) (tool.Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	inst, ok := c.live[name]

	return inst, ok
}

// Start enables name, starting its dependencies first. Starting an active tool
// is a no-op. A failing factory leaves the tool in ERROR.
func (c *Controller) Start(ctx context.Context, name string) error {
	return c.start(ctx, name, sets.New[string]())
}

func (c *Controller) start(ctx context.Context, name string, visiting sets.Set[string]) error {
	if visiting.Has(name) {
		return fmt.Errorf("start %s: %w", name, ErrDependencyCycle)
	}

	visiting.Insert(name)
	defer visiting.Delete(name)

	cfg, ok := c.registry.Config(name)
	if !ok {
		return fmt.Errorf("start %s: %w", name, tool.ErrToolNotFound)
	}

	factory, ok := c.registry.Factory(name)
	if !ok {
		return fmt.Errorf("start %s: %w", name, ErrFactoryMissing)
	}

	e := c.ensure(name)

	if c.status(name).IsActive() {
		return nil
	}

	for _, dep := range cfg.Dependencies {
		if err := c.startDependency(ctx, dep, visiting); err != nil {
			c.logger.WarnContext(ctx, "dependency did not start, tool stays disabled",
				"tool", name,
				"dependency", dep,
				"reason", err,
			)

			return fmt.Errorf("start %s: %w: %s: %w", name, ErrDependencyFailed, dep, err)
		}
	}

	e.transition.Lock()
	defer e.transition.Unlock()

	if c.isRemoved(e) {
		return fmt.Errorf("start %s: %w", name, tool.ErrToolNotFound)
	}

	if c.status(name).IsActive() {
		return nil
	}

	for _, dep := range cfg.Dependencies {
		if st := c.status(dep); st != tool.StatusEnabled {
			return fmt.Errorf("start %s: %w: %s is %s", name, ErrDependencyFailed, dep, st)
		}
	}

	c.mu.Lock()
	c.transitionLocked(e, tool.StatusStarting)
	e.info.ErrorCount = 0
	e.info.LastError = ""
	c.mu.Unlock()

	timeout := startupTimeout(cfg)

	res, late := runBounded(ctx, timeout, func(ctx context.Context) (tool.Instance, error) {
		return factory(ctx)
	})
	if res.err != nil {
		if late != nil {
			go c.discardLate(name, late, timeout)
		}

		c.recordFailure(ctx, e, name, errorSourceFactory, res.err)

		c.mu.Lock()
		c.transitionLocked(e, tool.StatusError)
		c.mu.Unlock()

		return fmt.Errorf("start %s: %w: %w", name, ErrStartupFailed, res.err)
	}

	now := c.clock.Now()

	c.mu.Lock()
	c.live[name] = res.value
	e.info.StartupTime = &now
	e.info.LastHealthCheck = now
	e.info.InstanceID = c.newID()
	c.transitionLocked(e, tool.StatusEnabled)
	instanceID := e.info.InstanceID
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "tool enabled", "tool", name, "instanceID", instanceID)

	return nil
}

// startDependency brings dep to ENABLED, resuming it when paused.
func (c *Controller) startDependency(ctx context.Context, dep string, visiting sets.Set[string]) error {
	var err error

	if c.status(dep) == tool.StatusPaused {
		err = c.Resume(ctx, dep)
	} else {
		err = c.start(ctx, dep, visiting)
	}

	if err != nil {
		return err
	}

	if st := c.status(dep); st != tool.StatusEnabled {
		return fmt.Errorf("dependency %s is %s", dep, st)
	}

	return nil
}

// discardLate waits for an abandoned factory and cleans up whatever it produced.
func (c *Controller) discardLate(name string, late <-chan outcome[tool.Instance], timeout time.Duration) {
	out := <-late
	if out.err != nil || out.value == nil {
		return
	}

	c.logger.Info("abandoned factory finished late, cleaning up its instance", "tool", name)

	cleaner, ok := out.value.(tool.Cleaner)
	if !ok {
		return
	}

	if err := runHook(context.Background(), timeout, cleaner.Cleanup); err != nil {
		c.logger.Warn("cleanup of late instance failed", "tool", name, "reason", err)
		metrics.RecordToolError(name, errorSourceCleanup)
	}
}

// Stop disables name. An ERROR tool becomes DISABLED; a DISABLED one is left alone.
func (c *Controller) Stop(ctx context.Context, name string) error {
	e, ok := c.lookup(name)
	if !ok {
		return fmt.Errorf("stop %s: %w", name, tool.ErrToolNotFound)
	}

	e.transition.Lock()
	defer e.transition.Unlock()

	if c.isRemoved(e) {
		return fmt.Errorf("stop %s: %w", name, tool.ErrToolNotFound)
	}

	return c.stopLocked(ctx, e, name)
}

// stopLocked requires e.transition to be held.
func (c *Controller) stopLocked(ctx context.Context, e *entry, name string) error {
	c.mu.Lock()
	inst, live := c.live[name]

	if !live {
		if e.info.Status == tool.StatusError {
			c.transitionLocked(e, tool.StatusDisabled)
		}
		c.mu.Unlock()

		return nil
	}

	c.transitionLocked(e, tool.StatusStopping)
	c.mu.Unlock()

	if cleaner, ok := inst.(tool.Cleaner); ok {
		cfg, _ := c.registry.Config(name)

		if err := runHook(ctx, startupTimeout(cfg), cleaner.Cleanup); err != nil {
			c.logger.WarnContext(ctx, "tool cleanup failed", "tool", name, "reason", err)
			metrics.RecordToolError(name, errorSourceCleanup)
		}
	}

	c.mu.Lock()
	delete(c.live, name)
	e.info.StartupTime = nil
	e.info.InstanceID = ""
	e.info.ResourceUsage = tool.ResourceUsage{}
	c.transitionLocked(e, tool.StatusDisabled)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "tool disabled", "tool", name)

	return nil
}

// Pause moves an ENABLED tool to PAUSED, calling its pause hook if it has one.
func (c *Controller) Pause(ctx context.Context, name string) error {
	return c.suspendOrResume(ctx, name, tool.StatusEnabled, tool.StatusPaused, errorSourcePause,
		func(inst tool.Instance) func(context.Context) error {
			if p, ok := inst.(tool.Pauser); ok {
				return p.Pause
			}

			return nil
		},
	)
}

// Resume moves a PAUSED tool back to ENABLED, calling its resume hook if it has one.
func (c *Controller) Resume(ctx context.Context, name string) error {
	return c.suspendOrResume(ctx, name, tool.StatusPaused, tool.StatusEnabled, errorSourceResume,
		func(inst tool.Instance) func(context.Context) error {
			if r, ok := inst.(tool.Resumer); ok {
				return r.Resume
			}

			return nil
		},
	)
}

func (c *Controller) suspendOrResume(
	ctx context.Context,
	name string,
	from, to tool.Status,
	source string,
	hookOf func(tool.Instance) func(context.Context) error,
) error {
	e, ok := c.lookup(name)
	if !ok {
		return fmt.Errorf("%s %s: %w", source, name, tool.ErrToolNotFound)
	}

	e.transition.Lock()
	defer e.transition.Unlock()

	c.mu.RLock()
	inst := c.live[name]
	status := e.info.Status
	removed := e.removed
	c.mu.RUnlock()

	if removed {
		return fmt.Errorf("%s %s: %w", source, name, tool.ErrToolNotFound)
	}

	switch status {
	case to:
		return nil
	case from:
	default:
		return fmt.Errorf("%s %s: %w: tool is %s", source, name, ErrInvalidTransition, status)
	}

	if hook := hookOf(inst); hook != nil {
		cfg, _ := c.registry.Config(name)

		if err := runHook(ctx, startupTimeout(cfg), hook); err != nil {
			c.recordFailure(ctx, e, name, source, err)

			return fmt.Errorf("%s %s: %w: %w", source, name, ErrHookFailed, err)
		}
	}

	c.mu.Lock()
	c.transitionLocked(e, to)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "tool "+string(to), "tool", name)

	return nil
}

// Restart stops and starts name again.
func (c *Controller) Restart(ctx context.Context, name string) error {
	if err := c.Stop(ctx, name); err != nil {
		return err
	}

	return c.Start(ctx, name)
}

// recordFailure counts a caught failure of tool code against the tool.
func (c *Controller) recordFailure(ctx context.Context, e *entry, name, source string, err error) {
	c.logger.WarnContext(ctx, "tool "+source+" failed", "tool", name, "reason", err)
	metrics.RecordToolError(name, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e.info.Status.IsActive() || e.info.Status == tool.StatusStarting {
		e.info.ErrorCount++
	}

	e.info.LastError = err.Error()
}

// transitionLocked requires c.mu to be held for writing.
func (c *Controller) transitionLocked(e *entry, to tool.Status) {
	from := e.info.Status
	if from == to {
		return
	}

	e.info.Status = to

	metrics.SetToolStatus(e.info.Name, string(to), statusLabels)
	metrics.RecordTransition(e.info.Name, string(from), string(to))
}

func (c *Controller) isRemoved(e *entry) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return e.removed
}

func (c *Controller) lookup(name string) (*entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]

	return e, ok
}

func (c *Controller) ensure(name string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trackLocked(name)

	return c.entries[name]
}

func (c *Controller) status(name string) tool.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return tool.StatusDisabled
	}

	return e.info.Status
}

func (c *Controller) names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func (c *Controller) withConfig(info tool.RuntimeInfo) tool.RuntimeInfo {
	if cfg, ok := c.registry.Config(info.Name); ok {
		info.Config = cfg
	}

	if info.StartupTime != nil {
		t := *info.StartupTime
		info.StartupTime = &t
	}

	return info
}

func startupTimeout(cfg tool.Config) time.Duration {
	if cfg.StartupTimeout <= 0 {
		return tool.DefaultStartupTimeout
	}

	return cfg.StartupTimeout
}
