package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skillcoder/toolmanager/internal/infra/metrics"
	"github.com/skillcoder/toolmanager/internal/logic/resource"
	"github.com/skillcoder/toolmanager/internal/logic/scaling"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Apply runs the actions concurrently, one goroutine per action, and waits for
// all of them. It returns the first error; every failure is logged.
func (c *Controller) Apply(ctx context.Context, actions []scaling.Action) error {
	var g errgroup.Group

	for _, action := range actions {
		g.Go(func() error {
			err := c.apply(ctx, action)

			result := resultOK
			if err != nil {
				result = resultError

				c.logger.WarnContext(ctx, "auto-scaling action failed", "action", action.String(), "reason", err)
			}

			metrics.RecordAutoscalingAction(string(action.Kind), result)

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("apply actions: %w", err)
	}

	return nil
}

func (c *Controller) apply(ctx context.Context, action scaling.Action) error {
	switch action.Kind {
	case scaling.ActionDisable:
		return c.Stop(ctx, action.Name)
	case scaling.ActionPause:
		return c.Pause(ctx, action.Name)
	case scaling.ActionResume:
		return c.Resume(ctx, action.Name)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action.Kind)
	}
}

// StopAll stops every tool concurrently.
func (c *Controller) StopAll(ctx context.Context) error {
	var g errgroup.Group

	for _, name := range c.names() {
		g.Go(func() error {
			if err := c.Stop(ctx, name); err != nil && !errors.Is(err, tool.ErrToolNotFound) {
				return err
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("stop all: %w", err)
	}

	return nil
}

// CheckHealth runs one health pass over the active tools. Tools in the middle of
// a transition are skipped until the next pass. A tool whose error count exceeds
// the limit is moved to ERROR and stopped.
func (c *Controller) CheckHealth(ctx context.Context) {
	var g errgroup.Group

	for _, name := range c.names() {
		e, ok := c.lookup(name)
		if !ok || !e.transition.TryLock() {
			continue
		}

		g.Go(func() error {
			defer e.transition.Unlock()

			c.checkHealthLocked(ctx, e, name)

			return nil
		})
	}

	_ = g.Wait()
}

// checkHealthLocked requires e.transition to be held.
func (c *Controller) checkHealthLocked(ctx context.Context, e *entry, name string) {
	c.mu.RLock()
	inst, live := c.live[name]
	lastCheck := e.info.LastHealthCheck
	removed := e.removed
	c.mu.RUnlock()

	if !live || removed {
		return
	}

	cfg, _ := c.registry.Config(name)
	now := c.clock.Now()

	if healthCheckDue(now, lastCheck, cfg.HealthCheckInterval) {
		if checker, ok := inst.(tool.HealthChecker); ok {
			if err := runHook(ctx, startupTimeout(cfg), checker.CheckHealth); err != nil {
				c.recordFailure(ctx, e, name, errorSourceHealth, err)
			}
		}

		c.mu.Lock()
		e.info.LastHealthCheck = now
		c.mu.Unlock()
	}

	c.mu.Lock()
	errorCount := e.info.ErrorCount
	tooMany := errorCount > c.maxErrors

	if tooMany {
		c.transitionLocked(e, tool.StatusError)
	}
	c.mu.Unlock()

	if !tooMany {
		return
	}

	c.logger.WarnContext(ctx, "tool exceeded error limit, stopping",
		"tool", name,
		"errorCount", errorCount,
		"maxErrors", c.maxErrors,
	)

	if err := c.stopLocked(ctx, e, name); err != nil {
		c.logger.ErrorContext(ctx, "failed to stop unhealthy tool", "tool", name, "reason", err)
	}
}

func healthCheckDue(now, last time.Time, interval time.Duration) bool {
	if interval <= 0 {
		interval = tool.DefaultHealthCheckInterval
	}

	return !now.Before(last.Add(interval))
}

// Redistribute splits the sampled host CPU and memory evenly across the active
// tools. It is an estimate used for reporting; caps are not enforced.
func (c *Controller) Redistribute(snap resource.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		usage  tool.ResourceUsage
		active int
	)

	for _, e := range c.entries {
		if e.info.Status.IsActive() {
			active++
		}
	}

	if active > 0 {
		usage.CPUPercent = snap.CPUPercent / float64(active)
		usage.MemoryMB = snap.MemoryUsedMB / float64(active)
	}

	for name, e := range c.entries {
		if !e.info.Status.IsActive() {
			e.info.ResourceUsage = tool.ResourceUsage{}

			continue
		}

		e.info.ResourceUsage = usage

		cfg, ok := c.registry.Config(name)
		if !ok {
			continue
		}

		if cfg.MaxCPUPercent > 0 && usage.CPUPercent > cfg.MaxCPUPercent {
			c.logger.Debug("estimated cpu share above cap", "tool", name,
				"share", usage.CPUPercent, "cap", cfg.MaxCPUPercent)
			metrics.RecordCapExceeded(name, "cpu")
		}

		if cfg.MaxMemoryMB > 0 && usage.MemoryMB > cfg.MaxMemoryMB {
			c.logger.Debug("estimated memory share above cap", "tool", name,
				"share", usage.MemoryMB, "cap", cfg.MaxMemoryMB)
			metrics.RecordCapExceeded(name, "memory")
		}
	}
}
