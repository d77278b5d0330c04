package controller

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/skillcoder/toolmanager/internal/infra/metrics"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

// StartMonitoring starts the monitoring loop. It is a no-op when the loop is
// already running. A loop that is still finishing after StopMonitoring is
// awaited first, so two loops never tick together. The loop is detached from
// ctx and runs until StopMonitoring.
func (s *Service) StartMonitoring(ctx context.Context) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	if s.loopDone != nil {
		select {
		case <-s.loopDone:
		default:
			if s.loopCtx.Err() == nil {
				return
			}

			s.logger.DebugContext(ctx, "waiting for the previous monitoring loop to exit")
			<-s.loopDone
		}
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.loopCtx = loopCtx
	s.loopCancel = cancel
	s.loopDone = done

	go s.run(loopCtx, done)

	s.logger.InfoContext(ctx, "monitoring started", "interval", s.interval)
}

// StopMonitoring stops the loop and waits for it to exit. A tick in progress
// finishes first. It is a no-op when the loop is not running. When ctx ends
// first the loop keeps shutting down and Monitoring reports true until it exits.
func (s *Service) StopMonitoring(ctx context.Context) error {
	s.loopMu.Lock()
	cancel, done := s.loopCancel, s.loopDone
	s.loopMu.Unlock()

	if cancel == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	cancel()

	select {
	case <-done:
		s.logger.InfoContext(ctx, "monitoring stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Monitoring reports whether the loop goroutine is running.
func (s *Service) Monitoring() bool {
	s.loopMu.Lock()
	done := s.loopDone
	s.loopMu.Unlock()

	if done == nil {
		return false
	}

	select {
	case <-done:
		return false
	default:
		return true
	}
}

// LastTick returns when the last monitoring tick finished.
func (s *Service) LastTick() time.Time {
	s.tickMu.RLock()
	defer s.tickMu.RUnlock()

	return s.lastTick
}

func (s *Service) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		// A tick is never interrupted; cancellation is seen between ticks.
		s.Tick(context.WithoutCancel(ctx))

		select {
		case <-ticker.C():
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one monitoring pass: sample, apply the auto-scaling policy, check
// health, redistribute usage estimates and run due scheduled restarts.
func (s *Service) Tick(ctx context.Context) {
	snap := s.sampler.Sample(ctx)
	level := s.sampler.Level(snap)

	metrics.SetResourceLevel(int(level))

	if s.autoScaling.Load() {
		actions := s.policy.Decide(level, s.lifecycle.Infos())
		if len(actions) > 0 {
			s.logger.InfoContext(ctx, "applying auto-scaling actions",
				"level", level.String(),
				"cpu", snap.CPUPercent,
				"memory", snap.MemoryPercent,
				"actions", len(actions),
			)

			if err := s.lifecycle.Apply(ctx, actions); err != nil {
				s.logger.WarnContext(ctx, "auto-scaling batch finished with errors", "reason", err)
			}
		}
	}

	s.lifecycle.CheckHealth(ctx)
	s.lifecycle.Redistribute(snap)
	s.runScheduledRestarts(ctx)

	s.tickMu.Lock()
	s.lastTick = s.clock.Now()
	s.tickMu.Unlock()
}

// runScheduledRestarts restarts enabled tools whose restart schedule came due
// since their instance started.
func (s *Service) runScheduledRestarts(ctx context.Context) {
	now := s.clock.Now()

	for _, info := range s.lifecycle.Infos() {
		spec := info.Config.RestartSchedule
		if spec == "" || info.Status != tool.StatusEnabled || info.StartupTime == nil {
			continue
		}

		plan := s.restartPlanFor(ctx, info)
		if plan.invalid || now.Before(plan.at) {
			continue
		}

		s.logger.InfoContext(ctx, "scheduled restart", "tool", info.Name, "schedule", spec, "due", plan.at)
		metrics.RecordScheduledRestart(info.Name)
		s.forgetRestart(info.Name)

		if err := s.lifecycle.Restart(ctx, info.Name); err != nil {
			s.logger.WarnContext(ctx, "scheduled restart failed", "tool", info.Name, "reason", err)
		}
	}
}

// restartPlanFor returns the restart time of the current instance, computing
// it on first sight of the instance or after a schedule change.
func (s *Service) restartPlanFor(ctx context.Context, info tool.RuntimeInfo) restartPlan {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	spec := info.Config.RestartSchedule

	plan, ok := s.restarts[info.Name]
	if ok && plan.instanceID == info.InstanceID && plan.spec == spec {
		return plan
	}

	plan = restartPlan{instanceID: info.InstanceID, spec: spec}

	next, err := s.scheduler.NextAfter(spec, "", *info.StartupTime)
	if err != nil {
		s.logger.WarnContext(ctx, "ignoring invalid restart schedule", "tool", info.Name, "reason", err)

		plan.invalid = true
	} else {
		plan.at = next.Add(s.jitter())
	}

	s.restarts[info.Name] = plan

	return plan
}

func (s *Service) forgetRestart(name string) {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	delete(s.restarts, name)
}

func (s *Service) jitter() time.Duration {
	if s.jitterMax <= 0 {
		return 0
	}

	return rand.N(s.jitterMax)
}
