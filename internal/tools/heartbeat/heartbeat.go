// Package heartbeat is a minimal built-in tool that logs a beat on a fixed
// interval. It implements every optional lifecycle hook.
package heartbeat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillcoder/toolmanager/internal/logic/tool"
	"github.com/skillcoder/toolmanager/internal/tools"
)

const (
	Name            = "heartbeat"
	DefaultInterval = 5 * time.Second
	// staleFactor beats missed before the tool reports itself unhealthy.
	staleFactor = 3
)

var errStalled = errors.New("heartbeat stalled")

func init() {
	tools.Register(Name, func(logger *slog.Logger, _ tools.Options) tool.Factory {
		return NewFactory(logger, DefaultInterval)
	})
}

// Beater emits beats from a background goroutine while running.
type Beater struct {
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	beats    atomic.Int64
	lastBeat atomic.Int64
	paused   atomic.Bool
}

// NewFactory returns a factory producing running Beaters.
func NewFactory(logger *slog.Logger, interval time.Duration) tool.Factory {
	return func(ctx context.Context) (tool.Instance, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b := &Beater{
			logger:   logger,
			interval: interval,
		}
		b.startLoop()

		return b, nil
	}
}

var (
	_ tool.Cleaner       = (*Beater)(nil)
	_ tool.Pauser        = (*Beater)(nil)
	_ tool.Resumer       = (*Beater)(nil)
	_ tool.HealthChecker = (*Beater)(nil)
)

func (b *Beater) startLoop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	b.lastBeat.Store(time.Now().UnixNano())

	go b.loop(ctx, b.done)
}

func (b *Beater) stopLoop(ctx context.Context) error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Beater) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := b.beats.Add(1)
			b.lastBeat.Store(time.Now().UnixNano())
			b.logger.DebugContext(ctx, "beat", "count", n)
		}
	}
}

// Beats returns the number of beats emitted so far.
func (b *Beater) Beats() int64 {
	return b.beats.Load()
}

func (b *Beater) Pause(ctx context.Context) error {
	b.paused.Store(true)

	return b.stopLoop(ctx)
}

func (b *Beater) Resume(_ context.Context) error {
	b.paused.Store(false)
	b.startLoop()

	return nil
}

func (b *Beater) Cleanup(ctx context.Context) error {
	b.logger.InfoContext(ctx, "heartbeat stopping", "beats", b.beats.Load())

	return b.stopLoop(ctx)
}

// CheckHealth fails when no beat was seen for several intervals.
func (b *Beater) CheckHealth(_ context.Context) error {
	if b.paused.Load() {
		return nil
	}

	last := time.Unix(0, b.lastBeat.Load())
	if time.Since(last) > staleFactor*b.interval {
		return errStalled
	}

	return nil
}
