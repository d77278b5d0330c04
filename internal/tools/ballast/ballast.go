// Package ballast is a built-in tool that holds a fixed amount of resident
// memory. It stands in for a heavy tool when exercising auto-scaling.
package ballast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skillcoder/toolmanager/internal/logic/tool"
	"github.com/skillcoder/toolmanager/internal/tools"
)

const (
	Name      = "ballast"
	DefaultMB = 64
	chunkSize = 1 << 20
)

func init() {
	tools.Register(Name, func(logger *slog.Logger, opts tools.Options) tool.Factory {
		mb := opts.BallastMB
		if mb <= 0 {
			mb = DefaultMB
		}

		return NewFactory(logger, mb)
	})
}

// Ballast keeps sizeMB of touched memory while running.
type Ballast struct {
	logger *slog.Logger
	sizeMB int

	mu     sync.Mutex
	chunks [][]byte
}

// NewFactory returns a factory producing filled ballasts of sizeMB.
func NewFactory(logger *slog.Logger, sizeMB int) tool.Factory {
	return func(ctx context.Context) (tool.Instance, error) {
		b := &Ballast{
			logger: logger,
			sizeMB: sizeMB,
		}

		if err := b.fill(ctx); err != nil {
			return nil, err
		}

		return b, nil
	}
}

var (
	_ tool.Cleaner = (*Ballast)(nil)
	_ tool.Pauser  = (*Ballast)(nil)
	_ tool.Resumer = (*Ballast)(nil)
)

func (b *Ballast) fill(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	chunks := make([][]byte, 0, b.sizeMB)

	for range b.sizeMB {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fill ballast: %w", err)
		}

		chunk := make([]byte, chunkSize)
		// Touch every page so the memory is resident.
		for i := 0; i < len(chunk); i += 4096 {
			chunk[i] = byte(i)
		}

		chunks = append(chunks, chunk)
	}

	b.chunks = chunks

	b.logger.InfoContext(ctx, "ballast filled", "sizeMB", b.sizeMB)

	return nil
}

func (b *Ballast) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = nil
}

// HeldBytes returns the amount of memory currently held.
func (b *Ballast) HeldBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.chunks) * chunkSize
}

func (b *Ballast) Pause(ctx context.Context) error {
	b.release()
	b.logger.InfoContext(ctx, "ballast released")

	return nil
}

func (b *Ballast) Resume(ctx context.Context) error {
	return b.fill(ctx)
}

func (b *Ballast) Cleanup(_ context.Context) error {
	b.release()

	return nil
}
