package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/skillcoder/toolmanager/internal/infra/metrics"
)

// Sampler reads host usage, classifies it and keeps a rolling history.
type Sampler struct {
	logger     *slog.Logger
	reader     HostReader
	clock      clock.PassiveClock
	thresholds Thresholds
	history    *History

	mu      sync.Mutex
	prevCPU *CPUTimes
	last    Snapshot
}

// NewSampler creates a sampler. Thresholds must be valid; see Thresholds.Validate.
func NewSampler(
	logger *slog.Logger,
	reader HostReader,
	clk clock.PassiveClock,
	thresholds Thresholds,
	historySize int,
) *Sampler {
	return &Sampler{
		logger:     logger.With("component", "resource-sampler"),
		reader:     reader,
		clock:      clk,
		thresholds: thresholds,
		history:    NewHistory(historySize),
	}
}

// Sample reads the host and returns a fresh snapshot. It never fails: when the
// host cannot be read it returns the previous values marked Degraded.
func (s *Sampler) Sample(ctx context.Context) Snapshot {
	return s.sample(ctx, true)
}

// Peek reads the host like Sample but leaves the CPU baseline, the last
// snapshot and the history untouched.
func (s *Sampler) Peek(ctx context.Context) Snapshot {
	return s.sample(ctx, false)
}

func (s *Sampler) sample(ctx context.Context, commit bool) Snapshot {
	stats, err := s.read(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	if err != nil {
		s.logger.WarnContext(ctx, "host metrics unavailable, using degraded snapshot", "reason", err)
		metrics.RecordSamplerFailure()

		degraded := s.last
		degraded.Timestamp = now
		degraded.Degraded = true

		return degraded
	}

	snap := Snapshot{
		CPUPercent: s.cpuPercent(stats.CPU, commit),
		Timestamp:  now,
	}

	if stats.MemTotalBytes > 0 {
		used := stats.MemTotalBytes - min(stats.MemAvailableBytes, stats.MemTotalBytes)
		snap.MemoryPercent = percentOf(used, stats.MemTotalBytes)
		snap.MemoryUsedMB = float64(used) / bytesPerMB
		snap.MemoryAvailableMB = float64(stats.MemAvailableBytes) / bytesPerMB
	}

	if stats.DiskTotalBytes > 0 {
		used := stats.DiskTotalBytes - min(stats.DiskFreeBytes, stats.DiskTotalBytes)
		snap.DiskPercent = percentOf(used, stats.DiskTotalBytes)
		snap.DiskFreeMB = float64(stats.DiskFreeBytes) / bytesPerMB
	}

	if !commit {
		return snap
	}

	s.last = snap
	s.history.Add(Sample{
		CPUPercent:    snap.CPUPercent,
		MemoryPercent: snap.MemoryPercent,
		Timestamp:     now,
	})

	metrics.SetHostUsage(snap.CPUPercent, snap.MemoryPercent, snap.DiskPercent)

	return snap
}

// read calls the host reader, turning a panic into an error.
func (s *Sampler) read(ctx context.Context) (stats HostStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrHostRead, r)
		}
	}()

	stats, err = s.reader.Read(ctx)
	if err != nil {
		return HostStats{}, fmt.Errorf("%w: %w", ErrHostRead, err)
	}

	return stats, nil
}

// cpuPercent computes busy time over the interval since the previous
// committed read. The first read is measured since boot. Callers hold s.mu.
func (s *Sampler) cpuPercent(cur CPUTimes, commit bool) float64 {
	prev := CPUTimes{}
	if s.prevCPU != nil {
		prev = *s.prevCPU
	}

	if commit {
		s.prevCPU = &cur
	}

	total := cur.Total - prev.Total
	busy := cur.Busy - prev.Busy

	if total <= 0 || busy < 0 {
		return 0
	}

	return min(busy/total*percentScale, percentScale)
}

// Level classifies snap against the configured thresholds.
func (s *Sampler) Level(snap Snapshot) Level {
	return s.thresholds.Level(snap)
}

// Last returns the most recent successful snapshot.
func (s *Sampler) Last() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last
}

// AverageCPU returns the mean CPU percent over the trailing window.
func (s *Sampler) AverageCPU(window time.Duration) float64 {
	return s.history.Average(s.clock.Now().Add(-window), func(x Sample) float64 {
		return x.CPUPercent
	})
}

// AverageMemory returns the mean memory percent over the trailing window.
func (s *Sampler) AverageMemory(window time.Duration) float64 {
	return s.history.Average(s.clock.Now().Add(-window), func(x Sample) float64 {
		return x.MemoryPercent
	})
}

// HistoryLen returns the number of samples in the rolling history.
func (s *Sampler) HistoryLen() int {
	return s.history.Len()
}

func percentOf(part, total uint64) float64 {
	return float64(part) / float64(total) * percentScale
}
