package resource

import (
	"fmt"
	"time"
)

// Snapshot is an immutable reading of host resource usage.
type Snapshot struct {
	CPUPercent        float64
	MemoryPercent     float64
	MemoryAvailableMB float64
	MemoryUsedMB      float64
	DiskPercent       float64
	DiskFreeMB        float64
	Timestamp         time.Time
	// Degraded is set when the host could not be read and the values are stale or zero.
	Degraded bool
}

// CPUTimes are cumulative CPU seconds since boot.
type CPUTimes struct {
	Busy  float64
	Total float64
}

// HostStats are the raw counters a HostReader returns.
type HostStats struct {
	CPU               CPUTimes
	MemTotalBytes     uint64
	MemAvailableBytes uint64
	DiskTotalBytes    uint64
	DiskFreeBytes     uint64
}

// Level is a coarse classification of resource pressure.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Thresholds are the percentages above which a level is reached,
// evaluated against max(cpu, memory).
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// DefaultThresholds returns 50/70/90.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Medium:   DefaultMediumThreshold,
		High:     DefaultHighThreshold,
		Critical: DefaultCriticalThreshold,
	}
}

// Validate requires 0 <= medium < high < critical <= 100.
func (t Thresholds) Validate() error {
	if t.Medium < 0 || t.Medium >= t.High || t.High >= t.Critical || t.Critical > percentScale {
		return fmt.Errorf("%w: medium=%v high=%v critical=%v", ErrInvalidThresholds, t.Medium, t.High, t.Critical)
	}

	return nil
}

// Level classifies snap.
func (t Thresholds) Level(snap Snapshot) Level {
	usage := max(snap.CPUPercent, snap.MemoryPercent)

	switch {
	case usage > t.Critical:
		return LevelCritical
	case usage > t.High:
		return LevelHigh
	case usage > t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}
