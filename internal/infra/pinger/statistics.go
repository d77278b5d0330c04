package pinger

import (
	"math"
	"slices"
	"sync"
	"time"
)

const (
	successWindow = 100
	errorWindow   = 10
)

// LatencyMetrics summarizes a window of ping latencies.
type LatencyMetrics struct {
	Count   int
	Median  time.Duration
	Average time.Duration
	P90     time.Duration
	P99     time.Duration
}

// Statistics is a point-in-time view of a pinger.
type Statistics struct {
	IsReady     bool
	IsHealthy   bool
	LastRun     time.Time
	LastError   error
	LastErrorAt time.Time
	Success     LatencyMetrics
	Errors      LatencyMetrics
}

// window keeps the last cap latencies in insertion order.
type window struct {
	buf  []time.Duration
	next int
}

func newWindow(capacity int) *window {
	return &window{buf: make([]time.Duration, 0, capacity)}
}

func (w *window) add(d time.Duration) {
	if len(w.buf) < cap(w.buf) {
		w.buf = append(w.buf, d)

		return
	}

	w.buf[w.next] = d
	w.next = (w.next + 1) % len(w.buf)
}

func (w *window) metrics() LatencyMetrics {
	if len(w.buf) == 0 {
		return LatencyMetrics{}
	}

	sorted := slices.Sorted(slices.Values(w.buf))

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencyMetrics{
		Count:   len(sorted),
		Median:  Percentile(sorted, 50),
		Average: sum / time.Duration(len(sorted)),
		P90:     Percentile(sorted, 90),
		P99:     Percentile(sorted, 99),
	}
}

// record is the mutable state behind Statistics.
type record struct {
	mu          sync.Mutex
	lastRun     time.Time
	lastError   error
	lastErrorAt time.Time
	success     *window
	errors      *window
}

func newRecord() *record {
	return &record{
		success: newWindow(successWindow),
		errors:  newWindow(errorWindow),
	}
}

func (r *record) observe(at time.Time, latency time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRun = at
	r.lastError = err

	if err != nil {
		r.lastErrorAt = at
		r.errors.add(latency)

		return
	}

	r.success.add(latency)
}

func (r *record) statistics() *Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &Statistics{
		LastRun:     r.lastRun,
		LastError:   r.lastError,
		LastErrorAt: r.lastErrorAt,
		Success:     r.success.metrics(),
		Errors:      r.errors.metrics(),
	}
}

// Percentile returns the nearest-rank percentile p (0..100) of sorted.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	rank := int(math.Ceil(p / 100 * float64(n)))

	return sorted[min(max(rank, 1), n)-1]
}
