package resource

import (
	"sync"
	"time"
)

// Sample is one history entry.
type Sample struct {
	CPUPercent    float64
	MemoryPercent float64
	Timestamp     time.Time
}

// History is a fixed-capacity circular buffer of samples.
type History struct {
	mu       sync.RWMutex
	buffer   []Sample
	capacity int
	index    int
	count    int
}

// NewHistory creates a history holding at most capacity samples.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}

	return &History{
		buffer:   make([]Sample, 0, capacity),
		capacity: capacity,
	}
}

// Add appends s, overwriting the oldest sample when full.
func (h *History) Add(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count < h.capacity {
		h.buffer = append(h.buffer, s)
		h.count++

		return
	}

	h.buffer[h.index] = s
	h.index = (h.index + 1) % h.capacity
}

// All returns a copy of the samples, oldest first.
func (h *History) All() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return nil
	}

	result := make([]Sample, h.count)
	if h.count < h.capacity {
		copy(result, h.buffer)
	} else {
		copy(result, h.buffer[h.index:])
		copy(result[h.capacity-h.index:], h.buffer[:h.index])
	}

	return result
}

// Len returns the number of samples held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.count
}

// Average returns the mean of pick over samples taken at or after since,
// or 0 when there are none.
func (h *History) Average(since time.Time, pick func(Sample) float64) float64 {
	var (
		sum float64
		n   int
	)

	for _, s := range h.All() {
		if s.Timestamp.Before(since) {
			continue
		}

		sum += pick(s)
		n++
	}

	if n == 0 {
		return 0
	}

	return sum / float64(n)
}
