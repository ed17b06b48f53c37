package top

import (
	"sync"

	"github.com/rileyhilliard/pgcenter/internal/sysstat"
)

// DefaultHistorySize is the number of CPU samples kept for the sparkline.
const DefaultHistorySize = 60

// History is a fixed-size ring buffer of CPU busy percentages.
type History struct {
	mu    sync.RWMutex
	data  []float64
	head  int
	count int
}

// NewHistory creates a history holding size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{data: make([]float64, size)}
}

// Push records the busy percentage of a host sample. Failed samples are
// skipped.
func (h *History) Push(s sysstat.HostStats) {
	if s.Err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.data[h.head] = busy(s.CPU)
	h.head = (h.head + 1) % len(h.data)
	if h.count < len(h.data) {
		h.count++
	}
}

// Last returns up to n of the most recent values, oldest first.
func (h *History) Last(n int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || h.count == 0 {
		return nil
	}
	if n > h.count {
		n = h.count
	}
	out := make([]float64, n)
	start := (h.head - n + len(h.data)) % len(h.data)
	for i := 0; i < n; i++ {
		out[i] = h.data[(start+i)%len(h.data)]
	}
	return out
}

// Len returns how many samples are stored.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// busy is everything but idle and iowait.
func busy(c sysstat.CPUUsage) float64 {
	v := 100 - c.Idle - c.IOWait
	if v < 0 {
		return 0
	}
	return v
}
