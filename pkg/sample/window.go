package sample

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Window keeps the most recent values of one channel. When full the oldest
// value is evicted.
type Window struct {
	mu     sync.RWMutex
	values []float64
	head   int
	count  int
}

// NewWindow creates a window holding up to capacity values.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 100
	}
	return &Window{values: make([]float64, capacity)}
}

// Push appends v.
func (w *Window) Push(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.values[w.head] = v
	w.head = (w.head + 1) % len(w.values)
	if w.count < len(w.values) {
		w.count++
	}
}

// Len returns the number of stored values.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Values returns a copy of the stored values, oldest first.
func (w *Window) Values() []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot()
}

// Stats returns the mean and sample standard deviation of the stored values.
func (w *Window) Stats() (mean, stddev float64) {
	w.mu.RLock()
	values := w.snapshot()
	w.mu.RUnlock()

	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}

func (w *Window) snapshot() []float64 {
	out := make([]float64, w.count)
	start := (w.head - w.count + len(w.values)) % len(w.values)
	for i := 0; i < w.count; i++ {
		out[i] = w.values[(start+i)%len(w.values)]
	}
	return out
}
