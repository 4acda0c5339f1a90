package latency

import "math"

const (
	// DefaultCapacity is the number of samples kept in the rolling history
	DefaultCapacity = 1000

	// MinSentinel is the value of Min before any sample has been recorded
	MinSentinel = math.MaxUint32
)

// Window keeps rolling latency statistics for one tracked endpoint.
//
// Min and Max span every sample recorded since the last reset while Average
// only covers the retained history, so the extrema can refer to samples that
// have already been evicted.
type Window struct {
	address string

	last, min, max uint32
	errors         uint32

	// ring buffer, head is the index of the oldest sample
	history []uint32
	head    int
	count   int
}

// NewWindow creates an empty window holding up to capacity samples.
// A non-positive capacity falls back to DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		min:     MinSentinel,
		history: make([]uint32, capacity),
	}
}

// UpdatePing records a successful round trip of sample milliseconds
func (w *Window) UpdatePing(sample uint32) {
	w.last = sample
	if sample > w.max {
		w.max = sample
	}
	if sample < w.min {
		w.min = sample
	}

	if w.count == len(w.history) {
		// full, overwrite the oldest and advance
		w.history[w.head] = sample
		w.head = (w.head + 1) % len(w.history)
		return
	}
	w.history[(w.head+w.count)%len(w.history)] = sample
	w.count++
}

// UpdateError records a failed probe
func (w *Window) UpdateError() {
	w.errors++
}

// Average returns the floor of the mean of the retained samples, 0 when empty
func (w *Window) Average() uint32 {
	if w.count == 0 {
		return 0
	}
	var sum uint64
	for i := 0; i < w.count; i++ {
		sum += uint64(w.history[(w.head+i)%len(w.history)])
	}
	return uint32(sum / uint64(w.count))
}

// SetTrackedAddress adopts address, resetting every statistic when it
// differs from the current one. It reports whether a reset happened.
func (w *Window) SetTrackedAddress(address string) bool {
	if address == w.address {
		return false
	}
	w.address = address
	w.reset()
	return true
}

func (w *Window) reset() {
	w.last = 0
	w.min = MinSentinel
	w.max = 0
	w.errors = 0
	w.head = 0
	w.count = 0
	clear(w.history)
}

func (w *Window) Address() string { return w.address }
func (w *Window) Last() uint32    { return w.last }
func (w *Window) Min() uint32     { return w.min }
func (w *Window) Max() uint32     { return w.max }
func (w *Window) Errors() uint32  { return w.errors }
func (w *Window) Len() int        { return w.count }
func (w *Window) Cap() int        { return len(w.history) }

// History returns a copy of the retained samples, oldest first
func (w *Window) History() []uint32 {
	out := make([]uint32, w.count)
	for i := range out {
		out[i] = w.history[(w.head+i)%len(w.history)]
	}
	return out
}
