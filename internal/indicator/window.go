package indicator

// Window is a fixed-size circular buffer over the most recent values.
// It backs every rolling indicator in this package.
type Window struct {
	size  int
	buf   []float64 // preallocated circular buffer
	idx   int       // next write position
	count int       // total values received
}

// NewWindow creates a window holding the last size values.
func NewWindow(size int) *Window {
	return &Window{
		size: size,
		buf:  make([]float64, size),
	}
}

// Push appends a value, overwriting the oldest once the window is full.
func (w *Window) Push(v float64) {
	w.buf[w.idx] = v
	w.idx = (w.idx + 1) % w.size
	w.count++
}

// Ready reports whether the window has seen at least size values.
func (w *Window) Ready() bool { return w.count >= w.size }

// Len returns the number of values currently held.
func (w *Window) Len() int {
	if w.count < w.size {
		return w.count
	}
	return w.size
}

// Values returns the held values oldest first. The slice is a copy.
func (w *Window) Values() []float64 {
	n := w.Len()
	out := make([]float64, n)
	start := 0
	if w.count >= w.size {
		start = w.idx
	}
	for i := 0; i < n; i++ {
		out[i] = w.buf[(start+i)%w.size]
	}
	return out
}
