// Package smoothing provides value-type signal filters. Copying a filter
// copies its whole state, so analyzer states that embed them can be threaded
// through pure functions without aliasing.
package smoothing

import "math"

// EMA is an exponential moving average. The zero value with Alpha set is
// unseeded; the first sample seeds it directly.
type EMA struct {
	Alpha  float64
	Value  float64
	Seeded bool
}

// NewEMA returns an unseeded EMA weighting the newest sample by alpha.
func NewEMA(alpha float64) EMA {
	return EMA{Alpha: alpha}
}

// Next returns the filter after observing v.
func (e EMA) Next(v float64) EMA {
	if !e.Seeded {
		e.Value = v
		e.Seeded = true
		return e
	}
	e.Value = e.Alpha*v + (1-e.Alpha)*e.Value
	return e
}

// Reset returns an unseeded filter with the same alpha.
func (e EMA) Reset() EMA {
	return EMA{Alpha: e.Alpha}
}

// WindowSize is the capacity of Window.
const WindowSize = 32

// Window is a fixed-capacity ring of the most recent samples.
type Window struct {
	buf  [WindowSize]float64
	head int // index of the next write
	n    int
}

// Push returns the window with v appended, evicting the oldest sample when full.
func (w Window) Push(v float64) Window {
	w.buf[w.head] = v
	w.head = (w.head + 1) % WindowSize
	if w.n < WindowSize {
		w.n++
	}
	return w
}

// Len returns the number of samples held.
func (w Window) Len() int { return w.n }

// At returns the i-th oldest sample.
func (w Window) At(i int) float64 {
	start := (w.head - w.n + WindowSize) % WindowSize
	return w.buf[(start+i)%WindowSize]
}

// Last returns the newest sample, or false when empty.
func (w Window) Last() (float64, bool) {
	if w.n == 0 {
		return 0, false
	}
	return w.At(w.n - 1), true
}

// Values returns the samples oldest first.
func (w Window) Values() []float64 {
	out := make([]float64, w.n)
	for i := range out {
		out[i] = w.At(i)
	}
	return out
}

// Delta returns newest minus the sample k steps earlier, or false when the
// window holds fewer than k+1 samples.
func (w Window) Delta(k int) (float64, bool) {
	if k < 1 || w.n <= k {
		return 0, false
	}
	return w.At(w.n-1) - w.At(w.n-1-k), true
}

// Range returns the min and max sample, or NaNs when empty.
func (w Window) Range() (lo, hi float64) {
	if w.n == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < w.n; i++ {
		v := w.At(i)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
