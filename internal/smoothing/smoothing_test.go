package smoothing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA(t *testing.T) {
	e := NewEMA(0.7)
	e = e.Next(170)
	assert.Equal(t, 170.0, e.Value, "first sample seeds the filter")

	e = e.Next(140)
	assert.InDelta(t, 149.0, e.Value, 1e-9)

	prev := e
	_ = e.Next(0)
	assert.Equal(t, prev, e, "Next must not mutate the receiver")

	r := e.Reset()
	assert.False(t, r.Seeded)
	assert.Equal(t, 0.7, r.Alpha)
}

func TestWindow(t *testing.T) {
	var w Window
	_, ok := w.Last()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		w = w.Push(float64(i))
	}
	require.Equal(t, 5, w.Len())
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, w.Values())

	d, ok := w.Delta(2)
	require.True(t, ok)
	assert.Equal(t, 2.0, d)

	_, ok = w.Delta(5)
	assert.False(t, ok)

	lo, hi := w.Range()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 4.0, hi)
}

func TestWindowEviction(t *testing.T) {
	var w Window
	for i := 0; i < WindowSize+10; i++ {
		w = w.Push(float64(i))
	}
	assert.Equal(t, WindowSize, w.Len())
	assert.Equal(t, 10.0, w.At(0))
	last, _ := w.Last()
	assert.Equal(t, float64(WindowSize+9), last)
}

func TestWindowValueSemantics(t *testing.T) {
	var a Window
	a = a.Push(1)
	b := a.Push(2)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
}
