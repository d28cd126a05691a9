package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_NegativeInput(t *testing.T) {
	assert.InDelta(t, 900.0, Wrap(-100, 1000), 1e-9)
	assert.InDelta(t, 0.0, Wrap(-1000, 1000), 1e-9)
	assert.InDelta(t, 999.0, Wrap(-1, 1000), 1e-9)
}

func TestWrap_InRange(t *testing.T) {
	for _, v := range []float64{-2500, -1000, -0.5, 0, 1, 999.999, 1000, 1234, 5000} {
		w := Wrap(v, 1000)
		assert.GreaterOrEqual(t, w, 0.0, "Wrap(%v) below range", v)
		assert.Less(t, w, 1000.0, "Wrap(%v) above range", v)
	}
}

func TestWrap_Periodic(t *testing.T) {
	for k := -3; k <= 3; k++ {
		assert.InDelta(t, Wrap(137.5, 1000), Wrap(137.5+float64(k)*1000, 1000), 1e-9)
	}
}

func TestShortestDistance_Symmetry(t *testing.T) {
	d1 := ShortestDistance(50, 500, 950, 500, 1000, 1000)
	d2 := ShortestDistance(950, 500, 50, 500, 1000, 1000)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestShortestDistance_SamePoint(t *testing.T) {
	assert.Equal(t, 0.0, ShortestDistance(123.4, 567.8, 123.4, 567.8, 1000, 1000))
}

func TestShortestDistance_AcrossSeam(t *testing.T) {
	// Direct delta is 900 but the wrap path is only 100.
	assert.InDelta(t, 100.0, ShortestDistance(50, 500, 950, 500, 1000, 1000), 1e-9)
}

func TestShortestVector_PrefersWrapDirection(t *testing.T) {
	dx, dy := ShortestVector(50, 500, 950, 500, 1000, 1000)
	assert.InDelta(t, -100.0, dx, 1e-9)
	assert.InDelta(t, 0.0, dy, 1e-9)

	dx, dy = ShortestVector(950, 500, 50, 500, 1000, 1000)
	assert.InDelta(t, 100.0, dx, 1e-9)
	assert.InDelta(t, 0.0, dy, 1e-9)
}

func TestShortestVector_DirectWhenShort(t *testing.T) {
	dx, dy := ShortestVector(100, 100, 300, 250, 1000, 1000)
	assert.InDelta(t, 200.0, dx, 1e-9)
	assert.InDelta(t, 150.0, dy, 1e-9)
}
