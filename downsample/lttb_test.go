package downsample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wave(n int) []Point {
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{X: float64(i), Y: math.Sin(float64(i) / 10)}
	}
	return points
}

func TestLTTBIdentityWhenSmall(t *testing.T) {
	points := wave(50)
	assert.Equal(t, points, LTTB(points, 50))
	assert.Equal(t, points, LTTB(points, 100))
	assert.Equal(t, points, LTTB(points, 2)) // target too small to bucket
}

func TestLTTBExactTargetCount(t *testing.T) {
	for _, target := range []int{3, 10, 100, 499} {
		points := wave(500)
		got := LTTB(points, target)
		require.Len(t, got, target, "target=%d", target)
		assert.Equal(t, points[0], got[0])
		assert.Equal(t, points[len(points)-1], got[len(got)-1])
	}
}

func TestLTTBKeepsExtrema(t *testing.T) {
	// Flat series with one spike; the spike must survive heavy reduction.
	points := make([]Point, 1000)
	for i := range points {
		points[i] = Point{X: float64(i), Y: 3.5}
	}
	points[617].Y = 4.2

	got := LTTB(points, 20)
	found := false
	for _, p := range got {
		if p.X == 617 {
			found = true
		}
	}
	assert.True(t, found, "spike point dropped by downsampling")
}

func TestLTTBDeterministic(t *testing.T) {
	points := wave(2000)
	a := LTTB(points, 77)
	b := LTTB(points, 77)
	assert.Equal(t, a, b)
}

func TestLTTBOrderedOutput(t *testing.T) {
	got := LTTB(wave(5000), 250)
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].X, got[i].X)
	}
}
