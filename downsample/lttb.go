package downsample

import "math"

// Point is one value of an ordered series, X ascending (usually unix
// milliseconds).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LTTB reduces points to target representative points with the
// largest-triangle-three-buckets algorithm. The first and last input
// points are always kept. When len(points) <= target (or target < 3)
// the input is returned unchanged.
func LTTB(points []Point, target int) []Point {
	n := len(points)
	if target >= n || target < 3 {
		return points
	}

	out := make([]Point, 0, target)
	out = append(out, points[0])

	// Interior points split into target-2 equal-width buckets.
	bucketSize := float64(n-2) / float64(target-2)
	prev := 0

	for i := 0; i < target-2; i++ {
		lo := int(math.Floor(float64(i)*bucketSize)) + 1
		hi := int(math.Floor(float64(i+1)*bucketSize)) + 1
		if hi > n-1 {
			hi = n - 1
		}

		// Average of the next bucket acts as the third triangle vertex.
		nextLo := hi
		nextHi := int(math.Floor(float64(i+2)*bucketSize)) + 1
		if nextHi > n {
			nextHi = n
		}
		avgX, avgY := 0.0, 0.0
		for _, p := range points[nextLo:nextHi] {
			avgX += p.X
			avgY += p.Y
		}
		span := float64(nextHi - nextLo)
		avgX /= span
		avgY /= span

		a := points[prev]
		best := lo
		bestArea := -1.0
		for j := lo; j < hi; j++ {
			// Twice the triangle area; the factor cancels in comparison.
			area := math.Abs((a.X-avgX)*(points[j].Y-a.Y) - (a.X-points[j].X)*(avgY-a.Y))
			if area > bestArea {
				bestArea = area
				best = j
			}
		}

		out = append(out, points[best])
		prev = best
	}

	out = append(out, points[n-1])
	return out
}
