package sortutil

// Stable sorts s in place using a bottom-up merge sort and returns s.
// Equal elements keep their relative order, so repeated sorts of the
// same input always give the same result regardless of the platform's
// sort implementation.
func Stable[T any](s []T, less func(a, b T) bool) []T {
	n := len(s)
	if n < 2 {
		return s
	}

	buf := make([]T, n)
	for width := 1; width < n; width *= 2 {
		for lo := 0; lo < n; lo += 2 * width {
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			if mid < hi {
				merge(s, buf, lo, mid, hi, less)
			}
		}
	}
	return s
}

// Sorted returns a stably sorted copy of s, leaving the input untouched.
func Sorted[T any](s []T, less func(a, b T) bool) []T {
	out := make([]T, len(s))
	copy(out, s)
	return Stable(out, less)
}

func merge[T any](s, buf []T, lo, mid, hi int, less func(a, b T) bool) {
	copy(buf[lo:hi], s[lo:hi])
	i, j := lo, mid
	for k := lo; k < hi; k++ {
		switch {
		case i >= mid:
			s[k] = buf[j]
			j++
		case j >= hi:
			s[k] = buf[i]
			i++
		case less(buf[j], buf[i]): // strict: ties come from the left half
			s[k] = buf[j]
			j++
		default:
			s[k] = buf[i]
			i++
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
