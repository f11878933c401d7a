package sortutil

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableSortsInts(t *testing.T) {
	s := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	Stable(s, func(a, b int) bool { return a < b })
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, s)
}

func TestStableKeepsEqualOrder(t *testing.T) {
	type kv struct {
		key int
		seq int
	}
	s := []kv{{2, 0}, {1, 1}, {2, 2}, {1, 3}, {2, 4}, {1, 5}}
	Stable(s, func(a, b kv) bool { return a.key < b.key })

	assert.Equal(t, []kv{{1, 1}, {1, 3}, {1, 5}, {2, 0}, {2, 2}, {2, 4}}, s)
}

func TestStableIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	s := make([]int, 500)
	for i := range s {
		s[i] = r.Intn(50) // plenty of duplicates
	}
	less := func(a, b int) bool { return a < b }

	once := Sorted(s, less)
	twice := Sorted(once, less)
	assert.Equal(t, once, twice)

	// Sorting an already sorted sequence must return the same sequence.
	again := Sorted(once, less)
	assert.Equal(t, once, again)
}

func TestStableMatchesStdlib(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, n := range []int{0, 1, 2, 3, 17, 64, 1000} {
		s := make([]int, n)
		for i := range s {
			s[i] = r.Intn(100)
		}
		want := make([]int, n)
		copy(want, s)
		sort.Ints(want)

		got := Sorted(s, func(a, b int) bool { return a < b })
		require.Equal(t, want, got, "n=%d", n)
	}
}

func TestStableEmptyAndSingle(t *testing.T) {
	assert.Empty(t, Stable([]string{}, func(a, b string) bool { return a < b }))
	assert.Equal(t, []string{"x"}, Stable([]string{"x"}, func(a, b string) bool { return a < b }))
}
