package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripingStrategy(t *testing.T) {
	for i := 0; i < 10; i++ {
		require.Equal(t, i%4, Striping.Assign(i, 4, nil))
	}
}

func TestSimpleRandomDeterministic(t *testing.T) {
	a := SimpleRandom.Assign(7, 5, nil)
	b := SimpleRandom.Assign(7, 5, nil)
	require.Equal(t, a, b, "SimpleRandom must be a deterministic hash of the hint")
	require.GreaterOrEqual(t, a, 0)
	require.Less(t, a, 5)
}

func TestFullyRandomInRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := FullyRandom.Assign(i, 6, nil)
		require.GreaterOrEqual(t, d, 0)
		require.Less(t, d, 6)
	}
}

func TestRandomCyclicCyclesThroughPermutation(t *testing.T) {
	numDisks := 4
	seen := make(map[int]bool)
	for i := 0; i < numDisks; i++ {
		d := RandomCyclic.Assign(i, numDisks, nil)
		require.False(t, seen[d], "RandomCyclic should visit each disk once per full cycle")
		seen[d] = true
	}
	require.Len(t, seen, numDisks)
	// cycling past numDisks repeats the same permutation
	require.Equal(t, RandomCyclic.Assign(0, numDisks, nil), RandomCyclic.Assign(numDisks, numDisks, nil))
}
