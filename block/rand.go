package block

import (
	"math/rand"
	"sync"
)

// defaultRand is a mutex-guarded math/rand source shared by strategies
// that need randomness but were not given an explicit RandSource.
type defaultRand struct {
	mu    sync.Mutex
	rng   *rand.Rand
	perms map[int][]int
}

var defaultRandSource = &defaultRand{
	rng:   rand.New(rand.NewSource(1)),
	perms: make(map[int][]int),
}

func (d *defaultRand) Intn(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Intn(n)
}

// CyclicPermutation returns a pseudo-random permutation of [0,n), cached
// per n so that repeated calls during one process lifetime cycle
// through the same fixed permutation rather than reshuffling every time.
func (d *defaultRand) CyclicPermutation(n int) []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.perms[n]; ok {
		return p
	}
	p := d.rng.Perm(n)
	d.perms[n] = p
	return p
}
