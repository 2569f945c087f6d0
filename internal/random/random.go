// Package random holds the draw source shared by the persona gate, the vote heuristic
// and the auto-populate driver, so tests can pin every probabilistic branch.
package random

import (
	"math/rand/v2"
	"sync"
)

// Source produces uniform draws.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

type global struct{}

func (global) Float64() float64 { return rand.Float64() }
func (global) IntN(n int) int   { return rand.IntN(n) }

// Default is the process-wide unseeded source.
var Default Source = global{}

// Or returns src, or Default when src is nil.
func Or(src Source) Source {
	if src == nil {
		return Default
	}
	return src
}

// Fixed replays a scripted sequence of draws. Once a sequence is exhausted
// its last value repeats; an empty sequence yields 0.
type Fixed struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
}

// NewFixed creates a Fixed source returning floats in order.
func NewFixed(floats ...float64) *Fixed {
	return &Fixed{floats: floats}
}

// WithInts sets the scripted IntN results. Values are taken modulo n.
func (f *Fixed) WithInts(ints ...int) *Fixed {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ints = ints
	return f
}

func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.floats) == 0 {
		return 0
	}
	v := f.floats[0]
	if len(f.floats) > 1 {
		f.floats = f.floats[1:]
	}
	return v
}

func (f *Fixed) IntN(n int) int {
	if n <= 0 {
		panic("random: invalid argument to IntN")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ints) == 0 {
		return 0
	}
	v := f.ints[0]
	if len(f.ints) > 1 {
		f.ints = f.ints[1:]
	}
	return v % n
}

// Sample returns k distinct indices from [0, n) in random order.
// k is clamped to [0, n].
func Sample(src Source, n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	src = Or(src)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	// Partial Fisher-Yates.
	for i := 0; i < k; i++ {
		j := i + src.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

// Chance reports whether a single draw lands below p.
func Chance(src Source, p float64) bool {
	return Or(src).Float64() < p
}
