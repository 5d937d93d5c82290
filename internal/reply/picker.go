// Package reply picks reply variants and formats replies for a transport.
package reply

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Picker chooses among reply variants. Implementations must be safe for concurrent use.
type Picker interface {
	// Pick returns one element of pool, or "" for an empty pool.
	Pick(pool []string) string
	// Chance reports true with probability p.
	Chance(p float64) bool
}

// RandomPicker is a seeded Picker.
type RandomPicker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomPicker creates a picker. A zero seed draws one from the clock.
func NewRandomPicker(seed int64) *RandomPicker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomPicker{rnd: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

func (p *RandomPicker) Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return pool[p.rnd.IntN(len(pool))]
}

func (p *RandomPicker) Chance(prob float64) bool {
	if prob <= 0 {
		return false
	}
	if prob >= 1 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Float64() < prob
}

// FixedPicker always picks the same index and answers Chance with Hit. Used for
// deterministic replies.
type FixedPicker struct {
	Index int
	Hit   bool
}

func (p FixedPicker) Pick(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	i := p.Index
	if i < 0 || i >= len(pool) {
		i = 0
	}
	return pool[i]
}

func (p FixedPicker) Chance(float64) bool { return p.Hit }
