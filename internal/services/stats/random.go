package stats

import (
	"math"
	"math/rand"
	"sync"
)

// NormalSource draws standard-normal samples. It is the sole source of
// randomness in the numeric core; inject a seeded source to make Monte
// Carlo runs reproducible.
type NormalSource interface {
	Norm() float64
}

// BoxMuller generates standard-normal draws from pairs of uniform(0,1)
// samples. Safe for concurrent use.
type BoxMuller struct {
	mu    sync.Mutex
	rng   *rand.Rand
	spare float64
	has   bool
}

// NewBoxMuller creates a sampler over the given seed.
func NewBoxMuller(seed int64) *BoxMuller {
	return &BoxMuller{rng: rand.New(rand.NewSource(seed))}
}

// Norm returns one standard-normal sample. u=0 draws are rejected to avoid
// log(0) = -Inf.
func (b *BoxMuller) Norm() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.has {
		b.has = false
		return b.spare
	}

	u1 := b.rng.Float64()
	for u1 == 0 {
		u1 = b.rng.Float64()
	}
	u2 := b.rng.Float64()

	r := math.Sqrt(-2 * math.Log(u1))
	theta := 2 * math.Pi * u2
	b.spare = r * math.Sin(theta)
	b.has = true
	return r * math.Cos(theta)
}
