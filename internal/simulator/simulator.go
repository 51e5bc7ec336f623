// Package simulator generates synthetic hourly order counts and price drift
// for tracked products. It stands in for a marketplace feed: a real adapter
// only needs to satisfy Sampler.
package simulator

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/albapepper/orderpulse/internal/catalog"
)

// Sampler produces the order count for a product in a given hour and the
// product's updated price.
type Sampler interface {
	Sample(code string, hour int) (count int, price float64)
}

const (
	surgeProbability = 0.10
	maxPriceDrift    = 0.02
)

// RandomSampler draws counts with lunch/evening peaks, quiet nights and rare
// surges, and drifts each product's catalog price by up to ±2% per sample.
type RandomSampler struct {
	catalog *catalog.Catalog
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSampler creates a sampler over c. A nil rng uses a randomly seeded
// PCG source.
func NewRandomSampler(c *catalog.Catalog, rng *rand.Rand) *RandomSampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomSampler{catalog: c, rng: rng, now: time.Now}
}

// Sample implements Sampler. Unknown codes return (0, 0) and touch nothing.
func (s *RandomSampler) Sample(code string, hour int) (int, float64) {
	if _, ok := s.catalog.Get(code); !ok {
		return 0, 0
	}

	s.mu.Lock()
	count := s.orders(hour)
	drift := -maxPriceDrift + 2*maxPriceDrift*s.rng.Float64()
	s.mu.Unlock()

	price, _ := s.catalog.UpdatePrice(code, s.now(), func(p float64) float64 {
		return decimal.NewFromFloat(p * (1 + drift)).Round(2).InexactFloat64()
	})
	return count, price
}

// orders draws the hourly count. Caller holds s.mu.
func (s *RandomSampler) orders(hour int) int {
	n := s.between(0, 3)

	switch {
	case hour >= 11 && hour <= 13:
		n += s.between(2, 5)
	case hour >= 19 && hour <= 21:
		n += s.between(3, 7)
	case hour < 8 || hour > 22:
		n = s.between(0, 1)
	}

	if s.rng.Float64() < surgeProbability {
		n *= s.between(2, 4)
	}
	return max(0, n)
}

// between returns a uniform integer in [lo, hi].
func (s *RandomSampler) between(lo, hi int) int {
	return lo + s.rng.IntN(hi-lo+1)
}
