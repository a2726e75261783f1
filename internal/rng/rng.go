// Package rng provides the cryptographically strong random number generator
// every game outcome is drawn from, plus the reproducible seeded hash used to
// publish odds curves.
package rng

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"time"
)

var (
	ErrInvalidMax     = errors.New("max must be positive")
	ErrInvalidWeights = errors.New("invalid weights")
)

// Source is the uniform substrate games sample from
type Source interface {
	// Uniform returns a float in [0.0, 1.0)
	Uniform() (float64, error)
	// UniformInt returns an integer in [0, max)
	UniformInt(max int64) (int64, error)
}

// Service provides cryptographically strong random number generation.
// It never falls back to a seeded or time-based generator.
type Service struct {
	entropy io.Reader
	mu      sync.Mutex

	samplesGenerated int64
}

// New creates a new RNG service using crypto/rand
func New() *Service {
	return NewWithReader(rand.Reader)
}

// NewWithReader creates a service over a custom entropy reader
func NewWithReader(r io.Reader) *Service {
	return &Service{entropy: r}
}

// UniformInt returns a random integer in range [0, max).
// Uses rejection sampling to eliminate modulo bias.
func (s *Service) UniformInt(max int64) (int64, error) {
	if max <= 0 {
		return 0, ErrInvalidMax
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// values >= threshold would over-represent the low residues
	threshold := uint64(1<<63-1) - (uint64(1<<63-1) % uint64(max))

	buf := make([]byte, 8)
	for {
		if _, err := io.ReadFull(s.entropy, buf); err != nil {
			return 0, fmt.Errorf("failed to generate random int: %w", err)
		}

		n := binary.BigEndian.Uint64(buf) >> 1 // 63 bits, positive range

		if n < threshold {
			s.samplesGenerated++
			return int64(n % uint64(max)), nil
		}
	}
}

// Uniform returns a random float in range [0.0, 1.0)
func (s *Service) Uniform() (float64, error) {
	n, err := s.UniformInt(1 << 53) // 53 bits of precision
	if err != nil {
		return 0, err
	}
	return float64(n) / float64(1<<53), nil
}

// SelectWeighted picks an index from positive weights with a single uniform draw
// scaled by the total weight. The scan subtracts each weight from the remainder
// and returns the first entry that takes it to zero or below.
func SelectWeighted(src Source, weights []float64) (int, error) {
	if len(weights) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidWeights)
	}

	var total float64
	for _, w := range weights {
		if w <= 0 {
			return 0, fmt.Errorf("%w: non-positive weight %v", ErrInvalidWeights, w)
		}
		total += w
	}

	u, err := src.Uniform()
	if err != nil {
		return 0, err
	}

	remainder := u * total
	for i, w := range weights {
		remainder -= w
		if remainder <= 0 {
			return i, nil
		}
	}

	// float rounding can leave a sliver above zero
	return len(weights) - 1, nil
}

// SeededFloat maps (seed, step) to a reproducible value in [0.0, 1.0).
// It is a public hash, not a secret: anyone holding the seed can recompute it.
func SeededFloat(seed int64, step int) float64 {
	sum := sha256.Sum256([]byte(strconv.FormatInt(seed, 10) + ":" + strconv.Itoa(step)))
	return float64(binary.BigEndian.Uint64(sum[:8])>>11) / float64(1<<53)
}

// HealthCheck verifies RNG is functioning correctly
func (s *Service) HealthCheck() (*HealthResult, error) {
	const sampleSize = 1000
	samples := make([]int64, sampleSize)

	for i := 0; i < sampleSize; i++ {
		n, err := s.UniformInt(100)
		if err != nil {
			return &HealthResult{
				Healthy:   false,
				Timestamp: time.Now(),
				Error:     err.Error(),
			}, err
		}
		samples[i] = n
	}

	chiSquare, passed := chiSquareTest(samples, 100)

	s.mu.Lock()
	generated := s.samplesGenerated
	s.mu.Unlock()

	return &HealthResult{
		Healthy:          passed,
		Timestamp:        time.Now(),
		SamplesGenerated: generated,
		ChiSquare:        chiSquare,
		ChiSquarePassed:  passed,
	}, nil
}

// chiSquareTest performs a basic chi-square test for uniformity
func chiSquareTest(samples []int64, bins int) (float64, bool) {
	counts := make([]int, bins)
	for _, sample := range samples {
		counts[int(sample)%bins]++
	}

	expected := float64(len(samples)) / float64(bins)

	var chiSquare float64
	for _, count := range counts {
		diff := float64(count) - expected
		chiSquare += (diff * diff) / expected
	}

	// 99 degrees of freedom at 99% confidence
	criticalValue := 134.6
	if bins != 100 {
		criticalValue = float64(bins-1) + 2.576*math.Sqrt(2.0*float64(bins-1))
	}

	return chiSquare, chiSquare < criticalValue
}

// HealthResult contains RNG health check results
type HealthResult struct {
	Healthy          bool      `json:"healthy"`
	Timestamp        time.Time `json:"timestamp"`
	SamplesGenerated int64     `json:"samplesGenerated"`
	ChiSquare        float64   `json:"chiSquare"`
	ChiSquarePassed  bool      `json:"chiSquarePassed"`
	Error            string    `json:"error,omitempty"`
}
