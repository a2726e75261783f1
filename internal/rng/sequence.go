package rng

import (
	"errors"
	"sync"
)

// ErrExhausted is returned by a Sequence with no scripted draws left
var ErrExhausted = errors.New("rng sequence exhausted")

// Sequence replays scripted draws in order. Games are pure functions of their
// draws, so a Sequence pins an outcome exactly; it exists for tests and
// outcome replays, never for live play.
type Sequence struct {
	mu     sync.Mutex
	floats []float64
	ints   []int64
}

// NewSequence scripts the next Uniform and UniformInt results independently
func NewSequence(floats []float64, ints []int64) *Sequence {
	return &Sequence{floats: floats, ints: ints}
}

// Uniform returns the next scripted float
func (s *Sequence) Uniform() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return 0, ErrExhausted
	}
	f := s.floats[0]
	s.floats = s.floats[1:]
	return f, nil
}

// UniformInt returns the next scripted integer reduced into [0, max)
func (s *Sequence) UniformInt(max int64) (int64, error) {
	if max <= 0 {
		return 0, ErrInvalidMax
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ints) == 0 {
		return 0, ErrExhausted
	}
	n := s.ints[0]
	s.ints = s.ints[1:]
	return ((n % max) + max) % max, nil
}

// Remaining reports how many scripted draws are left
func (s *Sequence) Remaining() (floats, ints int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.floats), len(s.ints)
}
