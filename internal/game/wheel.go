package game

import (
	"context"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/rng"
	"github.com/shopspring/decimal"
)

// WheelSegment is one slice of the lucky wheel
type WheelSegment struct {
	Multiplier decimal.Decimal
	Weight     float64
}

var wheelSegments = []WheelSegment{
	{decimal.Zero, 20},
	{decimal.RequireFromString("0.3"), 15},
	{decimal.RequireFromString("0.5"), 15},
	{decimal.RequireFromString("1.2"), 20},
	{decimal.RequireFromString("1.5"), 18},
	{decimal.NewFromInt(2), 8},
	{decimal.NewFromInt(3), 3},
	{decimal.NewFromInt(5), 1},
}

var wheelWeights = func() []float64 {
	w := make([]float64, len(wheelSegments))
	for i, s := range wheelSegments {
		w[i] = s.Weight
	}
	return w
}()

// SpinWheel returns the index of the segment the wheel stops on. A rigged
// spin stops on a zero segment.
func SpinWheel(src rng.Source, rigged bool) (int, error) {
	if !rigged {
		return rng.SelectWeighted(src, wheelWeights)
	}

	var zeros []int
	for i, s := range wheelSegments {
		if s.Multiplier.IsZero() {
			zeros = append(zeros, i)
		}
	}
	idx, err := src.UniformInt(int64(len(zeros)))
	if err != nil {
		return 0, err
	}
	return zeros[idx], nil
}

type wheelEntry struct {
	Multiplier float64 `json:"multiplier"`
	Weight     float64 `json:"weight"`
}

func wheelPaytable() []wheelEntry {
	table := make([]wheelEntry, len(wheelSegments))
	for i, s := range wheelSegments {
		table[i] = wheelEntry{Multiplier: s.Multiplier.InexactFloat64(), Weight: s.Weight}
	}
	return table
}

// WheelResult is the response to a lucky wheel spin
type WheelResult struct {
	RoundID    string  `json:"roundId"`
	Segment    int     `json:"segment"`
	Multiplier float64 `json:"multiplier"`
	Won        bool    `json:"won"`
	Payout     int64   `json:"payout"`
	Balance    int64   `json:"balance"`
}

type wheelOutcome struct {
	Segment    int     `json:"segment"`
	Multiplier float64 `json:"multiplier"`
}

// PlayWheel spins the lucky wheel for bet
func (e *Engine) PlayWheel(ctx context.Context, playerID string, bet int64) (*WheelResult, error) {
	var segment int
	s, d, err := e.playRound(ctx, playerID, domain.GameWheel, bet, func(rigged bool) (*draw, error) {
		var err error
		segment, err = SpinWheel(e.rng, rigged)
		if err != nil {
			return nil, err
		}
		m := wheelSegments[segment].Multiplier
		return &draw{
			multiplier: m,
			outcome:    wheelOutcome{Segment: segment, Multiplier: m.InexactFloat64()},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &WheelResult{
		RoundID:    s.roundID,
		Segment:    segment,
		Multiplier: d.multiplier.InexactFloat64(),
		Won:        s.won,
		Payout:     s.payout,
		Balance:    s.balance,
	}, nil
}
