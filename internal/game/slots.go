package game

import (
	"context"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/rng"
	"github.com/shopspring/decimal"
)

// Symbol represents a slot reel symbol
type Symbol string

const (
	SymbolSeven   Symbol = "SEVEN"
	SymbolDiamond Symbol = "DIAMOND"
	SymbolBell    Symbol = "BELL"
	SymbolCherry  Symbol = "CHERRY"
	SymbolLemon   Symbol = "LEMON"
	SymbolGrape   Symbol = "GRAPE"
)

// Symbols is the reel alphabet. Every reel draws uniformly from it.
var Symbols = []Symbol{SymbolSeven, SymbolDiamond, SymbolBell, SymbolCherry, SymbolLemon, SymbolGrape}

// SlotTier names the paytable row a spin matched
type SlotTier string

const (
	TierJackpot SlotTier = "jackpot"
	TierDiamond SlotTier = "diamond"
	TierBell    SlotTier = "bell"
	TierTriple  SlotTier = "triple"
	TierPair    SlotTier = "pair"
	TierNone    SlotTier = "none"
)

// Reels is one spin result, left to right
type Reels [3]Symbol

type slotRule struct {
	tier        SlotTier
	combination string
	multiplier  decimal.Decimal
	match       func(r Reels) bool
}

func tripleOf(s Symbol) func(Reels) bool {
	return func(r Reels) bool { return r[0] == s && r[1] == s && r[2] == s }
}

func (r Reels) triple() bool { return r[0] == r[1] && r[1] == r[2] }

func (r Reels) pair() bool { return r[0] == r[1] || r[1] == r[2] || r[0] == r[2] }

// slotRules is evaluated top-down; the first match pays and the rest are ignored
var slotRules = []slotRule{
	{TierJackpot, "SEVEN x3", decimal.NewFromInt(50), tripleOf(SymbolSeven)},
	{TierDiamond, "DIAMOND x3", decimal.NewFromInt(20), tripleOf(SymbolDiamond)},
	{TierBell, "BELL x3", decimal.NewFromInt(10), tripleOf(SymbolBell)},
	{TierTriple, "any other x3", decimal.NewFromInt(5), Reels.triple},
	{TierPair, "any pair", decimal.RequireFromString("1.25"), Reels.pair},
}

// EvaluateSlots returns the tier and multiplier of a spin
func EvaluateSlots(r Reels) (SlotTier, decimal.Decimal) {
	for _, rule := range slotRules {
		if rule.match(r) {
			return rule.tier, rule.multiplier
		}
	}
	return TierNone, decimal.Zero
}

// SpinSlots draws three independent symbols. A rigged spin draws three
// distinct symbols, which matches no paytable row.
func SpinSlots(src rng.Source, rigged bool) (Reels, error) {
	var r Reels
	if rigged {
		pool := append([]Symbol(nil), Symbols...)
		for i := range r {
			idx, err := src.UniformInt(int64(len(pool)))
			if err != nil {
				return Reels{}, err
			}
			r[i] = pool[idx]
			pool = append(pool[:idx], pool[idx+1:]...)
		}
		return r, nil
	}

	for i := range r {
		idx, err := src.UniformInt(int64(len(Symbols)))
		if err != nil {
			return Reels{}, err
		}
		r[i] = Symbols[idx]
	}
	return r, nil
}

// PaytableEntry is one public paytable row
type PaytableEntry struct {
	Tier        string  `json:"tier"`
	Combination string  `json:"combination"`
	Multiplier  float64 `json:"multiplier"`
}

func slotsPaytable() []PaytableEntry {
	table := make([]PaytableEntry, 0, len(slotRules))
	for _, rule := range slotRules {
		table = append(table, PaytableEntry{
			Tier:        string(rule.tier),
			Combination: rule.combination,
			Multiplier:  rule.multiplier.InexactFloat64(),
		})
	}
	return table
}

// SlotsResult is the response to a slot spin
type SlotsResult struct {
	RoundID    string   `json:"roundId"`
	Reels      []Symbol `json:"reels"`
	Tier       SlotTier `json:"tier"`
	Multiplier float64  `json:"multiplier"`
	Won        bool     `json:"won"`
	Payout     int64    `json:"payout"`
	Balance    int64    `json:"balance"`
}

type slotsOutcome struct {
	Reels []Symbol `json:"reels"`
	Tier  SlotTier `json:"tier"`
}

// PlaySlots spins the slot machine for bet
func (e *Engine) PlaySlots(ctx context.Context, playerID string, bet int64) (*SlotsResult, error) {
	var reels Reels
	var tier SlotTier

	s, d, err := e.playRound(ctx, playerID, domain.GameSlots, bet, func(rigged bool) (*draw, error) {
		var err error
		reels, err = SpinSlots(e.rng, rigged)
		if err != nil {
			return nil, err
		}
		var m decimal.Decimal
		tier, m = EvaluateSlots(reels)
		return &draw{
			multiplier: m,
			jackpot:    tier == TierJackpot,
			outcome:    slotsOutcome{Reels: reels[:], Tier: tier},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &SlotsResult{
		RoundID:    s.roundID,
		Reels:      reels[:],
		Tier:       tier,
		Multiplier: d.multiplier.InexactFloat64(),
		Won:        s.won,
		Payout:     s.payout,
		Balance:    s.balance,
	}, nil
}
