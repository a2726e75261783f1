package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexbotov/arcade/internal/domain"
	"github.com/alexbotov/arcade/internal/rng"
	"github.com/shopspring/decimal"
)

// BetType is a roulette wager kind
type BetType string

const (
	BetRed    BetType = "red"
	BetBlack  BetType = "black"
	BetOdd    BetType = "odd"
	BetEven   BetType = "even"
	BetLow    BetType = "low"
	BetHigh   BetType = "high"
	BetNumber BetType = "number"
)

var betTypes = []BetType{BetRed, BetBlack, BetOdd, BetEven, BetLow, BetHigh, BetNumber}

var betTypeAliases = map[string]BetType{
	"1-18":  BetLow,
	"19-36": BetHigh,
}

// ParseBetType normalises client input to a canonical bet type. Unknown
// names pass through for Validate to reject.
func ParseBetType(s string) BetType {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := betTypeAliases[s]; ok {
		return t
	}
	return BetType(s)
}

const rouletteMaxNumber = 36

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// Color returns green, red or black for a wheel number
func Color(n int) string {
	switch {
	case n == 0:
		return "green"
	case redNumbers[n]:
		return "red"
	default:
		return "black"
	}
}

// RouletteBet is what the player wagers on
type RouletteBet struct {
	Type   BetType `json:"betType"`
	Number *int    `json:"number,omitempty"`
}

// Validate checks the bet type and its number
func (b RouletteBet) Validate() error {
	known := false
	for _, t := range betTypes {
		if b.Type == t {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrInvalidBetType, b.Type)
	}

	if b.Type == BetNumber {
		if b.Number == nil || *b.Number < 0 || *b.Number > rouletteMaxNumber {
			return fmt.Errorf("%w: must be 0-%d", ErrInvalidNumber, rouletteMaxNumber)
		}
	} else if b.Number != nil {
		return fmt.Errorf("%w: only number bets take a number", ErrInvalidNumber)
	}
	return nil
}

// Wins reports whether spin n pays the bet. Zero loses every outside bet.
func (b RouletteBet) Wins(n int) bool {
	if b.Type == BetNumber {
		return b.Number != nil && *b.Number == n
	}
	if n == 0 {
		return false
	}

	switch b.Type {
	case BetRed:
		return Color(n) == "red"
	case BetBlack:
		return Color(n) == "black"
	case BetOdd:
		return n%2 == 1
	case BetEven:
		return n%2 == 0
	case BetLow:
		return n <= 18
	case BetHigh:
		return n >= 19
	}
	return false
}

// Multiplier is the total return on a winning bet, stake included
func (b RouletteBet) Multiplier() decimal.Decimal {
	if b.Type == BetNumber {
		return decimal.NewFromInt(36)
	}
	return decimal.NewFromInt(2)
}

// SpinRoulette lands on zero with probability zeroWeight, otherwise uniformly
// on 1..36. A rigged spin lands uniformly among the numbers the bet loses on.
func SpinRoulette(src rng.Source, zeroWeight float64, bet RouletteBet, rigged bool) (int, error) {
	if rigged {
		losing := make([]int, 0, rouletteMaxNumber+1)
		for n := 0; n <= rouletteMaxNumber; n++ {
			if !bet.Wins(n) {
				losing = append(losing, n)
			}
		}
		idx, err := src.UniformInt(int64(len(losing)))
		if err != nil {
			return 0, err
		}
		return losing[idx], nil
	}

	u, err := src.Uniform()
	if err != nil {
		return 0, err
	}
	if u < zeroWeight {
		return 0, nil
	}

	n, err := src.UniformInt(rouletteMaxNumber)
	if err != nil {
		return 0, err
	}
	return int(n) + 1, nil
}

type roulettePayouts struct {
	ZeroProbability float64           `json:"zeroProbability"`
	Multipliers     map[BetType]int64 `json:"multipliers"`
}

func roulettePaytable(zeroWeight float64) roulettePayouts {
	table := roulettePayouts{ZeroProbability: zeroWeight, Multipliers: make(map[BetType]int64, len(betTypes))}
	for _, t := range betTypes {
		table.Multipliers[t] = RouletteBet{Type: t}.Multiplier().IntPart()
	}
	return table
}

// RouletteResult is the response to a roulette spin
type RouletteResult struct {
	RoundID    string  `json:"roundId"`
	SpinResult int     `json:"spinResult"`
	Color      string  `json:"color"`
	BetType    BetType `json:"betType"`
	Number     *int    `json:"number,omitempty"`
	Won        bool    `json:"won"`
	Payout     int64   `json:"payout"`
	Balance    int64   `json:"balance"`
}

type rouletteOutcome struct {
	RouletteBet
	SpinResult int    `json:"spinResult"`
	Color      string `json:"color"`
}

// PlayRoulette spins the wheel for one bet
func (e *Engine) PlayRoulette(ctx context.Context, playerID string, amount int64, bet RouletteBet) (*RouletteResult, error) {
	if err := bet.Validate(); err != nil {
		return nil, err
	}

	var spin int
	s, _, err := e.playRound(ctx, playerID, domain.GameRoulette, amount, func(rigged bool) (*draw, error) {
		var err error
		spin, err = SpinRoulette(e.rng, e.cfg.Roulette.ZeroWeight, bet, rigged)
		if err != nil {
			return nil, err
		}
		m := decimal.Zero
		if bet.Wins(spin) {
			m = bet.Multiplier()
		}
		return &draw{
			multiplier: m,
			outcome:    rouletteOutcome{RouletteBet: bet, SpinResult: spin, Color: Color(spin)},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &RouletteResult{
		RoundID:    s.roundID,
		SpinResult: spin,
		Color:      Color(spin),
		BetType:    bet.Type,
		Number:     bet.Number,
		Won:        s.won,
		Payout:     s.payout,
		Balance:    s.balance,
	}, nil
}
