package slotgame

import (
	"fmt"
	"math/big"
)

// multiplierScale expresses paytable multipliers in hundredths, so 120 pays
// 1.2x the net wager.
const multiplierScale = 100

// PayTable maps a drawn outcome to a payout multiplier. It is a pure lookup
// with no state; the highest entry defines the worst-case payout reserved for
// every accepted wager.
type PayTable struct {
	multipliers []uint64
}

// DefaultPayTable returns the production reel table. Outcome 0 is the losing
// draw; winning combinations scale from 1.2x up to the 10x jackpot.
func DefaultPayTable() PayTable {
	return PayTable{multipliers: []uint64{0, 120, 150, 0, 200, 0, 300, 0, 500, 1000}}
}

// NewPayTable builds a paytable from multipliers expressed in hundredths.
func NewPayTable(multipliers []uint64) (PayTable, error) {
	if len(multipliers) == 0 {
		return PayTable{}, fmt.Errorf("slotgame: paytable must not be empty")
	}
	max := uint64(0)
	for _, m := range multipliers {
		if m > max {
			max = m
		}
	}
	if max == 0 {
		return PayTable{}, fmt.Errorf("slotgame: paytable must contain a winning outcome")
	}
	return PayTable{multipliers: append([]uint64{}, multipliers...)}, nil
}

// Cardinality returns the number of distinct outcomes.
func (t PayTable) Cardinality() uint64 {
	return uint64(len(t.multipliers))
}

// Outcome reduces a random word onto the paytable domain.
func (t PayTable) Outcome(word *big.Int) uint64 {
	if word == nil || len(t.multipliers) == 0 {
		return 0
	}
	mod := new(big.Int).Mod(word, new(big.Int).SetUint64(t.Cardinality()))
	return mod.Uint64()
}

// Multiplier returns the payout multiplier for an outcome in hundredths.
func (t PayTable) Multiplier(outcome uint64) uint64 {
	if outcome >= uint64(len(t.multipliers)) {
		return 0
	}
	return t.multipliers[outcome]
}

// MaxMultiplier returns the highest multiplier in the table in hundredths.
func (t PayTable) MaxMultiplier() uint64 {
	max := uint64(0)
	for _, m := range t.multipliers {
		if m > max {
			max = m
		}
	}
	return max
}

// Payout computes the amount owed for a net wager and outcome.
func (t PayTable) Payout(netWager *big.Int, outcome uint64) *big.Int {
	if netWager == nil {
		return big.NewInt(0)
	}
	payout := new(big.Int).Mul(netWager, new(big.Int).SetUint64(t.Multiplier(outcome)))
	return payout.Div(payout, big.NewInt(multiplierScale))
}

// MaxPayout computes the worst-case payout reserved at wager acceptance.
func (t PayTable) MaxPayout(netWager *big.Int) *big.Int {
	if netWager == nil {
		return big.NewInt(0)
	}
	payout := new(big.Int).Mul(netWager, new(big.Int).SetUint64(t.MaxMultiplier()))
	return payout.Div(payout, big.NewInt(multiplierScale))
}
