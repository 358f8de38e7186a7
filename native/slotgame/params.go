package slotgame

import (
	"fmt"
	"math/big"
)

const bpsDenominator = 10_000

// Params seeds the game configuration at genesis.
type Params struct {
	MinBet         *big.Int
	MaxBet         *big.Int
	ProtocolFeeBps uint32
	WithdrawWindow uint64
	NumWords       uint32
}

// DefaultParams returns a conservative default configuration.
func DefaultParams() Params {
	return Params{
		MinBet:         big.NewInt(1e16),
		MaxBet:         big.NewInt(1e18),
		ProtocolFeeBps: 200,
		WithdrawWindow: 24 * 60 * 60,
		NumWords:       3,
	}
}

// Validate ensures the configuration is self-consistent.
func (p Params) Validate() error {
	if p.MinBet == nil || p.MinBet.Sign() <= 0 {
		return fmt.Errorf("slotgame: min bet must be positive")
	}
	if p.MaxBet == nil || p.MaxBet.Cmp(p.MinBet) < 0 {
		return fmt.Errorf("slotgame: max bet must be at least min bet")
	}
	if p.ProtocolFeeBps > bpsDenominator {
		return fmt.Errorf("slotgame: protocol fee bps %d out of range", p.ProtocolFeeBps)
	}
	if p.NumWords == 0 {
		return fmt.Errorf("slotgame: at least one random word is required")
	}
	return nil
}
