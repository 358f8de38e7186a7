package housepool

import (
	"fmt"
	"math/big"
)

const bpsDenominator = 10_000

// Params seeds the pool record at genesis. Values mirror the deployment
// arguments of the protocol.
type Params struct {
	ExitFeeBps          uint32
	MaxCap              *big.Int
	MaxPayoutRatioNum   uint64
	MaxPayoutRatioDen   uint64
	EpochLength         uint64
	EpochStartedAt      uint64
	FinalizeEpochBonus  *big.Int
	IncentiveMode       bool
	RewardMultiplierBps uint64
	FeeWaiverThreshold  *big.Int
}

// DefaultParams returns a conservative default configuration.
func DefaultParams() Params {
	return Params{
		ExitFeeBps:          500,
		MaxCap:              new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)),
		MaxPayoutRatioNum:   1,
		MaxPayoutRatioDen:   1,
		EpochLength:         7 * 24 * 60 * 60,
		FinalizeEpochBonus:  big.NewInt(0),
		IncentiveMode:       false,
		RewardMultiplierBps: 0,
		FeeWaiverThreshold:  big.NewInt(0),
	}
}

// Validate ensures the configuration is self-consistent.
func (p Params) Validate() error {
	if p.ExitFeeBps > bpsDenominator {
		return fmt.Errorf("housepool: exit fee bps %d out of range", p.ExitFeeBps)
	}
	if p.MaxCap == nil || p.MaxCap.Sign() <= 0 {
		return fmt.Errorf("housepool: max cap must be positive")
	}
	if p.MaxPayoutRatioDen == 0 {
		return fmt.Errorf("housepool: max payout ratio denominator must be non-zero")
	}
	if p.MaxPayoutRatioNum == 0 {
		return fmt.Errorf("housepool: max payout ratio numerator must be non-zero")
	}
	if p.EpochLength == 0 {
		return fmt.Errorf("housepool: epoch length must be greater than zero")
	}
	if p.FinalizeEpochBonus != nil && p.FinalizeEpochBonus.Sign() < 0 {
		return fmt.Errorf("housepool: finalize epoch bonus must not be negative")
	}
	if p.RewardMultiplierBps > bpsDenominator {
		return fmt.Errorf("housepool: reward multiplier bps %d out of range", p.RewardMultiplierBps)
	}
	return nil
}
