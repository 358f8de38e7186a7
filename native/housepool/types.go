package housepool

import "math/big"

// Pool is the singleton accounting record for house liquidity. Capital is the
// balance available to cover payouts, Reserved the portion committed to
// unsettled wagers and ProtocolFeeReserve the accumulated protocol revenue.
// The three are disjoint: fees never inflate the share price and reserved
// capital cannot back a second wager.
type Pool struct {
	Capital            *big.Int
	Reserved           *big.Int
	ProtocolFeeReserve *big.Int

	MaxCap     *big.Int
	ExitFeeBps uint32

	// MaxPayoutRatioNum/Den bound a single wager's worst-case payout at
	// Capital*Num/Den regardless of headroom.
	MaxPayoutRatioNum uint64
	MaxPayoutRatioDen uint64

	// Epoch lifecycle. EpochStartedAt advances by exactly EpochLength per
	// finalisation so slack never accumulates.
	EpochLength        uint64
	EpochStartedAt     uint64
	FinalizeEpochBonus *big.Int

	// IncentiveMode pays the finalisation bonus to the caller instead of
	// injecting it into pool capital, and mints CBET cashback on losing
	// wagers at RewardMultiplierBps.
	IncentiveMode       bool
	RewardMultiplierBps uint64

	// FeeWaiverThreshold is the CBET holding at which bettors pay no
	// protocol fee.
	FeeWaiverThreshold *big.Int
}

// Normalize replaces nil big.Int fields with zero values and zero ratio
// denominators with one.
func (p *Pool) Normalize() *Pool {
	if p == nil {
		return nil
	}
	if p.Capital == nil {
		p.Capital = big.NewInt(0)
	}
	if p.Reserved == nil {
		p.Reserved = big.NewInt(0)
	}
	if p.ProtocolFeeReserve == nil {
		p.ProtocolFeeReserve = big.NewInt(0)
	}
	if p.MaxCap == nil {
		p.MaxCap = big.NewInt(0)
	}
	if p.FinalizeEpochBonus == nil {
		p.FinalizeEpochBonus = big.NewInt(0)
	}
	if p.FeeWaiverThreshold == nil {
		p.FeeWaiverThreshold = big.NewInt(0)
	}
	if p.MaxPayoutRatioDen == 0 {
		p.MaxPayoutRatioDen = 1
	}
	return p
}

// Clone returns a deep copy of the pool record.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	norm := p.Normalize()
	clone := *norm
	clone.Capital = new(big.Int).Set(norm.Capital)
	clone.Reserved = new(big.Int).Set(norm.Reserved)
	clone.ProtocolFeeReserve = new(big.Int).Set(norm.ProtocolFeeReserve)
	clone.MaxCap = new(big.Int).Set(norm.MaxCap)
	clone.FinalizeEpochBonus = new(big.Int).Set(norm.FinalizeEpochBonus)
	clone.FeeWaiverThreshold = new(big.Int).Set(norm.FeeWaiverThreshold)
	return &clone
}

// Available returns the capital headroom usable for new reservations.
func (p *Pool) Available() *big.Int {
	norm := p.Normalize()
	if norm == nil {
		return big.NewInt(0)
	}
	avail := new(big.Int).Sub(norm.Capital, norm.Reserved)
	if avail.Sign() < 0 {
		return big.NewInt(0)
	}
	return avail
}
