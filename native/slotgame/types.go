package slotgame

import "math/big"

// CallOrigin describes how a wager entered the system. Only externally
// originated calls may place wagers; automated contract callers are rejected
// to keep outcome timing unpredictable to the bettor.
type CallOrigin uint8

const (
	OriginExternal CallOrigin = iota
	OriginContract
)

// PendingWager is the single piece of state that survives the asynchronous
// randomness boundary. It is created when a bet is accepted and consumed by
// exactly one settlement (fulfillment or expiry cancel).
type PendingWager struct {
	RequestID      [32]byte
	Bettor         [20]byte
	NetWager       *big.Int
	ReservedPayout *big.Int
	PlacedAt       int64
}

// Normalize replaces nil amounts with zero values.
func (w *PendingWager) Normalize() *PendingWager {
	if w == nil {
		return nil
	}
	if w.NetWager == nil {
		w.NetWager = big.NewInt(0)
	}
	if w.ReservedPayout == nil {
		w.ReservedPayout = big.NewInt(0)
	}
	return w
}

// Clone returns a deep copy of the wager record.
func (w *PendingWager) Clone() *PendingWager {
	if w == nil {
		return nil
	}
	norm := w.Normalize()
	clone := *norm
	clone.NetWager = new(big.Int).Set(norm.NetWager)
	clone.ReservedPayout = new(big.Int).Set(norm.ReservedPayout)
	return &clone
}

// GameState holds the mutable wager configuration persisted alongside the
// pool record. Owner-gated setters are its only mutators.
type GameState struct {
	MinBet         *big.Int
	MaxBet         *big.Int
	ProtocolFeeBps uint32
	// WithdrawWindow is the number of seconds after which an unfulfilled
	// wager may be cancelled and refunded. Zero disables the refund path.
	WithdrawWindow uint64
	NumWords       uint32
}

// Normalize replaces nil amounts with zero values and a zero word count with
// one.
func (g *GameState) Normalize() *GameState {
	if g == nil {
		return nil
	}
	if g.MinBet == nil {
		g.MinBet = big.NewInt(0)
	}
	if g.MaxBet == nil {
		g.MaxBet = big.NewInt(0)
	}
	if g.NumWords == 0 {
		g.NumWords = 1
	}
	return g
}

// Clone returns a deep copy of the game configuration.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	norm := g.Normalize()
	clone := *norm
	clone.MinBet = new(big.Int).Set(norm.MinBet)
	clone.MaxBet = new(big.Int).Set(norm.MaxBet)
	return &clone
}
