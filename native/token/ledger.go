package token

import (
	"encoding/hex"
	"math/big"
	"strings"

	"coinbet/core/events"
	"coinbet/core/types"
)

// Well-known token symbols used by the protocol.
const (
	// SymbolPoolShare is the LP share token minted against house pool
	// deposits.
	SymbolPoolShare = "CHP-LP"
	// SymbolReward is the Coinbet reward token whose holdings grant the
	// protocol fee waiver.
	SymbolReward = "CBET"
)

const (
	EventTypeMinted      = "token.minted"
	EventTypeBurned      = "token.burned"
	EventTypeTransferred = "token.transferred"
)

// Storage describes the minimal state functionality the token ledger needs
// from the surrounding state implementation.
type Storage interface {
	TokenBalance(symbol string, addr [20]byte) (*big.Int, error)
	SetTokenBalance(symbol string, addr [20]byte, amount *big.Int) error
	TokenSupply(symbol string) (*big.Int, error)
	SetTokenSupply(symbol string, amount *big.Int) error
}

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// Ledger implements mint/burn/transfer semantics for a single fungible token.
// Supply and the sum of all balances move together: Mint and Burn are the only
// mutators of either.
type Ledger struct {
	state   Storage
	symbol  string
	emitter events.Emitter
}

// NewLedger constructs a ledger for the given symbol backed by state.
func NewLedger(state Storage, symbol string) (*Ledger, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return nil, ErrInvalidSymbol
	}
	return &Ledger{state: state, symbol: trimmed, emitter: events.NoopEmitter{}}, nil
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// Symbol returns the token symbol this ledger manages.
func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(ledgerEvent{evt: evt})
}

func (l *Ledger) event(eventType string, addr [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"symbol":  l.symbol,
		"address": hex.EncodeToString(addr[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// BalanceOf returns the holder's balance. Missing entries read as zero.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	bal, err := l.state.TokenBalance(l.symbol, addr)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

// TotalSupply returns the outstanding supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	supply, err := l.state.TokenSupply(l.symbol)
	if err != nil {
		return nil, err
	}
	if supply == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(supply), nil
}

// Mint credits amount to addr and grows the supply.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal, err := l.BalanceOf(addr)
	if err != nil {
		return err
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(l.symbol, addr, new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(l.symbol, new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	l.emit(l.event(EventTypeMinted, addr, amount))
	return nil
}

// Burn debits amount from addr and shrinks the supply.
func (l *Ledger) Burn(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal, err := l.BalanceOf(addr)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(l.symbol, addr, new(big.Int).Sub(bal, amount)); err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(l.symbol, new(big.Int).Sub(supply, amount)); err != nil {
		return err
	}
	l.emit(l.event(EventTypeBurned, addr, amount))
	return nil
}

// Transfer moves amount between holders without touching the supply.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBal, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(l.symbol, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(l.symbol, to, new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	evt := l.event(EventTypeTransferred, from, amount)
	evt.Attributes["to"] = hex.EncodeToString(to[:])
	l.emit(evt)
	return nil
}
