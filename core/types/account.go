package types

import "math/big"

// Account tracks the per-address bankroll ledger. Balance is the withdrawable
// amount credited by deposits and winning settlements; the lifetime counters
// exist for the history surface and never participate in accounting decisions.
type Account struct {
	Balance      *big.Int `json:"balance"`
	TotalWagered *big.Int `json:"totalWagered"`
	TotalWon     *big.Int `json:"totalWon"`
}

// NewAccount returns an account with all balances initialised to zero.
func NewAccount() *Account {
	return &Account{
		Balance:      big.NewInt(0),
		TotalWagered: big.NewInt(0),
		TotalWon:     big.NewInt(0),
	}
}

// Normalize replaces nil balance pointers with zero values so callers can
// mutate the account without nil checks.
func (a *Account) Normalize() *Account {
	if a == nil {
		return NewAccount()
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	if a.TotalWagered == nil {
		a.TotalWagered = big.NewInt(0)
	}
	if a.TotalWon == nil {
		a.TotalWon = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy so shared state is never mutated through a
// returned account.
func (a *Account) Clone() *Account {
	norm := a.Normalize()
	return &Account{
		Balance:      new(big.Int).Set(norm.Balance),
		TotalWagered: new(big.Int).Set(norm.TotalWagered),
		TotalWon:     new(big.Int).Set(norm.TotalWon),
	}
}
