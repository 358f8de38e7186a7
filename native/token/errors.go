package token

import "errors"

var (
	ErrNilState            = errors.New("token: state not configured")
	ErrInvalidSymbol       = errors.New("token: invalid symbol")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
)
