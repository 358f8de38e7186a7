package housepool

import "errors"

var (
	ErrNilState              = errors.New("housepool: state not configured")
	ErrNotInitialised        = errors.New("housepool: pool not initialised")
	ErrInvalidAmount         = errors.New("housepool: amount must be positive")
	ErrInvalidParam          = errors.New("housepool: invalid parameter")
	ErrCapacityExceeded      = errors.New("housepool: pool max cap exceeded")
	ErrInsufficientShares    = errors.New("housepool: insufficient shares")
	ErrInsufficientLiquidity = errors.New("housepool: not enough to pay max payout")
	ErrUnauthorized          = errors.New("housepool: unauthorized")
)
