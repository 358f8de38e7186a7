package slotgame

import "errors"

var (
	ErrNilState                = errors.New("slotgame: state not configured")
	ErrNotInitialised          = errors.New("slotgame: game not initialised")
	ErrInvalidAmount           = errors.New("slotgame: bet outside configured bounds")
	ErrInvalidParam            = errors.New("slotgame: invalid parameter")
	ErrInsufficientBalance     = errors.New("slotgame: not enough funds")
	ErrInsufficientLiquidity   = errors.New("slotgame: pool cannot cover worst-case payout")
	ErrContractCallerForbidden = errors.New("slotgame: caller cannot be a contract")
	ErrUnauthorized            = errors.New("slotgame: unauthorized")
	ErrUnauthorizedCallback    = errors.New("slotgame: fulfillment not from configured coordinator")
	ErrUnknownRequest          = errors.New("slotgame: no pending wager for request")
	ErrWagerNotExpired         = errors.New("slotgame: wager not yet expired")
	ErrReentrantCall           = errors.New("slotgame: reentrant call")
)
