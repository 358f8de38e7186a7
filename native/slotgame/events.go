package slotgame

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"coinbet/core/types"
)

const (
	EventTypeFundsDeposited = "slotgame.funds.deposited"
	EventTypeFundsWithdrawn = "slotgame.funds.withdrawn"
	EventTypeBetPlaced      = "slotgame.bet.placed"
	EventTypeBetSettled     = "slotgame.bet.settled"
	EventTypeBetCancelled   = "slotgame.bet.cancelled"
	EventTypeParamUpdated   = "slotgame.param.updated"
)

// NewFundsDepositedEvent returns the payload emitted when player funds are
// credited.
func NewFundsDepositedEvent(recipient [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFundsDeposited, Attributes: map[string]string{
		"recipient": hex.EncodeToString(recipient[:]),
		"amount":    bigString(amount),
	}}
}

// NewFundsWithdrawnEvent returns the payload emitted when player funds are
// withdrawn.
func NewFundsWithdrawnEvent(bettor [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFundsWithdrawn, Attributes: map[string]string{
		"bettor": hex.EncodeToString(bettor[:]),
		"amount": bigString(amount),
	}}
}

// NewBetPlacedEvent returns the payload emitted when a wager is accepted and
// randomness has been requested.
func NewBetPlacedEvent(bettor [20]byte, amount, fee, netWager, maxPayout *big.Int, requestID [32]byte) *types.Event {
	return &types.Event{Type: EventTypeBetPlaced, Attributes: map[string]string{
		"bettor":    hex.EncodeToString(bettor[:]),
		"amount":    bigString(amount),
		"fee":       bigString(fee),
		"netWager":  bigString(netWager),
		"maxPayout": bigString(maxPayout),
		"requestId": hex.EncodeToString(requestID[:]),
	}}
}

// NewBetSettledEvent returns the payload emitted when a randomness fulfillment
// settles a wager. Payout is zero on a losing draw.
func NewBetSettledEvent(bettor [20]byte, requestID [32]byte, outcome uint64, reels []uint64, payout *big.Int) *types.Event {
	encoded := make([]string, len(reels))
	for i, reel := range reels {
		encoded[i] = strconv.FormatUint(reel, 10)
	}
	return &types.Event{Type: EventTypeBetSettled, Attributes: map[string]string{
		"bettor":    hex.EncodeToString(bettor[:]),
		"requestId": hex.EncodeToString(requestID[:]),
		"outcome":   strconv.FormatUint(outcome, 10),
		"reels":     strings.Join(encoded, ","),
		"payout":    bigString(payout),
	}}
}

// NewBetCancelledEvent returns the payload emitted when an expired wager is
// cancelled and refunded.
func NewBetCancelledEvent(bettor [20]byte, requestID [32]byte, refund *big.Int) *types.Event {
	return &types.Event{Type: EventTypeBetCancelled, Attributes: map[string]string{
		"bettor":    hex.EncodeToString(bettor[:]),
		"requestId": hex.EncodeToString(requestID[:]),
		"refund":    bigString(refund),
	}}
}

// NewParamUpdatedEvent returns the payload emitted by owner-gated setters.
func NewParamUpdatedEvent(field, value string) *types.Event {
	return &types.Event{Type: EventTypeParamUpdated, Attributes: map[string]string{
		"field": field,
		"value": value,
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
