package housepool

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"coinbet/core/types"
)

const (
	EventTypeLiquidityAdded   = "housepool.liquidity.added"
	EventTypeLiquidityRemoved = "housepool.liquidity.removed"
	EventTypeEpochFinalized   = "housepool.epoch.finalized"
	EventTypeFeesWithdrawn    = "housepool.fees.withdrawn"
	EventTypeParamUpdated     = "housepool.param.updated"
)

// NewLiquidityAddedEvent returns the canonical payload emitted when a provider
// deposits capital.
func NewLiquidityAddedEvent(provider [20]byte, amount, shares *big.Int) *types.Event {
	return &types.Event{Type: EventTypeLiquidityAdded, Attributes: map[string]string{
		"provider": hex.EncodeToString(provider[:]),
		"amount":   bigString(amount),
		"shares":   bigString(shares),
	}}
}

// NewLiquidityRemovedEvent returns the canonical payload emitted when shares
// are redeemed.
func NewLiquidityRemovedEvent(provider [20]byte, shares, gross, net, fee *big.Int) *types.Event {
	return &types.Event{Type: EventTypeLiquidityRemoved, Attributes: map[string]string{
		"provider": hex.EncodeToString(provider[:]),
		"shares":   bigString(shares),
		"gross":    bigString(gross),
		"net":      bigString(net),
		"exitFee":  bigString(fee),
	}}
}

// NewEpochFinalizedEvent returns the payload emitted when an epoch boundary is
// crossed.
func NewEpochFinalizedEvent(caller [20]byte, bonus *big.Int, newStart uint64, toCaller bool) *types.Event {
	return &types.Event{Type: EventTypeEpochFinalized, Attributes: map[string]string{
		"caller":        hex.EncodeToString(caller[:]),
		"bonus":         bigString(bonus),
		"epochStart":    strconv.FormatUint(newStart, 10),
		"bonusToCaller": strconv.FormatBool(toCaller),
	}}
}

// NewFeesWithdrawnEvent returns the payload emitted when the owner drains the
// protocol fee reserve.
func NewFeesWithdrawnEvent(owner [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFeesWithdrawn, Attributes: map[string]string{
		"owner":  hex.EncodeToString(owner[:]),
		"amount": bigString(amount),
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
