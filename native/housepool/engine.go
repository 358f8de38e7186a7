package housepool

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"coinbet/core/events"
	"coinbet/core/types"
	"coinbet/native/token"
)

// Storage describes the state functionality the pool engine needs from the
// surrounding state implementation.
type Storage interface {
	PoolGet() (*Pool, bool, error)
	PoolPut(*Pool) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e poolEvent) Event() *types.Event { return e.evt }

// Engine owns pool capital custody, proportional share accounting, solvency
// gating, fee bookkeeping and the epoch lifecycle.
type Engine struct {
	state   Storage
	shares  *token.Ledger
	emitter events.Emitter
	owner   [20]byte
	nowFn   func() int64
}

// NewEngine creates a pool engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine(state Storage, shares *token.Ledger) *Engine {
	return &Engine{
		state:   state,
		shares:  shares,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetOwner configures the protocol owner address checked by gated operations.
func (e *Engine) SetOwner(owner [20]byte) { e.owner = owner }

// Owner returns the configured protocol owner.
func (e *Engine) Owner() [20]byte { return e.owner }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(poolEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Init persists a fresh pool record from params unless one already exists.
func (e *Engine) Init(params Params) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if _, ok, err := e.state.PoolGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	start := params.EpochStartedAt
	if start == 0 {
		start = uint64(e.now())
	}
	pool := &Pool{
		Capital:             big.NewInt(0),
		Reserved:            big.NewInt(0),
		ProtocolFeeReserve:  big.NewInt(0),
		MaxCap:              new(big.Int).Set(params.MaxCap),
		ExitFeeBps:          params.ExitFeeBps,
		MaxPayoutRatioNum:   params.MaxPayoutRatioNum,
		MaxPayoutRatioDen:   params.MaxPayoutRatioDen,
		EpochLength:         params.EpochLength,
		EpochStartedAt:      start,
		FinalizeEpochBonus:  cloneOrZero(params.FinalizeEpochBonus),
		IncentiveMode:       params.IncentiveMode,
		RewardMultiplierBps: params.RewardMultiplierBps,
		FeeWaiverThreshold:  cloneOrZero(params.FeeWaiverThreshold),
	}
	return e.state.PoolPut(pool)
}

func (e *Engine) loadPool() (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pool, ok, err := e.state.PoolGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialised
	}
	return pool.Normalize(), nil
}

// Pool returns a copy of the current pool record.
func (e *Engine) Pool() (*Pool, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// ShareSupply returns the outstanding LP share supply.
func (e *Engine) ShareSupply() (*big.Int, error) {
	if e == nil || e.shares == nil {
		return nil, ErrNilState
	}
	return e.shares.TotalSupply()
}

// ShareBalance returns the provider's LP share balance.
func (e *Engine) ShareBalance(provider [20]byte) (*big.Int, error) {
	if e == nil || e.shares == nil {
		return nil, ErrNilState
	}
	return e.shares.BalanceOf(provider)
}

// AddLiquidity deposits capital and mints LP shares at the pre-deposit share
// price. The bootstrap deposit mints shares 1:1 with the amount; pricing uses
// pre-deposit capital and supply so a provider's own deposit can never dilute
// its minted share count.
func (e *Engine) AddLiquidity(provider [20]byte, amount *big.Int) (*big.Int, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if new(big.Int).Add(pool.Capital, amount).Cmp(pool.MaxCap) > 0 {
		return nil, ErrCapacityExceeded
	}
	supply, err := e.shares.TotalSupply()
	if err != nil {
		return nil, err
	}
	var minted *big.Int
	if supply.Sign() == 0 {
		minted = new(big.Int).Set(amount)
	} else {
		minted = new(big.Int).Mul(amount, supply)
		minted.Div(minted, pool.Capital)
	}
	if minted.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool.Capital = new(big.Int).Add(pool.Capital, amount)
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	if err := e.shares.Mint(provider, minted); err != nil {
		return nil, err
	}
	e.emit(NewLiquidityAddedEvent(provider, amount, minted))
	return minted, nil
}

// RemoveLiquidity burns LP shares and returns the net redemption amount after
// the exit fee. The fee is protocol revenue, moved into the fee reserve rather
// than redistributed to remaining providers. Redemptions cannot dip into
// capital committed to unsettled wagers.
func (e *Engine) RemoveLiquidity(provider [20]byte, shares *big.Int) (*big.Int, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	balance, err := e.shares.BalanceOf(provider)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(shares) < 0 {
		return nil, ErrInsufficientShares
	}
	supply, err := e.shares.TotalSupply()
	if err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		return nil, ErrInsufficientShares
	}
	gross := new(big.Int).Mul(shares, pool.Capital)
	gross.Div(gross, supply)
	if gross.Cmp(pool.Available()) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	fee := new(big.Int).Mul(gross, big.NewInt(int64(pool.ExitFeeBps)))
	fee.Div(fee, big.NewInt(bpsDenominator))
	net := new(big.Int).Sub(gross, fee)

	pool.Capital = new(big.Int).Sub(pool.Capital, gross)
	pool.ProtocolFeeReserve = new(big.Int).Add(pool.ProtocolFeeReserve, fee)
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	if err := e.shares.Burn(provider, shares); err != nil {
		return nil, err
	}
	account, err := e.state.GetAccount(provider)
	if err != nil {
		return nil, err
	}
	account = account.Normalize()
	account.Balance = new(big.Int).Add(account.Balance, net)
	if err := e.state.PutAccount(provider, account); err != nil {
		return nil, err
	}
	e.emit(NewLiquidityRemovedEvent(provider, shares, gross, net, fee))
	return net, nil
}

// CanCoverBet reports whether the pool can accept a wager with the given
// worst-case payout: the payout must fit in the unreserved headroom and must
// not exceed Capital*Num/Den.
func (e *Engine) CanCoverBet(maxPayout *big.Int) (bool, error) {
	pool, err := e.loadPool()
	if err != nil {
		return false, err
	}
	if maxPayout == nil || maxPayout.Sign() <= 0 {
		return false, nil
	}
	if maxPayout.Cmp(pool.Available()) > 0 {
		return false, nil
	}
	lhs := new(big.Int).Mul(maxPayout, new(big.Int).SetUint64(pool.MaxPayoutRatioDen))
	rhs := new(big.Int).Mul(pool.Capital, new(big.Int).SetUint64(pool.MaxPayoutRatioNum))
	return lhs.Cmp(rhs) <= 0, nil
}

// ReservePayout commits maxPayout out of the pool's headroom until the wager
// settles.
func (e *Engine) ReservePayout(maxPayout *big.Int) error {
	ok, err := e.CanCoverBet(maxPayout)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientLiquidity
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	pool.Reserved = new(big.Int).Add(pool.Reserved, maxPayout)
	return e.state.PoolPut(pool)
}

// ReleasePayout returns a settled or cancelled wager's reservation to the
// pool's headroom.
func (e *Engine) ReleasePayout(amount *big.Int) error {
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	released := new(big.Int).Sub(pool.Reserved, amount)
	if released.Sign() < 0 {
		released = big.NewInt(0)
	}
	pool.Reserved = released
	return e.state.PoolPut(pool)
}

// CreditLoss adds a losing wager's net amount to pool capital.
func (e *Engine) CreditLoss(amount *big.Int) error {
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool.Capital = new(big.Int).Add(pool.Capital, amount)
	return e.state.PoolPut(pool)
}

// DebitWin removes a winning payout from pool capital.
func (e *Engine) DebitWin(amount *big.Int) error {
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if pool.Capital.Cmp(amount) < 0 {
		return fmt.Errorf("housepool: payout %s exceeds capital %s", amount, pool.Capital)
	}
	pool.Capital = new(big.Int).Sub(pool.Capital, amount)
	return e.state.PoolPut(pool)
}

// CreditFee books a protocol fee into the fee reserve.
func (e *Engine) CreditFee(amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	pool.ProtocolFeeReserve = new(big.Int).Add(pool.ProtocolFeeReserve, amount)
	return e.state.PoolPut(pool)
}

// FeeWaiverThreshold returns the CBET holding granting a protocol fee waiver.
func (e *Engine) FeeWaiverThreshold() (*big.Int, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pool.FeeWaiverThreshold), nil
}

// IncentiveMode reports the bonus policy together with the reward multiplier.
func (e *Engine) IncentiveMode() (bool, uint64, error) {
	pool, err := e.loadPool()
	if err != nil {
		return false, 0, err
	}
	return pool.IncentiveMode, pool.RewardMultiplierBps, nil
}

// FinalizeEpoch advances the epoch by exactly one length once the current one
// has elapsed and disburses the finalisation bonus from the protocol fee
// reserve. Callable by anyone; a call inside the running epoch is a no-op.
// Returns whether an epoch boundary was crossed.
func (e *Engine) FinalizeEpoch(caller [20]byte) (bool, error) {
	pool, err := e.loadPool()
	if err != nil {
		return false, err
	}
	now := uint64(e.now())
	boundary := pool.EpochStartedAt + pool.EpochLength
	if now < boundary {
		return false, nil
	}
	bonus := new(big.Int).Set(pool.FinalizeEpochBonus)
	if bonus.Cmp(pool.ProtocolFeeReserve) > 0 {
		bonus = new(big.Int).Set(pool.ProtocolFeeReserve)
	}
	pool.ProtocolFeeReserve = new(big.Int).Sub(pool.ProtocolFeeReserve, bonus)
	pool.EpochStartedAt = boundary
	toCaller := pool.IncentiveMode
	if toCaller {
		account, err := e.state.GetAccount(caller)
		if err != nil {
			return false, err
		}
		account = account.Normalize()
		account.Balance = new(big.Int).Add(account.Balance, bonus)
		if err := e.state.PutAccount(caller, account); err != nil {
			return false, err
		}
	} else {
		pool.Capital = new(big.Int).Add(pool.Capital, bonus)
	}
	if err := e.state.PoolPut(pool); err != nil {
		return false, err
	}
	e.emit(NewEpochFinalizedEvent(caller, bonus, pool.EpochStartedAt, toCaller))
	return true, nil
}

// WithdrawProtocolFees zeroes the fee reserve and credits it to the owner's
// withdrawable balance. Owner only.
func (e *Engine) WithdrawProtocolFees(caller [20]byte) (*big.Int, error) {
	if caller != e.owner {
		return nil, ErrUnauthorized
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Set(pool.ProtocolFeeReserve)
	pool.ProtocolFeeReserve = big.NewInt(0)
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	account, err := e.state.GetAccount(caller)
	if err != nil {
		return nil, err
	}
	account = account.Normalize()
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := e.state.PutAccount(caller, account); err != nil {
		return nil, err
	}
	e.emit(NewFeesWithdrawnEvent(caller, amount))
	return amount, nil
}

// UpdateExitFeeBps sets the redemption fee. Owner only.
func (e *Engine) UpdateExitFeeBps(caller [20]byte, bps uint32) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if bps > bpsDenominator {
		return ErrInvalidParam
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	pool.ExitFeeBps = bps
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent("exitFeeBps", strconv.FormatUint(uint64(bps), 10)))
	return nil
}

// UpdateMaxCap sets the deposit capacity bound. Owner only.
func (e *Engine) UpdateMaxCap(caller [20]byte, maxCap *big.Int) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if maxCap == nil || maxCap.Sign() <= 0 {
		return ErrInvalidParam
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	pool.MaxCap = new(big.Int).Set(maxCap)
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent("maxCap", maxCap.String()))
	return nil
}

// UpdateMaxPayoutRatio sets the single-wager exposure bound. Owner only.
func (e *Engine) UpdateMaxPayoutRatio(caller [20]byte, num, den uint64) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if num == 0 || den == 0 {
		return ErrInvalidParam
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	pool.MaxPayoutRatioNum = num
	pool.MaxPayoutRatioDen = den
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent("maxPayoutRatio", fmt.Sprintf("%d/%d", num, den)))
	return nil
}

// UpdateFeeWaiverThreshold sets the CBET holding that waives protocol fees.
// Owner only.
func (e *Engine) UpdateFeeWaiverThreshold(caller [20]byte, threshold *big.Int) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if threshold == nil || threshold.Sign() < 0 {
		return ErrInvalidParam
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	pool.FeeWaiverThreshold = new(big.Int).Set(threshold)
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent("feeWaiverThreshold", threshold.String()))
	return nil
}

// UpdateEpochBonus sets the finalisation bonus and incentive policy. Owner
// only.
func (e *Engine) UpdateEpochBonus(caller [20]byte, bonus *big.Int, incentiveMode bool) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if bonus == nil || bonus.Sign() < 0 {
		return ErrInvalidParam
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	pool.FinalizeEpochBonus = new(big.Int).Set(bonus)
	pool.IncentiveMode = incentiveMode
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent("finalizeEpochBonus", bonus.String()))
	return nil
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
