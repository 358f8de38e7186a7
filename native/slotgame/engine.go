package slotgame

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"coinbet/core/events"
	"coinbet/core/types"
	"coinbet/native/token"
	"coinbet/oracle"
)

// Storage describes the state functionality the betting engine needs from the
// surrounding state implementation.
type Storage interface {
	GameGet() (*GameState, bool, error)
	GamePut(*GameState) error
	WagerPut(*PendingWager) error
	WagerGet(id [32]byte) (*PendingWager, bool, error)
	WagerDelete(id [32]byte) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Pool is the house pool surface the betting engine drives. Satisfied by
// *housepool.Engine.
type Pool interface {
	CanCoverBet(maxPayout *big.Int) (bool, error)
	ReservePayout(maxPayout *big.Int) error
	ReleasePayout(amount *big.Int) error
	CreditLoss(amount *big.Int) error
	DebitWin(amount *big.Int) error
	CreditFee(amount *big.Int) error
	FeeWaiverThreshold() (*big.Int, error)
	IncentiveMode() (bool, uint64, error)
}

// Settlement summarises a consumed wager for callers and the history archive.
type Settlement struct {
	RequestID [32]byte
	Bettor    [20]byte
	NetWager  *big.Int
	Outcome   uint64
	Reels     []uint64
	Payout    *big.Int
	SettledAt int64
}

type gameEvent struct {
	evt *types.Event
}

func (e gameEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e gameEvent) Event() *types.Event { return e.evt }

// Engine runs the wager lifecycle state machine: validation, fee and waiver
// handling, solvency reservation, the asynchronous randomness boundary and
// settlement into the per-user withdrawable ledger.
type Engine struct {
	state       Storage
	pool        Pool
	rewards     *token.Ledger
	source      oracle.Source
	table       PayTable
	emitter     events.Emitter
	owner       [20]byte
	coordinator [20]byte
	nowFn       func() int64

	// withdrawing guards the ledger-then-transfer ordering of WithdrawFunds
	// against reentrant invocation from a transfer side effect.
	withdrawing bool
}

// NewEngine wires the betting engine against the house pool, the CBET reward
// ledger and a randomness source.
func NewEngine(state Storage, pool Pool, rewards *token.Ledger, source oracle.Source, table PayTable) *Engine {
	return &Engine{
		state:   state,
		pool:    pool,
		rewards: rewards,
		source:  source,
		table:   table,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetOwner configures the protocol owner address checked by gated setters.
func (e *Engine) SetOwner(owner [20]byte) { e.owner = owner }

// SetCoordinator configures the only identity allowed to deliver randomness
// fulfillments.
func (e *Engine) SetCoordinator(coordinator [20]byte) { e.coordinator = coordinator }

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

// PayTable returns the configured paytable.
func (e *Engine) PayTable() PayTable { return e.table }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(gameEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Init persists a fresh game configuration from params unless one exists.
func (e *Engine) Init(params Params) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if _, ok, err := e.state.GameGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	return e.state.GamePut(&GameState{
		MinBet:         new(big.Int).Set(params.MinBet),
		MaxBet:         new(big.Int).Set(params.MaxBet),
		ProtocolFeeBps: params.ProtocolFeeBps,
		WithdrawWindow: params.WithdrawWindow,
		NumWords:       params.NumWords,
	})
}

func (e *Engine) loadGame() (*GameState, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	game, ok, err := e.state.GameGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialised
	}
	return game.Normalize(), nil
}

// Game returns a copy of the current game configuration.
func (e *Engine) Game() (*GameState, error) {
	game, err := e.loadGame()
	if err != nil {
		return nil, err
	}
	return game.Clone(), nil
}

// PendingWager returns the wager recorded for a request id, if any.
func (e *Engine) PendingWager(requestID [32]byte) (*PendingWager, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	wager, ok, err := e.state.WagerGet(requestID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return wager.Clone(), true, nil
}

// BalanceOf returns the bettor's withdrawable balance.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Normalize().Balance), nil
}

// DepositFunds credits the recipient's withdrawable balance. Wagers are funded
// exclusively from this ledger.
func (e *Engine) DepositFunds(recipient [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidParam
	}
	account, err := e.state.GetAccount(recipient)
	if err != nil {
		return err
	}
	account = account.Normalize()
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := e.state.PutAccount(recipient, account); err != nil {
		return err
	}
	e.emit(NewFundsDepositedEvent(recipient, amount))
	return nil
}

// WithdrawFunds debits the bettor's withdrawable balance. The ledger is fully
// mutated before control returns to the caller performing the outbound
// transfer.
func (e *Engine) WithdrawFunds(bettor [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.withdrawing {
		return ErrReentrantCall
	}
	e.withdrawing = true
	defer func() { e.withdrawing = false }()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidParam
	}
	account, err := e.state.GetAccount(bettor)
	if err != nil {
		return err
	}
	account = account.Normalize()
	if account.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	account.Balance = new(big.Int).Sub(account.Balance, amount)
	if err := e.state.PutAccount(bettor, account); err != nil {
		return err
	}
	e.emit(NewFundsWithdrawnEvent(bettor, amount))
	return nil
}

// PlaceWager validates and accepts a wager, reserves its worst-case payout and
// issues the randomness request. The wager is pending until the coordinator
// delivers the fulfillment; no settlement happens inside this call.
func (e *Engine) PlaceWager(ctx context.Context, bettor [20]byte, amount *big.Int, origin CallOrigin) (*PendingWager, error) {
	game, err := e.loadGame()
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Cmp(game.MinBet) < 0 || amount.Cmp(game.MaxBet) > 0 {
		return nil, ErrInvalidAmount
	}
	if origin != OriginExternal {
		return nil, ErrContractCallerForbidden
	}
	account, err := e.state.GetAccount(bettor)
	if err != nil {
		return nil, err
	}
	account = account.Normalize()
	if account.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	fee, err := e.protocolFee(bettor, amount, game.ProtocolFeeBps)
	if err != nil {
		return nil, err
	}
	netWager := new(big.Int).Sub(amount, fee)
	maxPayout := e.table.MaxPayout(netWager)
	ok, err := e.pool.CanCoverBet(maxPayout)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientLiquidity
	}
	requestID, err := e.source.RequestRandomWords(ctx, game.NumWords)
	if err != nil {
		return nil, fmt.Errorf("slotgame: randomness request: %w", err)
	}

	account.Balance = new(big.Int).Sub(account.Balance, amount)
	account.TotalWagered = new(big.Int).Add(account.TotalWagered, amount)
	if err := e.state.PutAccount(bettor, account); err != nil {
		return nil, err
	}
	if err := e.pool.CreditFee(fee); err != nil {
		return nil, err
	}
	if err := e.pool.ReservePayout(maxPayout); err != nil {
		return nil, err
	}
	wager := &PendingWager{
		RequestID:      requestID,
		Bettor:         bettor,
		NetWager:       netWager,
		ReservedPayout: maxPayout,
		PlacedAt:       e.now(),
	}
	if err := e.state.WagerPut(wager); err != nil {
		return nil, err
	}
	e.emit(NewBetPlacedEvent(bettor, amount, fee, netWager, maxPayout, requestID))
	return wager.Clone(), nil
}

func (e *Engine) protocolFee(bettor [20]byte, amount *big.Int, feeBps uint32) (*big.Int, error) {
	threshold, err := e.pool.FeeWaiverThreshold()
	if err != nil {
		return nil, err
	}
	if threshold.Sign() > 0 && e.rewards != nil {
		holding, err := e.rewards.BalanceOf(bettor)
		if err != nil {
			return nil, err
		}
		if holding.Cmp(threshold) >= 0 {
			return big.NewInt(0), nil
		}
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(feeBps)))
	return fee.Div(fee, big.NewInt(bpsDenominator)), nil
}

// FulfillRandomWords settles the pending wager recorded for requestID. Only
// the configured coordinator may deliver words; a request id without a pending
// wager (never issued, or already consumed) fails with ErrUnknownRequest so
// duplicate callbacks cannot settle twice.
func (e *Engine) FulfillRandomWords(caller [20]byte, requestID [32]byte, words []*big.Int) (*Settlement, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if caller != e.coordinator {
		return nil, ErrUnauthorizedCallback
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("slotgame: fulfillment carries no random words")
	}
	wager, ok, err := e.state.WagerGet(requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownRequest
	}
	wager = wager.Normalize()

	outcome := e.table.Outcome(words[0])
	reels := make([]uint64, len(words))
	for i, word := range words {
		reels[i] = e.table.Outcome(word)
	}
	payout := e.table.Payout(wager.NetWager, outcome)

	// The stake always enters pool capital; a winning draw then pays the
	// gross payout back out, so the pool's net move is netWager-payout.
	if err := e.pool.CreditLoss(wager.NetWager); err != nil {
		return nil, err
	}
	if payout.Sign() > 0 {
		if err := e.pool.DebitWin(payout); err != nil {
			return nil, err
		}
		account, err := e.state.GetAccount(wager.Bettor)
		if err != nil {
			return nil, err
		}
		account = account.Normalize()
		account.Balance = new(big.Int).Add(account.Balance, payout)
		account.TotalWon = new(big.Int).Add(account.TotalWon, payout)
		if err := e.state.PutAccount(wager.Bettor, account); err != nil {
			return nil, err
		}
	} else if err := e.mintCashback(wager.Bettor, wager.NetWager); err != nil {
		return nil, err
	}
	if err := e.pool.ReleasePayout(wager.ReservedPayout); err != nil {
		return nil, err
	}
	if err := e.state.WagerDelete(requestID); err != nil {
		return nil, err
	}
	e.emit(NewBetSettledEvent(wager.Bettor, requestID, outcome, reels, payout))
	return &Settlement{
		RequestID: requestID,
		Bettor:    wager.Bettor,
		NetWager:  new(big.Int).Set(wager.NetWager),
		Outcome:   outcome,
		Reels:     reels,
		Payout:    payout,
		SettledAt: e.now(),
	}, nil
}

// mintCashback mints CBET to the bettor on losing wagers when incentive mode
// is active.
func (e *Engine) mintCashback(bettor [20]byte, netWager *big.Int) error {
	if e.rewards == nil {
		return nil
	}
	active, multiplierBps, err := e.pool.IncentiveMode()
	if err != nil {
		return err
	}
	if !active || multiplierBps == 0 {
		return nil
	}
	reward := new(big.Int).Mul(netWager, new(big.Int).SetUint64(multiplierBps))
	reward.Div(reward, big.NewInt(bpsDenominator))
	if reward.Sign() <= 0 {
		return nil
	}
	return e.rewards.Mint(bettor, reward)
}

// CancelExpiredWager refunds a wager whose fulfillment never arrived. Only the
// bettor may cancel, and only after the configured withdraw window has
// elapsed; the reservation returns to pool headroom and the net wager to the
// bettor's balance. The protocol fee is not refunded.
func (e *Engine) CancelExpiredWager(caller [20]byte, requestID [32]byte) (*big.Int, error) {
	game, err := e.loadGame()
	if err != nil {
		return nil, err
	}
	wager, ok, err := e.state.WagerGet(requestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownRequest
	}
	wager = wager.Normalize()
	if caller != wager.Bettor {
		return nil, ErrUnauthorized
	}
	if game.WithdrawWindow == 0 {
		return nil, ErrWagerNotExpired
	}
	if e.now() < wager.PlacedAt+int64(game.WithdrawWindow) {
		return nil, ErrWagerNotExpired
	}
	account, err := e.state.GetAccount(wager.Bettor)
	if err != nil {
		return nil, err
	}
	account = account.Normalize()
	account.Balance = new(big.Int).Add(account.Balance, wager.NetWager)
	if err := e.state.PutAccount(wager.Bettor, account); err != nil {
		return nil, err
	}
	if err := e.pool.ReleasePayout(wager.ReservedPayout); err != nil {
		return nil, err
	}
	if err := e.state.WagerDelete(requestID); err != nil {
		return nil, err
	}
	refund := new(big.Int).Set(wager.NetWager)
	e.emit(NewBetCancelledEvent(wager.Bettor, requestID, refund))
	return refund, nil
}

// UpdateMinBet sets the lower wager bound. Owner only.
func (e *Engine) UpdateMinBet(caller [20]byte, minBet *big.Int) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	game, err := e.loadGame()
	if err != nil {
		return err
	}
	if minBet == nil || minBet.Sign() <= 0 || minBet.Cmp(game.MaxBet) > 0 {
		return ErrInvalidParam
	}
	game.MinBet = new(big.Int).Set(minBet)
	if err := e.state.GamePut(game); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent("minBet", minBet.String()))
	return nil
}

// UpdateMaxBet sets the upper wager bound. Owner only.
func (e *Engine) UpdateMaxBet(caller [20]byte, maxBet *big.Int) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	game, err := e.loadGame()
	if err != nil {
		return err
	}
	if maxBet == nil || maxBet.Cmp(game.MinBet) < 0 {
		return ErrInvalidParam
	}
	game.MaxBet = new(big.Int).Set(maxBet)
	if err := e.state.GamePut(game); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent("maxBet", maxBet.String()))
	return nil
}

// UpdateProtocolFeeBps sets the wager fee. Owner only.
func (e *Engine) UpdateProtocolFeeBps(caller [20]byte, bps uint32) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if bps > bpsDenominator {
		return ErrInvalidParam
	}
	game, err := e.loadGame()
	if err != nil {
		return err
	}
	game.ProtocolFeeBps = bps
	if err := e.state.GamePut(game); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent("protocolFeeBps", strconv.FormatUint(uint64(bps), 10)))
	return nil
}

// UpdateWithdrawWindow sets the expiry refund window in seconds. Owner only.
// Zero disables the refund path.
func (e *Engine) UpdateWithdrawWindow(caller [20]byte, seconds uint64) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	game, err := e.loadGame()
	if err != nil {
		return err
	}
	game.WithdrawWindow = seconds
	if err := e.state.GamePut(game); err != nil {
		return err
	}
	e.emit(NewParamUpdatedEvent("withdrawWindow", strconv.FormatUint(seconds, 10)))
	return nil
}
