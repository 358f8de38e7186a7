package core

import (
	"context"
	"log/slog"
	"math/big"
	"sync"

	"coinbet/core/events"
	"coinbet/core/state"
	"coinbet/core/types"
	"coinbet/history"
	"coinbet/native/housepool"
	"coinbet/native/slotgame"
	"coinbet/native/token"
	"coinbet/observability"
	"coinbet/oracle"
)

// NodeConfig carries everything needed to assemble a node.
type NodeConfig struct {
	Owner       [20]byte
	Coordinator [20]byte
	PoolParams  housepool.Params
	GameParams  slotgame.Params
	PayTable    slotgame.PayTable
	Source      oracle.Source
	History     *history.Store
	Metrics     *observability.GameMetrics
	Logger      *slog.Logger
}

// Node owns the engines and serialises every state transition behind one
// mutex. RPC handlers and the oracle callback all funnel through here, so a
// fulfillment can never interleave with the placement it settles.
type Node struct {
	mu      sync.Mutex
	state   *state.Manager
	shares  *token.Ledger
	rewards *token.Ledger
	pool    *housepool.Engine
	game    *slotgame.Engine
	history *history.Store
	metrics *observability.GameMetrics
	logger  *slog.Logger

	subMu   sync.Mutex
	subs    map[uint64]chan *types.Event
	nextSub uint64
}

// NewNode wires the ledgers and engines over the state manager and seeds
// genesis parameters when state is empty.
func NewNode(manager *state.Manager, cfg NodeConfig) (*Node, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		state:   manager,
		history: cfg.History,
		metrics: cfg.Metrics,
		logger:  logger,
		subs:    make(map[uint64]chan *types.Event),
	}
	shares, err := token.NewLedger(manager, token.SymbolPoolShare)
	if err != nil {
		return nil, err
	}
	rewards, err := token.NewLedger(manager, token.SymbolReward)
	if err != nil {
		return nil, err
	}
	n.shares = shares
	n.rewards = rewards
	n.shares.SetEmitter(n)
	n.rewards.SetEmitter(n)

	n.pool = housepool.NewEngine(manager, n.shares)
	n.pool.SetOwner(cfg.Owner)
	n.pool.SetEmitter(n)
	if err := n.pool.Init(cfg.PoolParams); err != nil {
		return nil, err
	}

	n.game = slotgame.NewEngine(manager, n.pool, n.rewards, cfg.Source, cfg.PayTable)
	n.game.SetOwner(cfg.Owner)
	n.game.SetCoordinator(cfg.Coordinator)
	n.game.SetEmitter(n)
	if err := n.game.Init(cfg.GameParams); err != nil {
		return nil, err
	}
	return n, nil
}

// Emit satisfies events.Emitter. Engine events are logged and fanned out to
// websocket subscribers; a slow subscriber drops events rather than blocking
// the state transition.
func (n *Node) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	n.logger.Debug("event", "type", payload.Type)
	n.subMu.Lock()
	defer n.subMu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers an event listener. The returned cancel func must be
// called to release the channel.
func (n *Node) Subscribe() (<-chan *types.Event, func()) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	n.nextSub++
	id := n.nextSub
	ch := make(chan *types.Event, 64)
	n.subs[id] = ch
	cancel := func() {
		n.subMu.Lock()
		defer n.subMu.Unlock()
		if existing, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (n *Node) refreshPoolGauges() {
	if n.metrics == nil {
		return
	}
	pool, err := n.pool.Pool()
	if err != nil {
		return
	}
	n.metrics.SetPoolGauges(pool.Capital, pool.Reserved)
}

// AddLiquidity deposits capital and mints pool shares to the provider.
func (n *Node) AddLiquidity(provider [20]byte, amount *big.Int) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	minted, err := n.pool.AddLiquidity(provider, amount)
	if err != nil {
		return nil, err
	}
	n.refreshPoolGauges()
	return minted, nil
}

// RemoveLiquidity burns shares and credits the provider's withdrawable
// balance with the net redemption value.
func (n *Node) RemoveLiquidity(provider [20]byte, shares *big.Int) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	net, err := n.pool.RemoveLiquidity(provider, shares)
	if err != nil {
		return nil, err
	}
	n.refreshPoolGauges()
	return net, nil
}

// FinalizeEpoch advances the epoch boundary when due.
func (n *Node) FinalizeEpoch(caller [20]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	advanced, err := n.pool.FinalizeEpoch(caller)
	if err != nil {
		return false, err
	}
	n.refreshPoolGauges()
	return advanced, nil
}

// WithdrawProtocolFees moves the accrued fee reserve to the owner's balance.
func (n *Node) WithdrawProtocolFees(caller [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.WithdrawProtocolFees(caller)
}

// PoolSnapshot bundles the pool record with the share supply for queries.
type PoolSnapshot struct {
	Pool        *housepool.Pool
	ShareSupply *big.Int
}

// PoolInfo returns a read snapshot of the pool.
func (n *Node) PoolInfo() (*PoolSnapshot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pool, err := n.pool.Pool()
	if err != nil {
		return nil, err
	}
	supply, err := n.pool.ShareSupply()
	if err != nil {
		return nil, err
	}
	return &PoolSnapshot{Pool: pool, ShareSupply: supply}, nil
}

// ShareBalance returns the provider's pool share holding.
func (n *Node) ShareBalance(provider [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.ShareBalance(provider)
}

// RewardBalance returns the bettor's CBET holding.
func (n *Node) RewardBalance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rewards.BalanceOf(addr)
}

// DepositFunds credits a player's withdrawable balance.
func (n *Node) DepositFunds(recipient [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game.DepositFunds(recipient, amount)
}

// WithdrawFunds debits a player's withdrawable balance.
func (n *Node) WithdrawFunds(bettor [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game.WithdrawFunds(bettor, amount)
}

// Balance returns a player's withdrawable balance.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game.BalanceOf(addr)
}

// PlaceWager accepts a wager and issues the randomness request.
func (n *Node) PlaceWager(ctx context.Context, bettor [20]byte, amount *big.Int) (*slotgame.PendingWager, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	wager, err := n.game.PlaceWager(ctx, bettor, amount, slotgame.OriginExternal)
	if err != nil {
		if n.metrics != nil {
			n.metrics.ObserveBetPlaced("rejected", nil)
		}
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.ObserveBetPlaced("accepted", amount)
	}
	n.refreshPoolGauges()
	n.logger.Info("wager placed",
		"bettor", addrHex(bettor),
		"netWager", wager.NetWager.String(),
		"requestId", idHex(wager.RequestID))
	return wager, nil
}

// FulfillRandomWords settles the pending wager for a randomness delivery.
func (n *Node) FulfillRandomWords(caller [20]byte, requestID [32]byte, words []*big.Int) (*slotgame.Settlement, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	settlement, err := n.game.FulfillRandomWords(caller, requestID, words)
	if err != nil {
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.ObserveBetSettled(settlement.Payout.Sign() > 0, settlement.Payout)
	}
	n.refreshPoolGauges()
	if n.history != nil {
		if err := n.history.Append(settlement); err != nil {
			n.logger.Error("history append failed", "err", err, "requestId", idHex(requestID))
		}
	}
	n.logger.Info("wager settled",
		"bettor", addrHex(settlement.Bettor),
		"outcome", settlement.Outcome,
		"payout", settlement.Payout.String(),
		"requestId", idHex(requestID))
	return settlement, nil
}

// CancelExpiredWager refunds a wager whose fulfillment never arrived.
func (n *Node) CancelExpiredWager(caller [20]byte, requestID [32]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	refund, err := n.game.CancelExpiredWager(caller, requestID)
	if err != nil {
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.ObserveBetCancelled()
	}
	n.refreshPoolGauges()
	return refund, nil
}

// PendingWager returns the wager recorded for a request id, if any.
func (n *Node) PendingWager(requestID [32]byte) (*slotgame.PendingWager, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game.PendingWager(requestID)
}

// Game returns the current game configuration.
func (n *Node) Game() (*slotgame.GameState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game.Game()
}

// History returns the settlement archive, which may be nil.
func (n *Node) History() *history.Store { return n.history }

// Owner-gated parameter updates. Each passes the caller through to the
// engine's own authorisation check.

func (n *Node) UpdateExitFeeBps(caller [20]byte, bps uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.UpdateExitFeeBps(caller, bps)
}

func (n *Node) UpdateMaxCap(caller [20]byte, maxCap *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.UpdateMaxCap(caller, maxCap)
}

func (n *Node) UpdateMaxPayoutRatio(caller [20]byte, num, den uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.UpdateMaxPayoutRatio(caller, num, den)
}

func (n *Node) UpdateFeeWaiverThreshold(caller [20]byte, threshold *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.UpdateFeeWaiverThreshold(caller, threshold)
}

func (n *Node) UpdateEpochBonus(caller [20]byte, bonus *big.Int, incentiveMode bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.UpdateEpochBonus(caller, bonus, incentiveMode)
}

func (n *Node) UpdateMinBet(caller [20]byte, minBet *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game.UpdateMinBet(caller, minBet)
}

func (n *Node) UpdateMaxBet(caller [20]byte, maxBet *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game.UpdateMaxBet(caller, maxBet)
}

func (n *Node) UpdateProtocolFeeBps(caller [20]byte, bps uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game.UpdateProtocolFeeBps(caller, bps)
}

func (n *Node) UpdateWithdrawWindow(caller [20]byte, seconds uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.game.UpdateWithdrawWindow(caller, seconds)
}
