package core

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"coinbet/core/state"
	"coinbet/history"
	"coinbet/native/housepool"
	"coinbet/native/slotgame"
	"coinbet/oracle"
	"coinbet/storage"
)

var (
	nodeOwner       = fillAddr(0xEE)
	nodeCoordinator = fillAddr(0xC0)
	nodeProvider    = fillAddr(0x01)
	nodeBettor      = fillAddr(0x02)
)

func fillAddr(b byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = b
	}
	return addr
}

type nodeFixture struct {
	node   *Node
	source *oracle.ManualSource
}

func newNodeFixture(t *testing.T, opts ...func(*NodeConfig)) *nodeFixture {
	t.Helper()
	source := oracle.NewManualSource()
	cfg := NodeConfig{
		Owner:       nodeOwner,
		Coordinator: nodeCoordinator,
		PoolParams:  housepool.DefaultParams(),
		GameParams:  slotgame.DefaultParams(),
		PayTable:    slotgame.DefaultPayTable(),
		Source:      source,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	node, err := NewNode(state.NewManager(storage.NewMemDB()), cfg)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return &nodeFixture{node: node, source: source}
}

func wei(v int64) *big.Int { return big.NewInt(v) }

func (f *nodeFixture) placeBet(t *testing.T, amount *big.Int) *slotgame.PendingWager {
	t.Helper()
	wager, err := f.node.PlaceWager(context.Background(), nodeBettor, amount)
	if err != nil {
		t.Fatalf("place wager: %v", err)
	}
	return wager
}

func TestNodeWagerLifecycleConservesValue(t *testing.T) {
	fixture := newNodeFixture(t)
	node := fixture.node

	if _, err := node.AddLiquidity(nodeProvider, wei(1e18)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := node.DepositFunds(nodeBettor, wei(2e17)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	wager := fixture.placeBet(t, wei(1e17))

	pending, ok, err := node.PendingWager(wager.RequestID)
	if err != nil || !ok {
		t.Fatalf("pending wager lookup: ok=%v err=%v", ok, err)
	}
	if pending.NetWager.Cmp(wei(9.8e16)) != 0 {
		t.Fatalf("unexpected net wager %s", pending.NetWager)
	}

	// Outcome 1 pays 1.2x the net wager.
	words := []*big.Int{big.NewInt(1), big.NewInt(11), big.NewInt(21)}
	settlement, err := node.FulfillRandomWords(nodeCoordinator, wager.RequestID, words)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	wantPayout := wei(1.176e17)
	if settlement.Payout.Cmp(wantPayout) != 0 {
		t.Fatalf("unexpected payout %s", settlement.Payout)
	}

	balance, err := node.Balance(nodeBettor)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	// 2e17 deposited, 1e17 staked, 1.176e17 paid out.
	if balance.Cmp(wei(2.176e17)) != 0 {
		t.Fatalf("unexpected balance %s", balance)
	}

	snapshot, err := node.PoolInfo()
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	// Capital gains the net wager and loses the payout.
	if snapshot.Pool.Capital.Cmp(wei(9.804e17)) != 0 {
		t.Fatalf("unexpected capital %s", snapshot.Pool.Capital)
	}
	if snapshot.Pool.Reserved.Sign() != 0 {
		t.Fatalf("reservation not released: %s", snapshot.Pool.Reserved)
	}
	if snapshot.Pool.ProtocolFeeReserve.Cmp(wei(2e15)) != 0 {
		t.Fatalf("unexpected fee reserve %s", snapshot.Pool.ProtocolFeeReserve)
	}

	// The settlement is consumed; a replay must fail.
	if _, err := node.FulfillRandomWords(nodeCoordinator, wager.RequestID, words); err != slotgame.ErrUnknownRequest {
		t.Fatalf("expected ErrUnknownRequest on replay, got %v", err)
	}
}

func TestNodeArchivesSettlements(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer func() { _ = store.Close() }()

	fixture := newNodeFixture(t, func(cfg *NodeConfig) { cfg.History = store })
	node := fixture.node

	if _, err := node.AddLiquidity(nodeProvider, wei(1e18)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if err := node.DepositFunds(nodeBettor, wei(1e17)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	wager := fixture.placeBet(t, wei(1e17))

	words := []*big.Int{big.NewInt(0), big.NewInt(10), big.NewInt(20)}
	if _, err := node.FulfillRandomWords(nodeCoordinator, wager.RequestID, words); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	records, err := store.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one archived settlement, got %d", len(records))
	}
	if records[0].Outcome != 0 || records[0].Payout != "0" {
		t.Fatalf("unexpected record %+v", records[0])
	}

	byBettor, err := store.ListByBettor(nodeBettor, 10)
	if err != nil {
		t.Fatalf("list by bettor: %v", err)
	}
	if len(byBettor) != 1 {
		t.Fatalf("expected one record for bettor, got %d", len(byBettor))
	}
}

func TestNodeSubscribeDeliversEvents(t *testing.T) {
	fixture := newNodeFixture(t)
	node := fixture.node

	ch, cancel := node.Subscribe()
	defer cancel()

	if _, err := node.AddLiquidity(nodeProvider, wei(1e18)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	deadline := time.After(time.Second)
	seen := make(map[string]bool)
	for len(seen) < 2 {
		select {
		case evt := <-ch:
			seen[evt.Type] = true
		case <-deadline:
			t.Fatalf("timed out waiting for events, saw %v", seen)
		}
	}
	if !seen[housepool.EventTypeLiquidityAdded] {
		t.Fatalf("missing liquidity event, saw %v", seen)
	}
}

func TestNodeSubscribeCancelStopsDelivery(t *testing.T) {
	fixture := newNodeFixture(t)
	node := fixture.node

	ch, cancel := node.Subscribe()
	cancel()
	if _, open := <-ch; open {
		t.Fatal("expected channel to be closed after cancel")
	}

	// Emitting after cancel must not panic.
	if _, err := node.AddLiquidity(nodeProvider, wei(1e18)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
}

func TestNodeOwnerGatedUpdates(t *testing.T) {
	fixture := newNodeFixture(t)
	node := fixture.node

	if err := node.UpdateMinBet(nodeBettor, wei(2e16)); err != slotgame.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := node.UpdateMinBet(nodeOwner, wei(2e16)); err != nil {
		t.Fatalf("owner update rejected: %v", err)
	}
	game, err := node.Game()
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	if game.MinBet.Cmp(wei(2e16)) != 0 {
		t.Fatalf("min bet not applied: %s", game.MinBet)
	}
	if err := node.UpdateExitFeeBps(nodeOwner, 300); err != nil {
		t.Fatalf("exit fee update rejected: %v", err)
	}
}

func TestNodeRejectsWagerWithoutLiquidity(t *testing.T) {
	fixture := newNodeFixture(t)
	node := fixture.node

	if err := node.DepositFunds(nodeBettor, wei(1e17)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := node.PlaceWager(context.Background(), nodeBettor, wei(1e17)); err != slotgame.ErrInsufficientLiquidity {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	balance, err := node.Balance(nodeBettor)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(wei(1e17)) != 0 {
		t.Fatalf("rejected wager mutated balance: %s", balance)
	}
}
