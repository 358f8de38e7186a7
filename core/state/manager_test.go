package state

import (
	"bytes"
	"math/big"
	"testing"

	"coinbet/native/housepool"
	"coinbet/native/slotgame"
	"coinbet/storage"
)

func newManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestPoolPersistsAcrossReload(t *testing.T) {
	m := newManager()

	if _, ok, err := m.PoolGet(); err != nil || ok {
		t.Fatalf("empty state: ok=%v err=%v", ok, err)
	}
	pool := &housepool.Pool{
		Capital:             big.NewInt(1e18),
		Reserved:            big.NewInt(3e17),
		ProtocolFeeReserve:  big.NewInt(2e15),
		MaxCap:              big.NewInt(5e18),
		ExitFeeBps:          500,
		MaxPayoutRatioNum:   1,
		MaxPayoutRatioDen:   2,
		EpochLength:         604_800,
		EpochStartedAt:      1_700_000_000,
		FinalizeEpochBonus:  big.NewInt(5e15),
		IncentiveMode:       true,
		RewardMultiplierBps: 1_000,
		FeeWaiverThreshold:  big.NewInt(5e18),
	}
	if err := m.PoolPut(pool); err != nil {
		t.Fatalf("put pool: %v", err)
	}
	loaded, ok, err := m.PoolGet()
	if err != nil || !ok {
		t.Fatalf("get pool: ok=%v err=%v", ok, err)
	}
	if loaded.Capital.Cmp(pool.Capital) != 0 || loaded.Reserved.Cmp(pool.Reserved) != 0 {
		t.Fatalf("capital/reserved mismatch: %s/%s", loaded.Capital, loaded.Reserved)
	}
	if loaded.MaxPayoutRatioDen != 2 || loaded.EpochStartedAt != 1_700_000_000 {
		t.Fatalf("params mismatch: %+v", loaded)
	}
	if !loaded.IncentiveMode || loaded.RewardMultiplierBps != 1_000 {
		t.Fatalf("incentive fields mismatch: %+v", loaded)
	}
}

func TestWagerLifecycle(t *testing.T) {
	m := newManager()
	var id [32]byte
	id[0] = 0xAB

	if _, ok, err := m.WagerGet(id); err != nil || ok {
		t.Fatalf("absent wager: ok=%v err=%v", ok, err)
	}
	wager := &slotgame.PendingWager{
		RequestID:      id,
		Bettor:         testAddr(0x02),
		NetWager:       big.NewInt(9.8e16),
		ReservedPayout: big.NewInt(9.8e17),
		PlacedAt:       1_700_000_123,
	}
	if err := m.WagerPut(wager); err != nil {
		t.Fatalf("put wager: %v", err)
	}
	loaded, ok, err := m.WagerGet(id)
	if err != nil || !ok {
		t.Fatalf("get wager: ok=%v err=%v", ok, err)
	}
	if loaded.Bettor != wager.Bettor || loaded.PlacedAt != wager.PlacedAt {
		t.Fatalf("wager mismatch: %+v", loaded)
	}
	if loaded.NetWager.Cmp(wager.NetWager) != 0 || loaded.ReservedPayout.Cmp(wager.ReservedPayout) != 0 {
		t.Fatalf("amounts mismatch: %s/%s", loaded.NetWager, loaded.ReservedPayout)
	}
	if err := m.WagerDelete(id); err != nil {
		t.Fatalf("delete wager: %v", err)
	}
	if _, ok, _ := m.WagerGet(id); ok {
		t.Fatal("wager survived delete")
	}
}

func TestAccountDefaultsToZero(t *testing.T) {
	m := newManager()
	addr := testAddr(0x03)

	account, err := m.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Sign() != 0 || account.TotalWagered.Sign() != 0 {
		t.Fatalf("fresh account not zeroed: %+v", account)
	}
	account.Balance = big.NewInt(7e16)
	account.TotalWagered = big.NewInt(1e17)
	account.TotalWon = big.NewInt(1.176e17)
	if err := m.PutAccount(addr, account); err != nil {
		t.Fatalf("put account: %v", err)
	}
	loaded, err := m.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if loaded.Balance.Cmp(big.NewInt(7e16)) != 0 || loaded.TotalWon.Cmp(big.NewInt(1.176e17)) != 0 {
		t.Fatalf("account mismatch: %+v", loaded)
	}
}

func TestGameConfigRoundTrip(t *testing.T) {
	m := newManager()

	game := &slotgame.GameState{
		MinBet:         big.NewInt(1e16),
		MaxBet:         big.NewInt(1e18),
		ProtocolFeeBps: 200,
		WithdrawWindow: 86_400,
		NumWords:       3,
	}
	if err := m.GamePut(game); err != nil {
		t.Fatalf("put game: %v", err)
	}
	loaded, ok, err := m.GameGet()
	if err != nil || !ok {
		t.Fatalf("get game: ok=%v err=%v", ok, err)
	}
	if loaded.ProtocolFeeBps != 200 || loaded.WithdrawWindow != 86_400 || loaded.NumWords != 3 {
		t.Fatalf("game mismatch: %+v", loaded)
	}
}

func TestTokenLedgerStorage(t *testing.T) {
	m := newManager()
	holder := testAddr(0x04)

	balance, err := m.TokenBalance("CBET", holder)
	if err != nil || balance.Sign() != 0 {
		t.Fatalf("fresh balance: %s err=%v", balance, err)
	}
	if err := m.SetTokenBalance("CBET", holder, big.NewInt(5e18)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := m.SetTokenSupply("CBET", big.NewInt(5e18)); err != nil {
		t.Fatalf("set supply: %v", err)
	}
	balance, _ = m.TokenBalance("CBET", holder)
	if balance.Cmp(big.NewInt(5e18)) != 0 {
		t.Fatalf("expected 5e18, got %s", balance)
	}
	supply, _ := m.TokenSupply("CBET")
	if supply.Cmp(big.NewInt(5e18)) != 0 {
		t.Fatalf("expected supply 5e18, got %s", supply)
	}
	// Different symbols are isolated.
	other, _ := m.TokenBalance("CHP-LP", holder)
	if other.Sign() != 0 {
		t.Fatalf("cross-symbol leak: %s", other)
	}
}

// Engines run unmodified over the persistent manager.
func TestManagerBacksAccountLedger(t *testing.T) {
	m := newManager()
	addr := testAddr(0x01)

	acc, _ := m.GetAccount(addr)
	acc = acc.Normalize()
	acc.Balance = big.NewInt(1e17)
	if err := m.PutAccount(addr, acc); err != nil {
		t.Fatalf("put: %v", err)
	}
	reloaded, _ := m.GetAccount(addr)
	reloaded.Balance.Sub(reloaded.Balance, big.NewInt(1e17))
	// Mutating the returned copy must not affect stored state.
	final, _ := m.GetAccount(addr)
	if final.Balance.Cmp(big.NewInt(1e17)) != 0 {
		t.Fatalf("stored account aliased: %s", final.Balance)
	}
}
