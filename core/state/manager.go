package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"coinbet/core/types"
	"coinbet/native/housepool"
	"coinbet/native/slotgame"
	"coinbet/storage"
)

var (
	poolKey            = []byte("housepool/pool")
	gameKey            = []byte("slotgame/game")
	wagerPrefix        = []byte("slotgame/wager/")
	accountPrefix      = []byte("account/")
	tokenBalancePrefix = []byte("token/balance/")
	tokenSupplyPrefix  = []byte("token/supply/")
)

// Manager persists all module state in the underlying key-value store. It
// satisfies the storage interfaces of the house pool, the betting engine and
// the token ledgers.
type Manager struct {
	db storage.Database
}

// NewManager constructs a manager bound to the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) kvGet(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) kvPut(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

type storedPool struct {
	Capital             *big.Int
	Reserved            *big.Int
	ProtocolFeeReserve  *big.Int
	MaxCap              *big.Int
	ExitFeeBps          uint32
	MaxPayoutRatioNum   uint64
	MaxPayoutRatioDen   uint64
	EpochLength         uint64
	EpochStartedAt      uint64
	FinalizeEpochBonus  *big.Int
	IncentiveMode       bool
	RewardMultiplierBps uint64
	FeeWaiverThreshold  *big.Int
}

// PoolGet loads the house pool record.
func (m *Manager) PoolGet() (*housepool.Pool, bool, error) {
	var stored storedPool
	ok, err := m.kvGet(poolKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	pool := &housepool.Pool{
		Capital:             stored.Capital,
		Reserved:            stored.Reserved,
		ProtocolFeeReserve:  stored.ProtocolFeeReserve,
		MaxCap:              stored.MaxCap,
		ExitFeeBps:          stored.ExitFeeBps,
		MaxPayoutRatioNum:   stored.MaxPayoutRatioNum,
		MaxPayoutRatioDen:   stored.MaxPayoutRatioDen,
		EpochLength:         stored.EpochLength,
		EpochStartedAt:      stored.EpochStartedAt,
		FinalizeEpochBonus:  stored.FinalizeEpochBonus,
		IncentiveMode:       stored.IncentiveMode,
		RewardMultiplierBps: stored.RewardMultiplierBps,
		FeeWaiverThreshold:  stored.FeeWaiverThreshold,
	}
	return pool.Normalize(), true, nil
}

// PoolPut stores the house pool record.
func (m *Manager) PoolPut(pool *housepool.Pool) error {
	if pool == nil {
		return fmt.Errorf("state: nil pool")
	}
	pool = pool.Normalize()
	return m.kvPut(poolKey, &storedPool{
		Capital:             pool.Capital,
		Reserved:            pool.Reserved,
		ProtocolFeeReserve:  pool.ProtocolFeeReserve,
		MaxCap:              pool.MaxCap,
		ExitFeeBps:          pool.ExitFeeBps,
		MaxPayoutRatioNum:   pool.MaxPayoutRatioNum,
		MaxPayoutRatioDen:   pool.MaxPayoutRatioDen,
		EpochLength:         pool.EpochLength,
		EpochStartedAt:      pool.EpochStartedAt,
		FinalizeEpochBonus:  pool.FinalizeEpochBonus,
		IncentiveMode:       pool.IncentiveMode,
		RewardMultiplierBps: pool.RewardMultiplierBps,
		FeeWaiverThreshold:  pool.FeeWaiverThreshold,
	})
}

type storedGame struct {
	MinBet         *big.Int
	MaxBet         *big.Int
	ProtocolFeeBps uint32
	WithdrawWindow uint64
	NumWords       uint32
}

// GameGet loads the slot game configuration.
func (m *Manager) GameGet() (*slotgame.GameState, bool, error) {
	var stored storedGame
	ok, err := m.kvGet(gameKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	game := &slotgame.GameState{
		MinBet:         stored.MinBet,
		MaxBet:         stored.MaxBet,
		ProtocolFeeBps: stored.ProtocolFeeBps,
		WithdrawWindow: stored.WithdrawWindow,
		NumWords:       stored.NumWords,
	}
	return game.Normalize(), true, nil
}

// GamePut stores the slot game configuration.
func (m *Manager) GamePut(game *slotgame.GameState) error {
	if game == nil {
		return fmt.Errorf("state: nil game state")
	}
	game = game.Normalize()
	return m.kvPut(gameKey, &storedGame{
		MinBet:         game.MinBet,
		MaxBet:         game.MaxBet,
		ProtocolFeeBps: game.ProtocolFeeBps,
		WithdrawWindow: game.WithdrawWindow,
		NumWords:       game.NumWords,
	})
}

type storedWager struct {
	RequestID      [32]byte
	Bettor         [20]byte
	NetWager       *big.Int
	ReservedPayout *big.Int
	PlacedAt       uint64
}

func wagerKey(id [32]byte) []byte {
	return append(append([]byte{}, wagerPrefix...), id[:]...)
}

// WagerPut stores a pending wager keyed by its request id.
func (m *Manager) WagerPut(wager *slotgame.PendingWager) error {
	if wager == nil {
		return fmt.Errorf("state: nil wager")
	}
	wager = wager.Normalize()
	placedAt := uint64(0)
	if wager.PlacedAt > 0 {
		placedAt = uint64(wager.PlacedAt)
	}
	return m.kvPut(wagerKey(wager.RequestID), &storedWager{
		RequestID:      wager.RequestID,
		Bettor:         wager.Bettor,
		NetWager:       wager.NetWager,
		ReservedPayout: wager.ReservedPayout,
		PlacedAt:       placedAt,
	})
}

// WagerGet loads the pending wager for a request id.
func (m *Manager) WagerGet(id [32]byte) (*slotgame.PendingWager, bool, error) {
	var stored storedWager
	ok, err := m.kvGet(wagerKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	wager := &slotgame.PendingWager{
		RequestID:      stored.RequestID,
		Bettor:         stored.Bettor,
		NetWager:       stored.NetWager,
		ReservedPayout: stored.ReservedPayout,
		PlacedAt:       int64(stored.PlacedAt),
	}
	return wager.Normalize(), true, nil
}

// WagerDelete removes a pending wager once settled or cancelled.
func (m *Manager) WagerDelete(id [32]byte) error {
	return m.db.Delete(wagerKey(id))
}

type storedAccount struct {
	Balance      *big.Int
	TotalWagered *big.Int
	TotalWon     *big.Int
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte{}, accountPrefix...), addr[:]...)
}

// GetAccount loads an account, returning a zeroed record when absent.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.kvGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	account := &types.Account{
		Balance:      stored.Balance,
		TotalWagered: stored.TotalWagered,
		TotalWon:     stored.TotalWon,
	}
	return account.Normalize(), nil
}

// PutAccount stores an account record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	account = account.Normalize()
	return m.kvPut(accountKey(addr), &storedAccount{
		Balance:      account.Balance,
		TotalWagered: account.TotalWagered,
		TotalWon:     account.TotalWon,
	})
}

func tokenBalanceKey(symbol string, addr [20]byte) []byte {
	key := append(append([]byte{}, tokenBalancePrefix...), symbol...)
	key = append(key, '/')
	return append(key, addr[:]...)
}

func tokenSupplyKey(symbol string) []byte {
	return append(append([]byte{}, tokenSupplyPrefix...), symbol...)
}

// TokenBalance loads a holder's balance for a token symbol.
func (m *Manager) TokenBalance(symbol string, addr [20]byte) (*big.Int, error) {
	var stored *big.Int
	ok, err := m.kvGet(tokenBalanceKey(symbol, addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored == nil {
		return big.NewInt(0), nil
	}
	return stored, nil
}

// SetTokenBalance stores a holder's balance for a token symbol.
func (m *Manager) SetTokenBalance(symbol string, addr [20]byte, balance *big.Int) error {
	if balance == nil {
		balance = big.NewInt(0)
	}
	return m.kvPut(tokenBalanceKey(symbol, addr), balance)
}

// TokenSupply loads the total supply for a token symbol.
func (m *Manager) TokenSupply(symbol string) (*big.Int, error) {
	var stored *big.Int
	ok, err := m.kvGet(tokenSupplyKey(symbol), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored == nil {
		return big.NewInt(0), nil
	}
	return stored, nil
}

// SetTokenSupply stores the total supply for a token symbol.
func (m *Manager) SetTokenSupply(symbol string, supply *big.Int) error {
	if supply == nil {
		supply = big.NewInt(0)
	}
	return m.kvPut(tokenSupplyKey(symbol), supply)
}
