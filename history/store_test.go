package history

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"coinbet/native/slotgame"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func settlementFor(bettor byte, outcome uint64, payout int64, at int64) *slotgame.Settlement {
	var s slotgame.Settlement
	s.RequestID[0] = bettor
	s.RequestID[1] = byte(at)
	for i := range s.Bettor {
		s.Bettor[i] = bettor
	}
	s.NetWager = big.NewInt(9.8e16)
	s.Outcome = outcome
	s.Reels = []uint64{outcome, outcome, outcome}
	s.Payout = big.NewInt(payout)
	s.SettledAt = at
	return &s
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append(settlementFor(0x01, 0, 0, 100)))
	require.NoError(t, store.Append(settlementFor(0x01, 1, 1.176e17, 200)))
	require.NoError(t, store.Append(settlementFor(0x02, 9, 9.8e17, 300)))

	records, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first.
	require.Equal(t, int64(300), records[0].SettledAt)
	require.Equal(t, int64(200), records[1].SettledAt)
	require.Equal(t, uint64(9), records[0].Outcome)
	require.Equal(t, "980000000000000000", records[0].Payout)
	require.Equal(t, []uint64{9, 9, 9}, records[0].Reels)

	all, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestListByBettorFiltersAndOrders(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append(settlementFor(0x01, 0, 0, 100)))
	require.NoError(t, store.Append(settlementFor(0x02, 1, 1.176e17, 200)))
	require.NoError(t, store.Append(settlementFor(0x01, 2, 1.47e17, 300)))

	var bettor [20]byte
	for i := range bettor {
		bettor[i] = 0x01
	}
	records, err := store.ListByBettor(bettor, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, int64(300), records[0].SettledAt)
	require.Equal(t, int64(100), records[1].SettledAt)

	var stranger [20]byte
	stranger[0] = 0x77
	records, err = store.ListByBettor(stranger, 10)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRecordsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(settlementFor(0x01, 1, 1.176e17, 100)))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	records, err := reopened.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint64(1), records[0].Outcome)
}

func TestZeroLimitReturnsNothing(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(settlementFor(0x01, 0, 0, 100)))

	records, err := store.Recent(0)
	require.NoError(t, err)
	require.Empty(t, records)
}
