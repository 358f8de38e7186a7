package slotgame

import (
	"math/big"
	"testing"
)

func TestOutcomeReducesWordsModCardinality(t *testing.T) {
	table := DefaultPayTable()
	if table.Cardinality() != 10 {
		t.Fatalf("expected 10 outcomes, got %d", table.Cardinality())
	}
	cases := []struct {
		word     *big.Int
		expected uint64
	}{
		{big.NewInt(0), 0},
		{big.NewInt(7), 7},
		{big.NewInt(10), 0},
		{big.NewInt(123), 3},
		{new(big.Int).Exp(big.NewInt(2), big.NewInt(255), nil), 8}, // 2^255 mod 10
	}
	for _, tc := range cases {
		if got := table.Outcome(tc.word); got != tc.expected {
			t.Fatalf("outcome(%s): expected %d, got %d", tc.word, tc.expected, got)
		}
	}
	if table.Outcome(nil) != 0 {
		t.Fatal("nil word must map to the losing outcome")
	}
}

func TestPayoutScalesByMultiplier(t *testing.T) {
	table := DefaultPayTable()
	net := big.NewInt(9.8e16)

	if payout := table.Payout(net, 0); payout.Sign() != 0 {
		t.Fatalf("losing outcome must pay zero, got %s", payout)
	}
	if payout := table.Payout(net, 1); payout.Cmp(big.NewInt(1.176e17)) != 0 {
		t.Fatalf("1.2x payout: expected 1.176e17, got %s", payout)
	}
	if payout := table.Payout(net, 9); payout.Cmp(big.NewInt(9.8e17)) != 0 {
		t.Fatalf("10x payout: expected 9.8e17, got %s", payout)
	}
	// Out-of-range outcomes pay nothing.
	if payout := table.Payout(net, 99); payout.Sign() != 0 {
		t.Fatalf("out-of-range outcome must pay zero, got %s", payout)
	}
}

func TestMaxPayoutUsesJackpotMultiplier(t *testing.T) {
	table := DefaultPayTable()
	if table.MaxMultiplier() != 1000 {
		t.Fatalf("expected max multiplier 1000, got %d", table.MaxMultiplier())
	}
	if max := table.MaxPayout(big.NewInt(1e17)); max.Cmp(big.NewInt(1e18)) != 0 {
		t.Fatalf("expected max payout 1e18, got %s", max)
	}
}

func TestNewPayTableValidation(t *testing.T) {
	if _, err := NewPayTable(nil); err == nil {
		t.Fatal("empty table must be rejected")
	}
	if _, err := NewPayTable([]uint64{0, 0}); err == nil {
		t.Fatal("all-losing table must be rejected")
	}
	table, err := NewPayTable([]uint64{0, 200})
	if err != nil {
		t.Fatalf("new paytable: %v", err)
	}
	if table.Cardinality() != 2 || table.MaxMultiplier() != 200 {
		t.Fatalf("unexpected table shape: %d outcomes, max %d", table.Cardinality(), table.MaxMultiplier())
	}
}
