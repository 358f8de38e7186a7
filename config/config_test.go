package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8645" {
		t.Fatalf("unexpected rpc address %q", cfg.RPCAddress)
	}
	if cfg.OracleMode != "manual" {
		t.Fatalf("unexpected oracle mode %q", cfg.OracleMode)
	}
	if cfg.Game.NumWords != 3 {
		t.Fatalf("unexpected word count %d", cfg.Game.NumWords)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Pool.ExitFeeBps != cfg.Pool.ExitFeeBps {
		t.Fatalf("reload mismatch: %d != %d", reloaded.Pool.ExitFeeBps, cfg.Pool.ExitFeeBps)
	}
}

func TestLoadAppliesDefaultsToSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	payload := "RPCAddress = \"0.0.0.0:9000\"\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" {
		t.Fatalf("explicit value lost: %q", cfg.RPCAddress)
	}
	if cfg.DataDir != "./coinbet-data" {
		t.Fatalf("data dir default missing: %q", cfg.DataDir)
	}
	if cfg.RPCRateLimit != 50 || cfg.RPCRateBurst != 100 {
		t.Fatalf("rate limit defaults missing: %v/%v", cfg.RPCRateLimit, cfg.RPCRateBurst)
	}
}

func TestPoolParamsParsesWeiStrings(t *testing.T) {
	cfg := defaultConfig()
	cfg.Pool.MaxCapWei = "250000000000000000000"
	cfg.Pool.FeeWaiverThresholdWei = "5000000000000000000"

	params, err := cfg.PoolParams()
	if err != nil {
		t.Fatalf("pool params: %v", err)
	}
	wantCap, _ := new(big.Int).SetString("250000000000000000000", 10)
	if params.MaxCap.Cmp(wantCap) != 0 {
		t.Fatalf("unexpected max cap %s", params.MaxCap)
	}
	wantThreshold, _ := new(big.Int).SetString("5000000000000000000", 10)
	if params.FeeWaiverThreshold.Cmp(wantThreshold) != 0 {
		t.Fatalf("unexpected waiver threshold %s", params.FeeWaiverThreshold)
	}
	if params.EpochLength != 7*24*60*60 {
		t.Fatalf("unexpected epoch length %d", params.EpochLength)
	}
}

func TestPoolParamsRejectsMalformedWei(t *testing.T) {
	cfg := defaultConfig()
	cfg.Pool.MaxCapWei = "12.5"
	if _, err := cfg.PoolParams(); err == nil {
		t.Fatal("expected error for fractional wei amount")
	}

	cfg = defaultConfig()
	cfg.Pool.FinalizeEpochBonusWei = "-1"
	if _, err := cfg.PoolParams(); err == nil {
		t.Fatal("expected error for negative wei amount")
	}
}

func TestGameParamsRejectsInvertedBetLimits(t *testing.T) {
	cfg := defaultConfig()
	cfg.Game.MinBetWei = "2000000000000000000"
	cfg.Game.MaxBetWei = "1000000000000000000"
	if _, err := cfg.GameParams(); err == nil {
		t.Fatal("expected error when min bet exceeds max bet")
	}
}

func TestParseAddress(t *testing.T) {
	hexAddr := "0x00112233445566778899aabbccddeeff00112233"
	addr, err := ParseAddress(hexAddr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr[0] != 0x00 || addr[1] != 0x11 || addr[19] != 0x33 {
		t.Fatalf("unexpected address bytes %x", addr)
	}

	bare, err := ParseAddress("00112233445566778899aabbccddeeff00112233")
	if err != nil {
		t.Fatalf("parse without prefix: %v", err)
	}
	if bare != addr {
		t.Fatal("prefix handling changed the decoded address")
	}

	if _, err := ParseAddress(""); err == nil {
		t.Fatal("expected error for empty address")
	}
	if _, err := ParseAddress("0xdeadbeef"); err == nil {
		t.Fatal("expected error for short address")
	}
}
