package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"coinbet/native/housepool"
	"coinbet/native/slotgame"
)

// PoolConfig carries the house pool parameters. Wei amounts are decimal
// strings so operators can express 18-decimal values exactly.
type PoolConfig struct {
	ExitFeeBps            uint32 `toml:"ExitFeeBps"`
	MaxCapWei             string `toml:"MaxCapWei"`
	MaxPayoutRatioNum     uint64 `toml:"MaxPayoutRatioNum"`
	MaxPayoutRatioDen     uint64 `toml:"MaxPayoutRatioDen"`
	EpochLengthSeconds    uint64 `toml:"EpochLengthSeconds"`
	FinalizeEpochBonusWei string `toml:"FinalizeEpochBonusWei"`
	IncentiveMode         bool   `toml:"IncentiveMode"`
	RewardMultiplierBps   uint64 `toml:"RewardMultiplierBps"`
	FeeWaiverThresholdWei string `toml:"FeeWaiverThresholdWei"`
}

// GameConfig carries the slot game parameters.
type GameConfig struct {
	MinBetWei             string `toml:"MinBetWei"`
	MaxBetWei             string `toml:"MaxBetWei"`
	ProtocolFeeBps        uint32 `toml:"ProtocolFeeBps"`
	WithdrawWindowSeconds uint64 `toml:"WithdrawWindowSeconds"`
	NumWords              uint32 `toml:"NumWords"`
}

type Config struct {
	RPCAddress         string  `toml:"RPCAddress"`
	DataDir            string  `toml:"DataDir"`
	NetworkName        string  `toml:"NetworkName"`
	Environment        string  `toml:"Environment"`
	LogLevel           string  `toml:"LogLevel"`
	RPCAuthToken       string  `toml:"RPCAuthToken"`
	RPCRateLimit       float64 `toml:"RPCRateLimit"`
	RPCRateBurst       int     `toml:"RPCRateBurst"`
	OwnerAddress       string  `toml:"OwnerAddress"`
	CoordinatorAddress string  `toml:"CoordinatorAddress"`
	OracleMode         string  `toml:"OracleMode"`
	OracleEndpoint     string  `toml:"OracleEndpoint"`
	OracleAPIKey       string  `toml:"OracleAPIKey"`

	Pool PoolConfig `toml:"Pool"`
	Game GameConfig `toml:"Game"`
}

// Load loads the configuration from the given path. A default file is written
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./coinbet-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "coinbet-local"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RPCRateLimit <= 0 {
		cfg.RPCRateLimit = 50
	}
	if cfg.RPCRateBurst <= 0 {
		cfg.RPCRateBurst = 100
	}
	if strings.TrimSpace(cfg.OracleMode) == "" {
		cfg.OracleMode = "manual"
	}
}

func defaultConfig() *Config {
	cfg := &Config{
		Pool: PoolConfig{
			ExitFeeBps:            500,
			MaxCapWei:             "100000000000000000000",
			MaxPayoutRatioNum:     1,
			MaxPayoutRatioDen:     1,
			EpochLengthSeconds:    7 * 24 * 60 * 60,
			FinalizeEpochBonusWei: "0",
			RewardMultiplierBps:   0,
			FeeWaiverThresholdWei: "0",
		},
		Game: GameConfig{
			MinBetWei:             "10000000000000000",
			MaxBetWei:             "1000000000000000000",
			ProtocolFeeBps:        200,
			WithdrawWindowSeconds: 24 * 60 * 60,
			NumWords:              3,
		},
	}
	applyDefaults(cfg)
	return cfg
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HistoryPath returns the bet history archive location inside the data dir.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// StatePath returns the key-value state database location inside the data dir.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

// ParseAddress decodes a 20-byte hex address, tolerating an 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return addr, fmt.Errorf("config: empty address")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("config: invalid address %q: %w", raw, err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("config: address %q must be %d bytes", raw, len(addr))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseWei(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("config: %s: invalid wei amount %q", field, raw)
	}
	return value, nil
}

// PoolParams converts the pool section into engine parameters.
func (c *Config) PoolParams() (housepool.Params, error) {
	maxCap, err := parseWei("Pool.MaxCapWei", c.Pool.MaxCapWei)
	if err != nil {
		return housepool.Params{}, err
	}
	bonus, err := parseWei("Pool.FinalizeEpochBonusWei", c.Pool.FinalizeEpochBonusWei)
	if err != nil {
		return housepool.Params{}, err
	}
	threshold, err := parseWei("Pool.FeeWaiverThresholdWei", c.Pool.FeeWaiverThresholdWei)
	if err != nil {
		return housepool.Params{}, err
	}
	params := housepool.Params{
		ExitFeeBps:          c.Pool.ExitFeeBps,
		MaxCap:              maxCap,
		MaxPayoutRatioNum:   c.Pool.MaxPayoutRatioNum,
		MaxPayoutRatioDen:   c.Pool.MaxPayoutRatioDen,
		EpochLength:         c.Pool.EpochLengthSeconds,
		FinalizeEpochBonus:  bonus,
		IncentiveMode:       c.Pool.IncentiveMode,
		RewardMultiplierBps: c.Pool.RewardMultiplierBps,
		FeeWaiverThreshold:  threshold,
	}
	if err := params.Validate(); err != nil {
		return housepool.Params{}, err
	}
	return params, nil
}

// GameParams converts the game section into engine parameters.
func (c *Config) GameParams() (slotgame.Params, error) {
	minBet, err := parseWei("Game.MinBetWei", c.Game.MinBetWei)
	if err != nil {
		return slotgame.Params{}, err
	}
	maxBet, err := parseWei("Game.MaxBetWei", c.Game.MaxBetWei)
	if err != nil {
		return slotgame.Params{}, err
	}
	params := slotgame.Params{
		MinBet:         minBet,
		MaxBet:         maxBet,
		ProtocolFeeBps: c.Game.ProtocolFeeBps,
		WithdrawWindow: c.Game.WithdrawWindowSeconds,
		NumWords:       c.Game.NumWords,
	}
	if err := params.Validate(); err != nil {
		return slotgame.Params{}, err
	}
	return params, nil
}
