package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"solstice/native/sale"
)

// PhaseConfig is one priced sale segment as written in the config file.
// Amounts are decimal strings so arbitrarily large base-unit values survive
// the TOML round trip.
type PhaseConfig struct {
	TokenPrice string `toml:"TokenPrice"`
	Duration   int64  `toml:"Duration"`
}

// SaleConfig is the sale genesis: fixed at initialization, immutable after.
type SaleConfig struct {
	StartTimestamp int64         `toml:"StartTimestamp"`
	Cap            string        `toml:"Cap"`
	Phases         []PhaseConfig `toml:"Phases"`
}

// Config is the daemon configuration.
type Config struct {
	RPCAddress          string     `toml:"RPCAddress"`
	OpsAddress          string     `toml:"OpsAddress"`
	DataDir             string     `toml:"DataDir"`
	NetworkName         string     `toml:"NetworkName"`
	Admin               string     `toml:"Admin"`
	RewardsVault        string     `toml:"RewardsVault"`
	DistributionAccount string     `toml:"DistributionAccount"`
	TreasuryVault       string     `toml:"TreasuryVault"`
	Sale                SaleConfig `toml:"Sale"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "solstice-local"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.OpsAddress) == "" {
		cfg.OpsAddress = ":9090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  ":8545",
		OpsAddress:  ":9090",
		DataDir:     "./data",
		NetworkName: "solstice-local",
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the address fields and sale genesis for obvious mistakes.
// An absent sale section is allowed: the sale can be initialized over RPC.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"Admin":               c.Admin,
		"RewardsVault":        c.RewardsVault,
		"DistributionAccount": c.DistributionAccount,
		"TreasuryVault":       c.TreasuryVault,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, err := ParseAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if len(c.Sale.Phases) == 0 && c.Sale.StartTimestamp == 0 && c.Sale.Cap == "" {
		return nil
	}
	if _, _, _, err := c.Sale.Genesis(); err != nil {
		return err
	}
	return nil
}

// Genesis converts the sale section into engine inputs.
func (s SaleConfig) Genesis() (int64, *big.Int, []sale.Phase, error) {
	if s.StartTimestamp <= 0 {
		return 0, nil, nil, fmt.Errorf("config: sale start timestamp must be positive")
	}
	cap, err := ParseAmount(s.Cap)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("config: sale cap: %w", err)
	}
	if len(s.Phases) == 0 {
		return 0, nil, nil, fmt.Errorf("config: sale needs at least one phase")
	}
	phases := make([]sale.Phase, len(s.Phases))
	for i, phase := range s.Phases {
		price, err := ParseAmount(phase.TokenPrice)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("config: phase %d price: %w", i, err)
		}
		if phase.Duration <= 0 {
			return 0, nil, nil, fmt.Errorf("config: phase %d duration must be positive", i)
		}
		phases[i] = sale.Phase{TokenPrice: price, Duration: phase.Duration}
	}
	return s.StartTimestamp, cap, phases, nil
}

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address: %v", err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// ParseAmount decodes a positive decimal amount string.
func ParseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}
