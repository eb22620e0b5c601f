package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"swapd/native/swap"
)

// Chain operation modes.
const (
	ChainModeMemory = "memchain"
	ChainModeLive   = "live"
)

// EVMConfig describes the connection to the EVM-side escrow contract.
type EVMConfig struct {
	RPCURL          string `toml:"RPCURL"`
	ContractAddress string `toml:"ContractAddress"`
	GasLimit        uint64 `toml:"GasLimit"`
}

// DogeConfig describes the connection to the Dogecoin HTLC daemon.
type DogeConfig struct {
	RPCURL   string `toml:"RPCURL"`
	Username string `toml:"Username"`
	Password string `toml:"Password"`
}

// Config is the operator-facing configuration for the swap daemon.
type Config struct {
	ListenAddress         string  `toml:"ListenAddress"`
	DataDir               string  `toml:"DataDir"`
	LogLevel              string  `toml:"LogLevel"`
	ChainMode             string  `toml:"ChainMode"`
	MinSwapAmount         string  `toml:"MinSwapAmount"`
	MaxSwapAmount         string  `toml:"MaxSwapAmount"`
	DefaultTimelockHours  float64 `toml:"DefaultTimelockHours"`
	GracePeriodSeconds    int64   `toml:"GracePeriodSeconds"`
	CounterLegMarginHours float64 `toml:"CounterLegMarginHours"`
	AdapterTimeoutSeconds int64   `toml:"AdapterTimeoutSeconds"`
	SweepIntervalSeconds  int64   `toml:"SweepIntervalSeconds"`
	PartialFillsDefault   bool    `toml:"PartialFillsDefault"`

	EVM  EVMConfig  `toml:"evm"`
	Doge DogeConfig `toml:"doge"`
}

func defaultConfig() Config {
	return Config{
		ListenAddress:         "127.0.0.1:8645",
		DataDir:               "./data",
		LogLevel:              "info",
		ChainMode:             ChainModeMemory,
		MinSwapAmount:         "1",
		MaxSwapAmount:         "1000000000",
		DefaultTimelockHours:  24,
		GracePeriodSeconds:    0,
		CounterLegMarginHours: 1,
		AdapterTimeoutSeconds: 30,
		SweepIntervalSeconds:  15,
		PartialFillsDefault:   true,
	}
}

// Load reads the TOML configuration at path, creating it with defaults when
// missing, and validates the result.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer file.Close()
	cfg := defaultConfig()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("config: write defaults to %s: %w", path, err)
	}
	return nil
}

// Validate checks invariants that would otherwise surface as runtime
// failures deep inside the engine.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	switch c.ChainMode {
	case ChainModeMemory, ChainModeLive:
	default:
		return fmt.Errorf("config: unknown ChainMode %q", c.ChainMode)
	}
	min, err := c.minAmount()
	if err != nil {
		return err
	}
	max, err := c.maxAmount()
	if err != nil {
		return err
	}
	if min != nil && max != nil && min.Cmp(max) > 0 {
		return fmt.Errorf("config: MinSwapAmount %s exceeds MaxSwapAmount %s", min, max)
	}
	if c.DefaultTimelockHours <= 0 {
		return fmt.Errorf("config: DefaultTimelockHours must be positive")
	}
	if c.GracePeriodSeconds < 0 {
		return fmt.Errorf("config: GracePeriodSeconds must not be negative")
	}
	if c.CounterLegMarginHours < 0 {
		return fmt.Errorf("config: CounterLegMarginHours must not be negative")
	}
	if c.AdapterTimeoutSeconds <= 0 {
		return fmt.Errorf("config: AdapterTimeoutSeconds must be positive")
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("config: SweepIntervalSeconds must be positive")
	}
	if c.ChainMode == ChainModeLive {
		if c.EVM.RPCURL == "" {
			return fmt.Errorf("config: evm.RPCURL required in live mode")
		}
		if c.Doge.RPCURL == "" {
			return fmt.Errorf("config: doge.RPCURL required in live mode")
		}
	}
	return nil
}

func (c *Config) minAmount() (*big.Int, error) {
	return parseAmount("MinSwapAmount", c.MinSwapAmount)
}

func (c *Config) maxAmount() (*big.Int, error) {
	return parseAmount("MaxSwapAmount", c.MaxSwapAmount)
}

func parseAmount(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("config: malformed %s %q", field, value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("config: %s must be positive, got %s", field, amount)
	}
	return amount, nil
}

// Limits renders the configuration as engine policy. Validate must have
// succeeded first.
func (c *Config) Limits() swap.Limits {
	min, _ := c.minAmount()
	max, _ := c.maxAmount()
	return swap.Limits{
		MinAmount:           min,
		MaxAmount:           max,
		DefaultTimelock:     time.Duration(c.DefaultTimelockHours * float64(time.Hour)),
		GracePeriod:         time.Duration(c.GracePeriodSeconds) * time.Second,
		CounterLegMargin:    time.Duration(c.CounterLegMarginHours * float64(time.Hour)),
		CallTimeout:         time.Duration(c.AdapterTimeoutSeconds) * time.Second,
		PartialFillsDefault: c.PartialFillsDefault,
	}
}

// SweepInterval returns the expiry sweeper cadence.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
