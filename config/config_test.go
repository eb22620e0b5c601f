package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swapd.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, ChainModeMemory, cfg.ChainMode)
	require.Equal(t, "127.0.0.1:8645", cfg.ListenAddress)
	require.True(t, cfg.PartialFillsDefault)

	// The created file must round-trip through a second load.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, again.ListenAddress)
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swapd.toml")
	payload := `
ListenAddress = "0.0.0.0:9000"
ChainMode = "live"
MinSwapAmount = "100"
MaxSwapAmount = "5000"
DefaultTimelockHours = 12.5
GracePeriodSeconds = 30
CounterLegMarginHours = 0.5
AdapterTimeoutSeconds = 10
SweepIntervalSeconds = 5
PartialFillsDefault = false

[evm]
RPCURL = "http://localhost:8545"
ContractAddress = "0x00000000000000000000000000000000000000aa"

[doge]
RPCURL = "http://localhost:22555"
Username = "rpcuser"
Password = "rpcpass"
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddress)
	require.Equal(t, ChainModeLive, cfg.ChainMode)
	require.False(t, cfg.PartialFillsDefault)

	limits := cfg.Limits()
	require.Zero(t, limits.MinAmount.Cmp(big.NewInt(100)))
	require.Zero(t, limits.MaxAmount.Cmp(big.NewInt(5000)))
	require.Equal(t, 12*time.Hour+30*time.Minute, limits.DefaultTimelock)
	require.Equal(t, 30*time.Second, limits.GracePeriod)
	require.Equal(t, 30*time.Minute, limits.CounterLegMargin)
	require.Equal(t, 10*time.Second, limits.CallTimeout)
	require.Equal(t, 5*time.Second, cfg.SweepInterval())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.ListenAddress = "" }},
		{"unknown chain mode", func(c *Config) { c.ChainMode = "testnet" }},
		{"malformed min amount", func(c *Config) { c.MinSwapAmount = "ten" }},
		{"negative max amount", func(c *Config) { c.MaxSwapAmount = "-5" }},
		{"min above max", func(c *Config) { c.MinSwapAmount = "10"; c.MaxSwapAmount = "5" }},
		{"zero timelock", func(c *Config) { c.DefaultTimelockHours = 0 }},
		{"negative grace", func(c *Config) { c.GracePeriodSeconds = -1 }},
		{"zero adapter timeout", func(c *Config) { c.AdapterTimeoutSeconds = 0 }},
		{"zero sweep interval", func(c *Config) { c.SweepIntervalSeconds = 0 }},
		{"live without evm endpoint", func(c *Config) { c.ChainMode = ChainModeLive; c.Doge.RPCURL = "x" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swapd.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenAddress = ["), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}
