package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dscengine/native/dsc"
)

const validGenesis = `EngineAddress = "0x00000000000000000000000000000000000e9915"
CollateralTokens = ["0x00000000000000000000000000000000000000e1", "0x00000000000000000000000000000000000000b1"]
PriceFeeds = ["0x00000000000000000000000000000000000000f1", "0x00000000000000000000000000000000000000f2"]
LiquidationBonus = 10
MaxPriceAge = "90m"

[StableToken]
Address = "0x0000000000000000000000000000000000000d5c"

[[Token]]
Address = "0x00000000000000000000000000000000000000e1"
Symbol = "WETH"
Decimals = 18

[[Allocation]]
Holder = "0x000000000000000000000000000000000000a11c"
Token = "0x00000000000000000000000000000000000000e1"
Amount = "100000000000000000000"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesGenesis(t *testing.T) {
	cfg, err := Load(writeConfig(t, validGenesis))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LiquidationThreshold != dsc.DefaultLiquidationThreshold {
		t.Fatalf("threshold default not applied: %d", cfg.LiquidationThreshold)
	}
	if cfg.StableToken.Symbol != "DSC" || cfg.StableToken.Decimals != 18 {
		t.Fatalf("stable defaults not applied: %+v", cfg.StableToken)
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if len(engineCfg.CollateralTokens) != 2 || engineCfg.Params.MaxPriceAge != 90*time.Minute {
		t.Fatalf("unexpected engine config: %+v", engineCfg)
	}
	if !engineCfg.Params.MinHealthFactor.Eq(dsc.DefaultMinHealthFactor) {
		t.Fatalf("min health factor = %s", engineCfg.Params.MinHealthFactor.Dec())
	}
	allocs, err := cfg.ParsedAllocations()
	if err != nil {
		t.Fatalf("allocations: %v", err)
	}
	if len(allocs) != 1 || allocs[0].Amount.Dec() != "100000000000000000000" {
		t.Fatalf("unexpected allocations: %+v", allocs)
	}
	spec := cfg.TokenSpecFor(engineCfg.CollateralTokens[1])
	if spec.Decimals != 18 {
		t.Fatalf("fallback token spec: %+v", spec)
	}
}

func TestLoadRejectsMismatchedFeeds(t *testing.T) {
	contents := strings.Replace(validGenesis,
		`PriceFeeds = ["0x00000000000000000000000000000000000000f1", "0x00000000000000000000000000000000000000f2"]`,
		`PriceFeeds = ["0x00000000000000000000000000000000000000f1"]`, 1)
	_, err := Load(writeConfig(t, contents))
	if !errors.Is(err, dsc.ErrTokenAddressesAndPriceFeedAddressesMustBeSameLength) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "Bogus = 1\n"+validGenesis))
	if err == nil || !strings.Contains(err.Error(), "Bogus") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadRejectsStableAllocation(t *testing.T) {
	contents := validGenesis + `
[[Allocation]]
Holder = "0x000000000000000000000000000000000000a11c"
Token = "0x0000000000000000000000000000000000000d5c"
Amount = "1"
`
	if _, err := Load(writeConfig(t, contents)); err == nil {
		t.Fatalf("expected stable allocation to be rejected")
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "genesis.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default not persisted: %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.EngineAddress != cfg.EngineAddress || len(reloaded.CollateralTokens) != 2 {
		t.Fatalf("reloaded config differs: %+v", reloaded)
	}
}
