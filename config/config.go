package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"dscengine/native/dsc"
)

// Config is the engine genesis: which collateral is listed, which feed prices
// it, the risk parameters and the initial token allocations.
type Config struct {
	EngineAddress        string       `toml:"EngineAddress"`
	StableToken          TokenSpec    `toml:"StableToken"`
	CollateralTokens     []string     `toml:"CollateralTokens"`
	PriceFeeds           []string     `toml:"PriceFeeds"`
	Tokens               []TokenSpec  `toml:"Token"`
	LiquidationThreshold uint64       `toml:"LiquidationThreshold"`
	LiquidationBonus     uint64       `toml:"LiquidationBonus"`
	MinHealthFactor      string       `toml:"MinHealthFactor"`
	MaxPriceAge          string       `toml:"MaxPriceAge"`
	Allocations          []Allocation `toml:"Allocation"`
}

// TokenSpec describes a token's metadata.
type TokenSpec struct {
	Address  string `toml:"Address"`
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

// Allocation credits Amount base units of Token to Holder at genesis.
type Allocation struct {
	Holder string `toml:"Holder"`
	Token  string `toml:"Token"`
	Amount string `toml:"Amount"`
}

// DeriveAddress returns a deterministic address for a well-known label.
func DeriveAddress(label string) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte(label))[12:])
}

// Default returns a local development genesis listing WETH and WBTC.
func Default() *Config {
	weth := DeriveAddress("dsc/token/weth")
	wbtc := DeriveAddress("dsc/token/wbtc")
	return &Config{
		EngineAddress: DeriveAddress("dsc/engine").Hex(),
		StableToken: TokenSpec{
			Address:  DeriveAddress("dsc/token/dsc").Hex(),
			Symbol:   "DSC",
			Decimals: 18,
		},
		CollateralTokens: []string{weth.Hex(), wbtc.Hex()},
		PriceFeeds: []string{
			DeriveAddress("dsc/feed/eth-usd").Hex(),
			DeriveAddress("dsc/feed/btc-usd").Hex(),
		},
		Tokens: []TokenSpec{
			{Address: weth.Hex(), Symbol: "WETH", Decimals: 18},
			{Address: wbtc.Hex(), Symbol: "WBTC", Decimals: 18},
		},
		LiquidationThreshold: dsc.DefaultLiquidationThreshold,
		LiquidationBonus:     dsc.DefaultLiquidationBonus,
		MinHealthFactor:      dsc.DefaultMinHealthFactor.Dec(),
		MaxPriceAge:          dsc.DefaultMaxPriceAge.String(),
		Allocations:          []Allocation{},
	}
}

// Load reads the genesis at path, writing the development default there
// first if the file does not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LiquidationThreshold == 0 {
		c.LiquidationThreshold = dsc.DefaultLiquidationThreshold
	}
	if strings.TrimSpace(c.MinHealthFactor) == "" {
		c.MinHealthFactor = dsc.DefaultMinHealthFactor.Dec()
	}
	if strings.TrimSpace(c.MaxPriceAge) == "" {
		c.MaxPriceAge = dsc.DefaultMaxPriceAge.String()
	}
	if strings.TrimSpace(c.StableToken.Symbol) == "" {
		c.StableToken.Symbol = "DSC"
	}
	if c.StableToken.Decimals == 0 {
		c.StableToken.Decimals = 18
	}
}

// Validate checks that every address and amount parses and that the
// collateral listing is consistent.
func (c *Config) Validate() error {
	if _, err := parseAddress("EngineAddress", c.EngineAddress); err != nil {
		return err
	}
	if _, err := parseAddress("StableToken.Address", c.StableToken.Address); err != nil {
		return err
	}
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	listed := make(map[common.Address]bool, len(c.CollateralTokens))
	for _, raw := range c.CollateralTokens {
		addr, err := parseAddress("CollateralTokens", raw)
		if err != nil {
			return err
		}
		listed[addr] = true
	}
	for _, spec := range c.Tokens {
		addr, err := parseAddress("Token.Address", spec.Address)
		if err != nil {
			return err
		}
		if !listed[addr] {
			return fmt.Errorf("token metadata for %s which is not listed as collateral", addr.Hex())
		}
	}
	stable, _ := parseAddress("StableToken.Address", c.StableToken.Address)
	for i, alloc := range c.Allocations {
		if _, err := parseAddress(fmt.Sprintf("Allocation[%d].Holder", i), alloc.Holder); err != nil {
			return err
		}
		token, err := parseAddress(fmt.Sprintf("Allocation[%d].Token", i), alloc.Token)
		if err != nil {
			return err
		}
		if token == stable {
			return fmt.Errorf("allocation[%d]: stable token supply is only created by minting", i)
		}
		if !listed[token] {
			return fmt.Errorf("allocation[%d]: token %s is not listed as collateral", i, token.Hex())
		}
		if _, err := parseAmount(fmt.Sprintf("Allocation[%d].Amount", i), alloc.Amount); err != nil {
			return err
		}
	}
	return nil
}

// EngineConfig converts the genesis into engine construction parameters.
func (c *Config) EngineConfig() (dsc.Config, error) {
	engine, err := parseAddress("EngineAddress", c.EngineAddress)
	if err != nil {
		return dsc.Config{}, err
	}
	stable, err := parseAddress("StableToken.Address", c.StableToken.Address)
	if err != nil {
		return dsc.Config{}, err
	}
	tokens, err := parseAddresses("CollateralTokens", c.CollateralTokens)
	if err != nil {
		return dsc.Config{}, err
	}
	feeds, err := parseAddresses("PriceFeeds", c.PriceFeeds)
	if err != nil {
		return dsc.Config{}, err
	}
	minHF, err := parseAmount("MinHealthFactor", c.MinHealthFactor)
	if err != nil {
		return dsc.Config{}, err
	}
	maxAge, err := time.ParseDuration(strings.TrimSpace(c.MaxPriceAge))
	if err != nil {
		return dsc.Config{}, fmt.Errorf("MaxPriceAge: %w", err)
	}
	params := dsc.RiskParameters{
		LiquidationThreshold: c.LiquidationThreshold,
		LiquidationBonus:     c.LiquidationBonus,
		MinHealthFactor:      minHF,
		MaxPriceAge:          maxAge,
	}
	if err := params.Validate(); err != nil {
		return dsc.Config{}, err
	}
	if len(tokens) != len(feeds) {
		return dsc.Config{}, dsc.ErrTokenAddressesAndPriceFeedAddressesMustBeSameLength
	}
	return dsc.Config{
		Address:          engine,
		CollateralTokens: tokens,
		PriceFeeds:       feeds,
		Stable:           stable,
		Params:           params,
	}, nil
}

// TokenSpecFor returns the metadata for a listed collateral token, falling
// back to an 18-decimal token named after its address.
func (c *Config) TokenSpecFor(token common.Address) TokenSpec {
	for _, spec := range c.Tokens {
		if common.HexToAddress(spec.Address) == token {
			if spec.Decimals == 0 {
				spec.Decimals = 18
			}
			return spec
		}
	}
	return TokenSpec{Address: token.Hex(), Symbol: token.Hex()[:8], Decimals: 18}
}

// ParsedAllocations returns the genesis allocations with parsed fields.
func (c *Config) ParsedAllocations() ([]ParsedAllocation, error) {
	out := make([]ParsedAllocation, 0, len(c.Allocations))
	for i, alloc := range c.Allocations {
		holder, err := parseAddress(fmt.Sprintf("Allocation[%d].Holder", i), alloc.Holder)
		if err != nil {
			return nil, err
		}
		token, err := parseAddress(fmt.Sprintf("Allocation[%d].Token", i), alloc.Token)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(fmt.Sprintf("Allocation[%d].Amount", i), alloc.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, ParsedAllocation{Holder: holder, Token: token, Amount: amount})
	}
	return out, nil
}

type ParsedAllocation struct {
	Holder common.Address
	Token  common.Address
	Amount *uint256.Int
}

// Save writes cfg to path as TOML.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s: zero address", field)
	}
	return addr, nil
}

func parseAddresses(field string, raw []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for i, value := range raw {
		addr, err := parseAddress(fmt.Sprintf("%s[%d]", field, i), value)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func parseAmount(field, raw string) (*uint256.Int, error) {
	value, err := uint256.FromDecimal(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid amount %q: %w", field, raw, err)
	}
	if value.IsZero() {
		return nil, fmt.Errorf("%s: amount must be positive", field)
	}
	return value, nil
}
