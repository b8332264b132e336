package dsc

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

const moduleName = "dsc"

// ModuleName is the pause-switch key guarding every mutating operation.
const ModuleName = moduleName

const (
	// DefaultLiquidationThreshold is the share of collateral value, in
	// percent, that counts towards backing debt. 50 means positions must be
	// 200% overcollateralised.
	DefaultLiquidationThreshold uint64 = 50
	// DefaultLiquidationBonus is the percentage of seized collateral paid to
	// the liquidator on top of the covered debt.
	DefaultLiquidationBonus uint64 = 10
	// LiquidationPrecision is the denominator for threshold and bonus.
	LiquidationPrecision uint64 = 100
	// FeedDecimals is the native precision of the reference price feeds.
	FeedDecimals uint8 = 8
	// DefaultMaxPriceAge bounds how old a feed answer may be.
	DefaultMaxPriceAge = 3 * time.Hour
)

var (
	// Precision is the fixed-point scale for amounts, USD values and health
	// factors.
	Precision = uint256.NewInt(1_000_000_000_000_000_000)
	// AdditionalFeedPrecision lifts an 8-decimal feed answer to Precision.
	AdditionalFeedPrecision = uint256.NewInt(10_000_000_000)
	// DefaultMinHealthFactor is 1.0 at Precision scale.
	DefaultMinHealthFactor = uint256.NewInt(1_000_000_000_000_000_000)

	liquidationPrecision = uint256.NewInt(LiquidationPrecision)
)

// RiskParameters groups the solvency knobs fixed at engine construction.
type RiskParameters struct {
	LiquidationThreshold uint64
	LiquidationBonus     uint64
	MinHealthFactor      *uint256.Int
	// MaxPriceAge rejects feed answers older than this. Zero disables the
	// check.
	MaxPriceAge time.Duration
}

// DefaultRiskParameters returns the reference configuration.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		LiquidationThreshold: DefaultLiquidationThreshold,
		LiquidationBonus:     DefaultLiquidationBonus,
		MinHealthFactor:      DefaultMinHealthFactor.Clone(),
		MaxPriceAge:          DefaultMaxPriceAge,
	}
}

// Clone returns a deep copy of the parameters.
func (p RiskParameters) Clone() RiskParameters {
	clone := p
	if p.MinHealthFactor != nil {
		clone.MinHealthFactor = p.MinHealthFactor.Clone()
	}
	return clone
}

// Validate ensures the parameters describe a solvent configuration.
func (p RiskParameters) Validate() error {
	if p.LiquidationThreshold == 0 || p.LiquidationThreshold > LiquidationPrecision {
		return fmt.Errorf("dsc: liquidation threshold must be within (0, %d]", LiquidationPrecision)
	}
	if p.LiquidationBonus >= LiquidationPrecision {
		return fmt.Errorf("dsc: liquidation bonus must be below %d", LiquidationPrecision)
	}
	if p.MinHealthFactor == nil || p.MinHealthFactor.IsZero() {
		return fmt.Errorf("dsc: minimum health factor must be positive")
	}
	if p.MaxPriceAge < 0 {
		return fmt.Errorf("dsc: max price age must not be negative")
	}
	return nil
}
