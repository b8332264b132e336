package dsc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"

	"dscengine/core/events"
)

// Liquidate lets liquidator repay debtToCover of account's debt in exchange
// for the equivalent amount of asset plus the liquidation bonus. The account
// must be below the minimum health factor and must end strictly healthier
// than it started. Seizing more collateral than the account holds aborts the
// whole liquidation.
func (e *Engine) Liquidate(ctx context.Context, liquidator, asset, account common.Address, debtToCover *uint256.Int) (*LiquidationResult, error) {
	attrs := amountAttrs(liquidator, asset, debtToCover)
	attrs = append(attrs, attribute.String("account", account.Hex()))
	var result *LiquidationResult
	err := e.execute(ctx, "liquidate", attrs, func(ctx context.Context) error {
		res, err := e.liquidate(ctx, liquidator, asset, account, debtToCover)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordLiquidation(asset.Hex(), result.CollateralSeized)
	slog.InfoContext(ctx, "dsc: position liquidated",
		"account", account.Hex(),
		"liquidator", liquidator.Hex(),
		"token", asset.Hex(),
		"debt_covered", result.DebtCovered.Dec(),
		"collateral_seized", result.CollateralSeized.Dec(),
		"health_factor_after", result.HealthFactorAfter.Dec(),
	)
	return result, nil
}

func (e *Engine) liquidate(ctx context.Context, liquidator, asset, account common.Address, debtToCover *uint256.Int) (*LiquidationResult, error) {
	if isZero(debtToCover) {
		return nil, ErrNeedsMoreThanZero
	}
	if !e.registry.Contains(asset) {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowedToken, asset.Hex())
	}
	startingHealth, err := e.healthFactor(ctx, account)
	if err != nil {
		return nil, err
	}
	if !startingHealth.Lt(e.params.MinHealthFactor) {
		return nil, ErrHealthFactorOk
	}

	tokenAmount, err := e.tokenAmountFromUsd(ctx, asset, debtToCover)
	if err != nil {
		return nil, err
	}
	bonus, err := mulDiv(tokenAmount, uint256.NewInt(e.params.LiquidationBonus), liquidationPrecision)
	if err != nil {
		return nil, err
	}
	seized, err := add(tokenAmount, bonus)
	if err != nil {
		return nil, err
	}

	if err := e.redeemCollateral(asset, seized, account, liquidator); err != nil {
		return nil, err
	}
	if err := e.burnDsc(debtToCover, account, liquidator); err != nil {
		return nil, err
	}

	endingHealth, err := e.healthFactor(ctx, account)
	if err != nil {
		return nil, err
	}
	if !endingHealth.Gt(startingHealth) {
		return nil, ErrHealthFactorNotImproved
	}
	if _, err := e.assertHealthy(ctx, liquidator); err != nil {
		return nil, err
	}

	result := &LiquidationResult{
		Account:            account,
		Liquidator:         liquidator,
		Token:              asset,
		DebtCovered:        debtToCover.Clone(),
		CollateralSeized:   seized,
		Bonus:              bonus,
		HealthFactorBefore: startingHealth,
		HealthFactorAfter:  endingHealth,
	}
	e.journal.Emit(events.Liquidated{
		Account:            account,
		Liquidator:         liquidator,
		Token:              asset,
		DebtCovered:        result.DebtCovered,
		CollateralSeized:   seized,
		Bonus:              bonus,
		HealthFactorBefore: startingHealth,
		HealthFactorAfter:  endingHealth,
	})
	return result, nil
}
