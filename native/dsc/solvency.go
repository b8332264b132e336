package dsc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// collateralValueUsd sums the USD value of every registered asset held by
// account. Assets with a zero balance are skipped without touching the feed.
func (e *Engine) collateralValueUsd(ctx context.Context, account common.Address) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, asset := range e.registry.assets {
		amount, err := e.state.Collateral(account, asset)
		if err != nil {
			return nil, err
		}
		if amount.IsZero() {
			continue
		}
		value, err := e.usdValue(ctx, asset, amount)
		if err != nil {
			return nil, err
		}
		if total, err = add(total, value); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func (e *Engine) accountInformation(ctx context.Context, account common.Address) (AccountInformation, error) {
	debt, err := e.state.Debt(account)
	if err != nil {
		return AccountInformation{}, err
	}
	value, err := e.collateralValueUsd(ctx, account)
	if err != nil {
		return AccountInformation{}, err
	}
	return AccountInformation{TotalDscMinted: debt, CollateralValueInUsd: value}, nil
}

func (e *Engine) healthFactor(ctx context.Context, account common.Address) (*uint256.Int, error) {
	info, err := e.accountInformation(ctx, account)
	if err != nil {
		return nil, err
	}
	return e.calculateHealthFactor(info.TotalDscMinted, info.CollateralValueInUsd)
}

// calculateHealthFactor returns (collateral * threshold / 100) * 1e18 / debt,
// or MaxHealthFactor when there is no debt.
func (e *Engine) calculateHealthFactor(debt, collateralUsd *uint256.Int) (*uint256.Int, error) {
	if isZero(debt) {
		return MaxHealthFactor(), nil
	}
	adjusted, err := mulDiv(collateralUsd, uint256.NewInt(e.params.LiquidationThreshold), liquidationPrecision)
	if err != nil {
		return nil, err
	}
	return mulDiv(adjusted, Precision, debt)
}

// assertHealthy must run against the post-state of an operation. It returns
// the health factor it checked.
func (e *Engine) assertHealthy(ctx context.Context, account common.Address) (*uint256.Int, error) {
	hf, err := e.healthFactor(ctx, account)
	if err != nil {
		return nil, err
	}
	if hf.Lt(e.params.MinHealthFactor) {
		return hf, &BreaksHealthFactorError{HealthFactor: hf}
	}
	return hf, nil
}
