package dsc

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// GetAccountInformation returns account's outstanding debt and the USD value
// of its collateral.
func (e *Engine) GetAccountInformation(ctx context.Context, account common.Address) (AccountInformation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.accountInformation(ctx, account)
}

func (e *Engine) GetAccountCollateralValue(ctx context.Context, account common.Address) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collateralValueUsd(ctx, account)
}

// GetHealthFactor returns account's health factor at 1e18 scale.
func (e *Engine) GetHealthFactor(ctx context.Context, account common.Address) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.healthFactor(ctx, account)
}

// CalculateHealthFactor evaluates the health factor formula for arbitrary
// inputs, e.g. to preview a mint.
func (e *Engine) CalculateHealthFactor(debt, collateralUsd *uint256.Int) (*uint256.Int, error) {
	if collateralUsd == nil {
		collateralUsd = new(uint256.Int)
	}
	return e.calculateHealthFactor(debt, collateralUsd)
}

func (e *Engine) GetUsdValue(ctx context.Context, asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.usdValue(ctx, asset, amount)
}

func (e *Engine) GetTokenAmountFromUsd(ctx context.Context, asset common.Address, usd *uint256.Int) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tokenAmountFromUsd(ctx, asset, usd)
}

func (e *Engine) GetCollateralBalanceOfUser(account, asset common.Address) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Collateral(account, asset)
}

// GetPosition returns every collateral balance of account with its valuation.
func (e *Engine) GetPosition(ctx context.Context, account common.Address) (Position, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position(ctx, account)
}

func (e *Engine) position(ctx context.Context, account common.Address) (Position, error) {
	pos := Position{Account: account, Collateral: make(map[common.Address]*uint256.Int, e.registry.Len())}
	for _, asset := range e.registry.assets {
		amount, err := e.state.Collateral(account, asset)
		if err != nil {
			return Position{}, err
		}
		pos.Collateral[asset] = amount
	}
	info, err := e.accountInformation(ctx, account)
	if err != nil {
		return Position{}, err
	}
	pos.DebtMinted = info.TotalDscMinted
	pos.CollateralValueInUsd = info.CollateralValueInUsd
	if pos.HealthFactor, err = e.calculateHealthFactor(info.TotalDscMinted, info.CollateralValueInUsd); err != nil {
		return Position{}, err
	}
	return pos, nil
}

// LiquidatablePositions lists positions whose health factor is below the
// minimum. Accounts whose valuation fails are skipped; each one is reported as
// an *AccountError joined into the returned error, alongside the positions
// that could be valued.
func (e *Engine) LiquidatablePositions(ctx context.Context) ([]Position, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	accounts, err := e.state.Accounts()
	if err != nil {
		return nil, err
	}
	var (
		out     []Position
		skipped []error
	)
	for _, account := range accounts {
		pos, err := e.position(ctx, account)
		if err != nil {
			skipped = append(skipped, &AccountError{Account: account, Err: err})
			continue
		}
		if pos.HealthFactor.Lt(e.params.MinHealthFactor) {
			out = append(out, pos)
		}
	}
	return out, errors.Join(skipped...)
}

// GetCollateralTokens returns the listed collateral in registration order.
func (e *Engine) GetCollateralTokens() []common.Address { return e.registry.Assets() }

func (e *Engine) GetCollateralTokenPriceFeed(asset common.Address) (common.Address, bool) {
	return e.registry.Feed(asset)
}

func (e *Engine) GetDsc() common.Address { return e.stableAddr }

func (e *Engine) GetPrecision() *uint256.Int { return Precision.Clone() }

func (e *Engine) GetAdditionalFeedPrecision() *uint256.Int { return AdditionalFeedPrecision.Clone() }

func (e *Engine) GetLiquidationThreshold() uint64 { return e.params.LiquidationThreshold }

func (e *Engine) GetLiquidationBonus() uint64 { return e.params.LiquidationBonus }

func (e *Engine) GetMinHealthFactor() *uint256.Int { return e.params.MinHealthFactor.Clone() }

// Params returns a copy of the risk parameters.
func (e *Engine) Params() RiskParameters { return e.params.Clone() }
