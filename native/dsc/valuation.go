package dsc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// usdValue returns price * amount / 1e18, floored.
func (e *Engine) usdValue(ctx context.Context, asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	price, err := e.oracle.Price(ctx, asset)
	if err != nil {
		return nil, err
	}
	if isZero(amount) {
		return new(uint256.Int), nil
	}
	return mulDiv(price, amount, Precision)
}

// tokenAmountFromUsd returns usd * 1e18 / price, floored so the protocol never
// hands out more collateral than the USD amount buys.
func (e *Engine) tokenAmountFromUsd(ctx context.Context, asset common.Address, usd *uint256.Int) (*uint256.Int, error) {
	price, err := e.oracle.Price(ctx, asset)
	if err != nil {
		return nil, err
	}
	if isZero(usd) {
		return new(uint256.Int), nil
	}
	return mulDiv(usd, Precision, price)
}
