package dsc

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dscengine/core/events"
)

func (e *Engine) deposit(account, asset common.Address, amount *uint256.Int) error {
	if isZero(amount) {
		return ErrNeedsMoreThanZero
	}
	if !e.registry.Contains(asset) {
		return fmt.Errorf("%w: %s", ErrNotAllowedToken, asset.Hex())
	}
	balance, err := e.state.Collateral(account, asset)
	if err != nil {
		return err
	}
	updated, err := add(balance, amount)
	if err != nil {
		return err
	}
	if err := e.state.SetCollateral(account, asset, updated); err != nil {
		return err
	}
	e.journal.Emit(events.CollateralDeposited{User: account, Token: asset, Amount: amount.Clone()})
	return nil
}

func (e *Engine) withdraw(from, to, asset common.Address, amount *uint256.Int) error {
	if isZero(amount) {
		return ErrNeedsMoreThanZero
	}
	balance, err := e.state.Collateral(from, asset)
	if err != nil {
		return err
	}
	updated, err := sub(balance, amount)
	if err != nil {
		return fmt.Errorf("%w: collateral %s below %s", err, balance.Dec(), amount.Dec())
	}
	if err := e.state.SetCollateral(from, asset, updated); err != nil {
		return err
	}
	e.journal.Emit(events.CollateralRedeemed{From: from, To: to, Token: asset, Amount: amount.Clone()})
	return nil
}

func (e *Engine) recordDebt(account common.Address, delta *uint256.Int) (*uint256.Int, error) {
	if isZero(delta) {
		return nil, ErrNeedsMoreThanZero
	}
	debt, err := e.state.Debt(account)
	if err != nil {
		return nil, err
	}
	updated, err := add(debt, delta)
	if err != nil {
		return nil, err
	}
	if err := e.state.SetDebt(account, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (e *Engine) reduceDebt(account common.Address, delta *uint256.Int) (*uint256.Int, error) {
	if isZero(delta) {
		return nil, ErrNeedsMoreThanZero
	}
	debt, err := e.state.Debt(account)
	if err != nil {
		return nil, err
	}
	updated, err := sub(debt, delta)
	if err != nil {
		return nil, fmt.Errorf("%w: debt %s below %s", err, debt.Dec(), delta.Dec())
	}
	if err := e.state.SetDebt(account, updated); err != nil {
		return nil, err
	}
	return updated, nil
}
