package token

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dscengine/core/events"
)

// Stable is the engine-controlled stable token. Only the minter may create or
// destroy supply.
type Stable struct {
	*Token
	minter common.Address
}

// NewStable returns a stable token whose supply is governed by minter.
func NewStable(address common.Address, symbol string, decimals uint8, minter common.Address, state State) *Stable {
	return &Stable{Token: New(address, symbol, decimals, state), minter: minter}
}

func (s *Stable) Minter() common.Address { return s.minter }

// Mint creates amount new tokens for to.
func (s *Stable) Mint(caller, to common.Address, amount *uint256.Int) error {
	if caller != s.minter {
		return ErrNotMinter
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	return s.credit(to, amount)
}

// Burn destroys amount tokens held by the minter itself.
func (s *Stable) Burn(caller common.Address, amount *uint256.Int) error {
	if caller != s.minter {
		return ErrNotMinter
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	balance, err := s.state.TokenBalance(s.address, caller)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	supply, err := s.state.TotalSupply(s.address)
	if err != nil {
		return err
	}
	if supply.Lt(amount) {
		return fmt.Errorf("token: burn exceeds supply %s", supply.Dec())
	}
	newSupply := new(uint256.Int).Sub(supply, amount)
	if err := s.state.SetTokenBalance(s.address, caller, new(uint256.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := s.state.SetTotalSupply(s.address, newSupply); err != nil {
		return err
	}
	s.emitter.Emit(events.Transfer{Token: s.address, From: caller, Amount: amount.Clone()})
	s.emitter.Emit(events.TokenSupply{Token: s.address, Total: newSupply, Delta: amount.Clone(), Reason: events.SupplyReasonBurn})
	return nil
}
