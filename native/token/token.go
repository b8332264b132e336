package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dscengine/core/events"
)

var (
	ErrZeroAddress           = errors.New("token: zero address")
	ErrInsufficientBalance   = errors.New("token: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrBalanceOverflow       = errors.New("token: balance overflow")
	ErrNotMinter             = errors.New("token: caller is not the minter")
	ErrInvalidAmount         = errors.New("token: amount must be positive")
)

// State is the balance store a token operates on. core/state.StateDB
// satisfies it.
type State interface {
	TokenBalance(token, holder common.Address) (*uint256.Int, error)
	SetTokenBalance(token, holder common.Address, amount *uint256.Int) error
	Allowance(token, owner, spender common.Address) (*uint256.Int, error)
	SetAllowance(token, owner, spender common.Address, amount *uint256.Int) error
	TotalSupply(token common.Address) (*uint256.Int, error)
	SetTotalSupply(token common.Address, amount *uint256.Int) error
}

// Token is a fungible balance ledger with allowance-based delegated
// transfers.
type Token struct {
	address  common.Address
	symbol   string
	decimals uint8
	state    State
	emitter  events.Emitter
}

// New returns a token bound to address. Balances live in state.
func New(address common.Address, symbol string, decimals uint8, state State) *Token {
	return &Token{
		address:  address,
		symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		decimals: decimals,
		state:    state,
		emitter:  events.NoopEmitter{},
	}
}

// SetEmitter configures where Transfer and Approval events go.
func (t *Token) SetEmitter(emitter events.Emitter) {
	if t == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	t.emitter = emitter
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

func (t *Token) BalanceOf(holder common.Address) (*uint256.Int, error) {
	return t.state.TokenBalance(t.address, holder)
}

func (t *Token) Allowance(owner, spender common.Address) (*uint256.Int, error) {
	return t.state.Allowance(t.address, owner, spender)
}

func (t *Token) TotalSupply() (*uint256.Int, error) {
	return t.state.TotalSupply(t.address)
}

// Approve sets the allowance spender may draw from owner, replacing any
// previous value.
func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	if err := t.state.SetAllowance(t.address, owner, spender, amount); err != nil {
		return err
	}
	t.emitter.Emit(events.Approval{Token: t.address, Owner: owner, Spender: spender, Amount: amount.Clone()})
	return nil
}

// Transfer moves amount from the caller's balance to to.
func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	return t.move(from, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// the allowance from granted to spender.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	allowance, err := t.state.Allowance(t.address, from, spender)
	if err != nil {
		return err
	}
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance.Dec(), amount.Dec())
	}
	remaining := new(uint256.Int).Sub(allowance, amount)
	if err := t.state.SetAllowance(t.address, from, spender, remaining); err != nil {
		return err
	}
	return t.move(from, to, amount)
}

func (t *Token) move(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	fromBalance, err := t.state.TokenBalance(t.address, from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance.Dec(), amount.Dec())
	}
	if from != to {
		toBalance, err := t.state.TokenBalance(t.address, to)
		if err != nil {
			return err
		}
		credited, overflow := new(uint256.Int).AddOverflow(toBalance, amount)
		if overflow {
			return ErrBalanceOverflow
		}
		if err := t.state.SetTokenBalance(t.address, from, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := t.state.SetTokenBalance(t.address, to, credited); err != nil {
			return err
		}
	}
	t.emitter.Emit(events.Transfer{Token: t.address, From: from, To: to, Amount: amount.Clone()})
	return nil
}

// credit mints new units to holder, growing total supply.
func (t *Token) credit(holder common.Address, amount *uint256.Int) error {
	if holder == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, err := t.state.TotalSupply(t.address)
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	balance, err := t.state.TokenBalance(t.address, holder)
	if err != nil {
		return err
	}
	if err := t.state.SetTokenBalance(t.address, holder, new(uint256.Int).Add(balance, amount)); err != nil {
		return err
	}
	if err := t.state.SetTotalSupply(t.address, newSupply); err != nil {
		return err
	}
	t.emitter.Emit(events.Transfer{Token: t.address, To: holder, Amount: amount.Clone()})
	t.emitter.Emit(events.TokenSupply{Token: t.address, Total: newSupply, Delta: amount.Clone(), Reason: events.SupplyReasonMint})
	return nil
}

// Fund credits holder without any authority check. It is meant for genesis
// allocations and tests.
func (t *Token) Fund(holder common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	return t.credit(holder, amount)
}
