package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dscengine/core/events"
	"dscengine/core/state"
)

var (
	wethAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	dscAddr    = common.HexToAddress("0x0000000000000000000000000000000000000d5c")
	engineAddr = common.HexToAddress("0x00000000000000000000000000000000000e9915")
	alice      = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func mustBalance(t *testing.T, tok *Token, holder common.Address) uint64 {
	t.Helper()
	bal, err := tok.BalanceOf(holder)
	if err != nil {
		t.Fatalf("balance of %s: %v", holder.Hex(), err)
	}
	return bal.Uint64()
}

func TestTransferMovesBalance(t *testing.T) {
	tok := New(wethAddr, "weth", 18, state.New(nil))
	var rec events.Recorder
	tok.SetEmitter(&rec)
	if err := tok.Fund(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := tok.Transfer(alice, bob, uint256.NewInt(30)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := mustBalance(t, tok, alice); got != 70 {
		t.Fatalf("alice balance = %d, want 70", got)
	}
	if got := mustBalance(t, tok, bob); got != 30 {
		t.Fatalf("bob balance = %d, want 30", got)
	}
	if tok.Symbol() != "WETH" {
		t.Fatalf("symbol not normalised: %s", tok.Symbol())
	}
	last := rec.Events()[len(rec.Events())-1]
	if last.EventType() != events.TypeTransfer {
		t.Fatalf("expected transfer event, got %s", last.EventType())
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	tok := New(wethAddr, "WETH", 18, state.New(nil))
	if err := tok.Fund(alice, uint256.NewInt(5)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	err := tok.Transfer(alice, bob, uint256.NewInt(6))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := mustBalance(t, tok, alice); got != 5 {
		t.Fatalf("balance changed on failure: %d", got)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	tok := New(wethAddr, "WETH", 18, state.New(nil))
	if err := tok.Fund(alice, uint256.NewInt(50)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := tok.Approve(alice, engineAddr, uint256.NewInt(20)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.TransferFrom(engineAddr, alice, engineAddr, uint256.NewInt(15)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	allowance, err := tok.Allowance(alice, engineAddr)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Uint64() != 5 {
		t.Fatalf("allowance = %d, want 5", allowance.Uint64())
	}
	err = tok.TransferFrom(engineAddr, alice, engineAddr, uint256.NewInt(6))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestApproveRejectsZeroSpender(t *testing.T) {
	tok := New(wethAddr, "WETH", 18, state.New(nil))
	if err := tok.Approve(alice, common.Address{}, uint256.NewInt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
}

func TestStableMintBurnRestrictedToMinter(t *testing.T) {
	st := state.New(nil)
	dsc := NewStable(dscAddr, "DSC", 18, engineAddr, st)

	if err := dsc.Mint(alice, alice, uint256.NewInt(1)); !errors.Is(err, ErrNotMinter) {
		t.Fatalf("expected ErrNotMinter, got %v", err)
	}
	if err := dsc.Mint(engineAddr, alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	supply, err := dsc.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Uint64() != 100 {
		t.Fatalf("supply = %d, want 100", supply.Uint64())
	}

	if err := dsc.Approve(alice, engineAddr, uint256.NewInt(40)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := dsc.TransferFrom(engineAddr, alice, engineAddr, uint256.NewInt(40)); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if err := dsc.Burn(alice, uint256.NewInt(40)); !errors.Is(err, ErrNotMinter) {
		t.Fatalf("expected ErrNotMinter, got %v", err)
	}
	if err := dsc.Burn(engineAddr, uint256.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := dsc.Burn(engineAddr, uint256.NewInt(40)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	supply, err = dsc.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Uint64() != 60 {
		t.Fatalf("supply = %d, want 60", supply.Uint64())
	}
	if got := mustBalance(t, dsc.Token, engineAddr); got != 0 {
		t.Fatalf("engine balance = %d, want 0", got)
	}
}

func TestStableRejectsZeroMint(t *testing.T) {
	dsc := NewStable(dscAddr, "DSC", 18, engineAddr, state.New(nil))
	if err := dsc.Mint(engineAddr, alice, new(uint256.Int)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
