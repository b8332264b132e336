package dsc

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dscengine/core/events"
)

func scaled(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), uint256.NewInt(1_000_000_000_000_000))
}

// fundLiquidator gives the liquidator stable tokens through a healthy
// position of its own and approves the engine to pull them.
func (h *harness) fundLiquidator(collateral, debt *uint256.Int) {
	h.t.Helper()
	h.depositAndMint(liquidator, collateral, debt)
	h.approve(h.dsc.Token, liquidator, debt)
}

func TestLiquidateHealthyAccountRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(5000))
	h.fundLiquidator(units(20), units(5000))
	h.feeds.setUSD(wethFeed, 1250)

	hf, err := h.engine.GetHealthFactor(ctx, user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if !hf.Eq(scaled(1250)) {
		t.Fatalf("health factor = %s, want 1.25e18", hf.Dec())
	}
	h.recorder.Reset()

	_, err = h.engine.Liquidate(ctx, liquidator, wethAddr, user, units(1000))
	if !errors.Is(err, ErrHealthFactorOk) {
		t.Fatalf("expected ErrHealthFactorOk, got %v", err)
	}
	if got := h.collateral(user, wethAddr); !got.Eq(units(10)) {
		t.Fatalf("collateral changed: %s", got.Dec())
	}
	if got := h.debt(user); !got.Eq(units(5000)) {
		t.Fatalf("debt changed: %s", got.Dec())
	}
	if got := h.balance(h.dsc.Token, liquidator); !got.Eq(units(5000)) {
		t.Fatalf("liquidator dsc changed: %s", got.Dec())
	}
	if len(h.recorder.Events()) != 0 {
		t.Fatalf("events leaked: %v", h.eventTypes())
	}
}

func TestLiquidateImprovesHealthFactor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(10000))
	h.fundLiquidator(units(20), units(5000))
	h.feeds.setUSD(wethFeed, 1250)
	h.recorder.Reset()

	wethBefore := h.balance(h.weth, liquidator)
	res, err := h.engine.Liquidate(ctx, liquidator, wethAddr, user, units(5000))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	if !res.HealthFactorBefore.Eq(scaled(625)) {
		t.Fatalf("starting health factor = %s, want 0.625e18", res.HealthFactorBefore.Dec())
	}
	if !res.HealthFactorAfter.Eq(scaled(700)) {
		t.Fatalf("ending health factor = %s, want 0.7e18", res.HealthFactorAfter.Dec())
	}
	if !res.CollateralSeized.Eq(scaled(4400)) || !res.Bonus.Eq(scaled(400)) {
		t.Fatalf("seized %s with bonus %s", res.CollateralSeized.Dec(), res.Bonus.Dec())
	}
	if got := h.collateral(user, wethAddr); !got.Eq(scaled(5600)) {
		t.Fatalf("remaining collateral = %s", got.Dec())
	}
	if got := h.debt(user); !got.Eq(units(5000)) {
		t.Fatalf("remaining debt = %s", got.Dec())
	}
	gained := new(uint256.Int).Sub(h.balance(h.weth, liquidator), wethBefore)
	if !gained.Eq(scaled(4400)) {
		t.Fatalf("liquidator received %s", gained.Dec())
	}
	if got := h.balance(h.dsc.Token, liquidator); !got.IsZero() {
		t.Fatalf("liquidator dsc = %s", got.Dec())
	}
	supply, err := h.dsc.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if !supply.Eq(units(10000)) {
		t.Fatalf("supply = %s, want 10000e18", supply.Dec())
	}

	var redeemed *events.CollateralRedeemed
	var liquidated *events.Liquidated
	for _, evt := range h.recorder.Events() {
		switch e := evt.(type) {
		case events.CollateralRedeemed:
			redeemed = &e
		case events.Liquidated:
			liquidated = &e
		}
	}
	if redeemed == nil || redeemed.From != user || redeemed.To != liquidator {
		t.Fatalf("expected redemption from account to liquidator, got %+v", redeemed)
	}
	if liquidated == nil || !liquidated.DebtCovered.Eq(units(5000)) {
		t.Fatalf("expected liquidation event, got %+v", liquidated)
	}
	types := h.eventTypes()
	if types[len(types)-1] != events.TypeLiquidated {
		t.Fatalf("liquidation event must close the operation, got %v", types)
	}
}

func TestLiquidateRejectsWhenHealthDoesNotImprove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(10000))
	h.fundLiquidator(units(20), units(1000))
	// At $1050 the 10% bonus seizes more value than the debt it clears.
	h.feeds.setUSD(wethFeed, 1050)

	_, err := h.engine.Liquidate(ctx, liquidator, wethAddr, user, units(1000))
	if !errors.Is(err, ErrHealthFactorNotImproved) {
		t.Fatalf("expected ErrHealthFactorNotImproved, got %v", err)
	}
	if got := h.collateral(user, wethAddr); !got.Eq(units(10)) {
		t.Fatalf("collateral seized despite revert: %s", got.Dec())
	}
	if got := h.balance(h.dsc.Token, liquidator); !got.Eq(units(1000)) {
		t.Fatalf("liquidator dsc burned despite revert: %s", got.Dec())
	}
}

func TestLiquidateOverSeizureAbortsWhole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(10000))
	h.fundLiquidator(units(100), units(10000))
	h.feeds.setUSD(wethFeed, 100)

	_, err := h.engine.Liquidate(ctx, liquidator, wethAddr, user, units(10000))
	if !errors.Is(err, ErrArithmeticUnderflow) {
		t.Fatalf("expected ErrArithmeticUnderflow, got %v", err)
	}
	if got := h.collateral(user, wethAddr); !got.Eq(units(10)) {
		t.Fatalf("partial seizure persisted: %s", got.Dec())
	}
	if got := h.debt(user); !got.Eq(units(10000)) {
		t.Fatalf("debt changed: %s", got.Dec())
	}
}

func TestLiquidateRequiresLiquidatorSolvency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(10000))
	h.fundLiquidator(units(10), units(10000))
	h.feeds.setUSD(wethFeed, 1250)

	_, err := h.engine.Liquidate(ctx, liquidator, wethAddr, user, units(5000))
	var breaks *BreaksHealthFactorError
	if !errors.As(err, &breaks) {
		t.Fatalf("expected BreaksHealthFactorError for liquidator, got %v", err)
	}
	if !breaks.HealthFactor.Eq(scaled(625)) {
		t.Fatalf("liquidator health factor = %s", breaks.HealthFactor.Dec())
	}
	if got := h.debt(user); !got.Eq(units(10000)) {
		t.Fatalf("debt changed: %s", got.Dec())
	}
}

func TestLiquidateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.engine.Liquidate(ctx, liquidator, wethAddr, user, new(uint256.Int)); !errors.Is(err, ErrNeedsMoreThanZero) {
		t.Fatalf("expected ErrNeedsMoreThanZero, got %v", err)
	}
	if _, err := h.engine.Liquidate(ctx, liquidator, common.HexToAddress("0x0bad"), user, units(1)); !errors.Is(err, ErrNotAllowedToken) {
		t.Fatalf("expected ErrNotAllowedToken, got %v", err)
	}
	if _, err := h.engine.Liquidate(ctx, liquidator, wethAddr, user, units(1)); !errors.Is(err, ErrHealthFactorOk) {
		t.Fatalf("debt-free account must not be liquidatable, got %v", err)
	}
}

func TestLiquidatablePositions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(10000))
	h.fundLiquidator(units(40), units(5000))
	h.feeds.setUSD(wethFeed, 1250)

	positions, err := h.engine.LiquidatablePositions(ctx)
	if err != nil {
		t.Fatalf("liquidatable positions: %v", err)
	}
	if len(positions) != 1 || positions[0].Account != user {
		t.Fatalf("expected only the user position, got %+v", positions)
	}
	if !positions[0].HealthFactor.Eq(scaled(625)) {
		t.Fatalf("health factor = %s", positions[0].HealthFactor.Dec())
	}
}

func TestLiquidatablePositionsSkipsUnpricedAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(10000))
	h.approve(h.wbtc, liquidator, units(5))
	if err := h.engine.DepositCollateral(ctx, liquidator, wbtcAddr, units(5)); err != nil {
		t.Fatalf("deposit wbtc: %v", err)
	}
	h.feeds.drop(wbtcFeed)
	h.feeds.setUSD(wethFeed, 1250)

	positions, err := h.engine.LiquidatablePositions(ctx)
	if err == nil {
		t.Fatalf("expected the unpriced account to be reported")
	}
	if len(positions) != 1 || positions[0].Account != user {
		t.Fatalf("expected the user position despite the failure, got %+v", positions)
	}
	if !positions[0].HealthFactor.Eq(scaled(625)) {
		t.Fatalf("health factor = %s", positions[0].HealthFactor.Dec())
	}
	skipped := AccountErrors(err)
	if len(skipped) != 1 || skipped[0].Account != liquidator {
		t.Fatalf("skipped accounts = %+v", skipped)
	}
}
