package dsc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dscengine/core/events"
	"dscengine/core/state"
	nativecommon "dscengine/native/common"
	"dscengine/native/token"
	"dscengine/storage"
)

var (
	engineAddr = common.HexToAddress("0x00000000000000000000000000000000000e9915")
	dscAddr    = common.HexToAddress("0x0000000000000000000000000000000000000d5c")
	wethAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	wbtcAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	wethFeed   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	wbtcFeed   = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	user       = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	liquidator = common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

type stubFeeds struct {
	mu     sync.Mutex
	prices map[common.Address]Price
	calls  int
}

func newStubFeeds() *stubFeeds {
	return &stubFeeds{prices: make(map[common.Address]Price)}
}

func (s *stubFeeds) LatestPrice(_ context.Context, feed common.Address) (Price, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	p, ok := s.prices[feed]
	if !ok {
		return Price{}, errors.New("feed not found")
	}
	return p, nil
}

// setUSD publishes an 8-decimal answer of dollars whole USD.
func (s *stubFeeds) setUSD(feed common.Address, dollars uint64) {
	s.set(feed, Price{Answer: new(uint256.Int).Mul(uint256.NewInt(dollars), uint256.NewInt(100_000_000)), Decimals: 8, UpdatedAt: testNow})
}

func (s *stubFeeds) drop(feed common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, feed)
}

func (s *stubFeeds) set(feed common.Address, p Price) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[feed] = p
}

type harness struct {
	t        *testing.T
	engine   *Engine
	state    *state.StateDB
	weth     *token.Token
	wbtc     *token.Token
	dsc      *token.Stable
	feeds    *stubFeeds
	recorder *events.Recorder
}

func units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), Precision)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := state.New(storage.NewMemDB())
	weth := token.New(wethAddr, "WETH", 18, st)
	wbtc := token.New(wbtcAddr, "WBTC", 18, st)
	dsc := token.NewStable(dscAddr, "DSC", 18, engineAddr, st)
	feeds := newStubFeeds()
	feeds.setUSD(wethFeed, 2000)
	feeds.setUSD(wbtcFeed, 1000)
	rec := &events.Recorder{}

	engine, err := NewEngine(Config{
		Address:          engineAddr,
		CollateralTokens: []common.Address{wethAddr, wbtcAddr},
		PriceFeeds:       []common.Address{wethFeed, wbtcFeed},
		Stable:           dscAddr,
		Params:           DefaultRiskParameters(),
	}, Dependencies{
		State: st,
		Collateral: map[common.Address]CollateralToken{
			wethAddr: weth,
			wbtcAddr: wbtc,
		},
		Stable:  dsc,
		Prices:  feeds,
		Emitter: rec,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.WithClock(func() time.Time { return testNow })
	for _, tok := range []*token.Token{weth, wbtc, dsc.Token} {
		tok.SetEmitter(engine.EventSink())
	}
	for _, holder := range []common.Address{user, liquidator} {
		if err := weth.Fund(holder, units(100)); err != nil {
			t.Fatalf("fund weth: %v", err)
		}
		if err := wbtc.Fund(holder, units(100)); err != nil {
			t.Fatalf("fund wbtc: %v", err)
		}
	}
	if err := st.Commit(); err != nil {
		t.Fatalf("commit genesis: %v", err)
	}
	rec.Reset()
	return &harness{t: t, engine: engine, state: st, weth: weth, wbtc: wbtc, dsc: dsc, feeds: feeds, recorder: rec}
}

func (h *harness) approve(tok *token.Token, owner common.Address, amount *uint256.Int) {
	h.t.Helper()
	err := h.engine.Execute(context.Background(), "approve", func(context.Context) error {
		return tok.Approve(owner, engineAddr, amount)
	})
	if err != nil {
		h.t.Fatalf("approve: %v", err)
	}
}

func (h *harness) depositAndMint(account common.Address, collateral, debt *uint256.Int) {
	h.t.Helper()
	h.approve(h.weth, account, collateral)
	if err := h.engine.DepositCollateralAndMintDsc(context.Background(), account, wethAddr, collateral, debt); err != nil {
		h.t.Fatalf("deposit and mint: %v", err)
	}
}

func (h *harness) debt(account common.Address) *uint256.Int {
	h.t.Helper()
	info, err := h.engine.GetAccountInformation(context.Background(), account)
	if err != nil {
		h.t.Fatalf("account information: %v", err)
	}
	return info.TotalDscMinted
}

func (h *harness) collateral(account, asset common.Address) *uint256.Int {
	h.t.Helper()
	amount, err := h.engine.GetCollateralBalanceOfUser(account, asset)
	if err != nil {
		h.t.Fatalf("collateral balance: %v", err)
	}
	return amount
}

func (h *harness) balance(tok *token.Token, holder common.Address) *uint256.Int {
	h.t.Helper()
	bal, err := tok.BalanceOf(holder)
	if err != nil {
		h.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (h *harness) eventTypes() []string {
	var out []string
	for _, evt := range h.recorder.Events() {
		out = append(out, evt.EventType())
	}
	return out
}

func TestNewEngineRejectsMismatchedFeeds(t *testing.T) {
	_, err := NewEngine(Config{
		Address:          engineAddr,
		CollateralTokens: []common.Address{wethAddr, wbtcAddr},
		PriceFeeds:       []common.Address{wethFeed},
		Stable:           dscAddr,
		Params:           DefaultRiskParameters(),
	}, Dependencies{})
	if !errors.Is(err, ErrTokenAddressesAndPriceFeedAddressesMustBeSameLength) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
}

func TestNewEngineRejectsUnwiredCollateral(t *testing.T) {
	st := state.New(nil)
	_, err := NewEngine(Config{
		Address:          engineAddr,
		CollateralTokens: []common.Address{wethAddr},
		PriceFeeds:       []common.Address{wethFeed},
		Stable:           dscAddr,
		Params:           DefaultRiskParameters(),
	}, Dependencies{State: st, Stable: token.NewStable(dscAddr, "DSC", 18, engineAddr, st)})
	if err == nil {
		t.Fatalf("expected error for missing collateral token")
	}
}

func TestGetUsdValue(t *testing.T) {
	h := newHarness(t)
	got, err := h.engine.GetUsdValue(context.Background(), wethAddr, units(15))
	if err != nil {
		t.Fatalf("usd value: %v", err)
	}
	if !got.Eq(units(30000)) {
		t.Fatalf("usd value = %s, want %s", got.Dec(), units(30000).Dec())
	}
}

func TestGetTokenAmountFromUsd(t *testing.T) {
	h := newHarness(t)
	got, err := h.engine.GetTokenAmountFromUsd(context.Background(), wethAddr, units(100))
	if err != nil {
		t.Fatalf("token amount: %v", err)
	}
	want := uint256.NewInt(50_000_000_000_000_000)
	if !got.Eq(want) {
		t.Fatalf("token amount = %s, want %s", got.Dec(), want.Dec())
	}
}

func TestGetTokenAmountFromUsdFloors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cases := []struct {
		usd  uint64
		want uint64
	}{
		{usd: 1, want: 0},
		{usd: 1999, want: 0},
		{usd: 2000, want: 1},
		{usd: 3000, want: 1},
		{usd: 3999, want: 1},
		{usd: 4000, want: 2},
	}
	for _, tc := range cases {
		got, err := h.engine.GetTokenAmountFromUsd(ctx, wethAddr, uint256.NewInt(tc.usd))
		if err != nil {
			t.Fatalf("token amount for %d: %v", tc.usd, err)
		}
		if !got.Eq(uint256.NewInt(tc.want)) {
			t.Fatalf("token amount for %d usd wei = %s, want %d", tc.usd, got.Dec(), tc.want)
		}
	}
}

func TestValuationViewsSafeDuringClockSwap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.engine.WithClock(func() time.Time { return testNow })
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := h.engine.GetUsdValue(ctx, wethAddr, units(1)); err != nil {
				t.Errorf("usd value: %v", err)
				return
			}
			if _, err := h.engine.GetTokenAmountFromUsd(ctx, wethAddr, units(2000)); err != nil {
				t.Errorf("token amount: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestValuationRoundTripNeverGains(t *testing.T) {
	h := newHarness(t)
	// $1999.99999999 does not divide evenly.
	h.feeds.set(wethFeed, Price{Answer: uint256.NewInt(199_999_999_999), Decimals: 8, UpdatedAt: testNow})
	ctx := context.Background()
	amounts := []*uint256.Int{
		uint256.NewInt(1),
		uint256.NewInt(7),
		new(uint256.Int).AddUint64(Precision, 3),
		units(12345),
	}
	for _, amount := range amounts {
		usd, err := h.engine.GetUsdValue(ctx, wethAddr, amount)
		if err != nil {
			t.Fatalf("usd value: %v", err)
		}
		back, err := h.engine.GetTokenAmountFromUsd(ctx, wethAddr, usd)
		if err != nil {
			t.Fatalf("token amount: %v", err)
		}
		if back.Gt(amount) {
			t.Fatalf("round trip gained: %s -> %s", amount.Dec(), back.Dec())
		}
		if new(uint256.Int).Sub(amount, back).GtUint64(1) {
			t.Fatalf("round trip lost more than one unit: %s -> %s", amount.Dec(), back.Dec())
		}
	}
}

func TestDepositCollateral(t *testing.T) {
	h := newHarness(t)
	h.approve(h.weth, user, units(10))
	if err := h.engine.DepositCollateral(context.Background(), user, wethAddr, units(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := h.collateral(user, wethAddr); !got.Eq(units(10)) {
		t.Fatalf("collateral = %s", got.Dec())
	}
	if got := h.balance(h.weth, engineAddr); !got.Eq(units(10)) {
		t.Fatalf("engine custody = %s", got.Dec())
	}
	value, err := h.engine.GetAccountCollateralValue(context.Background(), user)
	if err != nil {
		t.Fatalf("collateral value: %v", err)
	}
	if !value.Eq(units(20000)) {
		t.Fatalf("collateral value = %s", value.Dec())
	}
	types := h.eventTypes()
	if len(types) == 0 || types[len(types)-1] != events.TypeCollateralDeposited {
		t.Fatalf("expected deposit event last, got %v", types)
	}
	deposited := h.recorder.Events()[len(types)-1].(events.CollateralDeposited)
	if deposited.User != user || deposited.Token != wethAddr || !deposited.Amount.Eq(units(10)) {
		t.Fatalf("unexpected deposit event: %+v", deposited)
	}
}

func TestDepositWithoutApprovalRevertsEverything(t *testing.T) {
	h := newHarness(t)
	err := h.engine.DepositCollateral(context.Background(), user, wethAddr, units(1))
	if !errors.Is(err, ErrTransferFailed) || !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected transfer failure, got %v", err)
	}
	if got := h.collateral(user, wethAddr); !got.IsZero() {
		t.Fatalf("ledger credited on failed transfer: %s", got.Dec())
	}
	if got := h.recorder.Events(); len(got) != 0 {
		t.Fatalf("events leaked from reverted deposit: %v", h.eventTypes())
	}
}

func TestDepositValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.engine.DepositCollateral(ctx, user, wethAddr, new(uint256.Int)); !errors.Is(err, ErrNeedsMoreThanZero) {
		t.Fatalf("expected ErrNeedsMoreThanZero, got %v", err)
	}
	random := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	if err := h.engine.DepositCollateral(ctx, user, random, units(1)); !errors.Is(err, ErrNotAllowedToken) {
		t.Fatalf("expected ErrNotAllowedToken, got %v", err)
	}
}

func TestMintAtExactMinimumSucceeds(t *testing.T) {
	h := newHarness(t)
	h.depositAndMint(user, units(10), units(10000))

	hf, err := h.engine.GetHealthFactor(context.Background(), user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if !hf.Eq(DefaultMinHealthFactor) {
		t.Fatalf("health factor = %s, want 1e18", hf.Dec())
	}
	if got := h.balance(h.dsc.Token, user); !got.Eq(units(10000)) {
		t.Fatalf("dsc balance = %s", got.Dec())
	}
}

func TestMintBreakingHealthFactorReverts(t *testing.T) {
	h := newHarness(t)
	h.approve(h.weth, user, units(10))
	if err := h.engine.DepositCollateral(context.Background(), user, wethAddr, units(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.recorder.Reset()

	err := h.engine.MintDsc(context.Background(), user, units(20000))
	var breaks *BreaksHealthFactorError
	if !errors.As(err, &breaks) {
		t.Fatalf("expected BreaksHealthFactorError, got %v", err)
	}
	if !errors.Is(err, ErrBreaksHealthFactor) {
		t.Fatalf("expected errors.Is ErrBreaksHealthFactor")
	}
	want := uint256.NewInt(500_000_000_000_000_000)
	if !breaks.HealthFactor.Eq(want) {
		t.Fatalf("health factor = %s, want %s", breaks.HealthFactor.Dec(), want.Dec())
	}
	if got := h.debt(user); !got.IsZero() {
		t.Fatalf("debt persisted: %s", got.Dec())
	}
	if got := h.collateral(user, wethAddr); !got.Eq(units(10)) {
		t.Fatalf("collateral changed: %s", got.Dec())
	}
	if got := h.balance(h.dsc.Token, user); !got.IsZero() {
		t.Fatalf("dsc minted despite revert: %s", got.Dec())
	}
	supply, err := h.dsc.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if !supply.IsZero() {
		t.Fatalf("supply changed: %s", supply.Dec())
	}
	if len(h.recorder.Events()) != 0 {
		t.Fatalf("events leaked: %v", h.eventTypes())
	}
}

func TestMintZeroRejected(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.MintDsc(context.Background(), user, new(uint256.Int)); !errors.Is(err, ErrNeedsMoreThanZero) {
		t.Fatalf("expected ErrNeedsMoreThanZero, got %v", err)
	}
}

func TestNoDebtHealthFactorIsMax(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hf, err := h.engine.GetHealthFactor(ctx, user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if !hf.Eq(MaxHealthFactor()) {
		t.Fatalf("empty account health factor = %s", hf.Dec())
	}
	h.approve(h.weth, user, units(1))
	if err := h.engine.DepositCollateral(ctx, user, wethAddr, units(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	hf, err = h.engine.GetHealthFactor(ctx, user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if !hf.Eq(MaxHealthFactor()) {
		t.Fatalf("debt-free account health factor = %s", hf.Dec())
	}
}

func TestHealthFactorMonotonicInCollateralAndDebt(t *testing.T) {
	h := newHarness(t)
	debt := units(1000)
	var prev *uint256.Int
	for _, collateral := range []uint64{1000, 2000, 5000, 5001, 100000} {
		hf, err := h.engine.CalculateHealthFactor(debt, units(collateral))
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		if prev != nil && hf.Lt(prev) {
			t.Fatalf("health factor decreased with more collateral: %s < %s", hf.Dec(), prev.Dec())
		}
		prev = hf
	}
	prev = nil
	for _, d := range []uint64{1, 10, 1000, 1001, 50000} {
		hf, err := h.engine.CalculateHealthFactor(units(d), units(10000))
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		if prev != nil && hf.Gt(prev) {
			t.Fatalf("health factor increased with more debt: %s > %s", hf.Dec(), prev.Dec())
		}
		prev = hf
	}
}

func TestRedeemCollateral(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(5000))

	if err := h.engine.RedeemCollateral(ctx, user, wethAddr, units(5)); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if got := h.collateral(user, wethAddr); !got.Eq(units(5)) {
		t.Fatalf("collateral = %s", got.Dec())
	}
	if got := h.balance(h.weth, user); !got.Eq(units(95)) {
		t.Fatalf("user weth = %s", got.Dec())
	}
	last := h.recorder.Events()
	redeemed, ok := last[len(last)-1].(events.Transfer)
	if !ok || redeemed.To != user {
		t.Fatalf("expected custody transfer after ledger debit, got %v", h.eventTypes())
	}

	err := h.engine.RedeemCollateral(ctx, user, wethAddr, uint256.NewInt(1))
	if !errors.Is(err, ErrBreaksHealthFactor) {
		t.Fatalf("expected ErrBreaksHealthFactor, got %v", err)
	}
	if got := h.collateral(user, wethAddr); !got.Eq(units(5)) {
		t.Fatalf("collateral changed after revert: %s", got.Dec())
	}
}

func TestRedeemMoreThanDepositedUnderflows(t *testing.T) {
	h := newHarness(t)
	h.approve(h.weth, user, units(2))
	if err := h.engine.DepositCollateral(context.Background(), user, wethAddr, units(2)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	err := h.engine.RedeemCollateral(context.Background(), user, wethAddr, units(3))
	if !errors.Is(err, ErrArithmeticUnderflow) {
		t.Fatalf("expected ErrArithmeticUnderflow, got %v", err)
	}
}

func TestBurnDsc(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(5000))
	h.approve(h.dsc.Token, user, units(5000))

	if err := h.engine.BurnDsc(ctx, user, units(6000)); !errors.Is(err, ErrArithmeticUnderflow) {
		t.Fatalf("expected ErrArithmeticUnderflow, got %v", err)
	}
	if got := h.debt(user); !got.Eq(units(5000)) {
		t.Fatalf("debt clamped on failed burn: %s", got.Dec())
	}

	if err := h.engine.BurnDsc(ctx, user, units(2000)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := h.debt(user); !got.Eq(units(3000)) {
		t.Fatalf("debt = %s", got.Dec())
	}
	supply, err := h.dsc.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if !supply.Eq(units(3000)) {
		t.Fatalf("supply = %s", supply.Dec())
	}
}

func TestRedeemCollateralForDscBurnsFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.depositAndMint(user, units(10), units(10000))
	h.approve(h.dsc.Token, user, units(10000))

	// Redeeming everything is only healthy because the burn lands first.
	if err := h.engine.RedeemCollateralForDsc(ctx, user, wethAddr, units(10), units(10000)); err != nil {
		t.Fatalf("redeem for dsc: %v", err)
	}
	if got := h.debt(user); !got.IsZero() {
		t.Fatalf("debt = %s", got.Dec())
	}
	if got := h.collateral(user, wethAddr); !got.IsZero() {
		t.Fatalf("collateral = %s", got.Dec())
	}
	types := h.eventTypes()
	burnedAt, redeemedAt := -1, -1
	for i, typ := range types {
		switch typ {
		case events.TypeDscBurned:
			burnedAt = i
		case events.TypeCollateralRedeemed:
			redeemedAt = i
		}
	}
	if burnedAt < 0 || redeemedAt < 0 || burnedAt > redeemedAt {
		t.Fatalf("expected burn before redeem, got %v", types)
	}
}

func TestStalePriceRejected(t *testing.T) {
	h := newHarness(t)
	h.feeds.set(wethFeed, Price{Answer: uint256.NewInt(2000_00000000), Decimals: 8, UpdatedAt: testNow.Add(-4 * time.Hour)})
	_, err := h.engine.GetUsdValue(context.Background(), wethAddr, units(1))
	if !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
}

func TestZeroPriceRejected(t *testing.T) {
	h := newHarness(t)
	h.feeds.set(wethFeed, Price{Answer: new(uint256.Int), Decimals: 8, UpdatedAt: testNow})
	_, err := h.engine.GetUsdValue(context.Background(), wethAddr, units(1))
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestEighteenDecimalFeedNormalised(t *testing.T) {
	h := newHarness(t)
	h.feeds.set(wbtcFeed, Price{Answer: units(30000), Decimals: 18, UpdatedAt: testNow})
	got, err := h.engine.GetUsdValue(context.Background(), wbtcAddr, units(2))
	if err != nil {
		t.Fatalf("usd value: %v", err)
	}
	if !got.Eq(units(60000)) {
		t.Fatalf("usd value = %s", got.Dec())
	}
}

func TestUnsupportedAssetValuation(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.GetUsdValue(context.Background(), common.HexToAddress("0x0bad"), units(1))
	if !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset, got %v", err)
	}
}

func TestMultiAssetCollateralValue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.approve(h.weth, user, units(1))
	h.approve(h.wbtc, user, units(3))
	if err := h.engine.DepositCollateral(ctx, user, wethAddr, units(1)); err != nil {
		t.Fatalf("deposit weth: %v", err)
	}
	if err := h.engine.DepositCollateral(ctx, user, wbtcAddr, units(3)); err != nil {
		t.Fatalf("deposit wbtc: %v", err)
	}
	value, err := h.engine.GetAccountCollateralValue(ctx, user)
	if err != nil {
		t.Fatalf("collateral value: %v", err)
	}
	if !value.Eq(units(5000)) {
		t.Fatalf("collateral value = %s, want 5000e18", value.Dec())
	}
}

func TestPausedEngineRejectsOperations(t *testing.T) {
	h := newHarness(t)
	pauses := nativecommon.NewPauseSwitch(ModuleName)
	h.engine.SetPauses(pauses)
	if err := h.engine.MintDsc(context.Background(), user, units(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	pauses.Set(ModuleName, false)
	h.approve(h.weth, user, units(1))
	if err := h.engine.DepositCollateral(context.Background(), user, wethAddr, units(1)); err != nil {
		t.Fatalf("deposit after resume: %v", err)
	}
}

func TestRiskParametersValidate(t *testing.T) {
	params := DefaultRiskParameters()
	params.LiquidationThreshold = 0
	if err := params.Validate(); err == nil {
		t.Fatalf("expected zero threshold to fail")
	}
	params = DefaultRiskParameters()
	params.LiquidationBonus = 100
	if err := params.Validate(); err == nil {
		t.Fatalf("expected 100%% bonus to fail")
	}
	params = DefaultRiskParameters()
	params.MinHealthFactor = nil
	if err := params.Validate(); err == nil {
		t.Fatalf("expected missing min health factor to fail")
	}
}

func TestReasonOf(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrHealthFactorOk, "health_factor_ok"},
		{&BreaksHealthFactorError{HealthFactor: uint256.NewInt(1)}, "breaks_health_factor"},
		{fmt.Errorf("%w: %w", ErrTransferFailed, token.ErrInsufficientBalance), "transfer_failed"},
		{nativecommon.ErrModulePaused, "paused"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := ReasonOf(tc.err); got != tc.want {
			t.Fatalf("ReasonOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
