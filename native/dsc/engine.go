package dsc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dscengine/core/events"
	nativecommon "dscengine/native/common"
	"dscengine/observability"
)

// Config captures the construction-time listing and risk parameters.
type Config struct {
	// Address is the engine's custody account and the stable token minter.
	Address common.Address
	// CollateralTokens and PriceFeeds correspond positionally.
	CollateralTokens []common.Address
	PriceFeeds       []common.Address
	Stable           common.Address
	Params           RiskParameters
}

// Dependencies are the collaborators the engine drives.
type Dependencies struct {
	State      State
	Collateral map[common.Address]CollateralToken
	Stable     StableToken
	Prices     PriceSource
	// Emitter receives events of committed operations.
	Emitter events.Emitter
}

// Engine is the stablecoin accounting and risk core. Every mutating
// operation runs to completion under the engine lock and either commits all
// of its writes or none of them.
type Engine struct {
	mu sync.RWMutex

	address    common.Address
	stableAddr common.Address
	registry   *Registry
	params     RiskParameters
	oracle     *Oracle
	state      State
	collateral map[common.Address]CollateralToken
	stable     StableToken
	journal    *events.Journal
	pauses     nativecommon.PauseView
	clock      func() time.Time
	metrics    *observability.DSCMetrics
	tracer     trace.Tracer
}

// NewEngine validates the configuration and wires the collaborators. A
// mismatched token/feed listing fails before anything else is inspected.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	registry, err := NewRegistry(cfg.CollateralTokens, cfg.PriceFeeds)
	if err != nil {
		return nil, err
	}
	params := cfg.Params.Clone()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Address == (common.Address{}) || cfg.Stable == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if deps.State == nil {
		return nil, errNilState
	}
	if deps.Stable == nil {
		return nil, fmt.Errorf("dsc: stable token not configured")
	}
	collateral := make(map[common.Address]CollateralToken, registry.Len())
	for _, asset := range registry.assets {
		tok, ok := deps.Collateral[asset]
		if !ok || tok == nil {
			return nil, fmt.Errorf("dsc: collateral token %s not wired", asset.Hex())
		}
		collateral[asset] = tok
	}
	return &Engine{
		address:    cfg.Address,
		stableAddr: cfg.Stable,
		registry:   registry,
		params:     params,
		oracle:     NewOracle(registry, deps.Prices, params.MaxPriceAge),
		state:      deps.State,
		collateral: collateral,
		stable:     deps.Stable,
		journal:    events.NewJournal(deps.Emitter),
		clock:      time.Now,
		metrics:    observability.DSC(),
		tracer:     otel.Tracer("native/dsc"),
	}, nil
}

// SetPauses wires the pause switch consulted before every mutating operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses = p
}

// WithClock overrides the engine clock for deterministic tests. The oracle
// staleness check uses the same clock.
func (e *Engine) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
	e.oracle.WithClock(clock)
}

// EventSink is the emitter token collaborators should publish through so their
// events commit and roll back together with the engine's.
func (e *Engine) EventSink() events.Emitter { return e.journal }

// Address returns the engine custody account.
func (e *Engine) Address() common.Address { return e.address }

// View runs fn under the engine read lock so it never observes a
// half-applied operation.
func (e *Engine) View(fn func() error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn()
}

// Execute runs fn as one atomic operation: writes made through the shared
// state and events emitted through EventSink are kept only if fn succeeds.
// It is exported so hosts can run token approvals and transfers with the same
// guarantees as engine operations.
func (e *Engine) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return e.execute(ctx, operation, nil, fn)
}

func (e *Engine) execute(ctx context.Context, operation string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) (err error) {
	start := e.now()
	ctx, span := e.tracer.Start(ctx, "dsc."+operation, trace.WithAttributes(attrs...))
	defer span.End()
	defer func() {
		reason := ReasonOf(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, operation+" committed")
		}
		e.metrics.Observe(operation, e.now().Sub(start), reason)
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := e.state.Snapshot()
	e.journal.Begin()
	if err := fn(ctx); err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.journal.Rollback()
		slog.WarnContext(ctx, "dsc: operation reverted", "operation", operation, "reason", ReasonOf(err), "error", err)
		return err
	}
	if err := e.state.Commit(); err != nil {
		e.state.RevertToSnapshot(snapshot)
		e.journal.Rollback()
		return fmt.Errorf("dsc: commit %s: %w", operation, err)
	}
	e.journal.Commit()
	return nil
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) collateralToken(asset common.Address) (CollateralToken, error) {
	tok, ok := e.collateral[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowedToken, asset.Hex())
	}
	return tok, nil
}

func amountAttrs(caller, asset common.Address, amount *uint256.Int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("caller", caller.Hex())}
	if asset != (common.Address{}) {
		attrs = append(attrs, attribute.String("token", asset.Hex()))
	}
	if amount != nil {
		attrs = append(attrs, attribute.String("amount", amount.Dec()))
	}
	return attrs
}

// DepositCollateral pulls amount of asset from caller into engine custody and
// credits caller's position. caller must have approved the engine.
func (e *Engine) DepositCollateral(ctx context.Context, caller, asset common.Address, amount *uint256.Int) error {
	return e.execute(ctx, "deposit_collateral", amountAttrs(caller, asset, amount), func(ctx context.Context) error {
		return e.depositCollateral(caller, asset, amount)
	})
}

func (e *Engine) depositCollateral(caller, asset common.Address, amount *uint256.Int) error {
	if isZero(amount) {
		return ErrNeedsMoreThanZero
	}
	tok, err := e.collateralToken(asset)
	if err != nil {
		return err
	}
	if err := tok.TransferFrom(e.address, caller, e.address, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return e.deposit(caller, asset, amount)
}

// RedeemCollateral returns amount of asset to caller. The position must stay
// healthy afterwards.
func (e *Engine) RedeemCollateral(ctx context.Context, caller, asset common.Address, amount *uint256.Int) error {
	return e.execute(ctx, "redeem_collateral", amountAttrs(caller, asset, amount), func(ctx context.Context) error {
		if err := e.redeemCollateral(asset, amount, caller, caller); err != nil {
			return err
		}
		_, err := e.assertHealthy(ctx, caller)
		return err
	})
}

// redeemCollateral debits from before any tokens leave custody.
func (e *Engine) redeemCollateral(asset common.Address, amount *uint256.Int, from, to common.Address) error {
	if isZero(amount) {
		return ErrNeedsMoreThanZero
	}
	tok, err := e.collateralToken(asset)
	if err != nil {
		return err
	}
	if err := e.withdraw(from, to, asset, amount); err != nil {
		return err
	}
	if err := tok.Transfer(e.address, to, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

// MintDsc records amount of new debt for caller and mints the stable token
// to them.
func (e *Engine) MintDsc(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	return e.execute(ctx, "mint_dsc", amountAttrs(caller, common.Address{}, amount), func(ctx context.Context) error {
		return e.mintDsc(ctx, caller, amount)
	})
}

func (e *Engine) mintDsc(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	debt, err := e.recordDebt(caller, amount)
	if err != nil {
		return err
	}
	if err := e.stable.Mint(e.address, caller, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrMintFailed, err)
	}
	e.journal.Emit(events.DscMinted{User: caller, Amount: amount.Clone(), Debt: debt})
	hf, err := e.assertHealthy(ctx, caller)
	if err != nil {
		return err
	}
	e.metrics.RecordHealthFactor("mint_dsc", hf)
	return nil
}

// BurnDsc repays amount of caller's debt with stable tokens pulled from
// caller. Repaying debt can only improve health, so no check follows.
func (e *Engine) BurnDsc(ctx context.Context, caller common.Address, amount *uint256.Int) error {
	return e.execute(ctx, "burn_dsc", amountAttrs(caller, common.Address{}, amount), func(ctx context.Context) error {
		return e.burnDsc(amount, caller, caller)
	})
}

// burnDsc reduces onBehalfOf's debt using tokens supplied by payer.
func (e *Engine) burnDsc(amount *uint256.Int, onBehalfOf, payer common.Address) error {
	debt, err := e.reduceDebt(onBehalfOf, amount)
	if err != nil {
		return err
	}
	if err := e.stable.TransferFrom(e.address, payer, e.address, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := e.stable.Burn(e.address, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	e.journal.Emit(events.DscBurned{OnBehalfOf: onBehalfOf, Payer: payer, Amount: amount.Clone(), Debt: debt})
	return nil
}

// DepositCollateralAndMintDsc deposits and mints in one atomic step.
func (e *Engine) DepositCollateralAndMintDsc(ctx context.Context, caller, asset common.Address, collateralAmount, mintAmount *uint256.Int) error {
	attrs := amountAttrs(caller, asset, collateralAmount)
	if mintAmount != nil {
		attrs = append(attrs, attribute.String("mint", mintAmount.Dec()))
	}
	return e.execute(ctx, "deposit_collateral_and_mint_dsc", attrs, func(ctx context.Context) error {
		if err := e.depositCollateral(caller, asset, collateralAmount); err != nil {
			return err
		}
		return e.mintDsc(ctx, caller, mintAmount)
	})
}

// RedeemCollateralForDsc burns debt first so the closing health check sees
// the reduced debt, then redeems collateral.
func (e *Engine) RedeemCollateralForDsc(ctx context.Context, caller, asset common.Address, collateralAmount, burnAmount *uint256.Int) error {
	attrs := amountAttrs(caller, asset, collateralAmount)
	if burnAmount != nil {
		attrs = append(attrs, attribute.String("burn", burnAmount.Dec()))
	}
	return e.execute(ctx, "redeem_collateral_for_dsc", attrs, func(ctx context.Context) error {
		if err := e.burnDsc(burnAmount, caller, caller); err != nil {
			return err
		}
		if err := e.redeemCollateral(asset, collateralAmount, caller, caller); err != nil {
			return err
		}
		_, err := e.assertHealthy(ctx, caller)
		return err
	})
}
