package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dscengine/config"
	"dscengine/core/events"
	"dscengine/core/state"
	nativecommon "dscengine/native/common"
	"dscengine/native/dsc"
	"dscengine/native/token"
	"dscengine/storage"
)

// App is a fully wired engine with its token collaborators over one state.
type App struct {
	Engine     *dsc.Engine
	State      *state.StateDB
	Stable     *token.Stable
	Collateral map[common.Address]*token.Token
	Pauses     *nativecommon.PauseSwitch
	Genesis    *config.Config
}

// New builds the engine described by genesis over db. Committed events are
// forwarded to sink.
func New(genesis *config.Config, db storage.Database, prices dsc.PriceSource, sink events.Emitter) (*App, error) {
	if genesis == nil {
		return nil, fmt.Errorf("genesis required")
	}
	engineCfg, err := genesis.EngineConfig()
	if err != nil {
		return nil, err
	}
	st := state.New(db)

	stableSpec := genesis.StableToken
	stable := token.NewStable(engineCfg.Stable, stableSpec.Symbol, stableSpec.Decimals, engineCfg.Address, st)
	collateral := make(map[common.Address]*token.Token, len(engineCfg.CollateralTokens))
	deps := make(map[common.Address]dsc.CollateralToken, len(engineCfg.CollateralTokens))
	for _, addr := range engineCfg.CollateralTokens {
		spec := genesis.TokenSpecFor(addr)
		tok := token.New(addr, spec.Symbol, spec.Decimals, st)
		collateral[addr] = tok
		deps[addr] = tok
	}

	engine, err := dsc.NewEngine(engineCfg, dsc.Dependencies{
		State:      st,
		Collateral: deps,
		Stable:     stable,
		Prices:     prices,
		Emitter:    sink,
	})
	if err != nil {
		return nil, err
	}
	stable.SetEmitter(engine.EventSink())
	for _, tok := range collateral {
		tok.SetEmitter(engine.EventSink())
	}
	pauses := nativecommon.NewPauseSwitch()
	engine.SetPauses(pauses)

	return &App{
		Engine:     engine,
		State:      st,
		Stable:     stable,
		Collateral: collateral,
		Pauses:     pauses,
		Genesis:    genesis,
	}, nil
}

// Token resolves any token the engine knows about, stable included.
func (a *App) Token(addr common.Address) (*token.Token, bool) {
	if addr == a.Stable.Address() {
		return a.Stable.Token, true
	}
	tok, ok := a.Collateral[addr]
	return tok, ok
}

// ApplyGenesis credits the genesis allocations once. A state whose collateral
// tokens already carry supply is treated as initialised.
func (a *App) ApplyGenesis(ctx context.Context) error {
	allocations, err := a.Genesis.ParsedAllocations()
	if err != nil {
		return err
	}
	if len(allocations) == 0 {
		return nil
	}
	for _, tok := range a.Collateral {
		supply, err := tok.TotalSupply()
		if err != nil {
			return err
		}
		if !supply.IsZero() {
			slog.InfoContext(ctx, "genesis already applied", "token", tok.Symbol())
			return nil
		}
	}
	return a.Engine.Execute(ctx, "genesis", func(context.Context) error {
		for _, alloc := range allocations {
			tok, ok := a.Collateral[alloc.Token]
			if !ok {
				return fmt.Errorf("%w: %s", dsc.ErrNotAllowedToken, alloc.Token.Hex())
			}
			if err := tok.Fund(alloc.Holder, alloc.Amount); err != nil {
				return fmt.Errorf("fund %s: %w", alloc.Holder.Hex(), err)
			}
		}
		return nil
	})
}

// Approve runs an allowance update with the engine's atomicity.
func (a *App) Approve(ctx context.Context, tokenAddr, owner, spender common.Address, amount *uint256.Int) error {
	tok, ok := a.Token(tokenAddr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, tokenAddr.Hex())
	}
	return a.Engine.Execute(ctx, "approve", func(context.Context) error {
		return tok.Approve(owner, spender, amount)
	})
}

// Transfer runs a token transfer with the engine's atomicity.
func (a *App) Transfer(ctx context.Context, tokenAddr, from, to common.Address, amount *uint256.Int) error {
	tok, ok := a.Token(tokenAddr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, tokenAddr.Hex())
	}
	return a.Engine.Execute(ctx, "transfer", func(context.Context) error {
		return tok.Transfer(from, to, amount)
	})
}

// BalanceOf reads a token balance consistently with in-flight operations.
func (a *App) BalanceOf(tokenAddr, account common.Address) (*uint256.Int, error) {
	tok, ok := a.Token(tokenAddr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, tokenAddr.Hex())
	}
	var balance *uint256.Int
	err := a.Engine.View(func() error {
		var err error
		balance, err = tok.BalanceOf(account)
		return err
	})
	return balance, err
}

// Allowance reads a token allowance consistently with in-flight operations.
func (a *App) Allowance(tokenAddr, owner, spender common.Address) (*uint256.Int, error) {
	tok, ok := a.Token(tokenAddr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, tokenAddr.Hex())
	}
	var allowance *uint256.Int
	err := a.Engine.View(func() error {
		var err error
		allowance, err = tok.Allowance(owner, spender)
		return err
	})
	return allowance, err
}

// SetPaused toggles the engine pause switch.
func (a *App) SetPaused(paused bool) {
	a.Pauses.Set(dsc.ModuleName, paused)
}

// Paused reports whether mutating engine operations are rejected.
func (a *App) Paused() bool {
	return a.Pauses.IsPaused(dsc.ModuleName)
}
