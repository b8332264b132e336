package app

import (
	"context"
	"log/slog"

	"dscengine/native/dsc"
	"dscengine/services/oracle"
)

// LiquidationWatcher logs undercollateralised positions after every oracle
// round. Accounts that cannot be valued are logged and skipped; the remaining
// positions are still reported.
func (a *App) LiquidationWatcher(logger *slog.Logger) oracle.Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return oracle.PublisherFunc(func(ctx context.Context, update oracle.Update) error {
		positions, err := a.Engine.LiquidatablePositions(ctx)
		skipped := dsc.AccountErrors(err)
		if err != nil && len(skipped) == 0 {
			return err
		}
		for _, acct := range skipped {
			logger.WarnContext(ctx, "dscd: liquidation scan skipped account",
				"account", acct.Account.Hex(),
				"reason", dsc.ReasonOf(acct.Err),
				"error", acct.Err,
				"feed", update.Feed.Hex())
		}
		for _, p := range positions {
			logger.WarnContext(ctx, "dscd: position liquidatable",
				"account", p.Account.Hex(),
				"health_factor", p.HealthFactor.Dec(),
				"debt", p.DebtMinted.Dec(),
				"feed", update.Feed.Hex())
		}
		return nil
	})
}
