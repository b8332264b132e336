package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dscengine/core/types"
)

const (
	// TypeCollateralDeposited is emitted when an account locks collateral.
	TypeCollateralDeposited = "dsc.collateral.deposited"
	// TypeCollateralRedeemed is emitted whenever collateral leaves a position,
	// either back to its owner or to a liquidator.
	TypeCollateralRedeemed = "dsc.collateral.redeemed"
	// TypeDscMinted is emitted when debt is recorded and stable tokens minted.
	TypeDscMinted = "dsc.minted"
	// TypeDscBurned is emitted when debt is repaid and stable tokens burned.
	TypeDscBurned = "dsc.burned"
	// TypeLiquidated summarises a completed liquidation.
	TypeLiquidated = "dsc.liquidated"
)

type CollateralDeposited struct {
	User   common.Address
	Token  common.Address
	Amount *uint256.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralDeposited,
		Attributes: map[string]string{
			"user":   addressString(e.User),
			"token":  addressString(e.Token),
			"amount": amountString(e.Amount),
		},
	}
}

type CollateralRedeemed struct {
	From   common.Address
	To     common.Address
	Token  common.Address
	Amount *uint256.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

func (e CollateralRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralRedeemed,
		Attributes: map[string]string{
			"from":   addressString(e.From),
			"to":     addressString(e.To),
			"token":  addressString(e.Token),
			"amount": amountString(e.Amount),
		},
	}
}

type DscMinted struct {
	User   common.Address
	Amount *uint256.Int
	Debt   *uint256.Int
}

func (DscMinted) EventType() string { return TypeDscMinted }

func (e DscMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeDscMinted,
		Attributes: map[string]string{
			"user":   addressString(e.User),
			"amount": amountString(e.Amount),
			"debt":   amountString(e.Debt),
		},
	}
}

// DscBurned records a debt repayment. OnBehalfOf is the position whose debt
// shrank and Payer supplied the stable tokens; they differ during liquidation.
type DscBurned struct {
	OnBehalfOf common.Address
	Payer      common.Address
	Amount     *uint256.Int
	Debt       *uint256.Int
}

func (DscBurned) EventType() string { return TypeDscBurned }

func (e DscBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeDscBurned,
		Attributes: map[string]string{
			"onBehalfOf": addressString(e.OnBehalfOf),
			"payer":      addressString(e.Payer),
			"amount":     amountString(e.Amount),
			"debt":       amountString(e.Debt),
		},
	}
}

type Liquidated struct {
	Account            common.Address
	Liquidator         common.Address
	Token              common.Address
	DebtCovered        *uint256.Int
	CollateralSeized   *uint256.Int
	Bonus              *uint256.Int
	HealthFactorBefore *uint256.Int
	HealthFactorAfter  *uint256.Int
}

func (Liquidated) EventType() string { return TypeLiquidated }

func (e Liquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeLiquidated,
		Attributes: map[string]string{
			"account":            addressString(e.Account),
			"liquidator":         addressString(e.Liquidator),
			"token":              addressString(e.Token),
			"debtCovered":        amountString(e.DebtCovered),
			"collateralSeized":   amountString(e.CollateralSeized),
			"bonus":              amountString(e.Bonus),
			"healthFactorBefore": amountString(e.HealthFactorBefore),
			"healthFactorAfter":  amountString(e.HealthFactorAfter),
		},
	}
}
