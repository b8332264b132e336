package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dscengine/core/types"
)

const (
	// TypeTransfer is emitted whenever a token balance moves between holders.
	TypeTransfer = "token.transfer"
	// TypeApproval is emitted when an allowance is set.
	TypeApproval = "token.approval"
	// TypeTokenSupply is emitted whenever a token supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonMint identifies mint driven supply increases.
	SupplyReasonMint = "mint"
	// SupplyReasonBurn identifies burn driven supply decreases.
	SupplyReasonBurn = "burn"
)

type Transfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTransfer,
		Attributes: map[string]string{
			"token":  addressString(e.Token),
			"from":   addressString(e.From),
			"to":     addressString(e.To),
			"amount": amountString(e.Amount),
		},
	}
}

type Approval struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{
		Type: TypeApproval,
		Attributes: map[string]string{
			"token":   addressString(e.Token),
			"owner":   addressString(e.Owner),
			"spender": addressString(e.Spender),
			"amount":  amountString(e.Amount),
		},
	}
}

// TokenSupply captures a supply delta for a fungible token.
type TokenSupply struct {
	Token  common.Address
	Total  *uint256.Int
	Delta  *uint256.Int
	Reason string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{
		"token": addressString(e.Token),
		"total": amountString(e.Total),
	}
	if e.Delta != nil {
		attrs["delta"] = e.Delta.Dec()
	}
	reason := e.Reason
	if reason == "" {
		reason = "unspecified"
	}
	attrs["reason"] = reason
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
