package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestCollateralRedeemedEvent(t *testing.T) {
	from := common.HexToAddress("0x01")
	to := common.HexToAddress("0x02")
	token := common.HexToAddress("0x03")
	evt := CollateralRedeemed{From: from, To: to, Token: token, Amount: uint256.NewInt(44)}.Event()
	if evt.Type != TypeCollateralRedeemed {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["from"] != from.Hex() || evt.Attributes["to"] != to.Hex() {
		t.Fatalf("unexpected parties: %+v", evt.Attributes)
	}
	if evt.Attributes["amount"] != "44" {
		t.Fatalf("unexpected amount: %s", evt.Attributes["amount"])
	}
}

func TestTokenSupplyEvent(t *testing.T) {
	evt := TokenSupply{
		Token:  common.HexToAddress("0xd5c"),
		Total:  uint256.NewInt(5000),
		Delta:  uint256.NewInt(250),
		Reason: SupplyReasonMint,
	}.Event()
	if evt.Attributes["total"] != "5000" || evt.Attributes["delta"] != "250" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["reason"] != SupplyReasonMint {
		t.Fatalf("unexpected reason: %s", evt.Attributes["reason"])
	}
}

func TestNilAmountRendersZero(t *testing.T) {
	evt := DscMinted{User: common.HexToAddress("0x01")}.Event()
	if evt.Attributes["amount"] != "0" || evt.Attributes["debt"] != "0" {
		t.Fatalf("expected zero amounts, got %+v", evt.Attributes)
	}
}

func TestJournalCommitAndRollback(t *testing.T) {
	var rec Recorder
	j := NewJournal(Fanout{&rec, NoopEmitter{}, nil})

	j.Begin()
	j.Emit(DscMinted{Amount: uint256.NewInt(1)})
	j.Rollback()
	if got := len(rec.Events()); got != 0 {
		t.Fatalf("rolled back events leaked: %d", got)
	}

	j.Begin()
	j.Emit(DscMinted{Amount: uint256.NewInt(1)})
	j.Emit(DscBurned{Amount: uint256.NewInt(1)})
	if got := len(rec.Events()); got != 0 {
		t.Fatalf("events published before commit: %d", got)
	}
	j.Commit()
	got := rec.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventType() != TypeDscMinted || got[1].EventType() != TypeDscBurned {
		t.Fatalf("events out of order: %s, %s", got[0].EventType(), got[1].EventType())
	}
	if j.Pending() != 0 {
		t.Fatalf("journal not cleared after commit")
	}

	j.Emit(Approval{Amount: uint256.NewInt(3)})
	if got := len(rec.Events()); got != 3 {
		t.Fatalf("expected pass-through outside scope, got %d events", got)
	}
}
