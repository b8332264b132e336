package dsc

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Price is a raw feed answer.
type Price struct {
	Answer    *uint256.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// CollateralAsset pairs a collateral token with its USD price feed.
type CollateralAsset struct {
	Token     common.Address
	PriceFeed common.Address
}

// AccountInformation is the solvency summary of an account.
type AccountInformation struct {
	TotalDscMinted       *uint256.Int
	CollateralValueInUsd *uint256.Int
}

// Position is a full snapshot of an account's holdings.
type Position struct {
	Account              common.Address
	Collateral           map[common.Address]*uint256.Int
	DebtMinted           *uint256.Int
	CollateralValueInUsd *uint256.Int
	HealthFactor         *uint256.Int
}

// LiquidationResult describes a completed liquidation.
type LiquidationResult struct {
	Account            common.Address
	Liquidator         common.Address
	Token              common.Address
	DebtCovered        *uint256.Int
	CollateralSeized   *uint256.Int
	Bonus              *uint256.Int
	HealthFactorBefore *uint256.Int
	HealthFactorAfter  *uint256.Int
}

// State is the journaled store behind the account ledger. core/state.StateDB
// satisfies it.
type State interface {
	Collateral(account, asset common.Address) (*uint256.Int, error)
	SetCollateral(account, asset common.Address, amount *uint256.Int) error
	Debt(account common.Address) (*uint256.Int, error)
	SetDebt(account common.Address, amount *uint256.Int) error
	Accounts() ([]common.Address, error)
	Snapshot() int
	RevertToSnapshot(id int)
	Commit() error
}

// CollateralToken is the custody surface the engine needs from a collateral
// token.
type CollateralToken interface {
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// StableToken is the engine-governed stable asset.
type StableToken interface {
	CollateralToken
	Mint(caller, to common.Address, amount *uint256.Int) error
	Burn(caller common.Address, amount *uint256.Int) error
}
