package dsc

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	nativecommon "dscengine/native/common"
)

var (
	ErrNeedsMoreThanZero                                  = errors.New("dsc engine: amount must be more than zero")
	ErrNotAllowedToken                                    = errors.New("dsc engine: token not allowed as collateral")
	ErrUnsupportedAsset                                   = errors.New("dsc engine: no price feed registered for asset")
	ErrTokenAddressesAndPriceFeedAddressesMustBeSameLength = errors.New("dsc engine: token addresses and price feed addresses must be same length")
	ErrDuplicateCollateral                                = errors.New("dsc engine: collateral token registered twice")
	ErrZeroAddress                                        = errors.New("dsc engine: zero address")
	ErrBreaksHealthFactor                                 = errors.New("dsc engine: breaks health factor")
	ErrHealthFactorOk                                     = errors.New("dsc engine: health factor ok")
	ErrHealthFactorNotImproved                            = errors.New("dsc engine: health factor not improved")
	ErrArithmeticUnderflow                                = errors.New("dsc engine: arithmetic underflow")
	ErrMathOverflow                                       = errors.New("dsc engine: arithmetic overflow")
	ErrStalePrice                                         = errors.New("dsc engine: stale price")
	ErrInvalidPrice                                       = errors.New("dsc engine: invalid price")
	ErrTransferFailed                                     = errors.New("dsc engine: transfer failed")
	ErrMintFailed                                         = errors.New("dsc engine: mint failed")
	errNilState                                           = errors.New("dsc engine: state not configured")
)

// BreaksHealthFactorError reports the post-operation health factor that fell
// below the configured minimum.
type BreaksHealthFactorError struct {
	HealthFactor *uint256.Int
}

func (e *BreaksHealthFactorError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBreaksHealthFactor.Error(), e.HealthFactor.Dec())
}

func (e *BreaksHealthFactorError) Is(target error) bool {
	return target == ErrBreaksHealthFactor
}

// AccountError ties a valuation failure to the account being scanned.
type AccountError struct {
	Account common.Address
	Err     error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("dsc engine: value %s: %v", e.Account.Hex(), e.Err)
}

func (e *AccountError) Unwrap() error { return e.Err }

// AccountErrors flattens the per-account failures joined into err.
func AccountErrors(err error) []*AccountError {
	if err == nil {
		return nil
	}
	var out []*AccountError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			out = append(out, AccountErrors(inner)...)
		}
		return out
	}
	var acct *AccountError
	if errors.As(err, &acct) {
		out = append(out, acct)
	}
	return out
}

var reasons = []struct {
	err  error
	code string
}{
	{ErrNeedsMoreThanZero, "needs_more_than_zero"},
	{ErrNotAllowedToken, "not_allowed_token"},
	{ErrUnsupportedAsset, "unsupported_asset"},
	{ErrTokenAddressesAndPriceFeedAddressesMustBeSameLength, "feed_length_mismatch"},
	{ErrDuplicateCollateral, "duplicate_collateral"},
	{ErrZeroAddress, "zero_address"},
	{ErrBreaksHealthFactor, "breaks_health_factor"},
	{ErrHealthFactorOk, "health_factor_ok"},
	{ErrHealthFactorNotImproved, "health_factor_not_improved"},
	{ErrArithmeticUnderflow, "arithmetic_underflow"},
	{ErrMathOverflow, "arithmetic_overflow"},
	{ErrStalePrice, "stale_price"},
	{ErrInvalidPrice, "invalid_price"},
	{ErrTransferFailed, "transfer_failed"},
	{ErrMintFailed, "mint_failed"},
	{nativecommon.ErrModulePaused, "paused"},
}

// ReasonOf maps err onto a stable machine-readable code. Nil yields "".
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return "internal"
}
