package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"dscengine/native/dsc"
	"dscengine/native/token"
	"dscengine/services/dscd/app"
	"dscengine/services/oracle"
)

// precisionExp is the base-10 exponent of dsc.Precision.
const precisionExp = -18

type errorBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	HealthFactor string `json:"health_factor,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// writeEngineError maps engine and token failures onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := errorBody{Code: code, Message: err.Error()}
	var breaks *dsc.BreaksHealthFactorError
	if errors.As(err, &breaks) && breaks.HealthFactor != nil {
		body.HealthFactor = breaks.HealthFactor.Dec()
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func classify(err error) (int, string) {
	reason := dsc.ReasonOf(err)
	switch reason {
	case "needs_more_than_zero", "not_allowed_token", "unsupported_asset", "zero_address":
		return http.StatusBadRequest, reason
	case "breaks_health_factor", "health_factor_ok", "health_factor_not_improved",
		"arithmetic_underflow", "arithmetic_overflow", "transfer_failed", "mint_failed":
		return http.StatusUnprocessableEntity, reason
	case "stale_price", "invalid_price", "paused":
		return http.StatusServiceUnavailable, reason
	}
	switch {
	case errors.Is(err, app.ErrUnknownToken):
		return http.StatusNotFound, "unknown_token"
	case errors.Is(err, oracle.ErrNoAnswer):
		return http.StatusServiceUnavailable, "no_price"
	case errors.Is(err, token.ErrInsufficientBalance), errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, token.ErrZeroAddress), errors.Is(err, token.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_argument"
	}
	return http.StatusInternalServerError, "internal"
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

// parseAmount reads a base-unit integer. Zero is accepted so the engine can
// report it with its own error.
func parseAmount(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: amount required", field)
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	return value, nil
}

// display renders a 1e18 fixed-point value as a decimal string.
func display(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), precisionExp).String()
}

// displayHealthFactor is display with the debt-free sentinel spelled out.
func displayHealthFactor(v *uint256.Int) string {
	if v != nil && v.Eq(dsc.MaxHealthFactor()) {
		return "max"
	}
	return display(v)
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
