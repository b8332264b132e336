package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"dscengine/native/dsc"
	"dscengine/services/dscd/indexer"
	"dscengine/services/dscd/storage"
	"dscengine/services/oracle"
)

type collateralAssetResponse struct {
	Token     string `json:"token"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	PriceFeed string `json:"price_feed"`
}

type paramsResponse struct {
	Dsc                     string                    `json:"dsc"`
	Engine                  string                    `json:"engine"`
	CollateralTokens        []collateralAssetResponse `json:"collateral_tokens"`
	LiquidationThreshold    uint64                    `json:"liquidation_threshold"`
	LiquidationBonus        uint64                    `json:"liquidation_bonus"`
	MinHealthFactor         string                    `json:"min_health_factor"`
	Precision               string                    `json:"precision"`
	AdditionalFeedPrecision string                    `json:"additional_feed_precision"`
	MaxPriceAge             string                    `json:"max_price_age"`
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	engine := s.app.Engine
	params := engine.Params()
	resp := paramsResponse{
		Dsc:                     engine.GetDsc().Hex(),
		Engine:                  engine.Address().Hex(),
		LiquidationThreshold:    engine.GetLiquidationThreshold(),
		LiquidationBonus:        engine.GetLiquidationBonus(),
		MinHealthFactor:         engine.GetMinHealthFactor().Dec(),
		Precision:               engine.GetPrecision().Dec(),
		AdditionalFeedPrecision: engine.GetAdditionalFeedPrecision().Dec(),
		MaxPriceAge:             params.MaxPriceAge.String(),
	}
	for _, addr := range engine.GetCollateralTokens() {
		feed, _ := engine.GetCollateralTokenPriceFeed(addr)
		entry := collateralAssetResponse{Token: addr.Hex(), PriceFeed: feed.Hex()}
		if tok, ok := s.app.Collateral[addr]; ok {
			entry.Symbol = tok.Symbol()
			entry.Decimals = tok.Decimals()
		}
		resp.CollateralTokens = append(resp.CollateralTokens, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

type positionResponse struct {
	Account                     string            `json:"account"`
	Collateral                  map[string]string `json:"collateral"`
	TotalDscMinted              string            `json:"total_dsc_minted"`
	CollateralValueInUsd        string            `json:"collateral_value_in_usd"`
	CollateralValueInUsdDisplay string            `json:"collateral_value_in_usd_display"`
	HealthFactor                string            `json:"health_factor"`
	HealthFactorDisplay         string            `json:"health_factor_display"`
}

func positionFrom(p dsc.Position) positionResponse {
	collateral := make(map[string]string, len(p.Collateral))
	for addr, amount := range p.Collateral {
		collateral[addr.Hex()] = amountString(amount)
	}
	return positionResponse{
		Account:                     p.Account.Hex(),
		Collateral:                  collateral,
		TotalDscMinted:              amountString(p.DebtMinted),
		CollateralValueInUsd:        amountString(p.CollateralValueInUsd),
		CollateralValueInUsdDisplay: display(p.CollateralValueInUsd),
		HealthFactor:                amountString(p.HealthFactor),
		HealthFactorDisplay:         displayHealthFactor(p.HealthFactor),
	}
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	account, err := pathAddress(r, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	position, err := s.app.Engine.GetPosition(r.Context(), account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionFrom(position))
}

func (s *Server) handleHealthFactor(w http.ResponseWriter, r *http.Request) {
	account, err := pathAddress(r, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	hf, err := s.app.Engine.GetHealthFactor(r.Context(), account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account":               account.Hex(),
		"health_factor":         hf.Dec(),
		"health_factor_display": displayHealthFactor(hf),
	})
}

func (s *Server) handleCalculateHealthFactor(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	debt, err := parseAmount("debt", query.Get("debt"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	collateralUsd, err := parseAmount("collateral_usd", query.Get("collateral_usd"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	hf, err := s.app.Engine.CalculateHealthFactor(debt, collateralUsd)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"health_factor":         hf.Dec(),
		"health_factor_display": displayHealthFactor(hf),
	})
}

func (s *Server) handleCollateralBalance(w http.ResponseWriter, r *http.Request) {
	account, err := pathAddress(r, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	asset, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	balance, err := s.app.Engine.GetCollateralBalanceOfUser(account, asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": account.Hex(), "token": asset.Hex(), "amount": balance.Dec()})
}

// skippedAccount is an account the liquidation scan could not value.
type skippedAccount struct {
	Account string `json:"account"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type liquidatableResponse struct {
	Positions []positionResponse `json:"positions"`
	Partial   bool               `json:"partial"`
	Errors    []skippedAccount   `json:"errors,omitempty"`
}

// handleLiquidatable answers with every position that could be valued. Accounts
// whose collateral has no usable price are listed under errors and mark the
// answer partial instead of failing the whole scan.
func (s *Server) handleLiquidatable(w http.ResponseWriter, r *http.Request) {
	positions, err := s.app.Engine.LiquidatablePositions(r.Context())
	skipped := dsc.AccountErrors(err)
	if err != nil && len(skipped) == 0 {
		writeEngineError(w, err)
		return
	}
	resp := liquidatableResponse{Positions: make([]positionResponse, 0, len(positions))}
	for _, p := range positions {
		resp.Positions = append(resp.Positions, positionFrom(p))
	}
	for _, acct := range skipped {
		_, code := classify(acct.Err)
		resp.Errors = append(resp.Errors, skippedAccount{Account: acct.Account.Hex(), Code: code, Message: acct.Err.Error()})
	}
	resp.Partial = len(resp.Errors) > 0
	if resp.Partial {
		s.logger.WarnContext(r.Context(), "dscd: liquidation scan skipped accounts", "skipped", len(resp.Errors), "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUsdValue(w http.ResponseWriter, r *http.Request) {
	asset, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	amount, err := parseAmount("amount", r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	usd, err := s.app.Engine.GetUsdValue(r.Context(), asset, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": asset.Hex(), "amount": amount.Dec(), "usd": usd.Dec(), "usd_display": display(usd)})
}

func (s *Server) handleTokenAmount(w http.ResponseWriter, r *http.Request) {
	asset, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	usd, err := parseAmount("usd", r.URL.Query().Get("usd"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	amount, err := s.app.Engine.GetTokenAmountFromUsd(r.Context(), asset, usd)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": asset.Hex(), "usd": usd.Dec(), "amount": amount.Dec()})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	account, err := pathAddress(r, "account")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	balance, err := s.app.BalanceOf(tokenAddr, account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tokenAddr.Hex(), "account": account.Hex(), "balance": balance.Dec()})
}

func (s *Server) handleTokenAllowance(w http.ResponseWriter, r *http.Request) {
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	owner, err := pathAddress(r, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	spender, err := pathAddress(r, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	allowance, err := s.app.Allowance(tokenAddr, owner, spender)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tokenAddr.Hex(), "owner": owner.Hex(), "spender": spender.Hex(), "allowance": allowance.Dec()})
}

type roundResponse struct {
	Feed      string   `json:"feed"`
	Answer    string   `json:"answer"`
	Decimals  uint8    `json:"decimals"`
	Price     string   `json:"price"`
	UpdatedAt int64    `json:"updated_at"`
	ProofID   string   `json:"proof_id,omitempty"`
	Feeders   []string `json:"feeders,omitempty"`
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	rounds := s.feeds.Rounds()
	out := make([]roundResponse, 0, len(rounds))
	for _, round := range rounds {
		resp := roundResponse{
			Feed:      round.Feed.Hex(),
			Answer:    round.Price.Answer.Dec(),
			Decimals:  round.Price.Decimals,
			Price:     decimal.NewFromBigInt(round.Price.Answer.ToBig(), -int32(round.Price.Decimals)).String(),
			UpdatedAt: round.Price.UpdatedAt.Unix(),
		}
		if s.snapshots != nil {
			snap, err := s.snapshots.LatestSnapshot(r.Context(), round.Feed.Hex())
			switch {
			case err == nil:
				resp.ProofID = snap.ProofID
				resp.Feeders = snap.Feeders
			case !errors.Is(err, storage.ErrSnapshotNotFound):
				s.logger.Warn("dscd: load oracle snapshot", "feed", round.Feed.Hex(), "error", err)
			}
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"feeds": out})
}

type eventResponse struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Accounts   []string          `json:"accounts"`
	CreatedAt  int64             `json:"created_at"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "event history not configured")
		return
	}
	query := r.URL.Query()
	q := indexer.Query{Type: query.Get("type"), Account: query.Get("account")}
	if raw := strings.TrimSpace(query.Get("after")); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", "after must be a sequence number")
			return
		}
		q.After = after
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_argument", "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}
	if q.Account != "" && !common.IsHexAddress(q.Account) {
		writeError(w, http.StatusBadRequest, "invalid_argument", "account must be an address")
		return
	}
	records, err := s.history.List(r.Context(), q)
	if err != nil {
		s.logger.Error("dscd: list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list events")
		return
	}
	out := make([]eventResponse, 0, len(records))
	for _, rec := range records {
		evt, err := rec.Decode()
		if err != nil {
			s.logger.Error("dscd: decode event", "id", rec.ID.String(), "error", err)
			continue
		}
		out = append(out, eventResponse{
			ID:         rec.ID.String(),
			Sequence:   rec.Sequence,
			Type:       evt.Type,
			Attributes: evt.Attributes,
			Accounts:   rec.Accounts(),
			CreatedAt:  rec.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

type tokenRequest struct {
	Spender string `json:"spender,omitempty"`
	To      string `json:"to,omitempty"`
	Amount  string `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	from, _ := caller(r)
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	var req tokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	if err := s.app.Approve(r.Context(), tokenAddr, from, spender, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	from, _ := caller(r)
	tokenAddr, err := pathAddress(r, "token")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	var req tokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	if err := s.app.Transfer(r.Context(), tokenAddr, from, to, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type collateralRequest struct {
	Token            string `json:"token"`
	Amount           string `json:"amount,omitempty"`
	CollateralAmount string `json:"collateral_amount,omitempty"`
	DscAmount        string `json:"dsc_amount,omitempty"`
}

func (s *Server) decodeCollateral(w http.ResponseWriter, r *http.Request, withDsc bool) (common.Address, *uint256.Int, *uint256.Int, bool) {
	var req collateralRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return common.Address{}, nil, nil, false
	}
	asset, err := parseAddress("token", req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return common.Address{}, nil, nil, false
	}
	if !withDsc {
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
			return common.Address{}, nil, nil, false
		}
		return asset, amount, nil, true
	}
	collateralAmount, err := parseAmount("collateral_amount", req.CollateralAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return common.Address{}, nil, nil, false
	}
	dscAmount, err := parseAmount("dsc_amount", req.DscAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return common.Address{}, nil, nil, false
	}
	return asset, collateralAmount, dscAmount, true
}

func (s *Server) respondPosition(w http.ResponseWriter, r *http.Request, account common.Address) {
	position, err := s.app.Engine.GetPosition(r.Context(), account)
	if err != nil {
		// The operation committed; only the follow-up read failed.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, positionFrom(position))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	account, _ := caller(r)
	asset, amount, _, ok := s.decodeCollateral(w, r, false)
	if !ok {
		return
	}
	if err := s.app.Engine.DepositCollateral(r.Context(), account, asset, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondPosition(w, r, account)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	account, _ := caller(r)
	asset, amount, _, ok := s.decodeCollateral(w, r, false)
	if !ok {
		return
	}
	if err := s.app.Engine.RedeemCollateral(r.Context(), account, asset, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondPosition(w, r, account)
}

func (s *Server) handleDepositAndMint(w http.ResponseWriter, r *http.Request) {
	account, _ := caller(r)
	asset, collateralAmount, mintAmount, ok := s.decodeCollateral(w, r, true)
	if !ok {
		return
	}
	if err := s.app.Engine.DepositCollateralAndMintDsc(r.Context(), account, asset, collateralAmount, mintAmount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondPosition(w, r, account)
}

func (s *Server) handleRedeemForDsc(w http.ResponseWriter, r *http.Request) {
	account, _ := caller(r)
	asset, collateralAmount, burnAmount, ok := s.decodeCollateral(w, r, true)
	if !ok {
		return
	}
	if err := s.app.Engine.RedeemCollateralForDsc(r.Context(), account, asset, collateralAmount, burnAmount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondPosition(w, r, account)
}

type dscRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	account, _ := caller(r)
	var req dscRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	if err := s.app.Engine.MintDsc(r.Context(), account, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondPosition(w, r, account)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	account, _ := caller(r)
	var req dscRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	if err := s.app.Engine.BurnDsc(r.Context(), account, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondPosition(w, r, account)
}

type liquidationRequest struct {
	Token       string `json:"token"`
	Account     string `json:"account"`
	DebtToCover string `json:"debt_to_cover"`
}

type liquidationResponse struct {
	Account                   string `json:"account"`
	Liquidator                string `json:"liquidator"`
	Token                     string `json:"token"`
	DebtCovered               string `json:"debt_covered"`
	CollateralSeized          string `json:"collateral_seized"`
	Bonus                     string `json:"bonus"`
	HealthFactorBefore        string `json:"health_factor_before"`
	HealthFactorAfter         string `json:"health_factor_after"`
	HealthFactorAfterDisplay  string `json:"health_factor_after_display"`
	HealthFactorBeforeDisplay string `json:"health_factor_before_display"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	liquidator, _ := caller(r)
	var req liquidationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	asset, err := parseAddress("token", req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	debt, err := parseAmount("debt_to_cover", req.DebtToCover)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	res, err := s.app.Engine.Liquidate(r.Context(), liquidator, asset, account, debt)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidationResponse{
		Account:                   res.Account.Hex(),
		Liquidator:                res.Liquidator.Hex(),
		Token:                     res.Token.Hex(),
		DebtCovered:               res.DebtCovered.Dec(),
		CollateralSeized:          res.CollateralSeized.Dec(),
		Bonus:                     res.Bonus.Dec(),
		HealthFactorBefore:        res.HealthFactorBefore.Dec(),
		HealthFactorAfter:         res.HealthFactorAfter.Dec(),
		HealthFactorBeforeDisplay: displayHealthFactor(res.HealthFactorBefore),
		HealthFactorAfterDisplay:  displayHealthFactor(res.HealthFactorAfter),
	})
}

func (s *Server) handleGetPause(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"paused": s.app.Paused(), "modules": s.app.Pauses.Paused()})
}

func (s *Server) handleSetPause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paused *bool `json:"paused"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Paused == nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "paused flag required")
		return
	}
	s.app.SetPaused(*req.Paused)
	principal, _ := PrincipalFromContext(r.Context())
	s.logger.InfoContext(r.Context(), "dscd: pause switch updated", "paused", *req.Paused, "subject", principal.Address.Hex())
	writeJSON(w, http.StatusOK, map[string]bool{"paused": s.app.Paused()})
}

func (s *Server) handlePublishPrice(w http.ResponseWriter, r *http.Request) {
	feed, err := parseAddress("feed", chi.URLParam(r, "feed"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	decimals, ok := s.cfg.FeedDecimals[feed]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_feed", "feed is not configured")
		return
	}
	var req struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	answer, err := oracle.AnswerFromDecimal(req.Price, decimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
		return
	}
	price := dsc.Price{Answer: answer, Decimals: decimals, UpdatedAt: time.Now().UTC()}
	if err := s.feeds.Set(feed, price); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"feed": feed.Hex(), "answer": answer.Dec()})
}
