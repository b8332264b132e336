package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"dscengine/observability"
	"dscengine/services/dscd/app"
	"dscengine/services/dscd/indexer"
	"dscengine/services/dscd/storage"
	"dscengine/services/oracle"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	RateLimit     RateLimit
	StreamOrigins []string
	// FeedDecimals lists the feeds prices may be published to through the
	// admin API, with the decimals answers are scaled to.
	FeedDecimals map[common.Address]uint8
}

// History answers event history queries.
type History interface {
	List(ctx context.Context, q indexer.Query) ([]indexer.EventRecord, error)
}

// Snapshots returns the latest aggregated oracle round of a feed.
type Snapshots interface {
	LatestSnapshot(ctx context.Context, feed string) (storage.Snapshot, error)
}

// Dependencies are the collaborators the server exposes.
type Dependencies struct {
	App       *app.App
	Feeds     *oracle.Feeds
	History   History
	Snapshots Snapshots
	Hub       *Hub
	Auth      *Authenticator
	Logger    *slog.Logger
}

// Server hosts the engine API.
type Server struct {
	cfg       Config
	app       *app.App
	feeds     *oracle.Feeds
	history   History
	snapshots Snapshots
	hub       *Hub
	auth      *Authenticator
	limiter   *RateLimiter
	logger    *slog.Logger
}

// New constructs a new HTTP server.
func New(cfg Config, deps Dependencies) (*Server, error) {
	if deps.App == nil {
		return nil, fmt.Errorf("engine required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if deps.Feeds == nil {
		deps.Feeds = oracle.NewFeeds()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(cfg.StreamOrigins) == 0 {
		cfg.StreamOrigins = []string{"*"}
	}
	return &Server{
		cfg:       cfg,
		app:       deps.App,
		feeds:     deps.Feeds,
		history:   deps.History,
		snapshots: deps.Snapshots,
		hub:       deps.Hub,
		auth:      deps.Auth,
		limiter:   NewRateLimiter(cfg.RateLimit),
		logger:    deps.Logger,
	}, nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/params", s.handleParams)
		r.Get("/feeds", s.handleFeeds)
		r.Get("/health-factor", s.handleCalculateHealthFactor)
		r.Get("/positions/liquidatable", s.handleLiquidatable)
		r.Get("/accounts/{account}", s.handlePosition)
		r.Get("/accounts/{account}/health-factor", s.handleHealthFactor)
		r.Get("/accounts/{account}/collateral/{token}", s.handleCollateralBalance)
		r.Get("/collateral/{token}/usd-value", s.handleUsdValue)
		r.Get("/collateral/{token}/token-amount", s.handleTokenAmount)
		r.Get("/tokens/{token}/balances/{account}", s.handleTokenBalance)
		r.Get("/tokens/{token}/allowances/{owner}/{spender}", s.handleTokenAllowance)
		r.Get("/events", s.handleEvents)
		r.Get("/events/stream", s.handleEventStream)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware(), s.limiter.Middleware)
			r.Post("/tokens/{token}/approve", s.handleApprove)
			r.Post("/tokens/{token}/transfer", s.handleTransfer)
			r.Post("/collateral/deposit", s.handleDeposit)
			r.Post("/collateral/redeem", s.handleRedeem)
			r.Post("/collateral/deposit-and-mint", s.handleDepositAndMint)
			r.Post("/collateral/redeem-for-dsc", s.handleRedeemForDsc)
			r.Post("/dsc/mint", s.handleMint)
			r.Post("/dsc/burn", s.handleBurn)
			r.Post("/liquidations", s.handleLiquidate)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAdmin())
			r.Get("/admin/pause", s.handleGetPause)
			r.Put("/admin/pause", s.handleSetPause)
			r.Put("/admin/feeds/{feed}", s.handlePublishPrice)
		})
	})
	return r
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.ModuleMetrics().Observe("dscd", r.Method+" "+pattern, status, time.Since(start))
	})
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(s.Handler(), "dscd"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dscd: http server listening", "addr", s.cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.app.Paused() {
		status = "paused"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func caller(r *http.Request) (common.Address, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.Address{}, false
	}
	return principal.Address, true
}

func pathAddress(r *http.Request, param string) (common.Address, error) {
	return parseAddress(param, strings.TrimSpace(chi.URLParam(r, param)))
}
