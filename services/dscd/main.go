package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	genesisconfig "dscengine/config"
	"dscengine/core/events"
	"dscengine/observability/logging"
	telemetry "dscengine/observability/otel"
	"dscengine/services/dscd/app"
	"dscengine/services/dscd/config"
	"dscengine/services/dscd/indexer"
	"dscengine/services/dscd/server"
	"dscengine/services/dscd/storage"
	"dscengine/services/oracle"
	statedb "dscengine/storage"
)

const (
	sampleRetention = 24 * time.Hour
	pruneInterval   = time.Hour
)

func main() {
	var (
		cfgPath    string
		exportPath string
		exportType string
	)
	flag.StringVar(&cfgPath, "config", "services/dscd/config.yaml", "path to dscd configuration file")
	flag.StringVar(&exportPath, "export-events", "", "write the event history to this parquet file and exit")
	flag.StringVar(&exportType, "export-type", "", "only export events of this type")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("dscd: load config: %v", err)
	}

	env := strings.TrimSpace(os.Getenv("DSC_ENV"))
	logOpts := logging.Options{Level: logging.ParseLevel(cfg.Log.Level)}
	if cfg.Log.File != "" {
		logOpts.File = &logging.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
	}
	logger, logCloser := logging.SetupWithOptions("dscd", env, logOpts)
	defer logCloser.Close()

	genesis, err := genesisconfig.Load(cfg.GenesisPath)
	if err != nil {
		log.Fatalf("dscd: load genesis: %v", err)
	}

	telemetryEnv := cfg.Telemetry.Environment
	if telemetryEnv == "" {
		telemetryEnv = env
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.FromEnv(telemetry.Config{
		ServiceName: "dscd",
		Environment: telemetryEnv,
		Endpoint:    strings.TrimSpace(cfg.Telemetry.Endpoint),
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.MetricsEnabled(),
		Traces:      cfg.Telemetry.TracesEnabled(),
		Attributes: map[string]string{
			telemetry.AttrEngine: common.HexToAddress(genesis.EngineAddress).Hex(),
			telemetry.AttrStable: common.HexToAddress(genesis.StableToken.Address).Hex(),
		},
	}))
	if err != nil {
		log.Fatalf("dscd: init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := statedb.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("dscd: open state: %v", err)
	}
	defer db.Close()

	dsn, err := storage.FileDSN(cfg.OracleDatabase)
	if err != nil {
		log.Fatalf("dscd: resolve oracle storage DSN: %v", err)
	}
	store, err := storage.Open(dsn)
	if err != nil {
		log.Fatalf("dscd: open oracle storage: %v", err)
	}
	defer store.Close()

	eventDB, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
	if err != nil {
		log.Fatalf("dscd: open indexer: %v", err)
	}
	history, err := indexer.New(eventDB, logger)
	if err != nil {
		log.Fatalf("dscd: init indexer: %v", err)
	}
	if exportPath != "" {
		n, err := history.Export(context.Background(), exportPath, indexer.Query{Type: exportType})
		if err != nil {
			log.Fatalf("dscd: export events: %v", err)
		}
		logger.Info("dscd: exported events", "path", exportPath, "count", n)
		return
	}

	// Indexer inserts happen on their own goroutine, outside the engine lock.
	indexed := events.NewBuffered(history, cfg.Indexer.Buffer)
	defer indexed.Close()

	hub := server.NewHub(cfg.Stream.Buffer)
	feeds := oracle.NewFeeds()
	application, err := app.New(genesis, db, feeds, events.Fanout{indexed, hub})
	if err != nil {
		log.Fatalf("dscd: build engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.ApplyGenesis(ctx); err != nil {
		log.Fatalf("dscd: apply genesis: %v", err)
	}
	application.SetPaused(cfg.Paused)

	feedDecimals := make(map[common.Address]uint8, len(cfg.Feeds))
	oracleFeeds := make([]oracle.Feed, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		addr := common.HexToAddress(feed.Address)
		feedDecimals[addr] = feed.Decimals
		oracleFeeds = append(oracleFeeds, oracle.Feed{Address: addr, Symbol: feed.Symbol, Decimals: feed.Decimals})
	}

	if len(oracleFeeds) > 0 {
		registry := oracle.NewRegistry()
		sources := make([]oracle.Source, 0, len(cfg.Sources))
		for _, src := range cfg.Sources {
			built, err := registry.Build(oracle.SourceConfig{
				Name:     src.Name,
				Type:     src.Type,
				Endpoint: src.Endpoint,
				APIKey:   src.APIKey,
				Assets:   src.Assets,
			})
			if err != nil {
				log.Fatalf("dscd: build source %s: %v", src.Name, err)
			}
			sources = append(sources, built)
		}
		mgr, err := oracle.New(feeds, sources, oracleFeeds, cfg.Oracle.Interval.Duration, cfg.Oracle.MaxAge.Duration, cfg.Oracle.MinFeeds,
			oracle.WithLogger(logger),
			oracle.WithRecorder(store),
			oracle.WithPublisher(application.LiquidationWatcher(logger)),
		)
		if err != nil {
			log.Fatalf("dscd: oracle manager: %v", err)
		}
		go func() {
			if err := mgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dscd: oracle manager stopped", "error", err)
			}
		}()
		go pruneSamples(ctx, store, logger)
	} else {
		logger.Warn("dscd: no price feeds configured; prices must be published through the admin API")
	}

	authenticator, err := server.NewAuthenticator(server.AuthConfig{
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ScopeClaim: cfg.Auth.ScopeClaim,
		AdminScope: cfg.Auth.AdminScope,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	}, logger)
	if err != nil {
		log.Fatalf("dscd: configure auth: %v", err)
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		FeedDecimals: feedDecimals,
	}, server.Dependencies{
		App:       application,
		Feeds:     feeds,
		History:   history,
		Snapshots: store,
		Hub:       hub,
		Auth:      authenticator,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("dscd: configure server: %v", err)
	}

	logger.Info("dscd: listening", "address", cfg.ListenAddress, "engine", application.Engine.Address().Hex(), "paused", cfg.Paused)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("dscd: server error: %v", err)
	}
}

func pruneSamples(ctx context.Context, store *storage.Storage, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.PruneSamples(ctx, now.Add(-sampleRetention))
			if err != nil {
				logger.Error("dscd: prune oracle samples", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("dscd: pruned oracle samples", "removed", removed)
			}
		}
	}
}
