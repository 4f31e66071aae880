package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	protocolcfg "memelend/config"
	"memelend/core/events"
	"memelend/native/lending/keeper"
	"memelend/observability"
	"memelend/observability/logging"
	telemetry "memelend/observability/otel"
	"memelend/services/lendingd/config"
	"memelend/services/lendingd/indexer"
	"memelend/services/lendingd/protocol"
	"memelend/services/lendingd/server"
	"memelend/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "lendingd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("MEMELEND_ENV"))
	logger := logging.Setup("lendingd", env, logging.Options{
		Level:      logging.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryConfig(cfg, env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	protoCfg, err := protocolcfg.Load(cfg.ProtocolPath)
	if err != nil {
		return fmt.Errorf("load protocol config: %w", err)
	}

	var db storage.Database
	if cfg.InMemory {
		logger.Warn("running on an in-memory ledger; state is lost on exit")
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		db = ldb
	}
	defer db.Close()

	gormDB, err := indexer.Open(cfg.Index.Driver, cfg.Index.DSN)
	if err != nil {
		return err
	}
	index, err := indexer.New(gormDB, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	hub := server.NewHub(logger)
	loans := keeper.NewIndex()
	p, err := protocol.New(db, protocol.Options{
		Config:  protoCfg,
		Emitter: events.Fanout{index, hub, loans, observability.NewEventMetrics(nil)},
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("wire protocol: %w", err)
	}

	var handler keeper.Handler
	if cfg.Bootstrap.Enabled() {
		b, err := cfg.Bootstrap.Addresses()
		if err != nil {
			return err
		}
		if err := p.Bootstrap(b); err != nil {
			return err
		}
		if cfg.Keeper.AutoLiquidate {
			handler = p.LiquidationHandler(b.Liquidator)
		}
	}
	tracked, err := p.TrackActive(loans)
	if err != nil {
		return fmt.Errorf("load active loans: %w", err)
	}
	logger.Info("active loans loaded", slog.Int("count", tracked))

	auth, err := server.NewAuthenticator(cfg.JWTSecret(), cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{
		Protocol: p,
		Index:    index,
		Hub:      hub,
		Auth:     auth,
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		AllowedOrigins: cfg.Origins,
		LedgerAdmin:    cfg.LedgerAdmin,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("lendingd listening", slog.String("addr", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if !cfg.Keeper.Disabled {
		k := keeper.New(loans, p.LatestPrice, handler, cfg.Keeper.Interval.Duration,
			keeper.WithLogger(logger.With(slog.String("component", "keeper"))),
			keeper.WithClock(p.Now),
		)
		g.Go(func() error { return k.Run(gctx) })
	}
	return g.Wait()
}

// telemetryConfig layers the OTEL_* environment over the file settings.
func telemetryConfig(cfg config.Config, env string) telemetry.Config {
	out := telemetry.Config{
		ServiceName: "lendingd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		out.Endpoint = endpoint
	}
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			out.Insecure = parsed
		}
	}
	return out
}
