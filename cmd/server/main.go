// Package main runs the paper-trading service: the price feed, the
// momentum detector, the signal consumer and the trade engine, together
// with the optional tick archive and an HTTP endpoint for health,
// metrics and status.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"momentum-lab/internal/config"
	"momentum-lab/internal/detector"
	"momentum-lab/internal/domain"
	"momentum-lab/internal/feed"
	"momentum-lab/internal/ingestion"
	"momentum-lab/internal/marketstate"
	"momentum-lab/internal/notify"
	"momentum-lab/internal/observability"
	"momentum-lab/internal/storage"
	chstore "momentum-lab/internal/storage/clickhouse"
	"momentum-lab/internal/storage/memory"
	"momentum-lab/internal/storage/migrations"
	pgstore "momentum-lab/internal/storage/postgres"
	"momentum-lab/internal/trades"
)

// Server holds the wired components and status state.
type Server struct {
	cfg    *config.Config
	logger *log.Logger

	market   *marketstate.Store
	feed     *feed.Feed
	detector *detector.Detector
	consumer *trades.Consumer
	engine   *trades.Engine
	recorder *ingestion.Recorder // nil when the archive is disabled

	trades storage.TradeStore

	mu        sync.Mutex
	startedAt time.Time
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Flags override the environment for the deployment-specific knobs.
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (empty disables the tick archive)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "HTTP address for health/metrics/status")
	flag.Parse()

	cfg.PostgresDSN = *postgresDSN
	cfg.ClickhouseDSN = *clickhouseDSN
	cfg.MetricsAddr = *metricsAddr

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && cfg.PostgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	signalStore, tradeStore, tickStore, cleanup, err := createStores(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := buildServer(cfg, logger, signalStore, tradeStore, tickStore)

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(cfg.MetricsAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores builds the signal, trade and tick stores and runs
// migrations. The tick store is nil when the archive is disabled.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool, logger *log.Logger) (storage.SignalStore, storage.TradeStore, storage.TickStore, func(), error) {
	if useMemory {
		logger.Println("Using in-memory storage")
		var ticks storage.TickStore
		if cfg.ClickhouseDSN != "" {
			ticks = memory.NewTickStore()
		}
		return memory.NewSignalStore(), memory.NewTradeStore(), ticks, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	var ticks storage.TickStore
	cleanup := func() { pool.Close() }

	if cfg.ClickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		ticks = chstore.NewTickStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return pgstore.NewSignalStore(pool), pgstore.NewTradeStore(pool), ticks, cleanup, nil
}

// buildServer wires all components together.
func buildServer(cfg *config.Config, logger *log.Logger, signals storage.SignalStore, tradeStore storage.TradeStore, ticks storage.TickStore) *Server {
	market := marketstate.NewStore(cfg.HistoryCapacity)
	notifier := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, logger)

	var recorder *ingestion.Recorder
	var onTick func(*domain.Tick)
	if ticks != nil {
		recorder = ingestion.NewRecorder(ingestion.Options{Store: ticks, Logger: logger})
		onTick = recorder.Add
	}

	f := feed.New(feed.Options{
		Endpoint: cfg.FeedEndpoint,
		Symbols:  cfg.Symbols,
		Market:   market,
		OnTick:   onTick,
		Logger:   logger,
	})

	det := detector.New(detector.Options{
		Symbols:       cfg.Symbols,
		Lookback:      cfg.Lookback,
		Threshold:     cfg.MomentumThreshold,
		Cooldown:      cfg.Cooldown,
		Market:        market,
		Signals:       signals,
		Notifier:      notifier,
		Logger:        logger,
		NotifySignals: cfg.NotifySignals,
	})

	consumer := trades.NewConsumer(trades.ConsumerOptions{
		Signals:    signals,
		Trades:     tradeStore,
		Market:     market,
		EntryDelay: cfg.EntryDelay,
		Logger:     logger,
	})

	engine := trades.NewEngine(trades.EngineOptions{
		Config: trades.EngineConfig{
			Policy:                trades.ExitPolicy(cfg.ExitPolicy),
			TakeProfitPct:         cfg.TakeProfitPct,
			StopLossPct:           cfg.StopLossPct,
			TrailingActivationPct: cfg.TrailingActivationPct,
			TrailingDistancePct:   cfg.TrailingDistancePct,
			TimeStopBypassPct:     cfg.TimeStopBypassPct,
			MaxHoldSeconds:        cfg.MaxHoldSecs,
			TimeStopSeconds:       cfg.TimeStopSecs,
			NotifyTrades:          cfg.NotifyTrades,
		},
		Market:   market,
		Trades:   tradeStore,
		Notifier: notifier,
		Logger:   logger,
	})

	return &Server{
		cfg:      cfg,
		logger:   logger,
		market:   market,
		feed:     f,
		detector: det,
		consumer: consumer,
		engine:   engine,
		recorder: recorder,
		trades:   tradeStore,
	}
}

// Run starts all component loops and blocks until the context is
// cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Printf("Starting with %d symbols, exit policy %s", len(s.cfg.Symbols), s.cfg.ExitPolicy)

	errCh := make(chan error, 5)
	start := func(name string, run func(context.Context) error) {
		go func() {
			err := run(ctx)
			if err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	start("feed", s.feed.Run)
	start("detector", s.detector.Run)
	start("consumer", s.consumer.Run)
	start("engine", s.engine.Run)
	if s.recorder != nil {
		start("recorder", s.recorder.Run)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	Uptime        string    `json:"uptime"`
	Symbols       int       `json:"symbols"`
	ExitPolicy    string    `json:"exit_policy"`
	PendingTrades int       `json:"pending_trades"`
	OpenTrades    int       `json:"open_trades"`
	ClosedTrades  int       `json:"closed_trades"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	startedAt := s.startedAt
	s.mu.Unlock()

	resp := StatusResponse{
		Status:     "running",
		StartedAt:  startedAt,
		Uptime:     time.Since(startedAt).String(),
		Symbols:    len(s.cfg.Symbols),
		ExitPolicy: s.cfg.ExitPolicy,
	}

	ctx := r.Context()
	if pending, err := s.trades.ListPending(ctx); err == nil {
		resp.PendingTrades = len(pending)
	}
	if open, err := s.trades.ListOpen(ctx); err == nil {
		resp.OpenTrades = len(open)
	}
	if closed, err := s.trades.ListClosed(ctx); err == nil {
		resp.ClosedTrades = len(closed)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
