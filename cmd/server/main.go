package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/wagerx/escrow-engine/internal/charity"
	"github.com/wagerx/escrow-engine/internal/config"
	"github.com/wagerx/escrow-engine/internal/escrow"
	"github.com/wagerx/escrow-engine/internal/hmacauth"
	"github.com/wagerx/escrow-engine/internal/idempotency"
	"github.com/wagerx/escrow-engine/internal/indexer"
	"github.com/wagerx/escrow-engine/internal/limits"
	"github.com/wagerx/escrow-engine/internal/metrics"
	"github.com/wagerx/escrow-engine/internal/oracle"
	"github.com/wagerx/escrow-engine/internal/store"
	"github.com/wagerx/escrow-engine/internal/wager"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	if !common.IsHexAddress(cfg.OwnerAddress) {
		slog.Error("OWNER_ADDRESS is not a valid address", "value", cfg.OwnerAddress)
		os.Exit(1)
	}
	ownerAddr := common.HexToAddress(cfg.OwnerAddress).Hex()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()
	var pool *pgxpool.Pool

	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st, err = store.NewPostgresStore(context.Background(), pool)
		if err != nil {
			slog.Error("database schema setup failed", "err", err)
			os.Exit(1)
		}
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Idempotency store for relayed submissions ---
	var idem idempotency.Store
	if pool != nil {
		pgIdem, err := idempotency.NewPostgresStore(context.Background(), pool)
		if err != nil {
			slog.Error("idempotency schema setup failed", "err", err)
			os.Exit(1)
		}
		idem = pgIdem
	} else {
		idem = idempotency.NewMemoryStore()
	}

	// --- Escrow ledger ---
	book := escrow.NewAccountBook()
	ledger := escrow.NewLedger(book, ownerAddr)

	// --- Stake limits ---
	limiter := limits.NewStakeLimiter(
		decimal.NewFromInt(cfg.MaxStake),
		decimal.NewFromInt(cfg.MaxOpenExposure),
		cfg.MaxParticipants,
	)

	// --- Charity registry ---
	registry := charity.NewRegistry()
	if cfg.CharityRegistryPath != "" {
		if err := registry.LoadFile(cfg.CharityRegistryPath); err != nil {
			slog.Error("charity registry load failed", "path", cfg.CharityRegistryPath, "err", err)
			os.Exit(1)
		}
		slog.Info("charity registry loaded", "path", cfg.CharityRegistryPath)
	}

	// --- Oracle cross-check client ---
	var oc oracle.Client
	if cfg.OracleURL != "" {
		oc = oracle.NewHTTPClient(cfg.OracleURL, 15*time.Second)
		slog.Info("oracle cross-check enabled", "url", cfg.OracleURL)
	}

	// --- WebSocket hub + event bridge ---
	wsHub := wager.NewWSHub()
	go wsHub.Run()
	ledger.SetEventSink(wager.NewEventBridge(wsHub))

	// --- Wager service ---
	wagerSvc := wager.NewService(ledger, st, limiter, registry, oc, idem, cfg.IdempotencyWindow)

	// --- Indexer reconciling ledger → store ---
	ixCtx, ixCancel := context.WithCancel(context.Background())
	defer ixCancel()
	go indexer.New(ledger, st, cfg.SyncInterval, logger).Run(ixCtx)

	// --- Oracle callback authentication ---
	oracleAuth := &hmacauth.Verifier{
		Secret:  cfg.OracleWebhookSecret,
		MaxSkew: cfg.HMACMaxSkew,
	}
	if cfg.OracleWebhookSecret == "" {
		slog.Warn("ORACLE_WEBHOOK_SECRET not set, oracle callback is unauthenticated")
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+wager.IdempotencyKeyHeader)
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", wagerSvc.Health)

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for lifecycle events.
		r.Get("/ws", wsHub.HandleWS)

		// Wager lifecycle.
		r.Get("/wagers", wagerSvc.ListWagers)
		r.Post("/wagers", wagerSvc.CreateWager)
		r.Get("/wagers/{wagerID}", wagerSvc.GetWager)
		r.Post("/wagers/{wagerID}/accept", wagerSvc.AcceptWager)
		r.Post("/wagers/{wagerID}/resolve", wagerSvc.ResolveWager)
		r.Post("/wagers/{wagerID}/cancel", wagerSvc.CancelWager)

		// Charity registry.
		r.Get("/charities", wagerSvc.ListCharities)

		// Sponsored submission.
		r.Post("/relay/wagers", wagerSvc.RelayWager)

		// Oracle resolution callback, HMAC-authenticated.
		r.With(oracleAuth.Middleware).Post("/callbacks/oracle", wagerSvc.OracleCallback)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("escrow-engine listening", "port", cfg.Port, "owner", ownerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down escrow-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("escrow-engine stopped")
}
