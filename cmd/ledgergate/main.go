package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ledgergate/ledgergate/internal/app"
	"github.com/ledgergate/ledgergate/internal/audit"
	"github.com/ledgergate/ledgergate/internal/authz"
	"github.com/ledgergate/ledgergate/internal/budget"
	"github.com/ledgergate/ledgergate/internal/directory"
	"github.com/ledgergate/ledgergate/internal/identity"
	"github.com/ledgergate/ledgergate/internal/observability"
	"github.com/ledgergate/ledgergate/internal/platform/cache"
	"github.com/ledgergate/ledgergate/internal/platform/db"
	"github.com/ledgergate/ledgergate/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	publicKey, err := cfg.PublicKey()
	if err != nil {
		logger.Error("token public key", slog.Any("error", err))
		os.Exit(1)
	}

	revocations := identity.NewRevocationStore(redisClient, cfg.RevocationCacheTTL)
	validator := identity.NewValidator(identity.ValidatorConfig{
		PublicKey: publicKey,
		Audience:  cfg.TokenAudience,
		Issuer:    cfg.TokenIssuer,
	}, revocations, identity.DefaultComposites())

	metrics := observability.NewMetrics()

	auditStore := audit.NewStore(pool)
	replayClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer func() {
		if err := replayClient.Close(); err != nil {
			logger.Warn("replay client close", slog.Any("error", err))
		}
	}()
	auditWriter := audit.NewWriter(auditStore, replayClient, logger, metrics, cfg.AuditQueueSize, cfg.AuditRetryInterval)
	auditService := audit.NewService(auditStore)
	auditHandler := audit.NewHandler(logger, auditService)

	directoryRepo := directory.NewRepository(pool)
	directoryService := directory.NewService(directoryRepo)

	registry := authz.DefaultRegistry()
	evaluator := authz.NewEvaluator(directoryService, cfg.ManagerChainMaxDepth, authz.BudgetsTablePolicy())

	budgetRepo := budget.NewRepository(pool)
	budgetService := budget.NewService(budgetRepo, evaluator, directoryService, auditWriter, metrics, cfg.AmendPolicy())
	budgetHandler := budget.NewHandler(logger, budgetService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Validator:     validator,
		Registry:      registry,
		AuditSink:     auditWriter,
		BudgetHandler: budgetHandler,
		AuditHandler:  auditHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return auditWriter.Run(groupCtx)
	})
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runtime", slog.Any("error", err))
		os.Exit(1)
	}
}
