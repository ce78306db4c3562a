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

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/balanza-fin/balanza/internal/app"
	"github.com/balanza-fin/balanza/internal/balances"
	jobmetrics "github.com/balanza-fin/balanza/internal/jobs"
	"github.com/balanza-fin/balanza/internal/observability"
	"github.com/balanza-fin/balanza/internal/platform/cache"
	"github.com/balanza-fin/balanza/internal/platform/db"
	"github.com/balanza-fin/balanza/internal/refdata"
	"github.com/balanza-fin/balanza/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	var resultCache balances.ResultCache
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		resultCache = balances.NewRedisCache(redisClient, cfg.CacheTTL)
	} else {
		resultCache = balances.NewMemoryCache(cfg.CacheTTL)
	}

	refdataRepo := refdata.NewRepository(pool)
	valuationCfg := valuationConfig(cfg, logger)
	valuator := balances.NewValuator(refdata.NewRateRepository(pool), valuationCfg)
	validator := balances.NewValidator(decimal.NewFromInt(int64(cfg.ValidationTolerance)))
	useCases := balances.NewUseCases(logger, refdataRepo, balances.NewPGProvider(pool),
		valuator, validator, resultCache, metrics)

	chartUID, err := uuid.Parse(cfg.ChartUID)
	if err != nil {
		logger.Error("parse CHART_UID", slog.Any("error", err))
		os.Exit(1)
	}

	integrityTask, err := jobs.NewIntegrityScanTask(jobs.IntegrityScanPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewWarmupTask(jobs.WarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	integrityJob := jobs.NewIntegrityScanJob(useCases, refdataRepo, chartUID, logger, jobMetrics)
	warmupJob := jobs.NewReportWarmupJob(useCases, chartUID, nil, logger, jobMetrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBalancesIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskBalancesWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.IntegrityScanSchedule, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.WarmupSchedule, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	router := chi.NewRouter()
	jobs.NewHandler(inspector, logger).MountRoutes(router)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.AppAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("observability server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func valuationConfig(cfg *app.Config, logger *slog.Logger) balances.ValuationConfig {
	valuation := balances.DefaultValuationConfig()
	if cfg.IFRSChartUID != "" {
		uid, err := uuid.Parse(cfg.IFRSChartUID)
		if err != nil {
			logger.Warn("invalid IFRS chart uid, start-date shift disabled", slog.Any("error", err))
		} else {
			valuation.IFRSChartUID = uid
		}
	}
	if cfg.DefaultValuateCurrency != "" {
		valuation.DefaultValuateCurrency = cfg.DefaultValuateCurrency
	}
	if cfg.DefaultExchangeRateType != "" {
		uid, err := uuid.Parse(cfg.DefaultExchangeRateType)
		if err != nil {
			logger.Warn("invalid default exchange rate type", slog.Any("error", err))
		} else {
			valuation.DefaultRateTypeUID = uid
		}
	}
	return valuation
}
