package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vantage-crm/vantage-crm/internal/amc"
	"github.com/vantage-crm/vantage-crm/internal/app"
	"github.com/vantage-crm/vantage-crm/internal/automation"
	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/crm/calllogs"
	"github.com/vantage-crm/vantage-crm/internal/crm/leads"
	jobmetrics "github.com/vantage-crm/vantage-crm/internal/jobs"
	"github.com/vantage-crm/vantage-crm/internal/platform/cache"
	"github.com/vantage-crm/vantage-crm/internal/platform/db"
	"github.com/vantage-crm/vantage-crm/internal/shared"
	"github.com/vantage-crm/vantage-crm/internal/tasks"
	"github.com/vantage-crm/vantage-crm/jobs"
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

	var pipeline leads.PipelineProvider = leads.NewStaticPipeline(leads.PipelineConfig{})
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, pipeline cache disabled", slog.Any("error", err))
	} else {
		pipeline = leads.NewCachedPipeline(pipeline, cache.NewJSONCache(redisClient, cfg.SettingsCacheTTL), logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	engine := automation.NewEngine(automation.EngineConfig{
		Leads:     leads.NewRepository(pool),
		CallLogs:  calllogs.NewRepository(pool),
		Invoices:  invoices.NewRepository(pool),
		Contracts: amc.NewRepository(pool),
		Tasks:     tasks.NewRepository(pool),
		Pipeline:  pipeline,
		Audit:     shared.NewAuditLogger(pool),
		Logger:    logger,
		Thresholds: automation.Thresholds{
			FollowUpStaleAfter:    cfg.FollowUpStaleAfter,
			DeprioritizeAfter:     cfg.DeprioritizeAfter,
			HighValueStalledAfter: cfg.HighValueStalledAfter,
			AutoLostAfterDays:     cfg.AutoLostAfterDays,
			PaymentReminderDays:   cfg.PaymentReminderDays,
			RenewalReminderDays:   cfg.RenewalReminderDays,
			SLARevenueFloor:       automation.DefaultThresholds().SLARevenueFloor,
			HighValueRevenueFloor: automation.DefaultThresholds().HighValueRevenueFloor,
		},
	})

	metrics := jobmetrics.NewMetrics(nil)

	sweeps := []struct {
		job  *jobs.SweepJob
		typ  string
		spec string
	}{
		{jobs.NewLeadFollowUpsJob(engine, logger, metrics), jobs.TaskLeadFollowUps, "0 * * * *"},
		{jobs.NewCallbackFollowUpsJob(engine, logger, metrics), jobs.TaskCallbackFollowUps, "30 * * * *"},
		{jobs.NewLeadHygieneJob(engine, logger, metrics), jobs.TaskLeadHygiene, "0 2 * * *"},
		{jobs.NewPaymentRemindersJob(engine, logger, metrics), jobs.TaskPaymentReminders, "0 3 * * *"},
		{jobs.NewContractSweepJob(engine, logger, metrics), jobs.TaskContractSweep, "30 3 * * *"},
		{jobs.NewOverdueSweepJob(engine, logger, metrics), jobs.TaskOverdueSweep, "0 4 * * *"},
	}

	var handlers []jobs.TaskHandler
	var cron []jobs.CronRegistration
	for _, sweep := range sweeps {
		handlers = append(handlers, jobs.TaskHandler{Type: sweep.typ, Handler: sweep.job.Handle})
		task, err := jobs.NewSweepTask(sweep.typ, jobs.SweepPayload{})
		if err != nil {
			logger.Error("build sweep task", slog.String("type", sweep.typ), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    sweep.spec,
			Task:    task,
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
