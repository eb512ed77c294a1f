package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vantage-crm/vantage-crm/internal/amc"
	"github.com/vantage-crm/vantage-crm/internal/app"
	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/billing/payments"
	"github.com/vantage-crm/vantage-crm/internal/billing/quotations"
	"github.com/vantage-crm/vantage-crm/internal/crm/calllogs"
	"github.com/vantage-crm/vantage-crm/internal/crm/clients"
	"github.com/vantage-crm/vantage-crm/internal/crm/leads"
	"github.com/vantage-crm/vantage-crm/internal/platform/cache"
	"github.com/vantage-crm/vantage-crm/internal/platform/db"
	"github.com/vantage-crm/vantage-crm/internal/tasks"
	"github.com/vantage-crm/vantage-crm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, pipeline cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	var pipeline leads.PipelineProvider = leads.NewStaticPipeline(leads.PipelineConfig{})
	if redisClient != nil {
		pipeline = leads.NewCachedPipeline(pipeline, cache.NewJSONCache(redisClient, cfg.SettingsCacheTTL), logger)
	}

	clientService := clients.NewService(clients.NewRepository(pool))
	leadService := leads.NewService(leads.NewRepository(pool), pipeline, clientService)
	callLogService := calllogs.NewService(calllogs.NewRepository(pool))
	invoiceService := invoices.NewService(invoices.NewRepository(pool))
	quotationService := quotations.NewService(quotations.NewRepository(pool), invoiceService)
	paymentService := payments.NewService(payments.NewRepository(pool))
	contractService := amc.NewService(amc.NewRepository(pool))
	taskService := tasks.NewService(tasks.NewRepository(pool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("jobs client unavailable", slog.Any("error", err))
	} else {
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LeadHandler:      leads.NewHandler(leadService, logger),
		ClientHandler:    clients.NewHandler(clientService, logger),
		CallLogHandler:   calllogs.NewHandler(callLogService, logger),
		QuotationHandler: quotations.NewHandler(quotationService, logger),
		InvoiceHandler:   invoices.NewHandler(invoiceService, logger),
		PaymentHandler:   payments.NewHandler(paymentService, logger),
		ContractHandler:  amc.NewHandler(contractService, logger),
		TaskHandler:      tasks.NewHandler(taskService, logger),
		JobHandler:       jobs.NewHandler(inspector, jobClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
