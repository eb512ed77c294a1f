package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vantage-crm/vantage-crm/internal/automation"
	jobmetrics "github.com/vantage-crm/vantage-crm/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SweepJob adapts one automation engine entrypoint to an Asynq handler.
type SweepJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics

	taskType string
	run      func(context.Context) (automation.Report, error)
}

func newSweepJob(taskType string, run func(context.Context) (automation.Report, error), logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	return &SweepJob{Logger: logger, Metrics: metrics, taskType: taskType, run: run}
}

// NewLeadFollowUpsJob builds the hourly stale-lead follow-up handler.
func NewLeadFollowUpsJob(engine *automation.Engine, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	return newSweepJob(TaskLeadFollowUps, engine.RunInactiveLeadFollowUps, logger, metrics)
}

// NewCallbackFollowUpsJob builds the hourly call-back follow-up handler.
func NewCallbackFollowUpsJob(engine *automation.Engine, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	return newSweepJob(TaskCallbackFollowUps, engine.RunCallbackFollowUps, logger, metrics)
}

// NewLeadHygieneJob builds the daily composite lead hygiene handler.
func NewLeadHygieneJob(engine *automation.Engine, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	return newSweepJob(TaskLeadHygiene, engine.RunLeadHygiene, logger, metrics)
}

// NewPaymentRemindersJob builds the daily invoice reminder handler.
func NewPaymentRemindersJob(engine *automation.Engine, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	return newSweepJob(TaskPaymentReminders, engine.RunPaymentReminders, logger, metrics)
}

// NewContractSweepJob builds the daily AMC expiry and renewal handler.
func NewContractSweepJob(engine *automation.Engine, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	return newSweepJob(TaskContractSweep, engine.RunContractSweep, logger, metrics)
}

// NewOverdueSweepJob builds the daily overdue invoice handler.
func NewOverdueSweepJob(engine *automation.Engine, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	return newSweepJob(TaskOverdueSweep, engine.RunOverdueSweep, logger, metrics)
}

// Handle executes the sweep.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.run == nil {
		return errors.New("sweep job: handler not configured")
	}
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.metrics().Track(j.taskType)
	logger := j.logger().With(slog.String("triggered_by", payload.TriggeredBy))
	logger.Info("starting sweep")

	report, err := j.run(ctx)
	j.metrics().AddEffects(j.taskType, "applied", report.Applied)
	j.metrics().AddEffects(j.taskType, "failed", report.Failed)
	if err = tracker.End(err); err != nil {
		logger.Error("sweep failed", slog.Any("error", err))
		return err
	}

	logger.Info("completed sweep",
		slog.Int("scanned", report.Scanned),
		slog.Int("applied", report.Applied),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *SweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", j.taskType))
	}
	return slog.Default().With(slog.String("job", j.taskType))
}

func (j *SweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
