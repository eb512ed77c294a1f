package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vantage-crm/vantage-crm/internal/amc"
	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/crm/calllogs"
	"github.com/vantage-crm/vantage-crm/internal/crm/leads"
	"github.com/vantage-crm/vantage-crm/internal/shared"
	"github.com/vantage-crm/vantage-crm/internal/tasks"
)

// LeadStore is the slice of the lead repository the rules feed from.
type LeadStore interface {
	ListInactive(ctx context.Context, updatedBefore time.Time) ([]leads.Lead, error)
	ListAgedOpen(ctx context.Context, createdBefore time.Time) ([]leads.Lead, error)
	ListByStage(ctx context.Context, stage string) ([]leads.Lead, error)
	ApplyAutomation(ctx context.Context, l *leads.Lead) error
}

// CallLogStore feeds the call-back rule.
type CallLogStore interface {
	ListPendingCallbacks(ctx context.Context, since time.Time) ([]calllogs.CallLog, error)
	MarkFollowUpRequired(ctx context.Context, id int64) error
}

// InvoiceStore feeds the reminder and overdue sweeps.
type InvoiceStore interface {
	ListDueForReminder(ctx context.Context, by time.Time) ([]invoices.Invoice, error)
	ListOverdue(ctx context.Context, now time.Time) ([]invoices.Invoice, error)
	UpdateStatus(ctx context.Context, id int64, status invoices.Status) error
}

// ContractStore feeds the AMC sweep.
type ContractStore interface {
	ListRenewalDue(ctx context.Context, now, by time.Time) ([]amc.Contract, error)
	ListExpired(ctx context.Context, now time.Time) ([]amc.Contract, error)
	UpdateStatus(ctx context.Context, id int64, status amc.Status) error
	SetRenewalNotified(ctx context.Context, id int64) error
}

// TaskStore creates the rule output tasks and answers the open-task lookup
// that keeps every task-creating rule idempotent.
type TaskStore interface {
	Create(ctx context.Context, t *tasks.Task) (int64, error)
	OpenRefs(ctx context.Context, module tasks.Module) (map[int64]bool, error)
}

// Auditor records the audit notes some lead mutations carry. Satisfied by
// shared.AuditLogger.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Report summarises one sweep for job logging and metrics.
type Report struct {
	Scanned int
	Applied int
	Failed  int
}

// Engine wires the rules to their stores. One Engine serves all six jobs.
type Engine struct {
	leadStore     LeadStore
	callLogStore  CallLogStore
	invoiceStore  InvoiceStore
	contractStore ContractStore
	taskStore     TaskStore
	pipeline      leads.PipelineProvider
	audit         Auditor
	logger        *slog.Logger
	thresholds    Thresholds
	clock         func() time.Time
}

// EngineConfig collects Engine dependencies.
type EngineConfig struct {
	Leads      LeadStore
	CallLogs   CallLogStore
	Invoices   InvoiceStore
	Contracts  ContractStore
	Tasks      TaskStore
	Pipeline   leads.PipelineProvider
	Audit      Auditor
	Logger     *slog.Logger
	Thresholds Thresholds
}

// NewEngine builds an Engine. A zero Thresholds falls back to defaults.
func NewEngine(cfg EngineConfig) *Engine {
	th := cfg.Thresholds
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		leadStore:     cfg.Leads,
		callLogStore:  cfg.CallLogs,
		invoiceStore:  cfg.Invoices,
		contractStore: cfg.Contracts,
		taskStore:     cfg.Tasks,
		pipeline:      cfg.Pipeline,
		audit:         cfg.Audit,
		logger:        logger,
		thresholds:    th,
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// RunInactiveLeadFollowUps is the hourly stale-lead pass.
func (e *Engine) RunInactiveLeadFollowUps(ctx context.Context) (Report, error) {
	now := e.clock()
	candidates, err := e.leadStore.ListInactive(ctx, now.Add(-e.thresholds.FollowUpStaleAfter))
	if err != nil {
		return Report{}, fmt.Errorf("list inactive leads: %w", err)
	}
	openTasks, err := e.taskStore.OpenRefs(ctx, tasks.ModuleLead)
	if err != nil {
		return Report{}, fmt.Errorf("load open lead tasks: %w", err)
	}
	effects := InactiveLeadFollowUps(now, e.thresholds, candidates, openTasks)
	report := e.apply(ctx, "inactive_lead_followups", effects)
	report.Scanned = len(candidates)
	return report, nil
}

// RunCallbackFollowUps is the hourly call-back pass.
func (e *Engine) RunCallbackFollowUps(ctx context.Context) (Report, error) {
	now := e.clock()
	candidates, err := e.callLogStore.ListPendingCallbacks(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Report{}, fmt.Errorf("list pending callbacks: %w", err)
	}
	effects := CallbackFollowUps(now, candidates)
	report := e.apply(ctx, "callback_followups", effects)
	report.Scanned = len(candidates)
	return report, nil
}

// RunLeadHygiene is the daily composite pass: de-prioritization, SLA
// escalation, auto-qualify, auto-lost and high-value alerts. The sub-rules
// are independent, so they run concurrently; a failing sub-rule is logged
// and never aborts its siblings.
func (e *Engine) RunLeadHygiene(ctx context.Context) (Report, error) {
	now := e.clock()
	th := e.thresholds

	openTasks, err := e.taskStore.OpenRefs(ctx, tasks.ModuleLead)
	if err != nil {
		return Report{}, fmt.Errorf("load open lead tasks: %w", err)
	}
	pipeline, err := e.pipeline.Pipeline(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load pipeline: %w", err)
	}

	var (
		mu      sync.Mutex
		total   Report
		failed  []error
		g       errgroup.Group
		collect = func(name string, report Report, err error) {
			mu.Lock()
			defer mu.Unlock()
			total.Scanned += report.Scanned
			total.Applied += report.Applied
			total.Failed += report.Failed
			if err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", name, err))
				e.logger.Error("lead hygiene sub-rule failed", slog.String("rule", name), slog.Any("error", err))
			}
		}
	)
	g.SetLimit(4)

	g.Go(func() error {
		// The 5-day cut-off is the loosest of the three inactivity
		// rules, so one fetch feeds all of them.
		stale, err := e.leadStore.ListInactive(ctx, now.Add(-th.HighValueStalledAfter))
		if err != nil {
			collect("inactivity", Report{}, err)
			return nil
		}
		effects := DeprioritizeInactive(now, th, stale)
		effects = append(effects, SLAEscalations(now, th, stale, openTasks)...)
		effects = append(effects, HighValueStalled(now, th, stale, openTasks)...)
		report := e.apply(ctx, "lead_inactivity", effects)
		report.Scanned = len(stale)
		collect("inactivity", report, nil)
		return nil
	})

	g.Go(func() error {
		contacted, err := e.leadStore.ListByStage(ctx, leads.StageContacted)
		if err != nil {
			collect("auto_qualify", Report{}, err)
			return nil
		}
		report := e.apply(ctx, "auto_qualify", AutoQualify(pipeline, contacted))
		report.Scanned = len(contacted)
		collect("auto_qualify", report, nil)
		return nil
	})

	g.Go(func() error {
		aged, err := e.leadStore.ListAgedOpen(ctx, now.AddDate(0, 0, -th.AutoLostAfterDays))
		if err != nil {
			collect("auto_lost", Report{}, err)
			return nil
		}
		report := e.apply(ctx, "auto_lost", AutoLose(now, th, aged))
		report.Scanned = len(aged)
		collect("auto_lost", report, nil)
		return nil
	})

	_ = g.Wait()
	return total, errors.Join(failed...)
}

// RunPaymentReminders is the daily invoice reminder pass.
func (e *Engine) RunPaymentReminders(ctx context.Context) (Report, error) {
	now := e.clock()
	candidates, err := e.invoiceStore.ListDueForReminder(ctx, now.AddDate(0, 0, e.thresholds.PaymentReminderDays))
	if err != nil {
		return Report{}, fmt.Errorf("list invoices due: %w", err)
	}
	openTasks, err := e.taskStore.OpenRefs(ctx, tasks.ModuleInvoice)
	if err != nil {
		return Report{}, fmt.Errorf("load open invoice tasks: %w", err)
	}
	effects := PaymentReminders(now, e.thresholds, candidates, openTasks)
	report := e.apply(ctx, "payment_reminders", effects)
	report.Scanned = len(candidates)
	return report, nil
}

// RunContractSweep is the daily AMC pass: expire ended contracts and raise
// renewal reminders for the ones entering the window.
func (e *Engine) RunContractSweep(ctx context.Context) (Report, error) {
	now := e.clock()
	var total Report
	var failed []error

	expired, err := e.contractStore.ListExpired(ctx, now)
	if err != nil {
		failed = append(failed, fmt.Errorf("list expired contracts: %w", err))
	} else {
		report := e.apply(ctx, "contract_expiry", ExpireContracts(now, expired))
		report.Scanned = len(expired)
		total.Scanned += report.Scanned
		total.Applied += report.Applied
		total.Failed += report.Failed
	}

	renewable, err := e.contractStore.ListRenewalDue(ctx, now, now.AddDate(0, 0, e.thresholds.RenewalReminderDays))
	if err != nil {
		failed = append(failed, fmt.Errorf("list renewal-due contracts: %w", err))
	} else {
		report := e.apply(ctx, "renewal_reminders", RenewalReminders(now, e.thresholds, renewable))
		report.Scanned = len(renewable)
		total.Scanned += report.Scanned
		total.Applied += report.Applied
		total.Failed += report.Failed
	}

	return total, errors.Join(failed...)
}

// RunOverdueSweep is the daily pass that flips past-due invoices to Overdue.
func (e *Engine) RunOverdueSweep(ctx context.Context) (Report, error) {
	now := e.clock()
	candidates, err := e.invoiceStore.ListOverdue(ctx, now)
	if err != nil {
		return Report{}, fmt.Errorf("list overdue invoices: %w", err)
	}
	effects := OverdueInvoices(now, candidates)
	report := e.apply(ctx, "overdue_sweep", effects)
	report.Scanned = len(candidates)
	return report, nil
}

// apply persists each effect in turn. A failing effect is logged under the
// run ID and skipped; a crash mid-sweep only loses the tail, and the rules
// are idempotent so the next run picks it up.
func (e *Engine) apply(ctx context.Context, rule string, effects []Effect) Report {
	report := Report{}
	if len(effects) == 0 {
		return report
	}
	runID := uuid.NewString()
	logger := e.logger.With(slog.String("rule", rule), slog.String("run_id", runID))

	for _, effect := range effects {
		var err error
		switch ef := effect.(type) {
		case CreateTask:
			err = e.createTask(ctx, ef)
		case UpdateLead:
			err = e.updateLead(ctx, runID, ef)
		case MarkCallLogFollowUp:
			err = e.callLogStore.MarkFollowUpRequired(ctx, ef.CallLogID)
		case MarkInvoiceOverdue:
			err = e.invoiceStore.UpdateStatus(ctx, ef.InvoiceID, invoices.StatusOverdue)
		case ExpireContract:
			err = e.contractStore.UpdateStatus(ctx, ef.ContractID, amc.StatusExpired)
		case MarkRenewalNotified:
			err = e.contractStore.SetRenewalNotified(ctx, ef.ContractID)
		default:
			err = fmt.Errorf("unknown effect %T", effect)
		}
		if err != nil {
			report.Failed++
			logger.Error("apply effect", slog.Any("error", err))
			continue
		}
		report.Applied++
	}

	logger.Info("rule applied",
		slog.Int("effects", len(effects)),
		slog.Int("applied", report.Applied),
		slog.Int("failed", report.Failed),
	)
	return report
}

func (e *Engine) createTask(ctx context.Context, ef CreateTask) error {
	description := ef.Description
	task := &tasks.Task{
		Title:      ef.Title,
		Priority:   ef.Priority,
		Status:     tasks.StatusToDo,
		DueDate:    ef.DueDate,
		RelatedTo:  &ef.RelatedTo,
		AssignedTo: ef.AssignedTo,
	}
	if description != "" {
		task.Description = &description
	}
	_, err := e.taskStore.Create(ctx, task)
	return err
}

func (e *Engine) updateLead(ctx context.Context, runID string, ef UpdateLead) error {
	lead := ef.Lead
	if err := e.leadStore.ApplyAutomation(ctx, &lead); err != nil {
		return err
	}
	if e.audit == nil || ef.AuditAction == "" {
		return nil
	}
	if err := e.audit.Record(ctx, shared.AuditLog{
		Action:   ef.AuditAction,
		Entity:   "leads",
		EntityID: fmt.Sprintf("%d", lead.ID),
		Meta:     map[string]any{"note": ef.AuditNote, "run_id": runID},
	}); err != nil {
		// Audit is best effort, the mutation already landed.
		e.logger.Warn("audit record", slog.Any("error", err))
	}
	return nil
}
