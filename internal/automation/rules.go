package automation

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vantage-crm/vantage-crm/internal/amc"
	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/crm/calllogs"
	"github.com/vantage-crm/vantage-crm/internal/crm/leads"
	"github.com/vantage-crm/vantage-crm/internal/tasks"
)

// Thresholds are the tunable cut-offs of the rule set. Values arrive from
// configuration; DefaultThresholds matches the documented rule table.
type Thresholds struct {
	FollowUpStaleAfter    time.Duration
	DeprioritizeAfter     time.Duration
	HighValueStalledAfter time.Duration
	AutoLostAfterDays     int
	PaymentReminderDays   int
	RenewalReminderDays   int
	SLARevenueFloor       float64
	HighValueRevenueFloor float64
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FollowUpStaleAfter:    7 * 24 * time.Hour,
		DeprioritizeAfter:     14 * 24 * time.Hour,
		HighValueStalledAfter: 5 * 24 * time.Hour,
		AutoLostAfterDays:     60,
		PaymentReminderDays:   3,
		RenewalReminderDays:   30,
		SLARevenueFloor:       50000,
		HighValueRevenueFloor: 100000,
	}
}

var moneyPrinter = message.NewPrinter(language.English)

func formatMoney(v float64) string {
	return moneyPrinter.Sprintf("%.2f", v)
}

// InactiveLeadFollowUps raises a High follow-up task for every working lead
// that went quiet, unless one is already open for it.
func InactiveLeadFollowUps(now time.Time, th Thresholds, candidates []leads.Lead, openTasks map[int64]bool) []Effect {
	cutoff := now.Add(-th.FollowUpStaleAfter)
	due := now.Add(24 * time.Hour)
	var effects []Effect
	for _, l := range candidates {
		if l.Status != leads.StatusOpen && l.Status != leads.StatusInProgress {
			continue
		}
		if !l.UpdatedAt.Before(cutoff) || openTasks[l.ID] {
			continue
		}
		dueAt := due
		effects = append(effects, CreateTask{
			Title:       fmt.Sprintf("Follow up with %s", l.Name),
			Description: fmt.Sprintf("Lead has had no activity since %s. Expected revenue %s.", l.UpdatedAt.Format("02 Jan 2006"), formatMoney(l.ExpectedRevenue)),
			Priority:    tasks.PriorityHigh,
			DueDate:     &dueAt,
			RelatedTo:   tasks.RelatedRef{Module: tasks.ModuleLead, RecordID: l.ID},
			AssignedTo:  l.AssignedTo,
		})
	}
	return effects
}

// CallbackFollowUps creates a task for every fresh "Call Back Requested" log
// and flags the log so the next pass skips it.
func CallbackFollowUps(now time.Time, candidates []calllogs.CallLog) []Effect {
	windowStart := now.Add(-24 * time.Hour)
	due := now.Add(24 * time.Hour)
	var effects []Effect
	for _, cl := range candidates {
		if cl.Outcome != calllogs.OutcomeCallBack || cl.FollowUpRequired {
			continue
		}
		if cl.CreatedAt.Before(windowStart) {
			continue
		}
		dueAt := due
		effects = append(effects,
			CreateTask{
				Title:       "Return requested call",
				Description: fmt.Sprintf("Caller asked to be called back on %s.", cl.CreatedAt.Format("02 Jan 2006 15:04")),
				Priority:    tasks.PriorityHigh,
				DueDate:     &dueAt,
				RelatedTo:   tasks.RelatedRef{Module: tasks.ModuleCallLog, RecordID: cl.ID},
			},
			MarkCallLogFollowUp{CallLogID: cl.ID},
		)
	}
	return effects
}

// DeprioritizeInactive drops long-stalled In Progress leads to Low priority.
func DeprioritizeInactive(now time.Time, th Thresholds, candidates []leads.Lead) []Effect {
	cutoff := now.Add(-th.DeprioritizeAfter)
	var effects []Effect
	for _, l := range candidates {
		if l.Status != leads.StatusInProgress || l.Stage == leads.StageWon || l.Stage == leads.StageLost {
			continue
		}
		if !l.UpdatedAt.Before(cutoff) || l.Priority == leads.PriorityLow {
			continue
		}
		next := l
		next.Priority = leads.PriorityLow
		effects = append(effects, UpdateLead{
			Lead:        next,
			AuditAction: "lead.deprioritized",
			AuditNote:   fmt.Sprintf("priority lowered to Low after %d days without activity", int(now.Sub(l.UpdatedAt).Hours()/24)),
		})
	}
	return effects
}

// SLAEscalations escalates stalled high-revenue deals: a Critical task goes
// to the lead creator and the lead itself is bumped to Critical priority.
func SLAEscalations(now time.Time, th Thresholds, candidates []leads.Lead, openTasks map[int64]bool) []Effect {
	cutoff := now.Add(-th.DeprioritizeAfter)
	var effects []Effect
	for _, l := range candidates {
		if l.ExpectedRevenue <= th.SLARevenueFloor || l.Status != leads.StatusInProgress {
			continue
		}
		switch l.Stage {
		case leads.StageWon, leads.StageLost, leads.StageProposalSent, leads.StageNegotiation:
			continue
		}
		if !l.UpdatedAt.Before(cutoff) {
			continue
		}
		if !openTasks[l.ID] {
			creator := l.CreatedBy
			effects = append(effects, CreateTask{
				Title:       fmt.Sprintf("SLA breach: %s stalled", l.Name),
				Description: fmt.Sprintf("Deal worth %s has not moved past %s in over %d days.", formatMoney(l.ExpectedRevenue), l.Stage, int(th.DeprioritizeAfter.Hours()/24)),
				Priority:    tasks.PriorityCritical,
				RelatedTo:   tasks.RelatedRef{Module: tasks.ModuleLead, RecordID: l.ID},
				AssignedTo:  &creator,
			})
		}
		if l.Priority != leads.PriorityCritical {
			next := l
			next.Priority = leads.PriorityCritical
			effects = append(effects, UpdateLead{
				Lead:        next,
				AuditAction: "lead.sla_escalated",
				AuditNote:   "priority raised to Critical by SLA escalation",
			})
		}
	}
	return effects
}

// AutoQualify advances every Contacted lead to Qualified.
func AutoQualify(pipeline leads.PipelineConfig, candidates []leads.Lead) []Effect {
	var effects []Effect
	for _, l := range candidates {
		if l.Stage != leads.StageContacted || l.IsClosed() {
			continue
		}
		next := l
		next.Stage = leads.StageQualified
		next.Probability = pipeline.ProbabilityFor(leads.StageQualified)
		effects = append(effects, UpdateLead{
			Lead:        next,
			AuditAction: "lead.auto_qualified",
			AuditNote:   "stage advanced from Contacted to Qualified",
		})
	}
	return effects
}

// AutoLose closes out Open leads that aged past the cut-off without ever
// converting.
func AutoLose(now time.Time, th Thresholds, candidates []leads.Lead) []Effect {
	cutoff := now.AddDate(0, 0, -th.AutoLostAfterDays)
	var effects []Effect
	for _, l := range candidates {
		if l.Status != leads.StatusOpen || l.ConvertedClientID != nil {
			continue
		}
		if !l.CreatedAt.Before(cutoff) {
			continue
		}
		reason := "No Response"
		closedAt := now
		next := l
		next.Status = leads.StatusLost
		next.Stage = leads.StageLost
		next.Probability = 0
		next.LostReason = &reason
		next.ClosedAt = &closedAt
		effects = append(effects, UpdateLead{
			Lead:        next,
			AuditAction: "lead.auto_lost",
			AuditNote:   fmt.Sprintf("closed as Lost after %d days without a response", th.AutoLostAfterDays),
		})
	}
	return effects
}

// PaymentReminders raises a task for every unsettled invoice due within the
// reminder window or already past due. Priority scales with urgency.
func PaymentReminders(now time.Time, th Thresholds, candidates []invoices.Invoice, openTasks map[int64]bool) []Effect {
	horizon := now.AddDate(0, 0, th.PaymentReminderDays)
	var effects []Effect
	for _, inv := range candidates {
		if inv.Status == invoices.StatusCancelled {
			continue
		}
		if inv.PaymentStatus != invoices.PaymentUnpaid && inv.PaymentStatus != invoices.PaymentPartial {
			continue
		}
		if inv.DueDate.After(horizon) || openTasks[inv.ID] {
			continue
		}
		daysUntilDue := int(math.Ceil(inv.DueDate.Sub(now).Hours() / 24))
		priority := tasks.PriorityMedium
		switch {
		case daysUntilDue <= 1:
			priority = tasks.PriorityCritical
		case daysUntilDue <= 3:
			priority = tasks.PriorityHigh
		}
		dueAt := inv.DueDate
		effects = append(effects, CreateTask{
			Title:       fmt.Sprintf("Payment reminder for %s", inv.Number),
			Description: fmt.Sprintf("Outstanding balance %s due %s.", formatMoney(inv.BalanceAmount), inv.DueDate.Format("02 Jan 2006")),
			Priority:    priority,
			DueDate:     &dueAt,
			RelatedTo:   tasks.RelatedRef{Module: tasks.ModuleInvoice, RecordID: inv.ID},
		})
	}
	return effects
}

// RenewalReminders raises a task once per contract when the end date enters
// the renewal window. The notification flag is the idempotence guard.
func RenewalReminders(now time.Time, th Thresholds, candidates []amc.Contract) []Effect {
	horizon := now.AddDate(0, 0, th.RenewalReminderDays)
	var effects []Effect
	for _, c := range candidates {
		if c.Status != amc.StatusActive || !c.AutoRenewal || c.RenewalNotificationSent {
			continue
		}
		if c.EndDate.Before(now) || c.EndDate.After(horizon) {
			continue
		}
		dueAt := c.EndDate
		effects = append(effects,
			CreateTask{
				Title:       fmt.Sprintf("AMC contract #%d up for renewal", c.ID),
				Description: fmt.Sprintf("Contract worth %s ends %s and is set to auto-renew.", formatMoney(c.ContractValue), c.EndDate.Format("02 Jan 2006")),
				Priority:    tasks.PriorityHigh,
				DueDate:     &dueAt,
				RelatedTo:   tasks.RelatedRef{Module: tasks.ModuleAMC, RecordID: c.ID},
				AssignedTo:  c.AssignedTo,
			},
			MarkRenewalNotified{ContractID: c.ID},
		)
	}
	return effects
}

// HighValueStalled alerts on the biggest deals as soon as they sit idle,
// well before the ordinary inactivity rules would fire.
func HighValueStalled(now time.Time, th Thresholds, candidates []leads.Lead, openTasks map[int64]bool) []Effect {
	cutoff := now.Add(-th.HighValueStalledAfter)
	var effects []Effect
	for _, l := range candidates {
		if l.ExpectedRevenue <= th.HighValueRevenueFloor {
			continue
		}
		if l.Status != leads.StatusOpen && l.Status != leads.StatusInProgress {
			continue
		}
		if l.Stage == leads.StageWon || l.Stage == leads.StageLost {
			continue
		}
		if !l.UpdatedAt.Before(cutoff) || openTasks[l.ID] {
			continue
		}
		effects = append(effects, CreateTask{
			Title:       fmt.Sprintf("High-value deal stalled: %s", l.Name),
			Description: fmt.Sprintf("Deal worth %s has been idle since %s.", formatMoney(l.ExpectedRevenue), l.UpdatedAt.Format("02 Jan 2006")),
			Priority:    tasks.PriorityCritical,
			RelatedTo:   tasks.RelatedRef{Module: tasks.ModuleLead, RecordID: l.ID},
			AssignedTo:  l.AssignedTo,
		})
	}
	return effects
}

// ExpireContracts bulk-expires Active contracts past their end date.
func ExpireContracts(now time.Time, candidates []amc.Contract) []Effect {
	var effects []Effect
	for _, c := range candidates {
		if c.Status != amc.StatusActive || !c.EndDate.Before(now) {
			continue
		}
		effects = append(effects, ExpireContract{ContractID: c.ID})
	}
	return effects
}

// OverdueInvoices marks every unsettled invoice past its due date Overdue.
// Eligibility is decided by the invoice transition guard itself, run against
// a copy; the rule only skips invoices that already carry the label.
func OverdueInvoices(now time.Time, candidates []invoices.Invoice) []Effect {
	var effects []Effect
	for _, inv := range candidates {
		if inv.Status == invoices.StatusOverdue {
			continue
		}
		if err := inv.MarkOverdue(now); err != nil {
			continue
		}
		effects = append(effects, MarkInvoiceOverdue{InvoiceID: inv.ID})
	}
	return effects
}
