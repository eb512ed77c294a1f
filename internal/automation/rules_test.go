package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/amc"
	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/crm/calllogs"
	"github.com/vantage-crm/vantage-crm/internal/crm/leads"
	"github.com/vantage-crm/vantage-crm/internal/tasks"
)

var ruleNow = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

func staleLead(id int64, status, stage string, idleDays int) leads.Lead {
	return leads.Lead{
		ID:        id,
		Name:      "Lead",
		Status:    status,
		Stage:     stage,
		Priority:  leads.PriorityMedium,
		CreatedAt: ruleNow.AddDate(0, 0, -idleDays-1),
		UpdatedAt: ruleNow.AddDate(0, 0, -idleDays),
	}
}

func TestInactiveLeadFollowUps(t *testing.T) {
	th := DefaultThresholds()
	candidates := []leads.Lead{
		staleLead(1, leads.StatusOpen, leads.StageNew, 8),
		staleLead(2, leads.StatusInProgress, leads.StageQualified, 10),
		staleLead(3, leads.StatusOpen, leads.StageNew, 2),
		staleLead(4, leads.StatusLost, leads.StageLost, 30),
	}
	open := map[int64]bool{2: true}

	effects := InactiveLeadFollowUps(ruleNow, th, candidates, open)
	require.Len(t, effects, 1)

	task, ok := effects[0].(CreateTask)
	require.True(t, ok)
	require.Equal(t, tasks.PriorityHigh, task.Priority)
	require.Equal(t, tasks.RelatedRef{Module: tasks.ModuleLead, RecordID: 1}, task.RelatedTo)
	require.NotNil(t, task.DueDate)
	require.Equal(t, ruleNow.Add(24*time.Hour), *task.DueDate)
}

func TestCallbackFollowUps(t *testing.T) {
	candidates := []calllogs.CallLog{
		{ID: 1, Outcome: calllogs.OutcomeCallBack, CreatedAt: ruleNow.Add(-2 * time.Hour)},
		{ID: 2, Outcome: calllogs.OutcomeCallBack, CreatedAt: ruleNow.Add(-30 * time.Hour)},
		{ID: 3, Outcome: calllogs.OutcomeCallBack, FollowUpRequired: true, CreatedAt: ruleNow.Add(-time.Hour)},
		{ID: 4, Outcome: calllogs.OutcomeConnected, CreatedAt: ruleNow.Add(-time.Hour)},
	}

	effects := CallbackFollowUps(ruleNow, candidates)
	require.Len(t, effects, 2)

	task, ok := effects[0].(CreateTask)
	require.True(t, ok)
	require.Equal(t, tasks.RelatedRef{Module: tasks.ModuleCallLog, RecordID: 1}, task.RelatedTo)

	mark, ok := effects[1].(MarkCallLogFollowUp)
	require.True(t, ok)
	require.Equal(t, int64(1), mark.CallLogID)
}

func TestDeprioritizeInactive(t *testing.T) {
	th := DefaultThresholds()
	already := staleLead(3, leads.StatusInProgress, leads.StageQualified, 20)
	already.Priority = leads.PriorityLow
	candidates := []leads.Lead{
		staleLead(1, leads.StatusInProgress, leads.StageQualified, 20),
		staleLead(2, leads.StatusInProgress, leads.StageWon, 20),
		already,
		staleLead(4, leads.StatusOpen, leads.StageNew, 20),
		staleLead(5, leads.StatusInProgress, leads.StageQualified, 10),
	}

	effects := DeprioritizeInactive(ruleNow, th, candidates)
	require.Len(t, effects, 1)

	update, ok := effects[0].(UpdateLead)
	require.True(t, ok)
	require.Equal(t, int64(1), update.Lead.ID)
	require.Equal(t, leads.PriorityLow, update.Lead.Priority)
	require.Equal(t, "lead.deprioritized", update.AuditAction)
}

func TestSLAEscalations(t *testing.T) {
	th := DefaultThresholds()
	big := staleLead(1, leads.StatusInProgress, leads.StageQualified, 20)
	big.ExpectedRevenue = 75000
	big.CreatedBy = 9

	late := staleLead(2, leads.StatusInProgress, leads.StageNegotiation, 20)
	late.ExpectedRevenue = 75000

	small := staleLead(3, leads.StatusInProgress, leads.StageQualified, 20)
	small.ExpectedRevenue = 40000

	effects := SLAEscalations(ruleNow, th, []leads.Lead{big, late, small}, nil)
	require.Len(t, effects, 2)

	task, ok := effects[0].(CreateTask)
	require.True(t, ok)
	require.Equal(t, tasks.PriorityCritical, task.Priority)
	require.NotNil(t, task.AssignedTo)
	require.Equal(t, int64(9), *task.AssignedTo)

	update, ok := effects[1].(UpdateLead)
	require.True(t, ok)
	require.Equal(t, leads.PriorityCritical, update.Lead.Priority)
}

func TestSLAEscalationSkipsTaskWhenOneOpen(t *testing.T) {
	th := DefaultThresholds()
	big := staleLead(1, leads.StatusInProgress, leads.StageQualified, 20)
	big.ExpectedRevenue = 75000

	effects := SLAEscalations(ruleNow, th, []leads.Lead{big}, map[int64]bool{1: true})
	require.Len(t, effects, 1)
	_, ok := effects[0].(UpdateLead)
	require.True(t, ok)
}

func TestAutoQualify(t *testing.T) {
	pipeline := leads.DefaultPipeline()
	candidates := []leads.Lead{
		{ID: 1, Status: leads.StatusOpen, Stage: leads.StageContacted},
		{ID: 2, Status: leads.StatusOpen, Stage: leads.StageNew},
		{ID: 3, Status: leads.StatusLost, Stage: leads.StageContacted},
	}

	effects := AutoQualify(pipeline, candidates)
	require.Len(t, effects, 1)

	update := effects[0].(UpdateLead)
	require.Equal(t, int64(1), update.Lead.ID)
	require.Equal(t, leads.StageQualified, update.Lead.Stage)
	require.Equal(t, 50, update.Lead.Probability)
}

func TestAutoLose(t *testing.T) {
	th := DefaultThresholds()
	clientID := int64(7)
	aged := leads.Lead{ID: 1, Status: leads.StatusOpen, Stage: leads.StageContacted, CreatedAt: ruleNow.AddDate(0, 0, -61)}
	converted := leads.Lead{ID: 2, Status: leads.StatusOpen, Stage: leads.StageContacted, CreatedAt: ruleNow.AddDate(0, 0, -90), ConvertedClientID: &clientID}
	fresh := leads.Lead{ID: 3, Status: leads.StatusOpen, Stage: leads.StageNew, CreatedAt: ruleNow.AddDate(0, 0, -10)}

	effects := AutoLose(ruleNow, th, []leads.Lead{aged, converted, fresh})
	require.Len(t, effects, 1)

	update := effects[0].(UpdateLead)
	require.Equal(t, leads.StatusLost, update.Lead.Status)
	require.Equal(t, leads.StageLost, update.Lead.Stage)
	require.Zero(t, update.Lead.Probability)
	require.NotNil(t, update.Lead.LostReason)
	require.Equal(t, "No Response", *update.Lead.LostReason)
	require.NotNil(t, update.Lead.ClosedAt)
	require.True(t, update.Lead.ClosedAt.Equal(ruleNow))
}

func dueInvoice(id int64, dueInDays int, paymentStatus invoices.PaymentStatus) invoices.Invoice {
	return invoices.Invoice{
		ID:            id,
		Number:        "INV-0001",
		Status:        invoices.StatusSent,
		PaymentStatus: paymentStatus,
		DueDate:       ruleNow.AddDate(0, 0, dueInDays),
		BalanceAmount: 5000,
	}
}

func TestPaymentReminderPriorityScalesWithUrgency(t *testing.T) {
	th := DefaultThresholds()
	th.PaymentReminderDays = 7

	cases := []struct {
		name      string
		dueInDays int
		want      string
	}{
		{"already due", -2, tasks.PriorityCritical},
		{"due tomorrow", 1, tasks.PriorityCritical},
		{"due in three days", 3, tasks.PriorityHigh},
		{"due later in window", 6, tasks.PriorityMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			effects := PaymentReminders(ruleNow, th, []invoices.Invoice{dueInvoice(1, tc.dueInDays, invoices.PaymentUnpaid)}, nil)
			require.Len(t, effects, 1)
			require.Equal(t, tc.want, effects[0].(CreateTask).Priority)
		})
	}
}

func TestPaymentReminderSkips(t *testing.T) {
	th := DefaultThresholds()

	cancelled := dueInvoice(1, 1, invoices.PaymentUnpaid)
	cancelled.Status = invoices.StatusCancelled
	paid := dueInvoice(2, 1, invoices.PaymentPaid)
	farOut := dueInvoice(3, 10, invoices.PaymentUnpaid)
	covered := dueInvoice(4, 1, invoices.PaymentPartial)

	effects := PaymentReminders(ruleNow, th, []invoices.Invoice{cancelled, paid, farOut, covered}, map[int64]bool{4: true})
	require.Empty(t, effects)
}

func renewable(id int64, endInDays int) amc.Contract {
	return amc.Contract{
		ID:            id,
		Status:        amc.StatusActive,
		AutoRenewal:   true,
		ContractValue: 24000,
		EndDate:       ruleNow.AddDate(0, 0, endInDays),
	}
}

func TestRenewalReminders(t *testing.T) {
	th := DefaultThresholds()
	notified := renewable(2, 10)
	notified.RenewalNotificationSent = true
	manual := renewable(3, 10)
	manual.AutoRenewal = false

	effects := RenewalReminders(ruleNow, th, []amc.Contract{renewable(1, 10), notified, manual, renewable(4, 45)})
	require.Len(t, effects, 2)

	task := effects[0].(CreateTask)
	require.Equal(t, tasks.RelatedRef{Module: tasks.ModuleAMC, RecordID: 1}, task.RelatedTo)
	require.Equal(t, MarkRenewalNotified{ContractID: 1}, effects[1])
}

func TestHighValueStalled(t *testing.T) {
	th := DefaultThresholds()
	big := staleLead(1, leads.StatusOpen, leads.StageProposalSent, 6)
	big.ExpectedRevenue = 150000
	modest := staleLead(2, leads.StatusOpen, leads.StageProposalSent, 6)
	modest.ExpectedRevenue = 90000
	fresh := staleLead(3, leads.StatusOpen, leads.StageProposalSent, 2)
	fresh.ExpectedRevenue = 150000

	effects := HighValueStalled(ruleNow, th, []leads.Lead{big, modest, fresh}, nil)
	require.Len(t, effects, 1)
	require.Equal(t, tasks.PriorityCritical, effects[0].(CreateTask).Priority)
}

func TestExpireContracts(t *testing.T) {
	ended := renewable(1, -1)
	running := renewable(2, 5)
	cancelled := renewable(3, -10)
	cancelled.Status = amc.StatusCancelled

	effects := ExpireContracts(ruleNow, []amc.Contract{ended, running, cancelled})
	require.Equal(t, []Effect{ExpireContract{ContractID: 1}}, effects)
}

func TestOverdueInvoices(t *testing.T) {
	past := dueInvoice(1, -1, invoices.PaymentPartial)
	alreadyOverdue := dueInvoice(2, -5, invoices.PaymentUnpaid)
	alreadyOverdue.Status = invoices.StatusOverdue
	future := dueInvoice(3, 2, invoices.PaymentUnpaid)
	cancelled := dueInvoice(4, -5, invoices.PaymentUnpaid)
	cancelled.Status = invoices.StatusCancelled
	settled := dueInvoice(5, -5, invoices.PaymentPaid)

	effects := OverdueInvoices(ruleNow,
		[]invoices.Invoice{past, alreadyOverdue, future, cancelled, settled})
	require.Equal(t, []Effect{MarkInvoiceOverdue{InvoiceID: 1}}, effects)
	require.Equal(t, invoices.StatusSent, past.Status, "rule must not mutate its input")
}
