// Package automation holds the scheduled business rules. Each rule is a pure
// function from a snapshot of entities to a list of effects; the Engine loads
// the snapshots, runs the rules and applies the effects one at a time so a
// single bad record never aborts a sweep.
package automation

import (
	"time"

	"github.com/vantage-crm/vantage-crm/internal/crm/leads"
	"github.com/vantage-crm/vantage-crm/internal/tasks"
)

// Effect is one mutation a rule wants applied. Rules only describe effects;
// the Engine owns persistence.
type Effect interface {
	effect()
}

// CreateTask asks for a new open task pointing back at the triggering record.
type CreateTask struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	RelatedTo   tasks.RelatedRef
	AssignedTo  *int64
}

// UpdateLead carries the complete target state of the lead. Rules compute the
// new state from the snapshot they were given so the write is a plain
// last-writer-wins update.
type UpdateLead struct {
	Lead        leads.Lead
	AuditAction string
	AuditNote   string
}

// MarkCallLogFollowUp flips followUpRequired so the call log is not picked up
// again on the next hourly pass.
type MarkCallLogFollowUp struct {
	CallLogID int64
}

// MarkInvoiceOverdue moves the invoice status to Overdue.
type MarkInvoiceOverdue struct {
	InvoiceID int64
}

// ExpireContract moves an Active contract past its end date to Expired.
type ExpireContract struct {
	ContractID int64
}

// MarkRenewalNotified records that the renewal reminder task was raised.
type MarkRenewalNotified struct {
	ContractID int64
}

func (CreateTask) effect()          {}
func (UpdateLead) effect()          {}
func (MarkCallLogFollowUp) effect() {}
func (MarkInvoiceOverdue) effect()  {}
func (ExpireContract) effect()      {}
func (MarkRenewalNotified) effect() {}
