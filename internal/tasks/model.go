package tasks

import (
	"fmt"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
	StatusOnHold     Status = "On Hold"
)

// statusGraph lists the legal task transitions. Completed and Cancelled are
// terminal.
var statusGraph = map[Status][]Status{
	StatusToDo:       {StatusInProgress, StatusCompleted, StatusCancelled, StatusOnHold},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusOnHold},
	StatusOnHold:     {StatusToDo, StatusInProgress, StatusCancelled},
}

// OpenStatuses are the states in which a task still demands attention. The
// automation idempotence check counts only these.
var OpenStatuses = []Status{StatusToDo, StatusInProgress, StatusOnHold}

// Priorities.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// Module identifies the kind of record a task points at.
type Module string

const (
	ModuleLead      Module = "leads"
	ModuleClient    Module = "clients"
	ModuleQuotation Module = "quotations"
	ModuleInvoice   Module = "invoices"
	ModulePayment   Module = "payments"
	ModuleAMC       Module = "amc"
	ModuleCallLog   Module = "calllogs"
)

var knownModules = map[Module]bool{
	ModuleLead: true, ModuleClient: true, ModuleQuotation: true,
	ModuleInvoice: true, ModulePayment: true, ModuleAMC: true, ModuleCallLog: true,
}

// RelatedRef is a weak, purely informational reference to the record that
// triggered the task. It is a module kind plus an opaque id, resolved by
// explicit per-kind lookup, never an ownership edge.
type RelatedRef struct {
	Module   Module `json:"module"`
	RecordID int64  `json:"record_id"`
}

// Validate rejects refs with an unknown module kind or missing id.
func (ref RelatedRef) Validate() error {
	if !knownModules[ref.Module] {
		return fmt.Errorf("%w: unknown related module %q", shared.ErrValidation, ref.Module)
	}
	if ref.RecordID <= 0 {
		return fmt.Errorf("%w: related record id must be positive", shared.ErrValidation)
	}
	return nil
}

// Task is a unit of follow-up work, created by users or by the automation
// rules. Automation output is always a Task; there is no other notification
// channel.
type Task struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description,omitempty"`
	Priority    string      `json:"priority"`
	Status      Status      `json:"status"`
	DueDate     *time.Time  `json:"due_date,omitempty"`
	RelatedTo   *RelatedRef `json:"related_to,omitempty"`
	AssignedTo  *int64      `json:"assigned_to,omitempty"`
	CreatedBy   *int64      `json:"created_by,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Transition moves the task along the legal graph.
func (t *Task) Transition(to Status) error {
	for _, next := range statusGraph[t.Status] {
		if next == to {
			t.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: task %s -> %s", shared.ErrInvalidTransition, t.Status, to)
}
