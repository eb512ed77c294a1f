package amc

import (
	"fmt"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Status is the contract lifecycle state. Expired, Renewed and Cancelled are
// terminal for the instance; a renewal produces a new contract.
type Status string

const (
	StatusActive    Status = "Active"
	StatusExpired   Status = "Expired"
	StatusRenewed   Status = "Renewed"
	StatusCancelled Status = "Cancelled"
	StatusOnHold    Status = "On Hold"
)

// Frequency is the contracted visit cadence.
type Frequency string

const (
	FreqWeekly     Frequency = "Weekly"
	FreqBiWeekly   Frequency = "Bi-Weekly"
	FreqMonthly    Frequency = "Monthly"
	FreqQuarterly  Frequency = "Quarterly"
	FreqHalfYearly Frequency = "Half-Yearly"
	FreqYearly     Frequency = "Yearly"
)

// ServiceStatus is the sub-lifecycle of one scheduled visit.
type ServiceStatus string

const (
	ServiceScheduled   ServiceStatus = "Scheduled"
	ServiceCompleted   ServiceStatus = "Completed"
	ServiceMissed      ServiceStatus = "Missed"
	ServiceRescheduled ServiceStatus = "Rescheduled"
	ServiceCancelled   ServiceStatus = "Cancelled"
)

// serviceGraph lists the legal visit transitions. Completed, Missed and
// Cancelled are terminal.
var serviceGraph = map[ServiceStatus][]ServiceStatus{
	ServiceScheduled:   {ServiceCompleted, ServiceMissed, ServiceRescheduled, ServiceCancelled},
	ServiceRescheduled: {ServiceCompleted, ServiceMissed, ServiceCancelled},
}

// ServiceRecord is one visit under a contract. Records are append-only; a
// visit is never removed, only moved through its sub-lifecycle.
type ServiceRecord struct {
	ID            int64         `json:"id"`
	ContractID    int64         `json:"contract_id"`
	ScheduledDate time.Time     `json:"scheduled_date"`
	Status        ServiceStatus `json:"status"`
	Notes         *string       `json:"notes,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CompletedBy   *int64        `json:"completed_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Transition moves the visit along the legal graph.
func (sr *ServiceRecord) Transition(to ServiceStatus) error {
	for _, next := range serviceGraph[sr.Status] {
		if next == to {
			sr.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: service %s -> %s", shared.ErrInvalidTransition, sr.Status, to)
}

// Contract is an annual maintenance contract with its derived visit schedule.
// DurationMonths and NumberOfServices are always re-derived from the dates
// and frequency, never set by callers.
type Contract struct {
	ID                      int64           `json:"id"`
	ClientID                int64           `json:"client_id"`
	StartDate               time.Time       `json:"start_date"`
	EndDate                 time.Time       `json:"end_date"`
	DurationMonths          int             `json:"duration_months"`
	ServiceFrequency        Frequency       `json:"service_frequency"`
	NumberOfServices        int             `json:"number_of_services"`
	ServicesCompleted       int             `json:"services_completed"`
	ContractValue           float64         `json:"contract_value"`
	PaymentTerms            *string         `json:"payment_terms,omitempty"`
	AssignedTo              *int64          `json:"assigned_to,omitempty"`
	Status                  Status          `json:"status"`
	AutoRenewal             bool            `json:"auto_renewal"`
	RenewalNotificationSent bool            `json:"renewal_notification_sent"`
	RenewedFrom             *int64          `json:"renewed_from,omitempty"`
	RenewedTo               *int64          `json:"renewed_to,omitempty"`
	Notes                   *string         `json:"notes,omitempty"`
	CreatedBy               int64           `json:"created_by"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
	Services                []ServiceRecord `json:"services,omitempty"`
}

// RefreshStatus applies the date-driven expiry and reports whether the
// status changed. Only Active contracts expire.
func (c *Contract) RefreshStatus(now time.Time) bool {
	if c.Status == StatusActive && c.EndDate.Before(now) {
		c.Status = StatusExpired
		return true
	}
	return false
}

// Hold pauses an Active contract.
func (c *Contract) Hold() error {
	if c.Status != StatusActive {
		return fmt.Errorf("%w: contract %d cannot be held from %s", shared.ErrInvalidTransition, c.ID, c.Status)
	}
	c.Status = StatusOnHold
	return nil
}

// Resume reactivates a held contract.
func (c *Contract) Resume() error {
	if c.Status != StatusOnHold {
		return fmt.Errorf("%w: contract %d cannot resume from %s", shared.ErrInvalidTransition, c.ID, c.Status)
	}
	c.Status = StatusActive
	return nil
}

// Cancel terminates an Active or held contract.
func (c *Contract) Cancel() error {
	if c.Status != StatusActive && c.Status != StatusOnHold {
		return fmt.Errorf("%w: contract %d cannot be cancelled from %s", shared.ErrInvalidTransition, c.ID, c.Status)
	}
	c.Status = StatusCancelled
	return nil
}
