package amc

import "time"

// CreateContractRequest is the create payload. Duration and service count
// are derived server side.
type CreateContractRequest struct {
	ClientID         int64     `json:"client_id" validate:"required"`
	StartDate        time.Time `json:"start_date" validate:"required"`
	EndDate          time.Time `json:"end_date" validate:"required"`
	ServiceFrequency Frequency `json:"service_frequency" validate:"required,oneof=Weekly 'Bi-Weekly' Monthly Quarterly 'Half-Yearly' Yearly"`
	ContractValue    float64   `json:"contract_value" validate:"gte=0"`
	PaymentTerms     *string   `json:"payment_terms"`
	AssignedTo       *int64    `json:"assigned_to"`
	AutoRenewal      bool      `json:"auto_renewal"`
	Notes            *string   `json:"notes"`
}

// UpdateContractRequest edits header fields; nil fields keep their value.
// Date or frequency changes re-derive duration and service count.
type UpdateContractRequest struct {
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	ServiceFrequency *Frequency `json:"service_frequency" validate:"omitempty,oneof=Weekly 'Bi-Weekly' Monthly Quarterly 'Half-Yearly' Yearly"`
	ContractValue    *float64   `json:"contract_value" validate:"omitempty,gte=0"`
	PaymentTerms     *string    `json:"payment_terms"`
	AssignedTo       *int64     `json:"assigned_to"`
	AutoRenewal      *bool      `json:"auto_renewal"`
	Notes            *string    `json:"notes"`
}

// RenewContractRequest carries the successor's end date.
type RenewContractRequest struct {
	NewEndDate time.Time `json:"new_end_date" validate:"required"`
}

// ScheduleServiceRequest appends one visit to the contract.
type ScheduleServiceRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
	Notes         *string   `json:"notes"`
}

// RescheduleServiceRequest moves a visit to a new date.
type RescheduleServiceRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
}

// ListContractsRequest filters and paginates listings.
type ListContractsRequest struct {
	Status   Status
	ClientID int64
	Page     int
	PerPage  int
}
