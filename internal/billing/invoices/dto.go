package invoices

import (
	"time"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
)

// ItemRequest is one invoice line of a create/update payload. Omitted GST
// rates fall back to the 9/9/0 default split.
type ItemRequest struct {
	Description  string               `json:"description" validate:"required"`
	Quantity     float64              `json:"quantity" validate:"gte=1"`
	UnitPrice    float64              `json:"unit_price" validate:"gte=0"`
	Discount     float64              `json:"discount" validate:"gte=0"`
	DiscountType pricing.DiscountType `json:"discount_type" validate:"omitempty,oneof=Percentage Fixed"`
	CGSTRate     *float64             `json:"cgst_rate" validate:"omitempty,gte=0"`
	SGSTRate     *float64             `json:"sgst_rate" validate:"omitempty,gte=0"`
	IGSTRate     *float64             `json:"igst_rate" validate:"omitempty,gte=0"`
	SortOrder    int                  `json:"sort_order"`
}

// CreateInvoiceRequest is the create payload.
type CreateInvoiceRequest struct {
	ClientID    int64         `json:"client_id" validate:"required"`
	InvoiceDate time.Time     `json:"invoice_date" validate:"required"`
	DueDate     time.Time     `json:"due_date" validate:"required"`
	Notes       *string       `json:"notes"`
	Items       []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateInvoiceRequest is the update payload; nil fields keep their value.
type UpdateInvoiceRequest struct {
	InvoiceDate *time.Time     `json:"invoice_date"`
	DueDate     *time.Time     `json:"due_date"`
	Notes       *string        `json:"notes"`
	Items       *[]ItemRequest `json:"items" validate:"omitempty,min=1,dive"`
}

// ListInvoicesRequest filters and paginates listings.
type ListInvoicesRequest struct {
	Status        Status
	PaymentStatus PaymentStatus
	ClientID      int64
	DueBefore     *time.Time
	Page          int
	PerPage       int
}
