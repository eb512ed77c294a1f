package quotations

import (
	"time"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
)

// ItemRequest is one line of a create/update payload. Amount fields are
// derived server side and ignored if sent.
type ItemRequest struct {
	Description  string               `json:"description" validate:"required"`
	Quantity     float64              `json:"quantity" validate:"gte=1"`
	UnitPrice    float64              `json:"unit_price" validate:"gte=0"`
	Discount     float64              `json:"discount" validate:"gte=0"`
	DiscountType pricing.DiscountType `json:"discount_type" validate:"omitempty,oneof=Percentage Fixed"`
	TaxRate      float64              `json:"tax_rate" validate:"gte=0"`
	SortOrder    int                  `json:"sort_order"`
}

// CreateQuotationRequest is the create payload.
type CreateQuotationRequest struct {
	ClientID   int64         `json:"client_id" validate:"required"`
	LeadID     *int64        `json:"lead_id"`
	QuoteDate  time.Time     `json:"quote_date" validate:"required"`
	ValidUntil time.Time     `json:"valid_until" validate:"required"`
	Notes      *string       `json:"notes"`
	Items      []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateQuotationRequest is the update payload; nil fields keep their value.
type UpdateQuotationRequest struct {
	QuoteDate  *time.Time     `json:"quote_date"`
	ValidUntil *time.Time     `json:"valid_until"`
	Notes      *string        `json:"notes"`
	Items      *[]ItemRequest `json:"items" validate:"omitempty,min=1,dive"`
}

// ListQuotationsRequest filters and paginates listings.
type ListQuotationsRequest struct {
	Status         Status
	ApprovalStatus ApprovalStatus
	ClientID       int64
	Page           int
	PerPage        int
}
