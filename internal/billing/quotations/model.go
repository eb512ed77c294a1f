package quotations

import (
	"fmt"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Status is the quotation lifecycle state. Exactly one is active at a time.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSent      Status = "Sent"
	StatusViewed    Status = "Viewed"
	StatusAccepted  Status = "Accepted"
	StatusRejected  Status = "Rejected"
	StatusExpired   Status = "Expired"
	StatusConverted Status = "Converted"
)

// ApprovalStatus is the independent approval axis.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// statusGraph lists the legal forward transitions. Converted is handled
// separately because it is reachable from any non-Converted state.
var statusGraph = map[Status][]Status{
	StatusDraft:  {StatusSent},
	StatusSent:   {StatusViewed},
	StatusViewed: {StatusAccepted, StatusRejected, StatusExpired},
}

// Item is a quotation line. Tax and total amounts are always recomputed from
// the other fields, never mutated independently.
type Item struct {
	ID           int64                `json:"id"`
	QuotationID  int64                `json:"quotation_id"`
	Description  string               `json:"description"`
	Quantity     float64              `json:"quantity"`
	UnitPrice    float64              `json:"unit_price"`
	Discount     float64              `json:"discount"`
	DiscountType pricing.DiscountType `json:"discount_type"`
	TaxRate      float64              `json:"tax_rate"`
	TaxAmount    float64              `json:"tax_amount"`
	TotalAmount  float64              `json:"total_amount"`
	SortOrder    int                  `json:"sort_order"`
}

// Quotation is the priced offer document.
type Quotation struct {
	ID                 int64          `json:"id"`
	Number             string         `json:"number"`
	ClientID           int64          `json:"client_id"`
	LeadID             *int64         `json:"lead_id,omitempty"`
	QuoteDate          time.Time      `json:"quote_date"`
	ValidUntil         time.Time      `json:"valid_until"`
	Status             Status         `json:"status"`
	ApprovalStatus     ApprovalStatus `json:"approval_status"`
	Subtotal           float64        `json:"subtotal"`
	TotalDiscount      float64        `json:"total_discount"`
	TotalTax           float64        `json:"total_tax"`
	GrandTotal         float64        `json:"grand_total"`
	ConvertedToInvoice *int64         `json:"converted_to_invoice,omitempty"`
	Notes              *string        `json:"notes,omitempty"`
	CreatedBy          int64          `json:"created_by"`
	ApprovedBy         *int64         `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time     `json:"approved_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Items              []Item         `json:"items,omitempty"`
}

// TransitionStatus moves the quotation along the legal graph.
func (q *Quotation) TransitionStatus(to Status) error {
	if to == StatusConverted {
		if err := q.CanConvert(); err != nil {
			return err
		}
		q.Status = StatusConverted
		return nil
	}
	for _, next := range statusGraph[q.Status] {
		if next == to {
			q.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: quotation %s -> %s", shared.ErrInvalidTransition, q.Status, to)
}

// CanConvert reports whether the quotation may become an invoice: it must be
// Approved and not yet Converted.
func (q *Quotation) CanConvert() error {
	if q.Status == StatusConverted {
		return fmt.Errorf("%w: quotation %s already converted", shared.ErrInvalidTransition, q.Number)
	}
	if q.ApprovalStatus != ApprovalApproved {
		return fmt.Errorf("%w: quotation %s is not approved", shared.ErrInvalidTransition, q.Number)
	}
	return nil
}

// Approve resolves the approval axis. Pending is the only state it leaves.
func (q *Quotation) Approve() error {
	if q.ApprovalStatus != ApprovalPending {
		return fmt.Errorf("%w: approval already %s", shared.ErrInvalidTransition, q.ApprovalStatus)
	}
	q.ApprovalStatus = ApprovalApproved
	return nil
}

// RejectApproval resolves the approval axis terminally.
func (q *Quotation) RejectApproval() error {
	if q.ApprovalStatus != ApprovalPending {
		return fmt.Errorf("%w: approval already %s", shared.ErrInvalidTransition, q.ApprovalStatus)
	}
	q.ApprovalStatus = ApprovalRejected
	return nil
}

// ItemsEditable reports whether line items may still change.
func (q *Quotation) ItemsEditable() bool {
	return q.Status == StatusDraft
}
