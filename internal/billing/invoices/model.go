package invoices

import (
	"fmt"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSent      Status = "Sent"
	StatusPartial   Status = "Partial"
	StatusPaid      Status = "Paid"
	StatusOverdue   Status = "Overdue"
	StatusCancelled Status = "Cancelled"
)

// PaymentStatus is derived solely from amountPaid vs grandTotal.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "Unpaid"
	PaymentPartial PaymentStatus = "Partial"
	PaymentPaid    PaymentStatus = "Paid"
)

// DerivePaymentStatus applies the three-way rule.
func DerivePaymentStatus(amountPaid, grandTotal float64) PaymentStatus {
	switch {
	case amountPaid <= 0:
		return PaymentUnpaid
	case amountPaid >= grandTotal:
		return PaymentPaid
	default:
		return PaymentPartial
	}
}

// Item is an invoice line with the GST split. Amount fields are derived.
type Item struct {
	ID           int64                `json:"id"`
	InvoiceID    int64                `json:"invoice_id"`
	Description  string               `json:"description"`
	Quantity     float64              `json:"quantity"`
	UnitPrice    float64              `json:"unit_price"`
	Discount     float64              `json:"discount"`
	DiscountType pricing.DiscountType `json:"discount_type"`
	CGSTRate     float64              `json:"cgst_rate"`
	SGSTRate     float64              `json:"sgst_rate"`
	IGSTRate     float64              `json:"igst_rate"`
	TaxAmount    float64              `json:"tax_amount"`
	TotalAmount  float64              `json:"total_amount"`
	SortOrder    int                  `json:"sort_order"`
}

// Invoice is the billing document; it owns its items and the references to
// payments recorded against it.
type Invoice struct {
	ID            int64         `json:"id"`
	Number        string        `json:"number"`
	ClientID      int64         `json:"client_id"`
	QuotationID   *int64        `json:"quotation_id,omitempty"`
	InvoiceDate   time.Time     `json:"invoice_date"`
	DueDate       time.Time     `json:"due_date"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Subtotal      float64       `json:"subtotal"`
	TotalDiscount float64       `json:"total_discount"`
	TotalTax      float64       `json:"total_tax"`
	GrandTotal    float64       `json:"grand_total"`
	AmountPaid    float64       `json:"amount_paid"`
	BalanceAmount float64       `json:"balance_amount"`
	Notes         *string       `json:"notes,omitempty"`
	CreatedBy     int64         `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Items         []Item        `json:"items,omitempty"`
	PaymentIDs    []int64       `json:"payment_ids,omitempty"`
}

// SyncPaymentState re-derives paymentStatus, balance and the payment-driven
// part of status from amountPaid. A reversal out of Paid falls back to Sent.
func (inv *Invoice) SyncPaymentState() {
	inv.BalanceAmount = inv.GrandTotal - inv.AmountPaid
	inv.PaymentStatus = DerivePaymentStatus(inv.AmountPaid, inv.GrandTotal)
	switch inv.PaymentStatus {
	case PaymentPaid:
		inv.Status = StatusPaid
	case PaymentPartial:
		inv.Status = StatusPartial
	case PaymentUnpaid:
		if inv.Status == StatusPaid || inv.Status == StatusPartial {
			inv.Status = StatusSent
		}
	}
}

// ApplyTotals installs recomputed aggregates, preserving amountPaid.
// The balance is always re-derived from the existing payments.
func (inv *Invoice) ApplyTotals(totals pricing.DocumentTotals) {
	inv.Subtotal = totals.Subtotal
	inv.TotalDiscount = totals.TotalDiscount
	inv.TotalTax = totals.TotalTax
	inv.GrandTotal = totals.GrandTotal
	inv.SyncPaymentState()
}

// MarkSent moves a Draft invoice to Sent.
func (inv *Invoice) MarkSent() error {
	if inv.Status != StatusDraft {
		return fmt.Errorf("%w: invoice %s -> %s", shared.ErrInvalidTransition, inv.Status, StatusSent)
	}
	inv.Status = StatusSent
	return nil
}

// Cancel is legal only from Draft or Sent, never from Paid.
func (inv *Invoice) Cancel() error {
	if inv.Status != StatusDraft && inv.Status != StatusSent {
		return fmt.Errorf("%w: invoice %s cannot be cancelled from %s", shared.ErrInvalidTransition, inv.Number, inv.Status)
	}
	inv.Status = StatusCancelled
	return nil
}

// MarkOverdue applies the sweep label when the invoice is due and unpaid.
func (inv *Invoice) MarkOverdue(now time.Time) error {
	if inv.Status == StatusCancelled {
		return fmt.Errorf("%w: cancelled invoice cannot become overdue", shared.ErrInvalidTransition)
	}
	if inv.PaymentStatus != PaymentUnpaid && inv.PaymentStatus != PaymentPartial {
		return fmt.Errorf("%w: invoice %s is settled", shared.ErrInvalidTransition, inv.Number)
	}
	if !inv.DueDate.Before(now) {
		return fmt.Errorf("%w: invoice %s is not yet due", shared.ErrInvalidTransition, inv.Number)
	}
	inv.Status = StatusOverdue
	return nil
}

// ItemsEditable reports whether line items may still change.
func (inv *Invoice) ItemsEditable() bool {
	return inv.PaymentStatus != PaymentPaid
}
