package payments

import "time"

// Status is the payment record state. Cancelled marks a reversed payment;
// reversed payments no longer count toward the owning invoice's ledger.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

// Payment is a receipt applied against exactly one invoice. The client is
// derived from the invoice at creation time.
type Payment struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	InvoiceID   int64     `json:"invoice_id"`
	ClientID    int64     `json:"client_id"`
	Amount      float64   `json:"amount"`
	PaymentMode string    `json:"payment_mode"`
	PaymentDate time.Time `json:"payment_date"`
	Status      Status    `json:"status"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreatePaymentRequest is the create payload.
type CreatePaymentRequest struct {
	InvoiceID   int64     `json:"invoice_id" validate:"required"`
	Amount      float64   `json:"amount" validate:"gt=0"`
	PaymentMode string    `json:"payment_mode" validate:"required,oneof=Cash Cheque 'Bank Transfer' UPI Card Other"`
	PaymentDate time.Time `json:"payment_date"`
	Notes       *string   `json:"notes"`
}

// ListPaymentsRequest filters and paginates listings.
type ListPaymentsRequest struct {
	InvoiceID int64
	ClientID  int64
	Status    Status
	Page      int
	PerPage   int
}
