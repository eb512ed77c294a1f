package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// CreatePaymentInput is the resolved input handed to the repository. The
// repository applies it inside a single transaction against the invoice row.
type CreatePaymentInput struct {
	Number      string
	InvoiceID   int64
	Amount      float64
	PaymentMode string
	PaymentDate time.Time
	Notes       *string
	CreatedBy   int64
}

// RepositoryPort defines data access methods for payments. Apply and Reverse
// are transactional against the owning invoice to avoid lost ledger updates.
type RepositoryPort interface {
	ApplyPayment(ctx context.Context, input CreatePaymentInput) (*Payment, *invoices.Invoice, error)
	ReversePayment(ctx context.Context, paymentID int64) (*invoices.Invoice, error)
	Get(ctx context.Context, id int64) (*Payment, error)
	List(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error)
}

// Service handles payment business logic.
type Service struct {
	repo  RepositoryPort
	clock func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{
		repo:  repo,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Record applies a payment to its invoice and returns both sides of the
// ledger mutation.
func (s *Service) Record(ctx context.Context, req CreatePaymentRequest, createdBy int64) (*Payment, *invoices.Invoice, error) {
	if req.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.clock()
	}

	input := CreatePaymentInput{
		Number:      "PAY-" + uuid.NewString()[:8],
		InvoiceID:   req.InvoiceID,
		Amount:      req.Amount,
		PaymentMode: req.PaymentMode,
		PaymentDate: paymentDate,
		Notes:       req.Notes,
		CreatedBy:   createdBy,
	}
	return s.repo.ApplyPayment(ctx, input)
}

// Delete reverses the payment against its invoice. Reversing a payment that
// was already reversed is a silent no-op (the invoice is returned unchanged).
func (s *Service) Delete(ctx context.Context, paymentID int64) (*invoices.Invoice, error) {
	return s.repo.ReversePayment(ctx, paymentID)
}

// Get returns a payment.
func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	return s.repo.Get(ctx, id)
}

// List returns payments matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	return s.repo.List(ctx, req)
}
