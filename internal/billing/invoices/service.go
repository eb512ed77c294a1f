package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
	"github.com/vantage-crm/vantage-crm/internal/billing/quotations"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	Create(ctx context.Context, inv *Invoice) (int64, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	UpdateHeader(ctx context.Context, inv *Invoice) error
	ReplaceItems(ctx context.Context, inv *Invoice) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	GenerateNumber(ctx context.Context, at time.Time) (string, error)
}

// DefaultPaymentTermDays is the net term applied to converted quotations.
const DefaultPaymentTermDays = 30

// Service handles invoice business logic.
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

func buildItems(reqs []ItemRequest) ([]Item, pricing.DocumentTotals, error) {
	items := make([]Item, 0, len(reqs))
	amounts := make([]pricing.LineAmounts, 0, len(reqs))
	for i, req := range reqs {
		cgst := pricing.DefaultCGSTRate
		if req.CGSTRate != nil {
			cgst = *req.CGSTRate
		}
		sgst := pricing.DefaultSGSTRate
		if req.SGSTRate != nil {
			sgst = *req.SGSTRate
		}
		igst := pricing.DefaultIGSTRate
		if req.IGSTRate != nil {
			igst = *req.IGSTRate
		}
		a, err := pricing.ComputeInvoiceLine(pricing.InvoiceLine{
			Quantity:     req.Quantity,
			UnitPrice:    req.UnitPrice,
			Discount:     req.Discount,
			DiscountType: req.DiscountType,
			CGSTRate:     cgst,
			SGSTRate:     sgst,
			IGSTRate:     igst,
		})
		if err != nil {
			return nil, pricing.DocumentTotals{}, fmt.Errorf("item %d: %w", i+1, err)
		}
		discountType := req.DiscountType
		if discountType == "" {
			discountType = pricing.DiscountPercentage
		}
		sortOrder := req.SortOrder
		if sortOrder == 0 {
			sortOrder = i + 1
		}
		items = append(items, Item{
			Description:  req.Description,
			Quantity:     req.Quantity,
			UnitPrice:    req.UnitPrice,
			Discount:     req.Discount,
			DiscountType: discountType,
			CGSTRate:     cgst,
			SGSTRate:     sgst,
			IGSTRate:     igst,
			TaxAmount:    a.TaxAmount,
			TotalAmount:  a.TotalAmount,
			SortOrder:    sortOrder,
		})
		amounts = append(amounts, a)
	}
	return items, pricing.TotalsOf(amounts), nil
}

// Create prices the items and persists a Draft/Unpaid invoice.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest, createdBy int64) (*Invoice, error) {
	if !req.DueDate.After(req.InvoiceDate) {
		return nil, fmt.Errorf("%w: due_date must be after invoice_date", shared.ErrInvalidDateRange)
	}

	items, totals, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	number, err := s.repo.GenerateNumber(ctx, req.InvoiceDate)
	if err != nil {
		return nil, fmt.Errorf("generate invoice number: %w", err)
	}

	inv := Invoice{
		Number:        number,
		ClientID:      req.ClientID,
		InvoiceDate:   req.InvoiceDate,
		DueDate:       req.DueDate,
		Status:        StatusDraft,
		PaymentStatus: PaymentUnpaid,
		Subtotal:      totals.Subtotal,
		TotalDiscount: totals.TotalDiscount,
		TotalTax:      totals.TotalTax,
		GrandTotal:    totals.GrandTotal,
		AmountPaid:    0,
		BalanceAmount: totals.GrandTotal,
		Notes:         req.Notes,
		CreatedBy:     createdBy,
		Items:         items,
	}

	id, err := s.repo.Create(ctx, &inv)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// CreateFromQuotation materialises an approved quotation as a Draft invoice.
// Items and aggregates are copied verbatim so both documents total identically;
// the quotation's single tax rate is carried as IGST.
func (s *Service) CreateFromQuotation(ctx context.Context, q *quotations.Quotation, actorID int64) (int64, error) {
	now := s.clock()
	number, err := s.repo.GenerateNumber(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("generate invoice number: %w", err)
	}

	items := make([]Item, 0, len(q.Items))
	for _, item := range q.Items {
		items = append(items, Item{
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Discount:     item.Discount,
			DiscountType: item.DiscountType,
			CGSTRate:     0,
			SGSTRate:     0,
			IGSTRate:     item.TaxRate,
			TaxAmount:    item.TaxAmount,
			TotalAmount:  item.TotalAmount,
			SortOrder:    item.SortOrder,
		})
	}

	quotationID := q.ID
	inv := Invoice{
		Number:        number,
		ClientID:      q.ClientID,
		QuotationID:   &quotationID,
		InvoiceDate:   now,
		DueDate:       now.AddDate(0, 0, DefaultPaymentTermDays),
		Status:        StatusDraft,
		PaymentStatus: PaymentUnpaid,
		Subtotal:      q.Subtotal,
		TotalDiscount: q.TotalDiscount,
		TotalTax:      q.TotalTax,
		GrandTotal:    q.GrandTotal,
		AmountPaid:    0,
		BalanceAmount: q.GrandTotal,
		Notes:         q.Notes,
		CreatedBy:     actorID,
		Items:         items,
	}

	id, err := s.repo.Create(ctx, &inv)
	if err != nil {
		return 0, fmt.Errorf("create invoice: %w", err)
	}
	return id, nil
}

// Update edits header fields and, until the invoice is Paid, the items.
// Item changes recompute the aggregates while preserving amountPaid.
func (s *Service) Update(ctx context.Context, id int64, req UpdateInvoiceRequest) (*Invoice, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: cancelled invoice", shared.ErrInvalidTransition)
	}

	if req.InvoiceDate != nil {
		existing.InvoiceDate = *req.InvoiceDate
	}
	if req.DueDate != nil {
		existing.DueDate = *req.DueDate
	}
	if !existing.DueDate.After(existing.InvoiceDate) {
		return nil, fmt.Errorf("%w: due_date must be after invoice_date", shared.ErrInvalidDateRange)
	}
	if req.Notes != nil {
		existing.Notes = req.Notes
	}
	if err := s.repo.UpdateHeader(ctx, existing); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	if req.Items != nil {
		if !existing.ItemsEditable() {
			return nil, fmt.Errorf("%w: items are locked on a paid invoice", shared.ErrAlreadySettled)
		}
		items, totals, err := buildItems(*req.Items)
		if err != nil {
			return nil, err
		}
		existing.Items = items
		existing.ApplyTotals(totals)
		if err := s.repo.ReplaceItems(ctx, existing); err != nil {
			return nil, fmt.Errorf("replace invoice items: %w", err)
		}
	}

	return s.repo.Get(ctx, id)
}

// Send marks a Draft invoice Sent.
func (s *Service) Send(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if err := inv.MarkSent(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, inv.Status); err != nil {
		return nil, fmt.Errorf("update invoice status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Cancel voids an unpaid invoice.
func (s *Service) Cancel(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if err := inv.Cancel(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, inv.Status); err != nil {
		return nil, fmt.Errorf("update invoice status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a Draft invoice.
func (s *Service) Delete(ctx context.Context, id int64) error {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get invoice: %w", err)
	}
	if inv.Status != StatusDraft {
		return fmt.Errorf("%w: only Draft invoices can be deleted", shared.ErrInvalidTransition)
	}
	return s.repo.Delete(ctx, id)
}

// Get returns an invoice with items and payment references.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	return s.repo.List(ctx, req)
}
