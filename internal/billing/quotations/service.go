package quotations

import (
	"context"
	"fmt"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// RepositoryPort defines data access methods for quotations.
type RepositoryPort interface {
	Create(ctx context.Context, q *Quotation) (int64, error)
	Get(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error)
	UpdateHeader(ctx context.Context, q *Quotation) error
	ReplaceItems(ctx context.Context, id int64, items []Item, totals pricing.DocumentTotals) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	UpdateApproval(ctx context.Context, id int64, approval ApprovalStatus, actorID int64, at time.Time) error
	MarkConverted(ctx context.Context, id int64, invoiceID int64) error
	Delete(ctx context.Context, id int64) error
	GenerateNumber(ctx context.Context, at time.Time) (string, error)
}

// InvoiceWriter creates the invoice produced by a conversion. Implemented by
// the invoices service; injected to keep the dependency one-directional.
type InvoiceWriter interface {
	CreateFromQuotation(ctx context.Context, q *Quotation, actorID int64) (int64, error)
}

// Service handles quotation business logic.
type Service struct {
	repo     RepositoryPort
	invoices InvoiceWriter
	clock    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, invoices InvoiceWriter) *Service {
	return &Service{
		repo:     repo,
		invoices: invoices,
		clock:    func() time.Time { return time.Now().UTC() },
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
		a, err := pricing.ComputeQuotationLine(pricing.QuotationLine{
			Quantity:     req.Quantity,
			UnitPrice:    req.UnitPrice,
			Discount:     req.Discount,
			DiscountType: req.DiscountType,
			TaxRate:      req.TaxRate,
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
			TaxRate:      req.TaxRate,
			TaxAmount:    a.TaxAmount,
			TotalAmount:  a.TotalAmount,
			SortOrder:    sortOrder,
		})
		amounts = append(amounts, a)
	}
	return items, pricing.TotalsOf(amounts), nil
}

// Create prices the items and persists a Draft/Pending quotation.
func (s *Service) Create(ctx context.Context, req CreateQuotationRequest, createdBy int64) (*Quotation, error) {
	if !req.ValidUntil.After(req.QuoteDate) {
		return nil, fmt.Errorf("%w: valid_until must be after quote_date", shared.ErrInvalidDateRange)
	}

	items, totals, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	number, err := s.repo.GenerateNumber(ctx, req.QuoteDate)
	if err != nil {
		return nil, fmt.Errorf("generate quotation number: %w", err)
	}

	q := Quotation{
		Number:         number,
		ClientID:       req.ClientID,
		LeadID:         req.LeadID,
		QuoteDate:      req.QuoteDate,
		ValidUntil:     req.ValidUntil,
		Status:         StatusDraft,
		ApprovalStatus: ApprovalPending,
		Subtotal:       totals.Subtotal,
		TotalDiscount:  totals.TotalDiscount,
		TotalTax:       totals.TotalTax,
		GrandTotal:     totals.GrandTotal,
		Notes:          req.Notes,
		CreatedBy:      createdBy,
		Items:          items,
	}

	id, err := s.repo.Create(ctx, &q)
	if err != nil {
		return nil, fmt.Errorf("create quotation: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update edits header fields and, while Draft, the line items. Item changes
// recompute every aggregate from scratch.
func (s *Service) Update(ctx context.Context, id int64, req UpdateQuotationRequest) (*Quotation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}

	if existing.Status != StatusDraft {
		return nil, fmt.Errorf("%w: only Draft quotations can be updated", shared.ErrInvalidTransition)
	}

	if req.QuoteDate != nil {
		existing.QuoteDate = *req.QuoteDate
	}
	if req.ValidUntil != nil {
		existing.ValidUntil = *req.ValidUntil
	}
	if !existing.ValidUntil.After(existing.QuoteDate) {
		return nil, fmt.Errorf("%w: valid_until must be after quote_date", shared.ErrInvalidDateRange)
	}
	if req.Notes != nil {
		existing.Notes = req.Notes
	}
	if err := s.repo.UpdateHeader(ctx, existing); err != nil {
		return nil, fmt.Errorf("update quotation: %w", err)
	}

	if req.Items != nil {
		items, totals, err := buildItems(*req.Items)
		if err != nil {
			return nil, err
		}
		if err := s.repo.ReplaceItems(ctx, id, items, totals); err != nil {
			return nil, fmt.Errorf("replace quotation items: %w", err)
		}
	}

	return s.repo.Get(ctx, id)
}

func (s *Service) transition(ctx context.Context, id int64, to Status) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if err := q.TransitionStatus(to); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, q.Status); err != nil {
		return nil, fmt.Errorf("update quotation status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Send marks a Draft quotation Sent.
func (s *Service) Send(ctx context.Context, id int64) (*Quotation, error) {
	return s.transition(ctx, id, StatusSent)
}

// MarkViewed records that the client opened the quotation.
func (s *Service) MarkViewed(ctx context.Context, id int64) (*Quotation, error) {
	return s.transition(ctx, id, StatusViewed)
}

// Accept marks a Viewed quotation Accepted.
func (s *Service) Accept(ctx context.Context, id int64) (*Quotation, error) {
	return s.transition(ctx, id, StatusAccepted)
}

// Reject marks a Viewed quotation Rejected.
func (s *Service) Reject(ctx context.Context, id int64) (*Quotation, error) {
	return s.transition(ctx, id, StatusRejected)
}

// Expire marks a Viewed quotation Expired.
func (s *Service) Expire(ctx context.Context, id int64) (*Quotation, error) {
	return s.transition(ctx, id, StatusExpired)
}

// Approve resolves the approval axis. Terminal; re-approval fails.
func (s *Service) Approve(ctx context.Context, id int64, approvedBy int64) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if err := q.Approve(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateApproval(ctx, id, q.ApprovalStatus, approvedBy, s.clock()); err != nil {
		return nil, fmt.Errorf("update quotation approval: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// RejectApproval resolves the approval axis terminally.
func (s *Service) RejectApproval(ctx context.Context, id int64, rejectedBy int64) (*Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	if err := q.RejectApproval(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateApproval(ctx, id, q.ApprovalStatus, rejectedBy, s.clock()); err != nil {
		return nil, fmt.Errorf("update quotation approval: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// ConvertToInvoice produces an invoice carrying the quotation's items and
// totals exactly, then locks the quotation in Converted.
func (s *Service) ConvertToInvoice(ctx context.Context, id int64, actorID int64) (*Quotation, int64, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("get quotation: %w", err)
	}
	if err := q.CanConvert(); err != nil {
		return nil, 0, err
	}

	invoiceID, err := s.invoices.CreateFromQuotation(ctx, q, actorID)
	if err != nil {
		return nil, 0, fmt.Errorf("create invoice from quotation: %w", err)
	}

	if err := s.repo.MarkConverted(ctx, id, invoiceID); err != nil {
		return nil, 0, fmt.Errorf("mark quotation converted: %w", err)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return updated, invoiceID, nil
}

// Delete removes a Draft quotation.
func (s *Service) Delete(ctx context.Context, id int64) error {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get quotation: %w", err)
	}
	if q.Status != StatusDraft {
		return fmt.Errorf("%w: only Draft quotations can be deleted", shared.ErrInvalidTransition)
	}
	return s.repo.Delete(ctx, id)
}

// Get returns a quotation with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, id)
}

// List returns quotations matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	return s.repo.List(ctx, req)
}
