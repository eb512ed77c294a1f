package quotations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

type memoryQuotationRepo struct {
	quotations map[int64]*Quotation
	nextID     int64
	nextSeq    int
}

func newMemoryQuotationRepo() *memoryQuotationRepo {
	return &memoryQuotationRepo{quotations: map[int64]*Quotation{}, nextID: 1}
}

func (m *memoryQuotationRepo) Create(_ context.Context, q *Quotation) (int64, error) {
	clone := *q
	clone.ID = m.nextID
	m.nextID++
	m.quotations[clone.ID] = &clone
	return clone.ID, nil
}

func (m *memoryQuotationRepo) Get(_ context.Context, id int64) (*Quotation, error) {
	q, ok := m.quotations[id]
	if !ok {
		return nil, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	clone := *q
	return &clone, nil
}

func (m *memoryQuotationRepo) List(_ context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	var out []Quotation
	for _, q := range m.quotations {
		if req.Status != "" && q.Status != req.Status {
			continue
		}
		out = append(out, *q)
	}
	return out, len(out), nil
}

func (m *memoryQuotationRepo) UpdateHeader(_ context.Context, q *Quotation) error {
	stored, ok := m.quotations[q.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.QuoteDate = q.QuoteDate
	stored.ValidUntil = q.ValidUntil
	stored.Notes = q.Notes
	return nil
}

func (m *memoryQuotationRepo) ReplaceItems(_ context.Context, id int64, items []Item, totals pricing.DocumentTotals) error {
	q, ok := m.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Items = items
	q.Subtotal = totals.Subtotal
	q.TotalDiscount = totals.TotalDiscount
	q.TotalTax = totals.TotalTax
	q.GrandTotal = totals.GrandTotal
	return nil
}

func (m *memoryQuotationRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	q, ok := m.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Status = status
	return nil
}

func (m *memoryQuotationRepo) UpdateApproval(_ context.Context, id int64, approval ApprovalStatus, actorID int64, at time.Time) error {
	q, ok := m.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.ApprovalStatus = approval
	q.ApprovedBy = &actorID
	q.ApprovedAt = &at
	return nil
}

func (m *memoryQuotationRepo) MarkConverted(_ context.Context, id int64, invoiceID int64) error {
	q, ok := m.quotations[id]
	if !ok {
		return shared.ErrNotFound
	}
	if q.Status == StatusConverted {
		return fmt.Errorf("%w: quotation %s already converted", shared.ErrInvalidTransition, q.Number)
	}
	q.Status = StatusConverted
	q.ConvertedToInvoice = &invoiceID
	return nil
}

func (m *memoryQuotationRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.quotations[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.quotations, id)
	return nil
}

func (m *memoryQuotationRepo) GenerateNumber(_ context.Context, at time.Time) (string, error) {
	m.nextSeq++
	return fmt.Sprintf("QT-%s-%04d", at.Format("0601"), m.nextSeq), nil
}

// fakeInvoiceWriter records conversions and hands out sequential invoice IDs.
type fakeInvoiceWriter struct {
	converted []*Quotation
	nextID    int64
	err       error
}

func (f *fakeInvoiceWriter) CreateFromQuotation(_ context.Context, q *Quotation, _ int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	f.converted = append(f.converted, q)
	return f.nextID, nil
}

func quotationTestService(t *testing.T) (*Service, *memoryQuotationRepo, *fakeInvoiceWriter) {
	t.Helper()
	repo := newMemoryQuotationRepo()
	writer := &fakeInvoiceWriter{}
	svc := NewService(repo, writer).WithClock(func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	})
	return svc, repo, writer
}

func createRequest() CreateQuotationRequest {
	return CreateQuotationRequest{
		ClientID:   3,
		QuoteDate:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Items: []ItemRequest{
			{Description: "AMC Gold Plan", Quantity: 1, UnitPrice: 10000, Discount: 10, TaxRate: 18},
			{Description: "Site visit", Quantity: 2, UnitPrice: 1500, TaxRate: 18},
		},
	}
}

func TestCreateQuotation(t *testing.T) {
	svc, _, _ := quotationTestService(t)

	q, err := svc.Create(context.Background(), createRequest(), 9)
	require.NoError(t, err)

	require.Equal(t, "QT-2608-0001", q.Number)
	require.Equal(t, StatusDraft, q.Status)
	require.Equal(t, ApprovalPending, q.ApprovalStatus)
	require.Len(t, q.Items, 2)

	// 10000 - 10% = 9000; 2x1500 = 3000; tax 18% on both.
	require.InDelta(t, 13000, q.Subtotal, 1e-9)
	require.InDelta(t, 1000, q.TotalDiscount, 1e-9)
	require.InDelta(t, 2160, q.TotalTax, 1e-9)
	require.InDelta(t, 14160, q.GrandTotal, 1e-9)
}

func TestCreateRejectsBadDateRange(t *testing.T) {
	svc, _, _ := quotationTestService(t)
	req := createRequest()
	req.ValidUntil = req.QuoteDate
	_, err := svc.Create(context.Background(), req, 9)
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
}

func TestUpdateOnlyDraft(t *testing.T) {
	svc, repo, _ := quotationTestService(t)
	q, err := svc.Create(context.Background(), createRequest(), 9)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(context.Background(), q.ID, StatusSent))

	notes := "revised"
	_, err = svc.Update(context.Background(), q.ID, UpdateQuotationRequest{Notes: &notes})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestUpdateItemsRecomputesTotals(t *testing.T) {
	svc, _, _ := quotationTestService(t)
	q, err := svc.Create(context.Background(), createRequest(), 9)
	require.NoError(t, err)

	items := []ItemRequest{{Description: "Single line", Quantity: 1, UnitPrice: 100, TaxRate: 18}}
	updated, err := svc.Update(context.Background(), q.ID, UpdateQuotationRequest{Items: &items})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.InDelta(t, 100, updated.Subtotal, 1e-9)
	require.InDelta(t, 118, updated.GrandTotal, 1e-9)
}

func TestLifecycleTransitions(t *testing.T) {
	svc, _, _ := quotationTestService(t)
	q, err := svc.Create(context.Background(), createRequest(), 9)
	require.NoError(t, err)

	q, err = svc.Send(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, q.Status)

	q, err = svc.MarkViewed(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusViewed, q.Status)

	q, err = svc.Accept(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, q.Status)

	_, err = svc.Send(context.Background(), q.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestConvertRequiresApproval(t *testing.T) {
	svc, _, writer := quotationTestService(t)
	q, err := svc.Create(context.Background(), createRequest(), 9)
	require.NoError(t, err)

	_, _, err = svc.ConvertToInvoice(context.Background(), q.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Empty(t, writer.converted)
}

func TestConvertToInvoice(t *testing.T) {
	svc, _, writer := quotationTestService(t)
	q, err := svc.Create(context.Background(), createRequest(), 9)
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), q.ID, 2)
	require.NoError(t, err)
	require.Equal(t, ApprovalApproved, approved.ApprovalStatus)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, int64(2), *approved.ApprovedBy)

	converted, invoiceID, err := svc.ConvertToInvoice(context.Background(), q.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, converted.Status)
	require.NotNil(t, converted.ConvertedToInvoice)
	require.Equal(t, invoiceID, *converted.ConvertedToInvoice)

	require.Len(t, writer.converted, 1)
	require.InDelta(t, converted.GrandTotal, writer.converted[0].GrandTotal, 1e-9,
		"conversion must hand the invoice the exact totals")

	_, _, err = svc.ConvertToInvoice(context.Background(), q.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidTransition, "second conversion must fail")
	require.Len(t, writer.converted, 1)
}

func TestDeleteOnlyDraft(t *testing.T) {
	svc, repo, _ := quotationTestService(t)
	q, err := svc.Create(context.Background(), createRequest(), 9)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(context.Background(), q.ID, StatusSent))

	require.ErrorIs(t, svc.Delete(context.Background(), q.ID), shared.ErrInvalidTransition)

	require.NoError(t, repo.UpdateStatus(context.Background(), q.ID, StatusDraft))
	require.NoError(t, svc.Delete(context.Background(), q.ID))
	_, err = svc.Get(context.Background(), q.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
