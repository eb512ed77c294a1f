package invoices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
	"github.com/vantage-crm/vantage-crm/internal/billing/quotations"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

type memoryInvoiceRepo struct {
	invoices map[int64]*Invoice
	nextID   int64
	nextSeq  int
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{invoices: map[int64]*Invoice{}, nextID: 1}
}

func (m *memoryInvoiceRepo) Create(_ context.Context, inv *Invoice) (int64, error) {
	clone := *inv
	clone.ID = m.nextID
	m.nextID++
	m.invoices[clone.ID] = &clone
	return clone.ID, nil
}

func (m *memoryInvoiceRepo) Get(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: invoice %d", shared.ErrNotFound, id)
	}
	clone := *inv
	return &clone, nil
}

func (m *memoryInvoiceRepo) List(_ context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		if req.PaymentStatus != "" && inv.PaymentStatus != req.PaymentStatus {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *memoryInvoiceRepo) UpdateHeader(_ context.Context, inv *Invoice) error {
	stored, ok := m.invoices[inv.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.InvoiceDate = inv.InvoiceDate
	stored.DueDate = inv.DueDate
	stored.Notes = inv.Notes
	return nil
}

func (m *memoryInvoiceRepo) ReplaceItems(_ context.Context, inv *Invoice) error {
	stored, ok := m.invoices[inv.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.Items = inv.Items
	stored.Subtotal = inv.Subtotal
	stored.TotalDiscount = inv.TotalDiscount
	stored.TotalTax = inv.TotalTax
	stored.GrandTotal = inv.GrandTotal
	stored.BalanceAmount = inv.BalanceAmount
	stored.PaymentStatus = inv.PaymentStatus
	stored.Status = inv.Status
	return nil
}

func (m *memoryInvoiceRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	inv, ok := m.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.Status = status
	return nil
}

func (m *memoryInvoiceRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.invoices[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

func (m *memoryInvoiceRepo) GenerateNumber(_ context.Context, at time.Time) (string, error) {
	m.nextSeq++
	return fmt.Sprintf("INV-%s-%04d", at.Format("0601"), m.nextSeq), nil
}

func invoiceTestService(t *testing.T) (*Service, *memoryInvoiceRepo) {
	t.Helper()
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo).WithClock(func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	})
	return svc, repo
}

func invoiceCreateRequest() CreateInvoiceRequest {
	return CreateInvoiceRequest{
		ClientID:    3,
		InvoiceDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Items: []ItemRequest{
			{Description: "AMC Gold Plan", Quantity: 1, UnitPrice: 10000},
		},
	}
}

func TestCreateInvoiceAppliesGSTDefaults(t *testing.T) {
	svc, _ := invoiceTestService(t)

	inv, err := svc.Create(context.Background(), invoiceCreateRequest(), 9)
	require.NoError(t, err)

	require.Equal(t, "INV-2608-0001", inv.Number)
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, PaymentUnpaid, inv.PaymentStatus)
	require.Len(t, inv.Items, 1)
	require.Equal(t, 9.0, inv.Items[0].CGSTRate)
	require.Equal(t, 9.0, inv.Items[0].SGSTRate)
	require.Equal(t, 0.0, inv.Items[0].IGSTRate)

	// 10000 taxable, 18% combined GST.
	require.InDelta(t, 1800, inv.TotalTax, 1e-9)
	require.InDelta(t, 11800, inv.GrandTotal, 1e-9)
	require.InDelta(t, 11800, inv.BalanceAmount, 1e-9)
}

func TestCreateInvoicePerFieldGSTOverride(t *testing.T) {
	svc, _ := invoiceTestService(t)
	zero := 0.0
	igst := 18.0
	req := invoiceCreateRequest()
	req.Items = []ItemRequest{{
		Description: "Interstate supply", Quantity: 1, UnitPrice: 1000,
		CGSTRate: &zero, SGSTRate: &zero, IGSTRate: &igst,
	}}

	inv, err := svc.Create(context.Background(), req, 9)
	require.NoError(t, err)
	require.Equal(t, 0.0, inv.Items[0].CGSTRate)
	require.Equal(t, 18.0, inv.Items[0].IGSTRate)
	require.InDelta(t, 180, inv.TotalTax, 1e-9)
}

func TestCreateInvoiceRejectsBadDateRange(t *testing.T) {
	svc, _ := invoiceTestService(t)
	req := invoiceCreateRequest()
	req.DueDate = req.InvoiceDate
	_, err := svc.Create(context.Background(), req, 9)
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
}

func TestCreateFromQuotationCopiesTotalsExactly(t *testing.T) {
	svc, repo := invoiceTestService(t)
	notes := "converted deal"
	q := &quotations.Quotation{
		ID:             5,
		Number:         "QT-2608-0003",
		ClientID:       3,
		Status:         quotations.StatusAccepted,
		ApprovalStatus: quotations.ApprovalApproved,
		Subtotal:       13000,
		TotalDiscount:  1000,
		TotalTax:       2160,
		GrandTotal:     14160,
		Notes:          &notes,
		Items: []quotations.Item{
			{Description: "AMC Gold Plan", Quantity: 1, UnitPrice: 10000, Discount: 10,
				DiscountType: pricing.DiscountPercentage, TaxRate: 18, TaxAmount: 1620, TotalAmount: 10620, SortOrder: 1},
			{Description: "Site visit", Quantity: 2, UnitPrice: 1500,
				DiscountType: pricing.DiscountPercentage, TaxRate: 18, TaxAmount: 540, TotalAmount: 3540, SortOrder: 2},
		},
	}

	id, err := svc.CreateFromQuotation(context.Background(), q, 9)
	require.NoError(t, err)

	inv, err := repo.Get(context.Background(), id)
	require.NoError(t, err)

	require.Equal(t, StatusDraft, inv.Status)
	require.NotNil(t, inv.QuotationID)
	require.Equal(t, int64(5), *inv.QuotationID)
	require.Equal(t, q.GrandTotal, inv.GrandTotal)
	require.Equal(t, q.Subtotal, inv.Subtotal)
	require.Equal(t, q.TotalTax, inv.TotalTax)
	require.Equal(t, q.GrandTotal, inv.BalanceAmount)

	// Quotation tax carries over as IGST; no split re-derivation.
	require.Len(t, inv.Items, 2)
	require.Equal(t, 18.0, inv.Items[0].IGSTRate)
	require.Equal(t, 0.0, inv.Items[0].CGSTRate)
	require.Equal(t, q.Items[0].TaxAmount, inv.Items[0].TaxAmount)

	// Net 30 from the conversion clock.
	require.Equal(t, time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC), inv.DueDate)
}

func TestUpdateItemsPreservesAmountPaid(t *testing.T) {
	svc, repo := invoiceTestService(t)
	inv, err := svc.Create(context.Background(), invoiceCreateRequest(), 9)
	require.NoError(t, err)

	stored := repo.invoices[inv.ID]
	stored.AmountPaid = 5000
	stored.SyncPaymentState()

	items := []ItemRequest{{Description: "Reduced scope", Quantity: 1, UnitPrice: 5000}}
	updated, err := svc.Update(context.Background(), inv.ID, UpdateInvoiceRequest{Items: &items})
	require.NoError(t, err)

	require.Equal(t, 5000.0, updated.AmountPaid)
	require.InDelta(t, 5900, updated.GrandTotal, 1e-9)
	require.InDelta(t, 900, updated.BalanceAmount, 1e-9)
	require.Equal(t, PaymentPartial, updated.PaymentStatus)
}

func TestUpdateItemsLockedWhenPaid(t *testing.T) {
	svc, repo := invoiceTestService(t)
	inv, err := svc.Create(context.Background(), invoiceCreateRequest(), 9)
	require.NoError(t, err)

	stored := repo.invoices[inv.ID]
	stored.AmountPaid = stored.GrandTotal
	stored.SyncPaymentState()

	items := []ItemRequest{{Description: "x", Quantity: 1, UnitPrice: 1}}
	_, err = svc.Update(context.Background(), inv.ID, UpdateInvoiceRequest{Items: &items})
	require.ErrorIs(t, err, shared.ErrAlreadySettled)
}

func TestUpdateRejectsCancelled(t *testing.T) {
	svc, repo := invoiceTestService(t)
	inv, err := svc.Create(context.Background(), invoiceCreateRequest(), 9)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(context.Background(), inv.ID, StatusCancelled))

	notes := "n"
	_, err = svc.Update(context.Background(), inv.ID, UpdateInvoiceRequest{Notes: &notes})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestSendAndCancel(t *testing.T) {
	svc, _ := invoiceTestService(t)
	inv, err := svc.Create(context.Background(), invoiceCreateRequest(), 9)
	require.NoError(t, err)

	inv, err = svc.Send(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, inv.Status)

	_, err = svc.Send(context.Background(), inv.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	inv, err = svc.Cancel(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, inv.Status)
}

func TestDeleteOnlyDraft(t *testing.T) {
	svc, _ := invoiceTestService(t)
	inv, err := svc.Create(context.Background(), invoiceCreateRequest(), 9)
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), inv.ID)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(context.Background(), inv.ID), shared.ErrInvalidTransition)
}
