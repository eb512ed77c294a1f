package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// memoryPaymentRepo mirrors the transactional repository over maps.
type memoryPaymentRepo struct {
	invoices map[int64]*invoices.Invoice
	payments map[int64]*Payment
	nextID   int64
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{
		invoices: map[int64]*invoices.Invoice{},
		payments: map[int64]*Payment{},
		nextID:   1,
	}
}

func (m *memoryPaymentRepo) addInvoice(inv *invoices.Invoice) {
	inv.SyncPaymentState()
	m.invoices[inv.ID] = inv
}

func (m *memoryPaymentRepo) ApplyPayment(_ context.Context, input CreatePaymentInput) (*Payment, *invoices.Invoice, error) {
	inv, ok := m.invoices[input.InvoiceID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: invoice %d", shared.ErrNotFound, input.InvoiceID)
	}
	if err := Apply(inv, input.Amount); err != nil {
		return nil, nil, err
	}
	p := &Payment{
		ID:          m.nextID,
		Number:      input.Number,
		InvoiceID:   input.InvoiceID,
		ClientID:    inv.ClientID,
		Amount:      input.Amount,
		PaymentMode: input.PaymentMode,
		PaymentDate: input.PaymentDate,
		Status:      StatusCompleted,
		Notes:       input.Notes,
		CreatedBy:   input.CreatedBy,
	}
	m.nextID++
	m.payments[p.ID] = p
	return p, inv, nil
}

func (m *memoryPaymentRepo) ReversePayment(_ context.Context, paymentID int64) (*invoices.Invoice, error) {
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %d", shared.ErrNotFound, paymentID)
	}
	inv := m.invoices[p.InvoiceID]
	if p.Status == StatusCancelled {
		return inv, nil
	}
	Reverse(inv, p.Amount)
	p.Status = StatusCancelled
	return inv, nil
}

func (m *memoryPaymentRepo) Get(_ context.Context, id int64) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (m *memoryPaymentRepo) List(_ context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	var out []Payment
	for _, p := range m.payments {
		if req.InvoiceID != 0 && p.InvoiceID != req.InvoiceID {
			continue
		}
		if req.Status != "" && p.Status != req.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func testService(t *testing.T) (*Service, *memoryPaymentRepo) {
	t.Helper()
	repo := newMemoryPaymentRepo()
	svc := NewService(repo).WithClock(func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	})
	return svc, repo
}

func TestRecordPayment(t *testing.T) {
	svc, repo := testService(t)
	repo.addInvoice(&invoices.Invoice{ID: 1, Number: "INV-2608-0001", ClientID: 4, GrandTotal: 11800, Status: invoices.StatusSent})

	p, inv, err := svc.Record(context.Background(), CreatePaymentRequest{
		InvoiceID:   1,
		Amount:      5000,
		PaymentMode: "UPI",
	}, 9)
	require.NoError(t, err)

	require.Contains(t, p.Number, "PAY-")
	require.Len(t, p.Number, 12)
	require.Equal(t, StatusCompleted, p.Status)
	require.Equal(t, int64(4), p.ClientID, "client derived from invoice")
	require.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), p.PaymentDate,
		"payment date defaults to clock when omitted")
	require.Equal(t, 6800.0, inv.BalanceAmount)
	require.Equal(t, invoices.StatusPartial, inv.Status)
}

func TestRecordDistinctNumbers(t *testing.T) {
	svc, repo := testService(t)
	repo.addInvoice(&invoices.Invoice{ID: 1, Number: "INV-2608-0001", ClientID: 4, GrandTotal: 1000, Status: invoices.StatusSent})

	a, _, err := svc.Record(context.Background(), CreatePaymentRequest{InvoiceID: 1, Amount: 100, PaymentMode: "Cash"}, 9)
	require.NoError(t, err)
	b, _, err := svc.Record(context.Background(), CreatePaymentRequest{InvoiceID: 1, Amount: 100, PaymentMode: "Cash"}, 9)
	require.NoError(t, err)
	require.NotEqual(t, a.Number, b.Number)
}

func TestRecordRejectsSettledInvoice(t *testing.T) {
	svc, repo := testService(t)
	repo.addInvoice(&invoices.Invoice{ID: 1, Number: "INV-2608-0001", ClientID: 4, GrandTotal: 11800, Status: invoices.StatusSent})

	_, _, err := svc.Record(context.Background(), CreatePaymentRequest{InvoiceID: 1, Amount: 5000, PaymentMode: "Cash"}, 9)
	require.NoError(t, err)
	_, _, err = svc.Record(context.Background(), CreatePaymentRequest{InvoiceID: 1, Amount: 6800, PaymentMode: "Cash"}, 9)
	require.NoError(t, err)

	_, _, err = svc.Record(context.Background(), CreatePaymentRequest{InvoiceID: 1, Amount: 1, PaymentMode: "Cash"}, 9)
	require.ErrorIs(t, err, shared.ErrAlreadySettled)
}

func TestRecordRejectsUnknownInvoice(t *testing.T) {
	svc, _ := testService(t)
	_, _, err := svc.Record(context.Background(), CreatePaymentRequest{InvoiceID: 99, Amount: 10, PaymentMode: "Cash"}, 9)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteReversesAndIsIdempotent(t *testing.T) {
	svc, repo := testService(t)
	repo.addInvoice(&invoices.Invoice{ID: 1, Number: "INV-2608-0001", ClientID: 4, GrandTotal: 1000, Status: invoices.StatusSent})

	p, _, err := svc.Record(context.Background(), CreatePaymentRequest{InvoiceID: 1, Amount: 400, PaymentMode: "Cheque"}, 9)
	require.NoError(t, err)

	inv, err := svc.Delete(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, inv.AmountPaid)
	require.Equal(t, invoices.PaymentUnpaid, inv.PaymentStatus)

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)

	// Reversing again must not change the ledger.
	inv, err = svc.Delete(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, inv.AmountPaid)
}
