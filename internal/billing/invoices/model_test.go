package invoices

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

func TestDerivePaymentStatus(t *testing.T) {
	require.Equal(t, PaymentUnpaid, DerivePaymentStatus(0, 1000))
	require.Equal(t, PaymentUnpaid, DerivePaymentStatus(-5, 1000))
	require.Equal(t, PaymentPartial, DerivePaymentStatus(0.01, 1000))
	require.Equal(t, PaymentPartial, DerivePaymentStatus(999.99, 1000))
	require.Equal(t, PaymentPaid, DerivePaymentStatus(1000, 1000))
	require.Equal(t, PaymentPaid, DerivePaymentStatus(1200, 1000))
}

func TestSyncPaymentStateFallsBackToSent(t *testing.T) {
	inv := &Invoice{GrandTotal: 1000, AmountPaid: 1000, Status: StatusPaid}
	inv.SyncPaymentState()
	require.Equal(t, StatusPaid, inv.Status)

	inv.AmountPaid = 0
	inv.SyncPaymentState()
	require.Equal(t, StatusSent, inv.Status, "reversal out of Paid falls back to Sent")
	require.Equal(t, 1000.0, inv.BalanceAmount)
}

func TestSyncPaymentStateLeavesDraftAlone(t *testing.T) {
	inv := &Invoice{GrandTotal: 1000, Status: StatusDraft}
	inv.SyncPaymentState()
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, PaymentUnpaid, inv.PaymentStatus)
}

func TestApplyTotalsPreservesAmountPaid(t *testing.T) {
	inv := &Invoice{GrandTotal: 1000, AmountPaid: 400, Status: StatusPartial, PaymentStatus: PaymentPartial}
	inv.ApplyTotals(pricing.DocumentTotals{Subtotal: 2000, TotalTax: 360, GrandTotal: 2360})

	require.Equal(t, 400.0, inv.AmountPaid)
	require.Equal(t, 1960.0, inv.BalanceAmount)
	require.Equal(t, PaymentPartial, inv.PaymentStatus)

	// Shrinking the total below amountPaid flips the invoice to Paid.
	inv.ApplyTotals(pricing.DocumentTotals{Subtotal: 300, TotalTax: 54, GrandTotal: 354})
	require.Equal(t, PaymentPaid, inv.PaymentStatus)
	require.Equal(t, StatusPaid, inv.Status)
}

func TestMarkSent(t *testing.T) {
	inv := &Invoice{Status: StatusDraft}
	require.NoError(t, inv.MarkSent())
	require.Equal(t, StatusSent, inv.Status)
	require.ErrorIs(t, inv.MarkSent(), shared.ErrInvalidTransition)
}

func TestCancelGuards(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusSent} {
		inv := &Invoice{Status: s}
		require.NoError(t, inv.Cancel(), "from %s", s)
		require.Equal(t, StatusCancelled, inv.Status)
	}
	for _, s := range []Status{StatusPartial, StatusPaid, StatusOverdue, StatusCancelled} {
		inv := &Invoice{Number: "INV-2608-0001", Status: s}
		require.ErrorIs(t, inv.Cancel(), shared.ErrInvalidTransition, "from %s", s)
	}
}

func TestMarkOverdue(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -1)

	inv := &Invoice{Number: "INV-2608-0001", Status: StatusSent, PaymentStatus: PaymentUnpaid, DueDate: due}
	require.NoError(t, inv.MarkOverdue(now))
	require.Equal(t, StatusOverdue, inv.Status)

	inv = &Invoice{Number: "INV-2608-0002", Status: StatusPartial, PaymentStatus: PaymentPartial, DueDate: due}
	require.NoError(t, inv.MarkOverdue(now), "partially paid invoices still go overdue")

	inv = &Invoice{Number: "INV-2608-0003", Status: StatusPaid, PaymentStatus: PaymentPaid, DueDate: due}
	require.ErrorIs(t, inv.MarkOverdue(now), shared.ErrInvalidTransition)

	inv = &Invoice{Number: "INV-2608-0004", Status: StatusCancelled, PaymentStatus: PaymentUnpaid, DueDate: due}
	require.ErrorIs(t, inv.MarkOverdue(now), shared.ErrInvalidTransition)

	inv = &Invoice{Number: "INV-2608-0005", Status: StatusSent, PaymentStatus: PaymentUnpaid, DueDate: now}
	require.ErrorIs(t, inv.MarkOverdue(now), shared.ErrInvalidTransition, "due today is not overdue")
}
