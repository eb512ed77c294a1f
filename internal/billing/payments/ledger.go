// Package payments reconciles payments against invoice balances.
package payments

import (
	"fmt"

	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Apply records amount against the invoice ledger. The invoice's amountPaid,
// balanceAmount and payment/lifecycle statuses are re-derived in place.
// amount == balanceAmount is legal and settles the invoice.
func Apply(inv *invoices.Invoice, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	if inv.PaymentStatus == invoices.PaymentPaid {
		return fmt.Errorf("%w: invoice %s is fully paid", shared.ErrAlreadySettled, inv.Number)
	}
	if inv.Status == invoices.StatusCancelled {
		return fmt.Errorf("%w: invoice %s is cancelled", shared.ErrInvalidTransition, inv.Number)
	}
	if amount > inv.BalanceAmount {
		return fmt.Errorf("%w: amount %.2f exceeds balance %.2f on invoice %s",
			shared.ErrExceedsBalance, amount, inv.BalanceAmount, inv.Number)
	}

	inv.AmountPaid += amount
	inv.SyncPaymentState()
	return nil
}

// Reverse backs amount out of the invoice ledger. Statuses may walk back
// Paid -> Partial -> Unpaid. amountPaid never goes below zero.
func Reverse(inv *invoices.Invoice, amount float64) {
	inv.AmountPaid -= amount
	if inv.AmountPaid < 0 {
		inv.AmountPaid = 0
	}
	inv.SyncPaymentState()
}
