package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-crm/vantage-crm/internal/billing/invoices"
	"github.com/vantage-crm/vantage-crm/internal/platform/db"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for payments. Ledger
// mutations lock the invoice row so concurrent payments against the same
// invoice serialize instead of losing updates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paymentColumns = `id, number, invoice_id, client_id, amount, payment_mode,
	payment_date, status, notes, created_by, created_at, updated_at`

// lockInvoice loads the ledger-relevant invoice fields under a row lock.
func lockInvoice(ctx context.Context, tx pgx.Tx, invoiceID int64) (*invoices.Invoice, error) {
	var inv invoices.Invoice
	err := tx.QueryRow(ctx, `
		SELECT id, number, client_id, grand_total, amount_paid, balance_amount, status, payment_status
		FROM invoices
		WHERE id = $1
		FOR UPDATE`, invoiceID).Scan(
		&inv.ID, &inv.Number, &inv.ClientID, &inv.GrandTotal,
		&inv.AmountPaid, &inv.BalanceAmount, &inv.Status, &inv.PaymentStatus,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice %d", shared.ErrNotFound, invoiceID)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func writeInvoiceLedger(ctx context.Context, tx pgx.Tx, inv *invoices.Invoice) error {
	_, err := tx.Exec(ctx, `
		UPDATE invoices
		SET amount_paid = $2, balance_amount = $3, payment_status = $4, status = $5, updated_at = NOW()
		WHERE id = $1`,
		inv.ID, inv.AmountPaid, inv.BalanceAmount, inv.PaymentStatus, inv.Status)
	return err
}

// ApplyPayment inserts the payment and updates the invoice ledger atomically.
func (r *Repository) ApplyPayment(ctx context.Context, input CreatePaymentInput) (*Payment, *invoices.Invoice, error) {
	var payment Payment
	var inv *invoices.Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		locked, err := lockInvoice(ctx, tx, input.InvoiceID)
		if err != nil {
			return err
		}
		if err := Apply(locked, input.Amount); err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO payments (
				number, invoice_id, client_id, amount, payment_mode,
				payment_date, status, notes, created_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			RETURNING id, created_at, updated_at`,
			input.Number, input.InvoiceID, locked.ClientID, input.Amount, input.PaymentMode,
			input.PaymentDate, StatusCompleted, nullableText(input.Notes), input.CreatedBy,
		).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if err := writeInvoiceLedger(ctx, tx, locked); err != nil {
			return fmt.Errorf("update invoice ledger: %w", err)
		}

		payment.Number = input.Number
		payment.InvoiceID = input.InvoiceID
		payment.ClientID = locked.ClientID
		payment.Amount = input.Amount
		payment.PaymentMode = input.PaymentMode
		payment.PaymentDate = input.PaymentDate
		payment.Status = StatusCompleted
		payment.Notes = input.Notes
		payment.CreatedBy = input.CreatedBy
		inv = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &payment, inv, nil
}

// ReversePayment backs the payment out of the invoice ledger atomically.
// A payment that is already Cancelled leaves the ledger untouched.
func (r *Repository) ReversePayment(ctx context.Context, paymentID int64) (*invoices.Invoice, error) {
	var inv *invoices.Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var invoiceID int64
		var amount float64
		var status Status
		err := tx.QueryRow(ctx, `
			SELECT invoice_id, amount, status FROM payments WHERE id = $1 FOR UPDATE`,
			paymentID).Scan(&invoiceID, &amount, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: payment %d", shared.ErrNotFound, paymentID)
		}
		if err != nil {
			return err
		}

		locked, err := lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		// Double reversal is a no-op.
		if status == StatusCancelled {
			inv = locked
			return nil
		}

		Reverse(locked, amount)

		if _, err := tx.Exec(ctx, `UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`,
			paymentID, StatusCancelled); err != nil {
			return err
		}
		if err := writeInvoiceLedger(ctx, tx, locked); err != nil {
			return fmt.Errorf("update invoice ledger: %w", err)
		}
		inv = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Get retrieves a payment by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// List returns payments matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, req ListPaymentsRequest) ([]Payment, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.InvoiceID != 0 {
		where += fmt.Sprintf(" AND invoice_id = $%d", argPos)
		args = append(args, req.InvoiceID)
		argPos++
	}
	if req.ClientID != 0 {
		where += fmt.Sprintf(" AND client_id = $%d", argPos)
		args = append(args, req.ClientID)
		argPos++
	}
	if req.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, req.Status)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	query := `SELECT ` + paymentColumns + ` FROM payments` + where +
		fmt.Sprintf(" ORDER BY payment_date DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var notes pgtype.Text
	err := row.Scan(
		&p.ID, &p.Number, &p.InvoiceID, &p.ClientID, &p.Amount, &p.PaymentMode,
		&p.PaymentDate, &p.Status, &notes, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		v := notes.String
		p.Notes = &v
	}
	return &p, nil
}

func nullableText(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}
