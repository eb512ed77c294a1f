package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-crm/vantage-crm/internal/platform/db"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, number, client_id, quotation_id, invoice_date, due_date,
	status, payment_status, subtotal, total_discount, total_tax, grand_total,
	amount_paid, balance_amount, notes, created_by, created_at, updated_at`

// Create persists the invoice header and items in one transaction.
func (r *Repository) Create(ctx context.Context, inv *Invoice) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO invoices (
				number, client_id, quotation_id, invoice_date, due_date,
				status, payment_status, subtotal, total_discount, total_tax, grand_total,
				amount_paid, balance_amount, notes, created_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
			RETURNING id`,
			inv.Number, inv.ClientID, nullableInt8(inv.QuotationID), inv.InvoiceDate, inv.DueDate,
			inv.Status, inv.PaymentStatus, inv.Subtotal, inv.TotalDiscount, inv.TotalTax, inv.GrandTotal,
			inv.AmountPaid, inv.BalanceAmount, nullableText(inv.Notes), inv.CreatedBy,
		).Scan(&id)
		if err != nil {
			return err
		}
		return insertItems(ctx, tx, id, inv.Items)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: invoice number %s already taken", shared.ErrValidation, inv.Number)
		}
		return 0, err
	}
	return id, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, invoiceID int64, items []Item) error {
	for _, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_items (
				invoice_id, description, quantity, unit_price, discount, discount_type,
				cgst_rate, sgst_rate, igst_rate, tax_amount, total_amount, sort_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			invoiceID, item.Description, item.Quantity, item.UnitPrice, item.Discount, item.DiscountType,
			item.CGSTRate, item.SGSTRate, item.IGSTRate, item.TaxAmount, item.TotalAmount, item.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}
	return nil
}

// Get retrieves an invoice with items and non-reversed payment references.
func (r *Repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %d", shared.ErrNotFound, id)
		}
		return nil, err
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items

	rows, err := r.pool.Query(ctx,
		`SELECT id FROM payments WHERE invoice_id = $1 AND status <> 'Cancelled' ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var paymentID int64
		if err := rows.Scan(&paymentID); err != nil {
			return nil, err
		}
		inv.PaymentIDs = append(inv.PaymentIDs, paymentID)
	}
	return inv, rows.Err()
}

func (r *Repository) listItems(ctx context.Context, invoiceID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, discount, discount_type,
			cgst_rate, sgst_rate, igst_rate, tax_amount, total_amount, sort_order
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY sort_order, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.ID, &item.InvoiceID, &item.Description, &item.Quantity, &item.UnitPrice,
			&item.Discount, &item.DiscountType, &item.CGSTRate, &item.SGSTRate, &item.IGSTRate,
			&item.TaxAmount, &item.TotalAmount, &item.SortOrder,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// List returns invoices matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, req.Status)
		argPos++
	}
	if req.PaymentStatus != "" {
		where += fmt.Sprintf(" AND payment_status = $%d", argPos)
		args = append(args, req.PaymentStatus)
		argPos++
	}
	if req.ClientID != 0 {
		where += fmt.Sprintf(" AND client_id = $%d", argPos)
		args = append(args, req.ClientID)
		argPos++
	}
	if req.DueBefore != nil {
		where += fmt.Sprintf(" AND due_date < $%d", argPos)
		args = append(args, *req.DueBefore)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

// ListDueForReminder returns unsettled invoices due on or before the horizon.
func (r *Repository) ListDueForReminder(ctx context.Context, by time.Time) ([]Invoice, error) {
	return r.listUnsettled(ctx, `due_date <= $1`, by)
}

// ListOverdue returns unsettled invoices past due.
func (r *Repository) ListOverdue(ctx context.Context, now time.Time) ([]Invoice, error) {
	return r.listUnsettled(ctx, `due_date < $1 AND status <> 'Overdue'`, now)
}

func (r *Repository) listUnsettled(ctx context.Context, dueCond string, arg time.Time) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE `+dueCond+`
			AND payment_status IN ('Unpaid', 'Partial')
			AND status <> 'Cancelled'
		ORDER BY due_date`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// UpdateHeader updates editable header fields.
func (r *Repository) UpdateHeader(ctx context.Context, inv *Invoice) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET invoice_date = $2, due_date = $3, notes = $4, updated_at = NOW()
		WHERE id = $1`,
		inv.ID, inv.InvoiceDate, inv.DueDate, nullableText(inv.Notes))
	return err
}

// ReplaceItems swaps the item set and rewrites the aggregates atomically.
// amount_paid is untouched; balance and statuses arrive pre-derived.
func (r *Repository) ReplaceItems(ctx context.Context, inv *Invoice) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return err
		}
		if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE invoices
			SET subtotal = $2, total_discount = $3, total_tax = $4, grand_total = $5,
				balance_amount = $6, payment_status = $7, status = $8, updated_at = NOW()
			WHERE id = $1`,
			inv.ID, inv.Subtotal, inv.TotalDiscount, inv.TotalTax, inv.GrandTotal,
			inv.BalanceAmount, inv.PaymentStatus, inv.Status)
		return err
	})
}

// UpdateStatus sets the lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice %d", shared.ErrNotFound, id)
	}
	return nil
}

// Delete removes the invoice and its items.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: invoice %d", shared.ErrNotFound, id)
		}
		return nil
	})
}

// GenerateNumber allocates the next INV-{YYMM}-{SEQ} number.
func (r *Repository) GenerateNumber(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	period := at.Format("200601")
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`, "INV", period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%04d", at.Format("0601"), seq), nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var quotationID pgtype.Int8
	var notes pgtype.Text

	err := row.Scan(
		&inv.ID, &inv.Number, &inv.ClientID, &quotationID, &inv.InvoiceDate, &inv.DueDate,
		&inv.Status, &inv.PaymentStatus, &inv.Subtotal, &inv.TotalDiscount, &inv.TotalTax, &inv.GrandTotal,
		&inv.AmountPaid, &inv.BalanceAmount, &notes, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if quotationID.Valid {
		v := quotationID.Int64
		inv.QuotationID = &v
	}
	if notes.Valid {
		v := notes.String
		inv.Notes = &v
	}
	return &inv, nil
}

func nullableInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func nullableText(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}
