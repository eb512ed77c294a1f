package quotations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-crm/vantage-crm/internal/billing/pricing"
	"github.com/vantage-crm/vantage-crm/internal/platform/db"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for quotations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const quotationColumns = `id, number, client_id, lead_id, quote_date, valid_until,
	status, approval_status, subtotal, total_discount, total_tax, grand_total,
	converted_to_invoice, notes, created_by, approved_by, approved_at, created_at, updated_at`

// Create persists the quotation header and items in one transaction.
func (r *Repository) Create(ctx context.Context, q *Quotation) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO quotations (
				number, client_id, lead_id, quote_date, valid_until,
				status, approval_status, subtotal, total_discount, total_tax, grand_total,
				notes, created_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
			RETURNING id`,
			q.Number, q.ClientID, nullableInt8(q.LeadID), q.QuoteDate, q.ValidUntil,
			q.Status, q.ApprovalStatus, q.Subtotal, q.TotalDiscount, q.TotalTax, q.GrandTotal,
			nullableText(q.Notes), q.CreatedBy,
		).Scan(&id)
		if err != nil {
			return err
		}
		return insertItems(ctx, tx, id, q.Items)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: quotation number %s already taken", shared.ErrValidation, q.Number)
		}
		return 0, err
	}
	return id, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, quotationID int64, items []Item) error {
	for _, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO quotation_items (
				quotation_id, description, quantity, unit_price,
				discount, discount_type, tax_rate, tax_amount, total_amount, sort_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			quotationID, item.Description, item.Quantity, item.UnitPrice,
			item.Discount, item.DiscountType, item.TaxRate, item.TaxAmount, item.TotalAmount, item.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("insert quotation item: %w", err)
		}
	}
	return nil
}

// Get retrieves a quotation with its items.
func (r *Repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = $1`, id)
	q, err := scanQuotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
		}
		return nil, err
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Items = items
	return q, nil
}

func (r *Repository) listItems(ctx context.Context, quotationID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quotation_id, description, quantity, unit_price,
			discount, discount_type, tax_rate, tax_amount, total_amount, sort_order
		FROM quotation_items
		WHERE quotation_id = $1
		ORDER BY sort_order, id`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.ID, &item.QuotationID, &item.Description, &item.Quantity, &item.UnitPrice,
			&item.Discount, &item.DiscountType, &item.TaxRate, &item.TaxAmount, &item.TotalAmount, &item.SortOrder,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// List returns quotations matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, req.Status)
		argPos++
	}
	if req.ApprovalStatus != "" {
		where += fmt.Sprintf(" AND approval_status = $%d", argPos)
		args = append(args, req.ApprovalStatus)
		argPos++
	}
	if req.ClientID != 0 {
		where += fmt.Sprintf(" AND client_id = $%d", argPos)
		args = append(args, req.ClientID)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	query := `SELECT ` + quotationColumns + ` FROM quotations` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *q)
	}
	return out, total, rows.Err()
}

// UpdateHeader updates editable header fields.
func (r *Repository) UpdateHeader(ctx context.Context, q *Quotation) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE quotations
		SET quote_date = $2, valid_until = $3, notes = $4, updated_at = NOW()
		WHERE id = $1`,
		q.ID, q.QuoteDate, q.ValidUntil, nullableText(q.Notes))
	return err
}

// ReplaceItems swaps the item set and rewrites the aggregates atomically.
func (r *Repository) ReplaceItems(ctx context.Context, id int64, items []Item, totals pricing.DocumentTotals) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_items WHERE quotation_id = $1`, id); err != nil {
			return err
		}
		if err := insertItems(ctx, tx, id, items); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE quotations
			SET subtotal = $2, total_discount = $3, total_tax = $4, grand_total = $5, updated_at = NOW()
			WHERE id = $1`,
			id, totals.Subtotal, totals.TotalDiscount, totals.TotalTax, totals.GrandTotal)
		return err
	})
}

// UpdateStatus sets the lifecycle state.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE quotations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
	}
	return nil
}

// UpdateApproval sets the approval axis and stamps the actor.
func (r *Repository) UpdateApproval(ctx context.Context, id int64, approval ApprovalStatus, actorID int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE quotations
		SET approval_status = $2, approved_by = $3, approved_at = $4, updated_at = NOW()
		WHERE id = $1`,
		id, approval, actorID, at)
	return err
}

// MarkConverted locks the quotation and records the produced invoice.
func (r *Repository) MarkConverted(ctx context.Context, id int64, invoiceID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotations
		SET status = $2, converted_to_invoice = $3, updated_at = NOW()
		WHERE id = $1 AND status <> $2`,
		id, StatusConverted, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quotation %d already converted", shared.ErrInvalidTransition, id)
	}
	return nil
}

// Delete removes the quotation and its items.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_items WHERE quotation_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: quotation %d", shared.ErrNotFound, id)
		}
		return nil
	})
}

// GenerateNumber allocates the next QT-{YYMM}-{SEQ} number.
func (r *Repository) GenerateNumber(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	period := at.Format("200601")
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`, "QT", period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("QT-%s-%04d", at.Format("0601"), seq), nil
}

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	var leadID, convertedTo, approvedBy pgtype.Int8
	var notes pgtype.Text
	var approvedAt pgtype.Timestamptz

	err := row.Scan(
		&q.ID, &q.Number, &q.ClientID, &leadID, &q.QuoteDate, &q.ValidUntil,
		&q.Status, &q.ApprovalStatus, &q.Subtotal, &q.TotalDiscount, &q.TotalTax, &q.GrandTotal,
		&convertedTo, &notes, &q.CreatedBy, &approvedBy, &approvedAt, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if leadID.Valid {
		v := leadID.Int64
		q.LeadID = &v
	}
	if convertedTo.Valid {
		v := convertedTo.Int64
		q.ConvertedToInvoice = &v
	}
	if approvedBy.Valid {
		v := approvedBy.Int64
		q.ApprovedBy = &v
	}
	if approvedAt.Valid {
		v := approvedAt.Time
		q.ApprovedAt = &v
	}
	if notes.Valid {
		v := notes.String
		q.Notes = &v
	}
	return &q, nil
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
