package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, company, email, phone, address, gstin,
	source_lead, notes, created_by, created_at, updated_at`

// Create inserts a client.
func (r *Repository) Create(ctx context.Context, c *Client) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clients (
			name, company, email, phone, address, gstin, source_lead, notes,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id`,
		c.Name, nullableText(c.Company), nullableText(c.Email), nullableText(c.Phone),
		nullableText(c.Address), nullableText(c.GSTIN), nullableInt8(c.SourceLead),
		nullableText(c.Notes), c.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert client: %w", err)
	}
	return id, nil
}

// Get retrieves a client by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: client %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

// List returns clients matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR company ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	query := `SELECT ` + clientColumns + ` FROM clients` + where +
		fmt.Sprintf(" ORDER BY name, id LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// Update writes the mutable client fields.
func (r *Repository) Update(ctx context.Context, c *Client) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients
		SET name = $2, company = $3, email = $4, phone = $5, address = $6,
			gstin = $7, notes = $8, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.Name, nullableText(c.Company), nullableText(c.Email), nullableText(c.Phone),
		nullableText(c.Address), nullableText(c.GSTIN), nullableText(c.Notes))
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: client %d", shared.ErrNotFound, c.ID)
	}
	return nil
}

// Delete removes a client.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: client %d", shared.ErrNotFound, id)
	}
	return nil
}

// CountReferences counts documents pointing at the client.
func (r *Repository) CountReferences(ctx context.Context, id int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM quotations WHERE client_id = $1) +
			(SELECT COUNT(*) FROM invoices WHERE client_id = $1) +
			(SELECT COUNT(*) FROM payments WHERE client_id = $1) +
			(SELECT COUNT(*) FROM amc_contracts WHERE client_id = $1)`, id).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count client references: %w", err)
	}
	return total, nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var company, email, phone, address, gstin, notes pgtype.Text
	var sourceLead pgtype.Int8
	err := row.Scan(
		&c.ID, &c.Name, &company, &email, &phone, &address, &gstin,
		&sourceLead, &notes, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Company = textPtr(company)
	c.Email = textPtr(email)
	c.Phone = textPtr(phone)
	c.Address = textPtr(address)
	c.GSTIN = textPtr(gstin)
	c.Notes = textPtr(notes)
	if sourceLead.Valid {
		v := sourceLead.Int64
		c.SourceLead = &v
	}
	return &c, nil
}

func textPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableText(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}

func nullableInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
