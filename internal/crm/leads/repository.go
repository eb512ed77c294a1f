package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for leads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, name, company, email, phone, source, status, stage,
	priority, probability, expected_revenue, lost_reason, converted_client_id,
	assigned_to, notes, created_by, created_at, updated_at, closed_at`

// Create inserts a lead.
func (r *Repository) Create(ctx context.Context, l *Lead) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			name, company, email, phone, source, status, stage, priority,
			probability, expected_revenue, assigned_to, notes, created_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id`,
		l.Name, nullableText(l.Company), nullableText(l.Email), nullableText(l.Phone),
		l.Source, l.Status, l.Stage, l.Priority, l.Probability, l.ExpectedRevenue,
		nullableInt8(l.AssignedTo), nullableText(l.Notes), l.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert lead: %w", err)
	}
	return id, nil
}

// Get retrieves a lead by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: lead %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return l, nil
}

// List returns leads matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, req ListLeadsRequest) ([]Lead, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, req.Status)
		argPos++
	}
	if req.Stage != "" {
		where += fmt.Sprintf(" AND stage = $%d", argPos)
		args = append(args, req.Stage)
		argPos++
	}
	if req.Priority != "" {
		where += fmt.Sprintf(" AND priority = $%d", argPos)
		args = append(args, req.Priority)
		argPos++
	}
	if req.AssignedTo != 0 {
		where += fmt.Sprintf(" AND assigned_to = $%d", argPos)
		args = append(args, req.AssignedTo)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectLeads(rows, total)
}

// UpdateHeader writes every mutable lead field.
func (r *Repository) UpdateHeader(ctx context.Context, l *Lead) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET name = $2, company = $3, email = $4, phone = $5, source = $6,
			status = $7, stage = $8, priority = $9, probability = $10,
			expected_revenue = $11, lost_reason = $12, converted_client_id = $13,
			assigned_to = $14, notes = $15, closed_at = $16, updated_at = NOW()
		WHERE id = $1`,
		l.ID, l.Name, nullableText(l.Company), nullableText(l.Email), nullableText(l.Phone),
		l.Source, l.Status, l.Stage, l.Priority, l.Probability, l.ExpectedRevenue,
		nullableText(l.LostReason), nullableInt8(l.ConvertedClientID),
		nullableInt8(l.AssignedTo), nullableText(l.Notes), nullableTime(l.ClosedAt))
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lead %d", shared.ErrNotFound, l.ID)
	}
	return nil
}

// Delete removes a lead.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lead %d", shared.ErrNotFound, id)
	}
	return nil
}

// ListInactive returns working leads not touched since the cutoff. Feeds the
// follow-up, de-prioritization, SLA and stalled-alert rules.
func (r *Repository) ListInactive(ctx context.Context, updatedBefore time.Time) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at`, StatusOpen, StatusInProgress, updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("list inactive leads: %w", err)
	}
	defer rows.Close()
	out, _, err := collectLeads(rows, 0)
	return out, err
}

// ListAgedOpen returns unconverted Open leads created before the cutoff.
// Feeds the auto-lost rule.
func (r *Repository) ListAgedOpen(ctx context.Context, createdBefore time.Time) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = $1 AND created_at < $2 AND converted_client_id IS NULL
		ORDER BY created_at`, StatusOpen, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("list aged open leads: %w", err)
	}
	defer rows.Close()
	out, _, err := collectLeads(rows, 0)
	return out, err
}

// ListByStage returns working leads sitting in the given stage. Feeds the
// auto-qualify rule.
func (r *Repository) ListByStage(ctx context.Context, stage string) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE stage = $1 AND status IN ($2, $3)
		ORDER BY id`, stage, StatusOpen, StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("list leads by stage: %w", err)
	}
	defer rows.Close()
	out, _, err := collectLeads(rows, 0)
	return out, err
}

// ApplyAutomation writes the fields the automation rules mutate.
func (r *Repository) ApplyAutomation(ctx context.Context, l *Lead) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $2, stage = $3, priority = $4, probability = $5,
			lost_reason = $6, closed_at = $7, updated_at = NOW()
		WHERE id = $1`,
		l.ID, l.Status, l.Stage, l.Priority, l.Probability,
		nullableText(l.LostReason), nullableTime(l.ClosedAt))
	if err != nil {
		return fmt.Errorf("apply lead automation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lead %d", shared.ErrNotFound, l.ID)
	}
	return nil
}

func collectLeads(rows pgx.Rows, total int) ([]Lead, int, error) {
	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	var company, email, phone, lostReason, notes pgtype.Text
	var convertedClientID, assignedTo pgtype.Int8
	var closedAt pgtype.Timestamptz
	err := row.Scan(
		&l.ID, &l.Name, &company, &email, &phone, &l.Source, &l.Status, &l.Stage,
		&l.Priority, &l.Probability, &l.ExpectedRevenue, &lostReason, &convertedClientID,
		&assignedTo, &notes, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Company = textPtr(company)
	l.Email = textPtr(email)
	l.Phone = textPtr(phone)
	l.LostReason = textPtr(lostReason)
	l.Notes = textPtr(notes)
	l.ConvertedClientID = int8Ptr(convertedClientID)
	l.AssignedTo = int8Ptr(assignedTo)
	if closedAt.Valid {
		v := closedAt.Time
		l.ClosedAt = &v
	}
	return &l, nil
}

func textPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
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

func nullableTime(v *time.Time) pgtype.Timestamptz {
	if v == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *v, Valid: true}
}
