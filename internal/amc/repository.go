package amc

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

// Repository provides PostgreSQL backed persistence for contracts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const contractColumns = `id, client_id, start_date, end_date, duration_months,
	service_frequency, number_of_services, services_completed, contract_value,
	payment_terms, assigned_to, status, auto_renewal, renewal_notification_sent,
	renewed_from, renewed_to, notes, created_by, created_at, updated_at`

// Create inserts a contract.
func (r *Repository) Create(ctx context.Context, c *Contract) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO amc_contracts (
			client_id, start_date, end_date, duration_months, service_frequency,
			number_of_services, services_completed, contract_value, payment_terms,
			assigned_to, status, auto_renewal, renewal_notification_sent,
			renewed_from, notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $11, FALSE, $12, $13, $14, NOW(), NOW())
		RETURNING id`,
		c.ClientID, c.StartDate, c.EndDate, c.DurationMonths, c.ServiceFrequency,
		c.NumberOfServices, c.ContractValue, nullableTextPtr(c.PaymentTerms),
		nullableInt8Ptr(c.AssignedTo), c.Status, c.AutoRenewal,
		nullableInt8Ptr(c.RenewedFrom), nullableTextPtr(c.Notes), c.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert contract: %w", err)
	}
	return id, nil
}

// Get retrieves a contract with its visit history.
func (r *Repository) Get(ctx context.Context, id int64) (*Contract, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM amc_contracts WHERE id = $1`, id)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: contract %d", shared.ErrNotFound, id)
		}
		return nil, err
	}

	services, err := r.listServices(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Services = services
	return c, nil
}

func (r *Repository) listServices(ctx context.Context, contractID int64) ([]ServiceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contract_id, scheduled_date, status, notes, completed_at, completed_by, created_at
		FROM amc_services
		WHERE contract_id = $1
		ORDER BY scheduled_date, id`, contractID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []ServiceRecord
	for rows.Next() {
		sr, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sr)
	}
	return out, rows.Err()
}

// List returns contracts matching the filter plus the total count. Visit
// histories are not loaded for listings.
func (r *Repository) List(ctx context.Context, req ListContractsRequest) ([]Contract, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, req.Status)
		argPos++
	}
	if req.ClientID != 0 {
		where += fmt.Sprintf(" AND client_id = $%d", argPos)
		args = append(args, req.ClientID)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM amc_contracts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	query := `SELECT ` + contractColumns + ` FROM amc_contracts` + where +
		fmt.Sprintf(" ORDER BY end_date, id LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// UpdateHeader writes the editable contract fields and derived counts.
func (r *Repository) UpdateHeader(ctx context.Context, c *Contract) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE amc_contracts
		SET start_date = $2, end_date = $3, duration_months = $4,
			service_frequency = $5, number_of_services = $6, contract_value = $7,
			payment_terms = $8, assigned_to = $9, status = $10, auto_renewal = $11,
			notes = $12, updated_at = NOW()
		WHERE id = $1`,
		c.ID, c.StartDate, c.EndDate, c.DurationMonths, c.ServiceFrequency,
		c.NumberOfServices, c.ContractValue, nullableTextPtr(c.PaymentTerms),
		nullableInt8Ptr(c.AssignedTo), c.Status, c.AutoRenewal, nullableTextPtr(c.Notes))
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: contract %d", shared.ErrNotFound, c.ID)
	}
	return nil
}

// UpdateStatus writes only the status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE amc_contracts SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: contract %d", shared.ErrNotFound, id)
	}
	return nil
}

// MarkRenewed terminally links the old contract to its successor. The WHERE
// guard keeps a concurrent double renewal from relinking.
func (r *Repository) MarkRenewed(ctx context.Context, oldID, newID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE amc_contracts
		SET status = $2, renewed_to = $3, updated_at = NOW()
		WHERE id = $1 AND status <> $2`,
		oldID, StatusRenewed, newID)
	if err != nil {
		return fmt.Errorf("mark contract renewed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: contract %d already renewed", shared.ErrInvalidTransition, oldID)
	}
	return nil
}

// AddService appends a visit record.
func (r *Repository) AddService(ctx context.Context, sr *ServiceRecord) (int64, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO amc_services (contract_id, scheduled_date, status, notes, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		sr.ContractID, sr.ScheduledDate, sr.Status, nullableTextPtr(sr.Notes),
	).Scan(&sr.ID, &sr.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert service: %w", err)
	}
	return sr.ID, nil
}

// GetService retrieves one visit scoped to its contract.
func (r *Repository) GetService(ctx context.Context, contractID, serviceID int64) (*ServiceRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, contract_id, scheduled_date, status, notes, completed_at, completed_by, created_at
		FROM amc_services
		WHERE id = $1 AND contract_id = $2`, serviceID, contractID)
	sr, err := scanService(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: service %d on contract %d", shared.ErrNotFound, serviceID, contractID)
		}
		return nil, err
	}
	return sr, nil
}

// CompleteService writes the completion stamp and increments the contract's
// counter in one transaction.
func (r *Repository) CompleteService(ctx context.Context, sr *ServiceRecord) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE amc_services
			SET status = $2, completed_at = $3, completed_by = $4
			WHERE id = $1`,
			sr.ID, sr.Status, sr.CompletedAt, nullableInt8Ptr(sr.CompletedBy))
		if err != nil {
			return fmt.Errorf("update service: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: service %d", shared.ErrNotFound, sr.ID)
		}
		_, err = tx.Exec(ctx, `
			UPDATE amc_contracts
			SET services_completed = services_completed + 1, updated_at = NOW()
			WHERE id = $1`, sr.ContractID)
		if err != nil {
			return fmt.Errorf("increment services completed: %w", err)
		}
		return nil
	})
}

// UpdateService writes a visit's status and date.
func (r *Repository) UpdateService(ctx context.Context, sr *ServiceRecord) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE amc_services
		SET status = $2, scheduled_date = $3
		WHERE id = $1`,
		sr.ID, sr.Status, sr.ScheduledDate)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: service %d", shared.ErrNotFound, sr.ID)
	}
	return nil
}

// ListRenewalDue returns Active auto-renewal contracts ending within the
// window that have not been notified yet. Used by the renewal reminder job.
func (r *Repository) ListRenewalDue(ctx context.Context, now, by time.Time) ([]Contract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contractColumns+`
		FROM amc_contracts
		WHERE status = $1 AND auto_renewal AND NOT renewal_notification_sent
			AND end_date >= $2 AND end_date <= $3
		ORDER BY end_date`, StatusActive, now, by)
	if err != nil {
		return nil, fmt.Errorf("list renewal due: %w", err)
	}
	defer rows.Close()
	return collectContracts(rows)
}

// ListExpired returns Active contracts whose end date has passed. Used by
// the expiry sweep.
func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]Contract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contractColumns+`
		FROM amc_contracts
		WHERE status = $1 AND end_date < $2
		ORDER BY end_date`, StatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	defer rows.Close()
	return collectContracts(rows)
}

// SetRenewalNotified flags the contract so the reminder fires once.
func (r *Repository) SetRenewalNotified(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE amc_contracts SET renewal_notification_sent = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set renewal notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: contract %d", shared.ErrNotFound, id)
	}
	return nil
}

func collectContracts(rows pgx.Rows) ([]Contract, error) {
	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanContract(row pgx.Row) (*Contract, error) {
	var c Contract
	var paymentTerms, notes pgtype.Text
	var assignedTo, renewedFrom, renewedTo pgtype.Int8
	err := row.Scan(
		&c.ID, &c.ClientID, &c.StartDate, &c.EndDate, &c.DurationMonths,
		&c.ServiceFrequency, &c.NumberOfServices, &c.ServicesCompleted, &c.ContractValue,
		&paymentTerms, &assignedTo, &c.Status, &c.AutoRenewal, &c.RenewalNotificationSent,
		&renewedFrom, &renewedTo, &notes, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentTerms.Valid {
		v := paymentTerms.String
		c.PaymentTerms = &v
	}
	if notes.Valid {
		v := notes.String
		c.Notes = &v
	}
	if assignedTo.Valid {
		v := assignedTo.Int64
		c.AssignedTo = &v
	}
	if renewedFrom.Valid {
		v := renewedFrom.Int64
		c.RenewedFrom = &v
	}
	if renewedTo.Valid {
		v := renewedTo.Int64
		c.RenewedTo = &v
	}
	return &c, nil
}

func scanService(row pgx.Row) (*ServiceRecord, error) {
	var sr ServiceRecord
	var notes pgtype.Text
	var completedAt pgtype.Timestamptz
	var completedBy pgtype.Int8
	err := row.Scan(
		&sr.ID, &sr.ContractID, &sr.ScheduledDate, &sr.Status,
		&notes, &completedAt, &completedBy, &sr.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		v := notes.String
		sr.Notes = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		sr.CompletedAt = &v
	}
	if completedBy.Valid {
		v := completedBy.Int64
		sr.CompletedBy = &v
	}
	return &sr, nil
}

func nullableTextPtr(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}

func nullableInt8Ptr(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
