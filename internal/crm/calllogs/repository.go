package calllogs

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

// Repository provides PostgreSQL backed persistence for call logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const callLogColumns = `id, lead_id, client_id, call_type, outcome,
	duration_seconds, follow_up_required, notes, created_by, created_at`

// Create inserts a call log.
func (r *Repository) Create(ctx context.Context, cl *CallLog) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO call_logs (
			lead_id, client_id, call_type, outcome, duration_seconds,
			follow_up_required, notes, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, NOW())
		RETURNING id`,
		nullableInt8(cl.LeadID), nullableInt8(cl.ClientID), cl.CallType, cl.Outcome,
		cl.DurationSeconds, nullableText(cl.Notes), cl.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert call log: %w", err)
	}
	return id, nil
}

// Get retrieves a call log by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*CallLog, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+callLogColumns+` FROM call_logs WHERE id = $1`, id)
	cl, err := scanCallLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: call log %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return cl, nil
}

// List returns call logs matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, req ListCallLogsRequest) ([]CallLog, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.LeadID != 0 {
		where += fmt.Sprintf(" AND lead_id = $%d", argPos)
		args = append(args, req.LeadID)
		argPos++
	}
	if req.ClientID != 0 {
		where += fmt.Sprintf(" AND client_id = $%d", argPos)
		args = append(args, req.ClientID)
		argPos++
	}
	if req.Outcome != "" {
		where += fmt.Sprintf(" AND outcome = $%d", argPos)
		args = append(args, req.Outcome)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM call_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	query := `SELECT ` + callLogColumns + ` FROM call_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []CallLog
	for rows.Next() {
		cl, err := scanCallLog(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *cl)
	}
	return out, total, rows.Err()
}

// ListPendingCallbacks returns call-back requests from the window that have
// not been flagged for follow-up yet. Feeds the call-back automation rule.
func (r *Repository) ListPendingCallbacks(ctx context.Context, since time.Time) ([]CallLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+callLogColumns+`
		FROM call_logs
		WHERE outcome = $1 AND NOT follow_up_required AND created_at >= $2
		ORDER BY created_at`, OutcomeCallBack, since)
	if err != nil {
		return nil, fmt.Errorf("list pending callbacks: %w", err)
	}
	defer rows.Close()

	var out []CallLog
	for rows.Next() {
		cl, err := scanCallLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cl)
	}
	return out, rows.Err()
}

// MarkFollowUpRequired flags the call so the rule fires once per call.
func (r *Repository) MarkFollowUpRequired(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE call_logs SET follow_up_required = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark follow-up required: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: call log %d", shared.ErrNotFound, id)
	}
	return nil
}

func scanCallLog(row pgx.Row) (*CallLog, error) {
	var cl CallLog
	var leadID, clientID pgtype.Int8
	var notes pgtype.Text
	err := row.Scan(
		&cl.ID, &leadID, &clientID, &cl.CallType, &cl.Outcome,
		&cl.DurationSeconds, &cl.FollowUpRequired, &notes, &cl.CreatedBy, &cl.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if leadID.Valid {
		v := leadID.Int64
		cl.LeadID = &v
	}
	if clientID.Valid {
		v := clientID.Int64
		cl.ClientID = &v
	}
	if notes.Valid {
		v := notes.String
		cl.Notes = &v
	}
	return &cl, nil
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
