package tasks

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

// Repository provides PostgreSQL backed persistence for tasks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, title, description, priority, status, due_date,
	related_module, related_record_id, assigned_to, created_by, completed_at,
	created_at, updated_at`

// Create inserts a task.
func (r *Repository) Create(ctx context.Context, t *Task) (int64, error) {
	var module pgtype.Text
	var recordID pgtype.Int8
	if t.RelatedTo != nil {
		module = pgtype.Text{String: string(t.RelatedTo.Module), Valid: true}
		recordID = pgtype.Int8{Int64: t.RelatedTo.RecordID, Valid: true}
	}

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (
			title, description, priority, status, due_date, related_module,
			related_record_id, assigned_to, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id`,
		t.Title, nullableText(t.Description), t.Priority, t.Status,
		nullableTime(t.DueDate), module, recordID,
		nullableInt8(t.AssignedTo), nullableInt8(t.CreatedBy),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

// Get retrieves a task by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: task %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return t, nil
}

// List returns tasks matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, req ListTasksRequest) ([]Task, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, req.Status)
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
	if req.Module != "" {
		where += fmt.Sprintf(" AND related_module = $%d", argPos)
		args = append(args, req.Module)
		argPos++
	}
	if req.RecordID != 0 {
		where += fmt.Sprintf(" AND related_record_id = $%d", argPos)
		args = append(args, req.RecordID)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	query := `SELECT ` + taskColumns + ` FROM tasks` + where +
		fmt.Sprintf(" ORDER BY due_date NULLS LAST, id LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// Update writes the mutable task fields.
func (r *Repository) Update(ctx context.Context, t *Task) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, priority = $4, status = $5,
			due_date = $6, assigned_to = $7, completed_at = $8, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.Title, nullableText(t.Description), t.Priority, t.Status,
		nullableTime(t.DueDate), nullableInt8(t.AssignedTo), nullableTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %d", shared.ErrNotFound, t.ID)
	}
	return nil
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %d", shared.ErrNotFound, id)
	}
	return nil
}

// HasOpenTaskFor reports whether an open task already points at the record.
func (r *Repository) HasOpenTaskFor(ctx context.Context, ref RelatedRef) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tasks
			WHERE related_module = $1 AND related_record_id = $2
				AND status IN ($3, $4, $5)
		)`, ref.Module, ref.RecordID, StatusToDo, StatusInProgress, StatusOnHold).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open task: %w", err)
	}
	return exists, nil
}

// OpenRefs returns the record ids of a module that already have an open
// task. The automation runner preloads this once per sweep instead of one
// existence query per entity.
func (r *Repository) OpenRefs(ctx context.Context, module Module) (map[int64]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT related_record_id
		FROM tasks
		WHERE related_module = $1 AND related_record_id IS NOT NULL
			AND status IN ($2, $3, $4)`,
		module, StatusToDo, StatusInProgress, StatusOnHold)
	if err != nil {
		return nil, fmt.Errorf("list open refs: %w", err)
	}
	defer rows.Close()

	refs := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		refs[id] = true
	}
	return refs, rows.Err()
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var description pgtype.Text
	var module pgtype.Text
	var recordID, assignedTo, createdBy pgtype.Int8
	var dueDate, completedAt pgtype.Timestamptz
	err := row.Scan(
		&t.ID, &t.Title, &description, &t.Priority, &t.Status, &dueDate,
		&module, &recordID, &assignedTo, &createdBy, &completedAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		v := description.String
		t.Description = &v
	}
	if module.Valid && recordID.Valid {
		t.RelatedTo = &RelatedRef{Module: Module(module.String), RecordID: recordID.Int64}
	}
	if assignedTo.Valid {
		v := assignedTo.Int64
		t.AssignedTo = &v
	}
	if createdBy.Valid {
		v := createdBy.Int64
		t.CreatedBy = &v
	}
	if dueDate.Valid {
		v := dueDate.Time
		t.DueDate = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return &t, nil
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
