package tasks

import (
	"context"
	"fmt"
	"time"
)

// CreateTaskRequest is the create payload.
type CreateTaskRequest struct {
	Title       string      `json:"title" validate:"required"`
	Description *string     `json:"description"`
	Priority    string      `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	DueDate     *time.Time  `json:"due_date"`
	RelatedTo   *RelatedRef `json:"related_to"`
	AssignedTo  *int64      `json:"assigned_to"`
}

// UpdateTaskRequest edits task fields; nil fields keep their value.
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  *int64     `json:"assigned_to"`
}

// ListTasksRequest filters and paginates listings.
type ListTasksRequest struct {
	Status     Status
	Priority   string
	AssignedTo int64
	Module     Module
	RecordID   int64
	Page       int
	PerPage    int
}

// RepositoryPort defines data access methods for tasks.
type RepositoryPort interface {
	Create(ctx context.Context, t *Task) (int64, error)
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, req ListTasksRequest) ([]Task, int, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id int64) error
	HasOpenTaskFor(ctx context.Context, ref RelatedRef) (bool, error)
	OpenRefs(ctx context.Context, module Module) (map[int64]bool, error)
}

// Service handles task business logic.
type Service struct {
	repo  RepositoryPort
	clock func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{
		repo:  repo,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Create persists an open task.
func (s *Service) Create(ctx context.Context, req CreateTaskRequest, createdBy int64) (*Task, error) {
	if req.RelatedTo != nil {
		if err := req.RelatedTo.Validate(); err != nil {
			return nil, err
		}
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	t := Task{
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		Status:      StatusToDo,
		DueDate:     req.DueDate,
		RelatedTo:   req.RelatedTo,
		AssignedTo:  req.AssignedTo,
	}
	if createdBy != 0 {
		t.CreatedBy = &createdBy
	}

	id, err := s.repo.Create(ctx, &t)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update edits task fields.
func (s *Service) Update(ctx context.Context, id int64, req UpdateTaskRequest) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = req.Description
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.AssignedTo != nil {
		t.AssignedTo = req.AssignedTo
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// ChangeStatus moves the task along the legal graph; completion is stamped.
func (s *Service) ChangeStatus(ctx context.Context, id int64, to Status) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if err := t.Transition(to); err != nil {
		return nil, err
	}
	if to == StatusCompleted {
		now := s.clock()
		t.CompletedAt = &now
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Get returns a task.
func (s *Service) Get(ctx context.Context, id int64) (*Task, error) {
	return s.repo.Get(ctx, id)
}

// List returns tasks matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListTasksRequest) ([]Task, int, error) {
	return s.repo.List(ctx, req)
}
