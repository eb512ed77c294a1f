package leads

import (
	"context"
	"fmt"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// RepositoryPort defines data access methods for leads.
type RepositoryPort interface {
	Create(ctx context.Context, l *Lead) (int64, error)
	Get(ctx context.Context, id int64) (*Lead, error)
	List(ctx context.Context, req ListLeadsRequest) ([]Lead, int, error)
	UpdateHeader(ctx context.Context, l *Lead) error
	Delete(ctx context.Context, id int64) error
}

// ClientWriter creates the client record a won lead converts into.
// Implemented by the clients service; injected to keep the dependency
// one-directional.
type ClientWriter interface {
	CreateFromLead(ctx context.Context, l *Lead, actorID int64) (int64, error)
}

// Service handles lead business logic against the injected pipeline.
type Service struct {
	repo     RepositoryPort
	pipeline PipelineProvider
	clients  ClientWriter
	clock    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, pipeline PipelineProvider, clients ClientWriter) *Service {
	return &Service{
		repo:     repo,
		pipeline: pipeline,
		clients:  clients,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Create validates source and stage against the pipeline and persists an
// Open lead with its derived probability.
func (s *Service) Create(ctx context.Context, req CreateLeadRequest, createdBy int64) (*Lead, error) {
	pipeline, err := s.pipeline.Pipeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}
	if err := pipeline.ValidateSource(req.Source); err != nil {
		return nil, err
	}

	stage := req.Stage
	if stage == "" {
		stage = StageNew
	}
	if err := pipeline.ValidateStage(stage); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	l := Lead{
		Name:            req.Name,
		Company:         req.Company,
		Email:           req.Email,
		Phone:           req.Phone,
		Source:          req.Source,
		Status:          StatusOpen,
		Stage:           stage,
		Priority:        priority,
		Probability:     pipeline.ProbabilityFor(stage),
		ExpectedRevenue: req.ExpectedRevenue,
		AssignedTo:      req.AssignedTo,
		Notes:           req.Notes,
		CreatedBy:       createdBy,
	}

	id, err := s.repo.Create(ctx, &l)
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update edits lead fields. Closed leads are immutable.
func (s *Service) Update(ctx context.Context, id int64, req UpdateLeadRequest) (*Lead, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	if l.IsClosed() {
		return nil, fmt.Errorf("%w: %s lead is immutable", shared.ErrInvalidTransition, l.Status)
	}

	if req.Source != nil {
		pipeline, err := s.pipeline.Pipeline(ctx)
		if err != nil {
			return nil, fmt.Errorf("load pipeline: %w", err)
		}
		if err := pipeline.ValidateSource(*req.Source); err != nil {
			return nil, err
		}
		l.Source = *req.Source
	}
	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Company != nil {
		l.Company = req.Company
	}
	if req.Email != nil {
		l.Email = req.Email
	}
	if req.Phone != nil {
		l.Phone = req.Phone
	}
	if req.Status != nil {
		l.Status = *req.Status
	}
	if req.Priority != nil {
		l.Priority = *req.Priority
	}
	if req.ExpectedRevenue != nil {
		l.ExpectedRevenue = *req.ExpectedRevenue
	}
	if req.AssignedTo != nil {
		l.AssignedTo = req.AssignedTo
	}
	if req.Notes != nil {
		l.Notes = req.Notes
	}

	if err := s.repo.UpdateHeader(ctx, l); err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// ChangeStage moves the lead along the pipeline and re-derives probability.
// Reaching Won closes the lead; Lost goes through MarkLost for its reason.
func (s *Service) ChangeStage(ctx context.Context, id int64, req ChangeStageRequest) (*Lead, error) {
	if req.Stage == StageLost {
		return nil, fmt.Errorf("%w: losing a lead requires a reason", shared.ErrValidation)
	}

	pipeline, err := s.pipeline.Pipeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}
	if err := pipeline.ValidateStage(req.Stage); err != nil {
		return nil, err
	}

	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	if l.IsClosed() {
		return nil, fmt.Errorf("%w: %s lead is immutable", shared.ErrInvalidTransition, l.Status)
	}

	l.Stage = req.Stage
	l.Probability = pipeline.ProbabilityFor(req.Stage)
	if req.Stage == StageWon {
		l.Status = StatusWon
		now := s.clock()
		l.ClosedAt = &now
	} else if l.Status == StatusOpen && req.Stage != StageNew {
		l.Status = StatusInProgress
	}

	if err := s.repo.UpdateHeader(ctx, l); err != nil {
		return nil, fmt.Errorf("update lead stage: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// MarkLost closes the lead with status and stage Lost.
func (s *Service) MarkLost(ctx context.Context, id int64, req MarkLostRequest) (*Lead, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	if l.IsClosed() {
		return nil, fmt.Errorf("%w: %s lead is immutable", shared.ErrInvalidTransition, l.Status)
	}

	l.Status = StatusLost
	l.Stage = StageLost
	l.Probability = 0
	l.LostReason = &req.Reason
	now := s.clock()
	l.ClosedAt = &now

	if err := s.repo.UpdateHeader(ctx, l); err != nil {
		return nil, fmt.Errorf("mark lead lost: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Convert wins the lead and creates its client record, linking the two.
func (s *Service) Convert(ctx context.Context, id int64, actorID int64) (*Lead, int64, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("get lead: %w", err)
	}
	if l.ConvertedClientID != nil {
		return nil, 0, fmt.Errorf("%w: lead %d already converted", shared.ErrInvalidTransition, id)
	}
	if l.Status == StatusLost {
		return nil, 0, fmt.Errorf("%w: lost lead cannot convert", shared.ErrInvalidTransition)
	}

	clientID, err := s.clients.CreateFromLead(ctx, l, actorID)
	if err != nil {
		return nil, 0, fmt.Errorf("create client from lead: %w", err)
	}

	pipeline, err := s.pipeline.Pipeline(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load pipeline: %w", err)
	}

	l.ConvertedClientID = &clientID
	l.Status = StatusWon
	l.Stage = StageWon
	l.Probability = pipeline.ProbabilityFor(StageWon)
	now := s.clock()
	l.ClosedAt = &now

	if err := s.repo.UpdateHeader(ctx, l); err != nil {
		return nil, 0, fmt.Errorf("convert lead: %w", err)
	}
	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return updated, clientID, nil
}

// Delete removes a lead that never converted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get lead: %w", err)
	}
	if l.ConvertedClientID != nil {
		return fmt.Errorf("%w: converted lead cannot be deleted", shared.ErrInvalidTransition)
	}
	return s.repo.Delete(ctx, id)
}

// Get returns a lead.
func (s *Service) Get(ctx context.Context, id int64) (*Lead, error) {
	return s.repo.Get(ctx, id)
}

// List returns leads matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListLeadsRequest) ([]Lead, int, error) {
	return s.repo.List(ctx, req)
}
