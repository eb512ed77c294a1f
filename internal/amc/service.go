package amc

import (
	"context"
	"fmt"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// RepositoryPort defines data access methods for contracts and their visits.
// CompleteService updates the visit and increments servicesCompleted in one
// transaction.
type RepositoryPort interface {
	Create(ctx context.Context, c *Contract) (int64, error)
	Get(ctx context.Context, id int64) (*Contract, error)
	List(ctx context.Context, req ListContractsRequest) ([]Contract, int, error)
	UpdateHeader(ctx context.Context, c *Contract) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	MarkRenewed(ctx context.Context, oldID, newID int64) error
	AddService(ctx context.Context, sr *ServiceRecord) (int64, error)
	GetService(ctx context.Context, contractID, serviceID int64) (*ServiceRecord, error)
	CompleteService(ctx context.Context, sr *ServiceRecord) error
	UpdateService(ctx context.Context, sr *ServiceRecord) error
}

// Service handles contract business logic.
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

// Create derives duration and service count and persists an Active contract.
func (s *Service) Create(ctx context.Context, req CreateContractRequest, createdBy int64) (*Contract, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("%w: end_date must be after start_date", shared.ErrInvalidDateRange)
	}
	count, err := DeriveServiceCount(req.StartDate, req.EndDate, req.ServiceFrequency)
	if err != nil {
		return nil, err
	}

	c := Contract{
		ClientID:         req.ClientID,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		DurationMonths:   DurationMonths(req.StartDate, req.EndDate),
		ServiceFrequency: req.ServiceFrequency,
		NumberOfServices: count,
		ContractValue:    req.ContractValue,
		PaymentTerms:     req.PaymentTerms,
		AssignedTo:       req.AssignedTo,
		Status:           StatusActive,
		AutoRenewal:      req.AutoRenewal,
		Notes:            req.Notes,
		CreatedBy:        createdBy,
	}

	id, err := s.repo.Create(ctx, &c)
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// get loads a contract and applies the lazy date-driven expiry.
func (s *Service) get(ctx context.Context, id int64) (*Contract, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	if c.RefreshStatus(s.clock()) {
		if err := s.repo.UpdateStatus(ctx, id, c.Status); err != nil {
			return nil, fmt.Errorf("expire contract: %w", err)
		}
	}
	return c, nil
}

// Get returns a contract with its visit history.
func (s *Service) Get(ctx context.Context, id int64) (*Contract, error) {
	return s.get(ctx, id)
}

// List returns contracts matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListContractsRequest) ([]Contract, int, error) {
	return s.repo.List(ctx, req)
}

// Update edits header fields on an Active or held contract. Changing the
// dates or frequency re-derives duration and the owed service count.
func (s *Service) Update(ctx context.Context, id int64, req UpdateContractRequest) (*Contract, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive && c.Status != StatusOnHold {
		return nil, fmt.Errorf("%w: %s contract is immutable", shared.ErrInvalidTransition, c.Status)
	}

	if req.StartDate != nil {
		c.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		c.EndDate = *req.EndDate
	}
	if !c.EndDate.After(c.StartDate) {
		return nil, fmt.Errorf("%w: end_date must be after start_date", shared.ErrInvalidDateRange)
	}
	if req.ServiceFrequency != nil {
		c.ServiceFrequency = *req.ServiceFrequency
	}
	count, err := DeriveServiceCount(c.StartDate, c.EndDate, c.ServiceFrequency)
	if err != nil {
		return nil, err
	}
	c.DurationMonths = DurationMonths(c.StartDate, c.EndDate)
	c.NumberOfServices = count

	if req.ContractValue != nil {
		c.ContractValue = *req.ContractValue
	}
	if req.PaymentTerms != nil {
		c.PaymentTerms = req.PaymentTerms
	}
	if req.AssignedTo != nil {
		c.AssignedTo = req.AssignedTo
	}
	if req.AutoRenewal != nil {
		c.AutoRenewal = *req.AutoRenewal
	}
	if req.Notes != nil {
		c.Notes = req.Notes
	}

	// Expiry is re-checked against possibly moved dates.
	c.RefreshStatus(s.clock())

	if err := s.repo.UpdateHeader(ctx, c); err != nil {
		return nil, fmt.Errorf("update contract: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) transition(ctx context.Context, id int64, apply func(*Contract) error) (*Contract, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, c.Status); err != nil {
		return nil, fmt.Errorf("update contract status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Hold pauses an Active contract.
func (s *Service) Hold(ctx context.Context, id int64) (*Contract, error) {
	return s.transition(ctx, id, (*Contract).Hold)
}

// Resume reactivates a held contract.
func (s *Service) Resume(ctx context.Context, id int64) (*Contract, error) {
	return s.transition(ctx, id, (*Contract).Resume)
}

// Cancel terminates a contract.
func (s *Service) Cancel(ctx context.Context, id int64) (*Contract, error) {
	return s.transition(ctx, id, (*Contract).Cancel)
}

// Renew creates the contiguous successor contract, links both directions and
// marks the old contract Renewed. Returns the successor.
func (s *Service) Renew(ctx context.Context, id int64, req RenewContractRequest, actorID int64) (*Contract, error) {
	old, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	successor, err := Renew(old, req.NewEndDate, actorID)
	if err != nil {
		return nil, err
	}

	newID, err := s.repo.Create(ctx, successor)
	if err != nil {
		return nil, fmt.Errorf("create renewal contract: %w", err)
	}
	if err := s.repo.MarkRenewed(ctx, id, newID); err != nil {
		return nil, fmt.Errorf("mark contract renewed: %w", err)
	}
	return s.repo.Get(ctx, newID)
}

// ScheduleService appends one visit to the contract.
func (s *Service) ScheduleService(ctx context.Context, contractID int64, req ScheduleServiceRequest) (*Contract, error) {
	c, err := s.get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, fmt.Errorf("%w: services can only be scheduled on an Active contract", shared.ErrInvalidTransition)
	}

	sr := ServiceRecord{
		ContractID:    contractID,
		ScheduledDate: req.ScheduledDate,
		Status:        ServiceScheduled,
		Notes:         req.Notes,
	}
	if _, err := s.repo.AddService(ctx, &sr); err != nil {
		return nil, fmt.Errorf("schedule service: %w", err)
	}
	return s.repo.Get(ctx, contractID)
}

// CompleteService stamps the visit and increments servicesCompleted. The
// counter is not capped at numberOfServices; ad hoc extra visits count too.
func (s *Service) CompleteService(ctx context.Context, contractID, serviceID, completedBy int64) (*Contract, error) {
	sr, err := s.repo.GetService(ctx, contractID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if err := sr.Transition(ServiceCompleted); err != nil {
		return nil, err
	}
	now := s.clock()
	sr.CompletedAt = &now
	sr.CompletedBy = &completedBy

	if err := s.repo.CompleteService(ctx, sr); err != nil {
		return nil, fmt.Errorf("complete service: %w", err)
	}
	return s.repo.Get(ctx, contractID)
}

// MarkServiceMissed records a visit that did not happen.
func (s *Service) MarkServiceMissed(ctx context.Context, contractID, serviceID int64) (*Contract, error) {
	return s.serviceTransition(ctx, contractID, serviceID, ServiceMissed, nil)
}

// RescheduleService moves a visit to a new date.
func (s *Service) RescheduleService(ctx context.Context, contractID, serviceID int64, req RescheduleServiceRequest) (*Contract, error) {
	return s.serviceTransition(ctx, contractID, serviceID, ServiceRescheduled, &req.ScheduledDate)
}

// CancelService drops a planned visit.
func (s *Service) CancelService(ctx context.Context, contractID, serviceID int64) (*Contract, error) {
	return s.serviceTransition(ctx, contractID, serviceID, ServiceCancelled, nil)
}

func (s *Service) serviceTransition(ctx context.Context, contractID, serviceID int64, to ServiceStatus, newDate *time.Time) (*Contract, error) {
	sr, err := s.repo.GetService(ctx, contractID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if err := sr.Transition(to); err != nil {
		return nil, err
	}
	if newDate != nil {
		sr.ScheduledDate = *newDate
	}
	if err := s.repo.UpdateService(ctx, sr); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}
	return s.repo.Get(ctx, contractID)
}
