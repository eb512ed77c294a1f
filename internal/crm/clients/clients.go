// Package clients holds the long-lived client aggregate referenced by leads,
// quotations, invoices, contracts and payments. Referencing entities never
// own a client; deletion is refused while references exist.
package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/vantage-crm/vantage-crm/internal/crm/leads"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// Client is the account record.
type Client struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Company    *string   `json:"company,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Address    *string   `json:"address,omitempty"`
	GSTIN      *string   `json:"gstin,omitempty"`
	SourceLead *int64    `json:"source_lead,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateClientRequest is the create payload.
type CreateClientRequest struct {
	Name    string  `json:"name" validate:"required"`
	Company *string `json:"company"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	GSTIN   *string `json:"gstin"`
	Notes   *string `json:"notes"`
}

// UpdateClientRequest edits client fields; nil fields keep their value.
type UpdateClientRequest struct {
	Name    *string `json:"name"`
	Company *string `json:"company"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	GSTIN   *string `json:"gstin"`
	Notes   *string `json:"notes"`
}

// ListClientsRequest filters and paginates listings.
type ListClientsRequest struct {
	Search  string
	Page    int
	PerPage int
}

// RepositoryPort defines data access methods for clients.
type RepositoryPort interface {
	Create(ctx context.Context, c *Client) (int64, error)
	Get(ctx context.Context, id int64) (*Client, error)
	List(ctx context.Context, req ListClientsRequest) ([]Client, int, error)
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id int64) error
	CountReferences(ctx context.Context, id int64) (int, error)
}

// Service handles client business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create persists a client.
func (s *Service) Create(ctx context.Context, req CreateClientRequest, createdBy int64) (*Client, error) {
	c := Client{
		Name:      req.Name,
		Company:   req.Company,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		GSTIN:     req.GSTIN,
		Notes:     req.Notes,
		CreatedBy: createdBy,
	}
	id, err := s.repo.Create(ctx, &c)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// CreateFromLead materialises a converted lead as a client.
func (s *Service) CreateFromLead(ctx context.Context, l *leads.Lead, actorID int64) (int64, error) {
	leadID := l.ID
	c := Client{
		Name:       l.Name,
		Company:    l.Company,
		Email:      l.Email,
		Phone:      l.Phone,
		Notes:      l.Notes,
		SourceLead: &leadID,
		CreatedBy:  actorID,
	}
	id, err := s.repo.Create(ctx, &c)
	if err != nil {
		return 0, fmt.Errorf("create client from lead: %w", err)
	}
	return id, nil
}

// Update edits client fields.
func (s *Service) Update(ctx context.Context, id int64, req UpdateClientRequest) (*Client, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Company != nil {
		c.Company = req.Company
	}
	if req.Email != nil {
		c.Email = req.Email
	}
	if req.Phone != nil {
		c.Phone = req.Phone
	}
	if req.Address != nil {
		c.Address = req.Address
	}
	if req.GSTIN != nil {
		c.GSTIN = req.GSTIN
	}
	if req.Notes != nil {
		c.Notes = req.Notes
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a client no document references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	refs, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return fmt.Errorf("count client references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: client %d has %d referencing records", shared.ErrValidation, id, refs)
	}
	return s.repo.Delete(ctx, id)
}

// Get returns a client.
func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.Get(ctx, id)
}

// List returns clients matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	return s.repo.List(ctx, req)
}
