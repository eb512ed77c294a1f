// Package calllogs records call activity against leads and clients. The
// call-back automation rule consumes the outcome and followUpRequired flag.
package calllogs

import (
	"context"
	"fmt"
	"time"
)

// Call outcomes. OutcomeCallBack triggers the follow-up automation rule.
const (
	OutcomeConnected   = "Connected"
	OutcomeNoAnswer    = "No Answer"
	OutcomeCallBack    = "Call Back Requested"
	OutcomeVoicemail   = "Voicemail"
	OutcomeWrongNumber = "Wrong Number"
)

// CallLog is one recorded call.
type CallLog struct {
	ID               int64     `json:"id"`
	LeadID           *int64    `json:"lead_id,omitempty"`
	ClientID         *int64    `json:"client_id,omitempty"`
	CallType         string    `json:"call_type"`
	Outcome          string    `json:"outcome"`
	DurationSeconds  int       `json:"duration_seconds"`
	FollowUpRequired bool      `json:"follow_up_required"`
	Notes            *string   `json:"notes,omitempty"`
	CreatedBy        int64     `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateCallLogRequest is the create payload.
type CreateCallLogRequest struct {
	LeadID          *int64  `json:"lead_id"`
	ClientID        *int64  `json:"client_id"`
	CallType        string  `json:"call_type" validate:"required,oneof=Inbound Outbound"`
	Outcome         string  `json:"outcome" validate:"required,oneof=Connected 'No Answer' 'Call Back Requested' Voicemail 'Wrong Number'"`
	DurationSeconds int     `json:"duration_seconds" validate:"gte=0"`
	Notes           *string `json:"notes"`
}

// ListCallLogsRequest filters and paginates listings.
type ListCallLogsRequest struct {
	LeadID   int64
	ClientID int64
	Outcome  string
	Page     int
	PerPage  int
}

// RepositoryPort defines data access methods for call logs.
type RepositoryPort interface {
	Create(ctx context.Context, cl *CallLog) (int64, error)
	Get(ctx context.Context, id int64) (*CallLog, error)
	List(ctx context.Context, req ListCallLogsRequest) ([]CallLog, int, error)
}

// Service handles call log business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create records a call.
func (s *Service) Create(ctx context.Context, req CreateCallLogRequest, createdBy int64) (*CallLog, error) {
	cl := CallLog{
		LeadID:          req.LeadID,
		ClientID:        req.ClientID,
		CallType:        req.CallType,
		Outcome:         req.Outcome,
		DurationSeconds: req.DurationSeconds,
		Notes:           req.Notes,
		CreatedBy:       createdBy,
	}
	id, err := s.repo.Create(ctx, &cl)
	if err != nil {
		return nil, fmt.Errorf("create call log: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get returns a call log.
func (s *Service) Get(ctx context.Context, id int64) (*CallLog, error) {
	return s.repo.Get(ctx, id)
}

// List returns call logs matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListCallLogsRequest) ([]CallLog, int, error) {
	return s.repo.List(ctx, req)
}
