package leads

import "time"

// Lead statuses. Status tracks engagement; the pipeline stage tracks deal
// progress and the two move independently until Won/Lost collapses both.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusWon        = "Won"
	StatusLost       = "Lost"
)

// Pipeline stages.
const (
	StageNew          = "New"
	StageContacted    = "Contacted"
	StageQualified    = "Qualified"
	StageProposalSent = "Proposal Sent"
	StageNegotiation  = "Negotiation"
	StageWon          = "Won"
	StageLost         = "Lost"
)

// Priorities.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

// Lead is a sales prospect. Probability is always derived from the stage via
// the pipeline table, never set directly.
type Lead struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Company           *string    `json:"company,omitempty"`
	Email             *string    `json:"email,omitempty"`
	Phone             *string    `json:"phone,omitempty"`
	Source            string     `json:"source"`
	Status            string     `json:"status"`
	Stage             string     `json:"stage"`
	Priority          string     `json:"priority"`
	Probability       int        `json:"probability"`
	ExpectedRevenue   float64    `json:"expected_revenue"`
	LostReason        *string    `json:"lost_reason,omitempty"`
	ConvertedClientID *int64     `json:"converted_client_id,omitempty"`
	AssignedTo        *int64     `json:"assigned_to,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	CreatedBy         int64      `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

// IsClosed reports whether the lead left the working pipeline.
func (l *Lead) IsClosed() bool {
	return l.Status == StatusWon || l.Status == StatusLost
}
