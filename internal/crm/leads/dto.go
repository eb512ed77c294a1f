package leads

// CreateLeadRequest is the create payload. Stage defaults to New and status
// to Open when omitted.
type CreateLeadRequest struct {
	Name            string  `json:"name" validate:"required"`
	Company         *string `json:"company"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Phone           *string `json:"phone"`
	Source          string  `json:"source" validate:"required"`
	Stage           string  `json:"stage"`
	Priority        string  `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	ExpectedRevenue float64 `json:"expected_revenue" validate:"gte=0"`
	AssignedTo      *int64  `json:"assigned_to"`
	Notes           *string `json:"notes"`
}

// UpdateLeadRequest edits lead fields; nil fields keep their value. Stage
// changes go through the dedicated stage endpoint.
type UpdateLeadRequest struct {
	Name            *string  `json:"name"`
	Company         *string  `json:"company"`
	Email           *string  `json:"email" validate:"omitempty,email"`
	Phone           *string  `json:"phone"`
	Source          *string  `json:"source"`
	Status          *string  `json:"status" validate:"omitempty,oneof=Open 'In Progress'"`
	Priority        *string  `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	ExpectedRevenue *float64 `json:"expected_revenue" validate:"omitempty,gte=0"`
	AssignedTo      *int64   `json:"assigned_to"`
	Notes           *string  `json:"notes"`
}

// ChangeStageRequest moves the lead along the pipeline.
type ChangeStageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

// MarkLostRequest closes the lead with a reason.
type MarkLostRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ListLeadsRequest filters and paginates listings.
type ListLeadsRequest struct {
	Status     string
	Stage      string
	Priority   string
	AssignedTo int64
	Page       int
	PerPage    int
}
