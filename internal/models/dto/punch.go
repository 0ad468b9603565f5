package dto

import "github.com/hongminglow/punchclock/internal/models"

// LoginRequest carries the sign-in form fields.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ClockRequest is the body of POST /api/clock. Coordinates are omitted when unknown.
type ClockRequest struct {
	Type     string   `json:"type"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// ClockResponse is the success body of POST /api/clock.
type ClockResponse struct {
	OK    bool          `json:"ok"`
	Punch *models.Punch `json:"punch"`
}

// PunchUpdateRequest is the body of POST /api/punch-update. A nil Note clears it.
type PunchUpdateRequest struct {
	ID   models.PunchID `json:"id"`
	Note *string        `json:"note"`
}

// PunchApprovalRequest is the body of POST /api/punch-approve.
type PunchApprovalRequest struct {
	ID       models.PunchID        `json:"id"`
	Decision models.ApprovalStatus `json:"decision"`
}

// TeamPunchQuery holds the /api/team-punches query; empty Start/End are not sent.
type TeamPunchQuery struct {
	UserID string
	Limit  int
	Start  string
	End    string
}
